package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dashboard is the front-desk summary.
type Dashboard struct {
	TotalPatients       int64           `json:"total_patients"`
	TotalDoctors        int64           `json:"total_doctors"`
	AppointmentsToday   int64           `json:"appointments_today"`
	PendingAppointments int64           `json:"pending_appointments"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	PendingBills        decimal.Decimal `json:"pending_bills"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

type MonthlyRevenue struct {
	Month      string          `json:"month"`
	Year       int             `json:"year"`
	MonthStart time.Time       `json:"month_start"`
	Revenue    decimal.Decimal `json:"revenue"`
}

// Analytics is the reports snapshot.
type Analytics struct {
	TotalPatients           int64            `json:"total_patients"`
	TotalDoctors            int64            `json:"total_doctors"`
	TotalAppointments       int64            `json:"total_appointments"`
	TotalBills              int64            `json:"total_bills"`
	TotalRevenue            decimal.Decimal  `json:"total_revenue"`
	PendingRevenue          decimal.Decimal  `json:"pending_revenue"`
	AppointmentsByStatus    map[string]int64 `json:"appointments_by_status"`
	MonthlyRevenue          []MonthlyRevenue `json:"monthly_revenue"`
	AppointmentsByDayOfWeek map[string]int64 `json:"appointments_by_day_of_week"`
	AppointmentsByDoctor    map[string]int64 `json:"appointments_by_doctor"`
	AppointmentsToday       int64            `json:"appointments_today"`
	GeneratedAt             time.Time        `json:"generated_at"`
}

// AppointmentFact is the projection the aggregator reads. Fields are nullable
// because historical rows are not guaranteed to be complete.
type AppointmentFact struct {
	AppointmentTime *time.Time `db:"appointment_time"`
	Status          *string    `db:"status"`
	DoctorName      *string    `db:"doctor_name"`
}

type BillFact struct {
	Amount      decimal.NullDecimal `db:"amount"`
	Status      *string             `db:"status"`
	PaymentDate *time.Time          `db:"payment_date"`
}

// EntityCounts holds collection cardinalities.
type EntityCounts struct {
	Patients     int64 `db:"patients"`
	Doctors      int64 `db:"doctors"`
	Appointments int64 `db:"appointments"`
	Bills        int64 `db:"bills"`
}
