package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

type doctorRepository struct {
	BaseRepository
}

type appointmentRepository struct {
	BaseRepository
}

type billRepository struct {
	BaseRepository
}

type prescriptionRepository struct {
	BaseRepository
}

type labTestRepository struct {
	BaseRepository
}

type labOrderRepository struct {
	BaseRepository
}

type labResultRepository struct {
	BaseRepository
}

type medicalRecordRepository struct {
	BaseRepository
}

type userRepository struct {
	BaseRepository
}

type reportRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{NewBaseRepository(db)}
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func NewBillRepository(db *sqlx.DB) repository.BillRepository {
	return &billRepository{NewBaseRepository(db)}
}

func NewPrescriptionRepository(db *sqlx.DB) repository.PrescriptionRepository {
	return &prescriptionRepository{NewBaseRepository(db)}
}

func NewLabTestRepository(db *sqlx.DB) repository.LabTestRepository {
	return &labTestRepository{NewBaseRepository(db)}
}

func NewLabOrderRepository(db *sqlx.DB) repository.LabOrderRepository {
	return &labOrderRepository{NewBaseRepository(db)}
}

func NewLabResultRepository(db *sqlx.DB) repository.LabResultRepository {
	return &labResultRepository{NewBaseRepository(db)}
}

func NewMedicalRecordRepository(db *sqlx.DB) repository.MedicalRecordRepository {
	return &medicalRecordRepository{NewBaseRepository(db)}
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{NewBaseRepository(db)}
}

func NewReportRepository(db *sqlx.DB) repository.ReportRepository {
	return &reportRepository{NewBaseRepository(db)}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}

// NewRepositories wires every postgres-backed store.
func NewRepositories(db *sqlx.DB) *repository.Repositories {
	base := NewBaseRepository(db)
	return &repository.Repositories{
		Patients:       NewPatientRepository(db),
		Doctors:        NewDoctorRepository(db),
		Appointments:   NewAppointmentRepository(db),
		Bills:          NewBillRepository(db),
		Prescriptions:  NewPrescriptionRepository(db),
		LabTests:       NewLabTestRepository(db),
		LabOrders:      NewLabOrderRepository(db),
		LabResults:     NewLabResultRepository(db),
		MedicalRecords: NewMedicalRecordRepository(db),
		Users:          NewUserRepository(db),
		Reports:        NewReportRepository(db),
		Outbox:         NewOutboxRepository(db),
		Health:         &base,
	}
}
