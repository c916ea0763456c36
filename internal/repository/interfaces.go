package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// ErrStatusMismatch is returned by conditional writes when the row exists but
// is no longer in the expected status. Callers re-read to classify it.
var ErrStatusMismatch = errors.New("status precondition failed")

// All repository interfaces in one file
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		// Delete removes the patient together with unpaid bills, prescriptions,
		// lab orders and results, medical records and appointments. It fails with
		// a Conflict while any PAID bill references the patient.
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*model.Doctor, error)
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error)
	}

	AppointmentRepository interface {
		// Create fails with a Conflict if the doctor already holds a
		// non-cancelled appointment at the same instant.
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// Update writes time and notes while the stored status is still `expected`.
		Update(ctx context.Context, appointment *model.Appointment, expected model.AppointmentStatus) error
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) (*model.Appointment, error)
		// Delete removes the appointment, its unpaid bills, and unlinks its
		// medical records. It fails with a Conflict if a PAID bill references it.
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		ExistsActiveAt(ctx context.Context, doctorID uuid.UUID, at time.Time, excludeID *uuid.UUID) (bool, error)
		ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		CountOpenByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error)
	}

	BillRepository interface {
		// Create fails with a Conflict if the appointment is already billed.
		Create(ctx context.Context, bill *model.Bill) error
		Get(ctx context.Context, id uuid.UUID) (*model.Bill, error)
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Bill, error)
		// Update writes amount, description, status and payment fields while the
		// stored status is still `expected`.
		Update(ctx context.Context, bill *model.Bill, expected model.BillStatus) error
		// MarkPaid moves a PENDING bill to PAID. ErrStatusMismatch when the bill
		// is no longer PENDING.
		MarkPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) (*model.Bill, error)
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.BillFilters) ([]*model.Bill, error)
		HasPaidForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error)
		HasPaidForPatient(ctx context.Context, patientID uuid.UUID) (bool, error)
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, prescription *model.Prescription) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		Update(ctx context.Context, prescription *model.Prescription) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, patientID, doctorID *uuid.UUID) ([]*model.Prescription, error)
	}

	LabTestRepository interface {
		Create(ctx context.Context, test *model.LabTest) error
		List(ctx context.Context) ([]*model.LabTest, error)
	}

	LabOrderRepository interface {
		Create(ctx context.Context, order *model.LabOrder) error
		Get(ctx context.Context, id uuid.UUID) (*model.LabOrder, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.LabOrderStatus) (*model.LabOrder, error)
		List(ctx context.Context, filters *model.LabOrderFilters) ([]*model.LabOrder, error)
	}

	LabResultRepository interface {
		Create(ctx context.Context, result *model.LabResult) error
		ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*model.LabResult, error)
	}

	MedicalRecordRepository interface {
		Create(ctx context.Context, record *model.MedicalRecord) error
		Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error)
		Update(ctx context.Context, record *model.MedicalRecord) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, patientID *uuid.UUID) ([]*model.MedicalRecord, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}

	// ReportRepository feeds the analytics aggregator. It never mutates.
	ReportRepository interface {
		Counts(ctx context.Context) (*model.EntityCounts, error)
		CountAppointmentsBetween(ctx context.Context, from, to time.Time) (int64, error)
		CountAppointmentsByStatus(ctx context.Context, status model.AppointmentStatus) (int64, error)
		SumBills(ctx context.Context, status model.BillStatus) (decimal.Decimal, error)
		AppointmentFacts(ctx context.Context) ([]*model.AppointmentFact, error)
		BillFacts(ctx context.Context) ([]*model.BillFact, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ProcessPending locks up to limit pending events, hands each to fn,
		// and marks it processed, or records the failure and marks it FAILED once
		// maxAttempts is reached.
		ProcessPending(ctx context.Context, limit, maxAttempts int, fn func(ctx context.Context, event *model.OutboxEvent) error) (int, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Repositories bundles every store the services need, so main can swap the
// postgres and in-memory backends in one place.
type Repositories struct {
	Patients       PatientRepository
	Doctors        DoctorRepository
	Appointments   AppointmentRepository
	Bills          BillRepository
	Prescriptions  PrescriptionRepository
	LabTests       LabTestRepository
	LabOrders      LabOrderRepository
	LabResults     LabResultRepository
	MedicalRecords MedicalRecordRepository
	Users          UserRepository
	Reports        ReportRepository
	Outbox         OutboxRepository
	Health         Pinger
}
