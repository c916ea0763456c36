// Package memory is a process-local backend with the same constraint
// behaviour as the postgres schema. It backs database.driver=memory and the
// service tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Store holds every collection behind one lock, so multi-collection writes
// such as cascading deletes are atomic.
type Store struct {
	mu sync.RWMutex

	patients       map[uuid.UUID]model.Patient
	doctors        map[uuid.UUID]model.Doctor
	appointments   map[uuid.UUID]model.Appointment
	bills          map[uuid.UUID]model.Bill
	prescriptions  map[uuid.UUID]model.Prescription
	labTests       map[uuid.UUID]model.LabTest
	labOrders      map[uuid.UUID]model.LabOrder
	labResults     map[uuid.UUID]model.LabResult
	medicalRecords map[uuid.UUID]model.MedicalRecord
	users          map[uuid.UUID]model.User
	outbox         []*model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		patients:       make(map[uuid.UUID]model.Patient),
		doctors:        make(map[uuid.UUID]model.Doctor),
		appointments:   make(map[uuid.UUID]model.Appointment),
		bills:          make(map[uuid.UUID]model.Bill),
		prescriptions:  make(map[uuid.UUID]model.Prescription),
		labTests:       make(map[uuid.UUID]model.LabTest),
		labOrders:      make(map[uuid.UUID]model.LabOrder),
		labResults:     make(map[uuid.UUID]model.LabResult),
		medicalRecords: make(map[uuid.UUID]model.MedicalRecord),
		users:          make(map[uuid.UUID]model.User),
	}
}

// NewRepositories wires every store view onto a fresh Store.
func NewRepositories() *repository.Repositories {
	return NewStore().Repositories()
}

func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Patients:       &patientRepository{s},
		Doctors:        &doctorRepository{s},
		Appointments:   &appointmentRepository{s},
		Bills:          &billRepository{s},
		Prescriptions:  &prescriptionRepository{s},
		LabTests:       &labTestRepository{s},
		LabOrders:      &labOrderRepository{s},
		LabResults:     &labResultRepository{s},
		MedicalRecords: &medicalRecordRepository{s},
		Users:          &userRepository{s},
		Reports:        &reportRepository{s},
		Outbox:         &outboxRepository{s},
		Health:         s,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}
