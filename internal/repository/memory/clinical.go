package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type prescriptionRepository struct {
	s *Store
}

type labTestRepository struct {
	s *Store
}

type labOrderRepository struct {
	s *Store
}

type labResultRepository struct {
	s *Store
}

type medicalRecordRepository struct {
	s *Store
}

// requireParties checks the patient and doctor foreign keys. Caller holds the lock.
func (s *Store) requireParties(patientID, doctorID uuid.UUID) error {
	if _, ok := s.patients[patientID]; !ok {
		return apperrors.NotFound("referenced record", patientID)
	}
	if _, ok := s.doctors[doctorID]; !ok {
		return apperrors.NotFound("referenced record", doctorID)
	}
	return nil
}

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.requireParties(p.PatientID, p.DoctorID); err != nil {
		return err
	}
	r.s.prescriptions[p.ID] = *p
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.prescriptions[id]
	if !ok {
		return nil, apperrors.NotFound("prescription", id)
	}
	return &p, nil
}

func (r *prescriptionRepository) Update(ctx context.Context, p *model.Prescription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.prescriptions[p.ID]
	if !ok {
		return apperrors.NotFound("prescription", p.ID)
	}
	existing.Diagnosis = p.Diagnosis
	existing.Medications = p.Medications
	existing.Instructions = p.Instructions
	existing.Status = p.Status
	existing.UpdatedAt = p.UpdatedAt
	r.s.prescriptions[p.ID] = existing
	return nil
}

func (r *prescriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.prescriptions[id]; !ok {
		return apperrors.NotFound("prescription", id)
	}
	delete(r.s.prescriptions, id)
	return nil
}

func (r *prescriptionRepository) List(ctx context.Context, patientID, doctorID *uuid.UUID) ([]*model.Prescription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Prescription{}
	for _, p := range r.s.prescriptions {
		if patientID != nil && p.PatientID != *patientID {
			continue
		}
		if doctorID != nil && p.DoctorID != *doctorID {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrescribedDate.After(out[j].PrescribedDate) })
	return out, nil
}

func (r *labTestRepository) Create(ctx context.Context, t *model.LabTest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.labTests {
		if existing.Code == t.Code {
			return apperrors.Conflict(fmt.Sprintf("lab test code %q already exists", t.Code))
		}
	}
	r.s.labTests[t.ID] = *t
	return nil
}

func (r *labTestRepository) List(ctx context.Context) ([]*model.LabTest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.LabTest{}
	for _, t := range r.s.labTests {
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *labOrderRepository) Create(ctx context.Context, o *model.LabOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.requireParties(o.PatientID, o.DoctorID); err != nil {
		return err
	}
	r.s.labOrders[o.ID] = *o
	return nil
}

func (r *labOrderRepository) Get(ctx context.Context, id uuid.UUID) (*model.LabOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.labOrders[id]
	if !ok {
		return nil, apperrors.NotFound("lab order", id)
	}
	return &o, nil
}

func (r *labOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.LabOrderStatus) (*model.LabOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.labOrders[id]
	if !ok || o.Status != from {
		return nil, repository.ErrStatusMismatch
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	r.s.labOrders[id] = o
	return &o, nil
}

func (r *labOrderRepository) List(ctx context.Context, filters *model.LabOrderFilters) ([]*model.LabOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.LabOrder{}
	for _, o := range r.s.labOrders {
		if filters != nil {
			if filters.PatientID != nil && o.PatientID != *filters.PatientID {
				continue
			}
			if filters.Status != nil && o.Status != *filters.Status {
				continue
			}
		}
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderDate.After(out[j].OrderDate) })
	return out, nil
}

func (r *labResultRepository) Create(ctx context.Context, res *model.LabResult) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.labOrders[res.LabOrderID]; !ok {
		return apperrors.NotFound("referenced record", res.LabOrderID)
	}
	r.s.labResults[res.ID] = *res
	return nil
}

func (r *labResultRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*model.LabResult, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.LabResult{}
	for _, res := range r.s.labResults {
		if res.LabOrderID == orderID {
			res := res
			out = append(out, &res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *medicalRecordRepository) Create(ctx context.Context, rec *model.MedicalRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.requireParties(rec.PatientID, rec.DoctorID); err != nil {
		return err
	}
	if rec.AppointmentID != nil {
		if _, ok := r.s.appointments[*rec.AppointmentID]; !ok {
			return apperrors.NotFound("referenced record", *rec.AppointmentID)
		}
	}
	r.s.medicalRecords[rec.ID] = *rec
	return nil
}

func (r *medicalRecordRepository) Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.medicalRecords[id]
	if !ok {
		return nil, apperrors.NotFound("medical record", id)
	}
	return &rec, nil
}

func (r *medicalRecordRepository) Update(ctx context.Context, rec *model.MedicalRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.medicalRecords[rec.ID]
	if !ok {
		return apperrors.NotFound("medical record", rec.ID)
	}
	existing.Diagnosis = rec.Diagnosis
	existing.Prescription = rec.Prescription
	existing.LabResultsURL = rec.LabResultsURL
	existing.UpdatedAt = rec.UpdatedAt
	r.s.medicalRecords[rec.ID] = existing
	return nil
}

func (r *medicalRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.medicalRecords[id]; !ok {
		return apperrors.NotFound("medical record", id)
	}
	delete(r.s.medicalRecords, id)
	return nil
}

func (r *medicalRecordRepository) List(ctx context.Context, patientID *uuid.UUID) ([]*model.MedicalRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.MedicalRecord{}
	for _, rec := range r.s.medicalRecords {
		if patientID != nil && rec.PatientID != *patientID {
			continue
		}
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
