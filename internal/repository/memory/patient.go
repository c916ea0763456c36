package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type patientRepository struct {
	s *Store
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[patient.ID]; ok {
		return apperrors.Conflict("patient conflicts with an existing record")
	}
	r.s.patients[patient.ID] = *patient
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	if !ok {
		return nil, apperrors.NotFound("patient", id)
	}
	return &p, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.patients[patient.ID]
	if !ok {
		return apperrors.NotFound("patient", patient.ID)
	}
	updated := *patient
	updated.CreatedAt = existing.CreatedAt
	updated.UserID = existing.UserID
	r.s.patients[patient.ID] = updated
	return nil
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[id]; !ok {
		return apperrors.NotFound("patient", id)
	}
	for _, b := range r.s.bills {
		if b.PatientID == id && b.Status == model.BillStatusPaid {
			return apperrors.Conflict("patient has paid bills and cannot be deleted")
		}
	}

	for bid, b := range r.s.bills {
		if b.PatientID == id {
			delete(r.s.bills, bid)
		}
	}
	for pid, p := range r.s.prescriptions {
		if p.PatientID == id {
			delete(r.s.prescriptions, pid)
		}
	}
	for oid, o := range r.s.labOrders {
		if o.PatientID != id {
			continue
		}
		for rid, res := range r.s.labResults {
			if res.LabOrderID == oid {
				delete(r.s.labResults, rid)
			}
		}
		delete(r.s.labOrders, oid)
	}
	for mid, m := range r.s.medicalRecords {
		if m.PatientID == id {
			delete(r.s.medicalRecords, mid)
		}
	}
	for aid, a := range r.s.appointments {
		if a.PatientID == id {
			delete(r.s.appointments, aid)
		}
	}
	delete(r.s.patients, id)
	return nil
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Patient{}
	for _, p := range r.s.patients {
		if filters != nil && strings.TrimSpace(filters.Name) != "" && !containsFold(p.Name, filters.Name) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
