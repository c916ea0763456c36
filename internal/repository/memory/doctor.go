package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type doctorRepository struct {
	s *Store
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.doctors[doctor.ID]; ok {
		return apperrors.Conflict("doctor conflicts with an existing record")
	}
	r.s.doctors[doctor.ID] = *doctor
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", id)
	}
	return &d, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.doctors[doctor.ID]
	if !ok {
		return apperrors.NotFound("doctor", doctor.ID)
	}
	updated := *doctor
	updated.CreatedAt = existing.CreatedAt
	r.s.doctors[doctor.ID] = updated
	return nil
}

func (r *doctorRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", id)
	}
	d.Available = available
	d.UpdatedAt = time.Now().UTC()
	r.s.doctors[id] = d
	return &d, nil
}

// Delete mirrors the RESTRICT foreign keys on the doctor's dependents.
func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.doctors[id]; !ok {
		return apperrors.NotFound("doctor", id)
	}
	referenced := false
	for _, a := range r.s.appointments {
		referenced = referenced || a.DoctorID == id
	}
	for _, p := range r.s.prescriptions {
		referenced = referenced || p.DoctorID == id
	}
	for _, o := range r.s.labOrders {
		referenced = referenced || o.DoctorID == id
	}
	for _, m := range r.s.medicalRecords {
		referenced = referenced || m.DoctorID == id
	}
	if referenced {
		return apperrors.Conflict("doctor still has appointments, prescriptions or records on file")
	}
	delete(r.s.doctors, id)
	return nil
}

func (r *doctorRepository) List(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Doctor{}
	for _, d := range r.s.doctors {
		if filters != nil {
			if strings.TrimSpace(filters.Name) != "" && !containsFold(d.Name, filters.Name) {
				continue
			}
			if strings.TrimSpace(filters.Specialization) != "" && !containsFold(d.Specialization, filters.Specialization) {
				continue
			}
			if filters.AvailableOnly && !d.Available {
				continue
			}
		}
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
