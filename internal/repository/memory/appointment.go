package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type appointmentRepository struct {
	s *Store
}

// slotTaken emulates the partial unique index on (doctor_id, appointment_time)
// over non-cancelled rows. Caller holds the lock.
func (s *Store) slotTaken(doctorID uuid.UUID, at time.Time, exclude uuid.UUID) bool {
	for id, a := range s.appointments {
		if id == exclude || a.DoctorID != doctorID || a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if a.AppointmentTime.Equal(at) {
			return true
		}
	}
	return false
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[appointment.PatientID]; !ok {
		return apperrors.NotFound("referenced record", appointment.PatientID)
	}
	if _, ok := r.s.doctors[appointment.DoctorID]; !ok {
		return apperrors.NotFound("referenced record", appointment.DoctorID)
	}
	if appointment.Status != model.AppointmentStatusCancelled &&
		r.s.slotTaken(appointment.DoctorID, appointment.AppointmentTime, uuid.Nil) {
		return apperrors.Conflict("doctor already has an appointment at this time")
	}
	r.s.appointments[appointment.ID] = *appointment
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", id)
	}
	return &a, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment, expected model.AppointmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.appointments[appointment.ID]
	if !ok || existing.Status != expected {
		return repository.ErrStatusMismatch
	}
	if existing.Status != model.AppointmentStatusCancelled &&
		r.s.slotTaken(existing.DoctorID, appointment.AppointmentTime, existing.ID) {
		return apperrors.Conflict("doctor already has an appointment at this time")
	}
	existing.AppointmentTime = appointment.AppointmentTime
	existing.Notes = appointment.Notes
	existing.UpdatedAt = appointment.UpdatedAt
	r.s.appointments[existing.ID] = existing
	return nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.appointments[id]
	if !ok || a.Status != from {
		return nil, repository.ErrStatusMismatch
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	r.s.appointments[id] = a
	return &a, nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.appointments[id]; !ok {
		return apperrors.NotFound("appointment", id)
	}
	for _, b := range r.s.bills {
		if b.AppointmentID != nil && *b.AppointmentID == id && b.Status == model.BillStatusPaid {
			return apperrors.Conflict("appointment has a paid bill and cannot be deleted")
		}
	}

	for bid, b := range r.s.bills {
		if b.AppointmentID != nil && *b.AppointmentID == id {
			delete(r.s.bills, bid)
		}
	}
	now := time.Now().UTC()
	for mid, m := range r.s.medicalRecords {
		if m.AppointmentID != nil && *m.AppointmentID == id {
			m.AppointmentID = nil
			m.UpdatedAt = now
			r.s.medicalRecords[mid] = m
		}
	}
	delete(r.s.appointments, id)
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if filters != nil {
			if filters.PatientID != nil && a.PatientID != *filters.PatientID {
				continue
			}
			if filters.DoctorID != nil && a.DoctorID != *filters.DoctorID {
				continue
			}
			if filters.Status != nil && a.Status != *filters.Status {
				continue
			}
			if filters.From != nil && a.AppointmentTime.Before(*filters.From) {
				continue
			}
			if filters.To != nil && !a.AppointmentTime.Before(*filters.To) {
				continue
			}
		}
		a := a
		out = append(out, &a)
	}
	sortByTime(out)
	return out, nil
}

func (r *appointmentRepository) ExistsActiveAt(ctx context.Context, doctorID uuid.UUID, at time.Time, excludeID *uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	exclude := uuid.Nil
	if excludeID != nil {
		exclude = *excludeID
	}
	return r.s.slotTaken(doctorID, at, exclude), nil
}

func (r *appointmentRepository) ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if a.DoctorID != doctorID || a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if a.AppointmentTime.Before(from) || !a.AppointmentTime.Before(to) {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sortByTime(out)
	return out, nil
}

func (r *appointmentRepository) CountOpenByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, a := range r.s.appointments {
		if a.DoctorID == doctorID && !a.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func sortByTime(list []*model.Appointment) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].AppointmentTime.Before(list[j].AppointmentTime)
	})
}
