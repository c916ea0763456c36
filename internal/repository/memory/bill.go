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

type billRepository struct {
	s *Store
}

func (r *billRepository) Create(ctx context.Context, bill *model.Bill) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[bill.PatientID]; !ok {
		return apperrors.NotFound("referenced record", bill.PatientID)
	}
	if bill.AppointmentID != nil {
		if _, ok := r.s.appointments[*bill.AppointmentID]; !ok {
			return apperrors.NotFound("referenced record", *bill.AppointmentID)
		}
		for _, b := range r.s.bills {
			if b.AppointmentID != nil && *b.AppointmentID == *bill.AppointmentID {
				return apperrors.Conflict("appointment is already billed")
			}
		}
	}
	if err := bill.CheckPaymentInvariant(); err != nil {
		return apperrors.Internal(err)
	}
	r.s.bills[bill.ID] = *bill
	return nil
}

func (r *billRepository) Get(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bills[id]
	if !ok {
		return nil, apperrors.NotFound("bill", id)
	}
	return &b, nil
}

func (r *billRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Bill, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.s.bills {
		if b.AppointmentID != nil && *b.AppointmentID == appointmentID {
			return &b, nil
		}
	}
	return nil, apperrors.NotFound("bill", appointmentID)
}

func (r *billRepository) Update(ctx context.Context, bill *model.Bill, expected model.BillStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.bills[bill.ID]
	if !ok || existing.Status != expected {
		return repository.ErrStatusMismatch
	}
	existing.Amount = bill.Amount
	existing.Description = bill.Description
	existing.Status = bill.Status
	existing.PaymentDate = bill.PaymentDate
	existing.PaymentMethod = bill.PaymentMethod
	existing.UpdatedAt = bill.UpdatedAt
	if err := existing.CheckPaymentInvariant(); err != nil {
		return apperrors.Internal(err)
	}
	r.s.bills[bill.ID] = existing
	return nil
}

func (r *billRepository) MarkPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) (*model.Bill, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bills[id]
	if !ok || b.Status != model.BillStatusPending {
		return nil, repository.ErrStatusMismatch
	}
	if paidAt.Before(b.IssueDate) {
		paidAt = b.IssueDate
	}
	b.Status = model.BillStatusPaid
	b.PaymentDate = &paidAt
	b.PaymentMethod = &method
	b.UpdatedAt = paidAt
	r.s.bills[id] = b
	return &b, nil
}

func (r *billRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bills[id]
	if !ok {
		return apperrors.NotFound("bill", id)
	}
	if b.Status == model.BillStatusPaid {
		return apperrors.InvalidState("paid bills cannot be deleted")
	}
	delete(r.s.bills, id)
	return nil
}

func (r *billRepository) List(ctx context.Context, filters *model.BillFilters) ([]*model.Bill, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*model.Bill{}
	for _, b := range r.s.bills {
		if filters != nil {
			if filters.PatientID != nil && b.PatientID != *filters.PatientID {
				continue
			}
			if filters.Status != nil && b.Status != *filters.Status {
				continue
			}
		}
		b := b
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueDate.After(out[j].IssueDate) })
	return out, nil
}

func (r *billRepository) HasPaidForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.s.bills {
		if b.AppointmentID != nil && *b.AppointmentID == appointmentID && b.Status == model.BillStatusPaid {
			return true, nil
		}
	}
	return false, nil
}

func (r *billRepository) HasPaidForPatient(ctx context.Context, patientID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.s.bills {
		if b.PatientID == patientID && b.Status == model.BillStatusPaid {
			return true, nil
		}
	}
	return false, nil
}
