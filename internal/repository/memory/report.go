package memory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type reportRepository struct {
	s *Store
}

func (r *reportRepository) Counts(ctx context.Context) (*model.EntityCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return &model.EntityCounts{
		Patients:     int64(len(r.s.patients)),
		Doctors:      int64(len(r.s.doctors)),
		Appointments: int64(len(r.s.appointments)),
		Bills:        int64(len(r.s.bills)),
	}, nil
}

func (r *reportRepository) CountAppointmentsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, a := range r.s.appointments {
		if !a.AppointmentTime.Before(from) && a.AppointmentTime.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r *reportRepository) CountAppointmentsByStatus(ctx context.Context, status model.AppointmentStatus) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, a := range r.s.appointments {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *reportRepository) SumBills(ctx context.Context, status model.BillStatus) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sum := decimal.Zero
	for _, b := range r.s.bills {
		if b.Status == status {
			sum = sum.Add(b.Amount)
		}
	}
	return sum, nil
}

func (r *reportRepository) AppointmentFacts(ctx context.Context) ([]*model.AppointmentFact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	facts := make([]*model.AppointmentFact, 0, len(r.s.appointments))
	for _, a := range r.s.appointments {
		at := a.AppointmentTime
		status := string(a.Status)
		fact := &model.AppointmentFact{AppointmentTime: &at, Status: &status}
		if d, ok := r.s.doctors[a.DoctorID]; ok {
			name := d.Name
			fact.DoctorName = &name
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

func (r *reportRepository) BillFacts(ctx context.Context) ([]*model.BillFact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	facts := make([]*model.BillFact, 0, len(r.s.bills))
	for _, b := range r.s.bills {
		status := string(b.Status)
		facts = append(facts, &model.BillFact{
			Amount:      decimal.NewNullDecimal(b.Amount),
			Status:      &status,
			PaymentDate: b.PaymentDate,
		})
	}
	return facts, nil
}
