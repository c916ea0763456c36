package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/model"
)

func (r *reportRepository) Counts(ctx context.Context) (*model.EntityCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM patients)     AS patients,
			(SELECT COUNT(*) FROM doctors)      AS doctors,
			(SELECT COUNT(*) FROM appointments) AS appointments,
			(SELECT COUNT(*) FROM bills)        AS bills
	`
	var counts model.EntityCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	return &counts, nil
}

func (r *reportRepository) CountAppointmentsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM appointments WHERE appointment_time >= $1 AND appointment_time < $2`, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

func (r *reportRepository) CountAppointmentsByStatus(ctx context.Context, status model.AppointmentStatus) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM appointments WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("failed to count appointments by status: %w", err)
	}
	return count, nil
}

func (r *reportRepository) SumBills(ctx context.Context, status model.BillStatus) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := r.db.GetContext(ctx, &sum, `SELECT COALESCE(SUM(amount), 0) FROM bills WHERE status = $1`, status); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum bills: %w", err)
	}
	return sum, nil
}

func (r *reportRepository) AppointmentFacts(ctx context.Context) ([]*model.AppointmentFact, error) {
	query := `
		SELECT a.appointment_time, a.status, d.name AS doctor_name
		FROM appointments a
		LEFT JOIN doctors d ON d.id = a.doctor_id
	`
	facts := []*model.AppointmentFact{}
	if err := r.db.SelectContext(ctx, &facts, query); err != nil {
		return nil, fmt.Errorf("failed to load appointment facts: %w", err)
	}
	return facts, nil
}

func (r *reportRepository) BillFacts(ctx context.Context) ([]*model.BillFact, error) {
	facts := []*model.BillFact{}
	if err := r.db.SelectContext(ctx, &facts, `SELECT amount, status, payment_date FROM bills`); err != nil {
		return nil, fmt.Errorf("failed to load bill facts: %w", err)
	}
	return facts, nil
}
