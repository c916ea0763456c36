package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const billColumns = `id, patient_id, appointment_id, amount, status, issue_date,
	payment_date, payment_method, description, created_at, updated_at`

func (r *billRepository) Create(ctx context.Context, bill *model.Bill) error {
	query := `
		INSERT INTO bills (
			id, patient_id, appointment_id, amount, status, issue_date,
			payment_date, payment_method, description, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		bill.ID,
		bill.PatientID,
		bill.AppointmentID,
		bill.Amount,
		bill.Status,
		bill.IssueDate,
		bill.PaymentDate,
		bill.PaymentMethod,
		bill.Description,
		bill.CreatedAt,
		bill.UpdatedAt,
	)
	if pqCode(err) == pqUniqueViolation {
		return apperrors.Conflict("appointment is already billed")
	}
	return translate(err, "create bill", "bill", bill.ID)
}

func (r *billRepository) Get(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`

	var bill model.Bill
	if err := r.db.GetContext(ctx, &bill, query, id); err != nil {
		return nil, translate(err, "get bill", "bill", id)
	}
	return &bill, nil
}

func (r *billRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE appointment_id = $1`

	var bill model.Bill
	if err := r.db.GetContext(ctx, &bill, query, appointmentID); err != nil {
		return nil, translate(err, "get bill by appointment", "bill", appointmentID)
	}
	return &bill, nil
}

func (r *billRepository) Update(ctx context.Context, bill *model.Bill, expected model.BillStatus) error {
	query := `
		UPDATE bills
		SET amount = $1, description = $2, status = $3,
			payment_date = $4, payment_method = $5, updated_at = $6
		WHERE id = $7 AND status = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		bill.Amount,
		bill.Description,
		bill.Status,
		bill.PaymentDate,
		bill.PaymentMethod,
		bill.UpdatedAt,
		bill.ID,
		expected,
	)
	if err != nil {
		return translate(err, "update bill", "bill", bill.ID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrStatusMismatch
	}
	return nil
}

func (r *billRepository) MarkPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) (*model.Bill, error) {
	// GREATEST keeps payment_date >= issue_date even with clock skew between hosts.
	query := `
		UPDATE bills
		SET status = 'PAID',
			payment_date = GREATEST($1::timestamptz, issue_date),
			payment_method = $2,
			updated_at = $1
		WHERE id = $3 AND status = 'PENDING'
		RETURNING ` + billColumns

	var bill model.Bill
	err := r.db.GetContext(ctx, &bill, query, paidAt, method, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrStatusMismatch
	}
	if err != nil {
		return nil, translate(err, "mark bill paid", "bill", id)
	}
	return &bill, nil
}

func (r *billRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bills WHERE id = $1 AND status <> 'PAID'`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Either missing or paid; tell the two apart.
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return apperrors.InvalidState("paid bills cannot be deleted")
	}
	return nil
}

func (r *billRepository) List(ctx context.Context, filters *model.BillFilters) ([]*model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills`

	var f filterBuilder
	if filters != nil {
		if filters.PatientID != nil {
			f.add("patient_id = $%d", *filters.PatientID)
		}
		if filters.Status != nil {
			f.add("status = $%d", *filters.Status)
		}
	}
	query += f.where() + " ORDER BY issue_date DESC"

	bills := []*model.Bill{}
	if err := r.db.SelectContext(ctx, &bills, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	return bills, nil
}

func (r *billRepository) HasPaidForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM bills WHERE appointment_id = $1 AND status = 'PAID')`, appointmentID)
	if err != nil {
		return false, fmt.Errorf("failed to check paid bills: %w", err)
	}
	return exists, nil
}

func (r *billRepository) HasPaidForPatient(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM bills WHERE patient_id = $1 AND status = 'PAID')`, patientID)
	if err != nil {
		return false, fmt.Errorf("failed to check paid bills: %w", err)
	}
	return exists, nil
}
