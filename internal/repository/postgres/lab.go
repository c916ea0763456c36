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

const (
	labTestColumns   = `id, code, name, description, normal_range, units, price, created_at, updated_at`
	labOrderColumns  = `id, patient_id, doctor_id, order_date, status, notes, created_at, updated_at`
	labResultColumns = `id, lab_order_id, test_name, result_value, unit, reference_range,
	is_abnormal, remarks, created_at, updated_at`
)

func (r *labTestRepository) Create(ctx context.Context, t *model.LabTest) error {
	query := `
		INSERT INTO lab_tests (id, code, name, description, normal_range, units, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Code, t.Name, t.Description, t.NormalRange, t.Units, t.Price, t.CreatedAt, t.UpdatedAt,
	)
	if pqCode(err) == pqUniqueViolation {
		return apperrors.Conflict(fmt.Sprintf("lab test code %q already exists", t.Code))
	}
	return translate(err, "create lab test", "lab test", t.ID)
}

func (r *labTestRepository) List(ctx context.Context) ([]*model.LabTest, error) {
	tests := []*model.LabTest{}
	if err := r.db.SelectContext(ctx, &tests, `SELECT `+labTestColumns+` FROM lab_tests ORDER BY code`); err != nil {
		return nil, fmt.Errorf("failed to list lab tests: %w", err)
	}
	return tests, nil
}

func (r *labOrderRepository) Create(ctx context.Context, o *model.LabOrder) error {
	query := `
		INSERT INTO lab_orders (id, patient_id, doctor_id, order_date, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.PatientID, o.DoctorID, o.OrderDate, o.Status, o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	return translate(err, "create lab order", "lab order", o.ID)
}

func (r *labOrderRepository) Get(ctx context.Context, id uuid.UUID) (*model.LabOrder, error) {
	var o model.LabOrder
	if err := r.db.GetContext(ctx, &o, `SELECT `+labOrderColumns+` FROM lab_orders WHERE id = $1`, id); err != nil {
		return nil, translate(err, "get lab order", "lab order", id)
	}
	return &o, nil
}

func (r *labOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.LabOrderStatus) (*model.LabOrder, error) {
	query := `
		UPDATE lab_orders SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING ` + labOrderColumns

	var o model.LabOrder
	err := r.db.GetContext(ctx, &o, query, to, time.Now().UTC(), id, from)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrStatusMismatch
	}
	if err != nil {
		return nil, translate(err, "update lab order status", "lab order", id)
	}
	return &o, nil
}

func (r *labOrderRepository) List(ctx context.Context, filters *model.LabOrderFilters) ([]*model.LabOrder, error) {
	query := `SELECT ` + labOrderColumns + ` FROM lab_orders`

	var f filterBuilder
	if filters != nil {
		if filters.PatientID != nil {
			f.add("patient_id = $%d", *filters.PatientID)
		}
		if filters.Status != nil {
			f.add("status = $%d", *filters.Status)
		}
	}
	query += f.where() + " ORDER BY order_date DESC"

	orders := []*model.LabOrder{}
	if err := r.db.SelectContext(ctx, &orders, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list lab orders: %w", err)
	}
	return orders, nil
}

func (r *labResultRepository) Create(ctx context.Context, res *model.LabResult) error {
	query := `
		INSERT INTO lab_results (
			id, lab_order_id, test_name, result_value, unit, reference_range,
			is_abnormal, remarks, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		res.ID, res.LabOrderID, res.TestName, res.ResultValue, res.Unit, res.ReferenceRange,
		res.IsAbnormal, res.Remarks, res.CreatedAt, res.UpdatedAt,
	)
	return translate(err, "create lab result", "lab result", res.ID)
}

func (r *labResultRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*model.LabResult, error) {
	results := []*model.LabResult{}
	query := `SELECT ` + labResultColumns + ` FROM lab_results WHERE lab_order_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &results, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to list lab results: %w", err)
	}
	return results, nil
}
