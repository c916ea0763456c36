package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const prescriptionColumns = `id, patient_id, doctor_id, diagnosis, medications, instructions,
	prescribed_date, valid_until, status, created_at, updated_at`

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (
			id, patient_id, doctor_id, diagnosis, medications, instructions,
			prescribed_date, valid_until, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.PatientID, p.DoctorID, p.Diagnosis, p.Medications, p.Instructions,
		p.PrescribedDate, p.ValidUntil, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	return translate(err, "create prescription", "prescription", p.ID)
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	var p model.Prescription
	err := r.db.GetContext(ctx, &p, `SELECT `+prescriptionColumns+` FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return nil, translate(err, "get prescription", "prescription", id)
	}
	return &p, nil
}

func (r *prescriptionRepository) Update(ctx context.Context, p *model.Prescription) error {
	query := `
		UPDATE prescriptions
		SET diagnosis = $1, medications = $2, instructions = $3, status = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		p.Diagnosis, p.Medications, p.Instructions, p.Status, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return translate(err, "update prescription", "prescription", p.ID)
	}
	return requireRows(result, "prescription", p.ID)
}

func (r *prescriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete prescription: %w", err)
	}
	return requireRows(result, "prescription", id)
}

func (r *prescriptionRepository) List(ctx context.Context, patientID, doctorID *uuid.UUID) ([]*model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions`

	var f filterBuilder
	if patientID != nil {
		f.add("patient_id = $%d", *patientID)
	}
	if doctorID != nil {
		f.add("doctor_id = $%d", *doctorID)
	}
	query += f.where() + " ORDER BY prescribed_date DESC"

	prescriptions := []*model.Prescription{}
	if err := r.db.SelectContext(ctx, &prescriptions, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}
