package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const medicalRecordColumns = `id, patient_id, doctor_id, appointment_id, diagnosis, prescription,
	lab_results_url, created_at, updated_at`

func (r *medicalRecordRepository) Create(ctx context.Context, rec *model.MedicalRecord) error {
	query := `
		INSERT INTO medical_records (
			id, patient_id, doctor_id, appointment_id, diagnosis, prescription,
			lab_results_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.PatientID, rec.DoctorID, rec.AppointmentID, rec.Diagnosis, rec.Prescription,
		rec.LabResultsURL, rec.CreatedAt, rec.UpdatedAt,
	)
	return translate(err, "create medical record", "medical record", rec.ID)
}

func (r *medicalRecordRepository) Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error) {
	var rec model.MedicalRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+medicalRecordColumns+` FROM medical_records WHERE id = $1`, id)
	if err != nil {
		return nil, translate(err, "get medical record", "medical record", id)
	}
	return &rec, nil
}

func (r *medicalRecordRepository) Update(ctx context.Context, rec *model.MedicalRecord) error {
	query := `
		UPDATE medical_records
		SET diagnosis = $1, prescription = $2, lab_results_url = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := r.db.ExecContext(ctx, query,
		rec.Diagnosis, rec.Prescription, rec.LabResultsURL, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return translate(err, "update medical record", "medical record", rec.ID)
	}
	return requireRows(result, "medical record", rec.ID)
}

func (r *medicalRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM medical_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete medical record: %w", err)
	}
	return requireRows(result, "medical record", id)
}

func (r *medicalRecordRepository) List(ctx context.Context, patientID *uuid.UUID) ([]*model.MedicalRecord, error) {
	query := `SELECT ` + medicalRecordColumns + ` FROM medical_records`

	var f filterBuilder
	if patientID != nil {
		f.add("patient_id = $%d", *patientID)
	}
	query += f.where() + " ORDER BY created_at DESC"

	records := []*model.MedicalRecord{}
	if err := r.db.SelectContext(ctx, &records, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list medical records: %w", err)
	}
	return records, nil
}
