package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const patientColumns = `id, user_id, name, email, contact_no, date_of_birth, gender,
	address, medical_history, created_at, updated_at`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, user_id, name, email, contact_no, date_of_birth, gender,
			address, medical_history, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.UserID,
		patient.Name,
		patient.Email,
		patient.ContactNo,
		patient.DateOfBirth,
		patient.Gender,
		patient.Address,
		patient.MedicalHistory,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	return translate(err, "create patient", "patient", patient.ID)
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, translate(err, "get patient", "patient", id)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET name = $1, email = $2, contact_no = $3, date_of_birth = $4, gender = $5,
			address = $6, medical_history = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := r.db.ExecContext(ctx, query,
		patient.Name,
		patient.Email,
		patient.ContactNo,
		patient.DateOfBirth,
		patient.Gender,
		patient.Address,
		patient.MedicalHistory,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return translate(err, "update patient", "patient", patient.ID)
	}
	return requireRows(result, "patient", patient.ID)
}

// Delete walks the dependents explicitly, children first.
func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var locked uuid.UUID
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM patients WHERE id = $1 FOR UPDATE`, id); err != nil {
			return translate(err, "lock patient", "patient", id)
		}

		var paid bool
		if err := tx.GetContext(ctx, &paid,
			`SELECT EXISTS (SELECT 1 FROM bills WHERE patient_id = $1 AND status = 'PAID')`, id); err != nil {
			return fmt.Errorf("failed to check paid bills: %w", err)
		}
		if paid {
			return apperrors.Conflict("patient has paid bills and cannot be deleted")
		}

		steps := []struct {
			what  string
			query string
		}{
			{"bills", `DELETE FROM bills WHERE patient_id = $1`},
			{"prescriptions", `DELETE FROM prescriptions WHERE patient_id = $1`},
			{"lab results", `DELETE FROM lab_results WHERE lab_order_id IN (SELECT id FROM lab_orders WHERE patient_id = $1)`},
			{"lab orders", `DELETE FROM lab_orders WHERE patient_id = $1`},
			{"medical records", `DELETE FROM medical_records WHERE patient_id = $1`},
			{"appointments", `DELETE FROM appointments WHERE patient_id = $1`},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
				return fmt.Errorf("failed to delete patient %s: %w", step.what, err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete patient: %w", err)
		}
		return requireRows(result, "patient", id)
	})
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients`

	var f filterBuilder
	if filters != nil && strings.TrimSpace(filters.Name) != "" {
		f.add("name ILIKE $%d", "%"+escapeLike(strings.TrimSpace(filters.Name))+"%")
	}
	query += f.where() + " ORDER BY name ASC"

	patients := []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
