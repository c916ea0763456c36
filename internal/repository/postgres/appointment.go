package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const appointmentColumns = `id, patient_id, doctor_id, appointment_time, status, notes, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, appointment_time, status, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.AppointmentTime,
		appointment.Status,
		appointment.Notes,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if pqCode(err) == pqUniqueViolation {
		return apperrors.Conflict("doctor already has an appointment at this time")
	}
	return translate(err, "create appointment", "appointment", appointment.ID)
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, translate(err, "get appointment", "appointment", id)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment, expected model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET appointment_time = $1, notes = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query,
		appointment.AppointmentTime,
		appointment.Notes,
		appointment.UpdatedAt,
		appointment.ID,
		expected,
	)
	if pqCode(err) == pqUniqueViolation {
		return apperrors.Conflict("doctor already has an appointment at this time")
	}
	if err != nil {
		return translate(err, "update appointment", "appointment", appointment.ID)
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

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) (*model.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING ` + appointmentColumns

	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, to, time.Now().UTC(), id, from)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrStatusMismatch
	}
	if err != nil {
		return nil, translate(err, "update appointment status", "appointment", id)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var locked uuid.UUID
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM appointments WHERE id = $1 FOR UPDATE`, id); err != nil {
			return translate(err, "lock appointment", "appointment", id)
		}

		var statuses []model.BillStatus
		if err := tx.SelectContext(ctx, &statuses,
			`SELECT status FROM bills WHERE appointment_id = $1 FOR UPDATE`, id); err != nil {
			return fmt.Errorf("failed to lock appointment bills: %w", err)
		}
		for _, s := range statuses {
			if s == model.BillStatusPaid {
				return apperrors.Conflict("appointment has a paid bill and cannot be deleted")
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM bills WHERE appointment_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete appointment bills: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE medical_records SET appointment_id = NULL, updated_at = NOW() WHERE appointment_id = $1`, id); err != nil {
			return fmt.Errorf("failed to unlink medical records: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete appointment: %w", err)
		}
		return requireRows(result, "appointment", id)
	})
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments`

	var f filterBuilder
	if filters != nil {
		if filters.PatientID != nil {
			f.add("patient_id = $%d", *filters.PatientID)
		}
		if filters.DoctorID != nil {
			f.add("doctor_id = $%d", *filters.DoctorID)
		}
		if filters.Status != nil {
			f.add("status = $%d", *filters.Status)
		}
		if filters.From != nil {
			f.add("appointment_time >= $%d", *filters.From)
		}
		if filters.To != nil {
			f.add("appointment_time < $%d", *filters.To)
		}
	}
	query += f.where() + " ORDER BY appointment_time ASC"

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ExistsActiveAt(ctx context.Context, doctorID uuid.UUID, at time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			AND appointment_time = $2
			AND status <> 'CANCELLED'
	`
	args := []interface{}{doctorID, at}

	if excludeID != nil {
		query += " AND id <> $3"
		args = append(args, *excludeID)
	}
	query += ")"

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepository) ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		AND appointment_time >= $2
		AND appointment_time < $3
		AND status <> 'CANCELLED'
		ORDER BY appointment_time ASC
	`
	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, doctorID, from, to); err != nil {
		return nil, fmt.Errorf("failed to get doctor appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) CountOpenByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND status IN ('SCHEDULED', 'CONFIRMED')`

	var count int64
	if err := r.db.GetContext(ctx, &count, query, doctorID); err != nil {
		return 0, fmt.Errorf("failed to count doctor appointments: %w", err)
	}
	return count, nil
}
