package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const doctorColumns = `id, name, email, phone, specialization, available, available_times, created_at, updated_at`

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			id, name, email, phone, specialization, available, available_times, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		doctor.ID,
		doctor.Name,
		doctor.Email,
		doctor.Phone,
		doctor.Specialization,
		doctor.Available,
		doctor.AvailableTimes,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	)
	return translate(err, "create doctor", "doctor", doctor.ID)
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`

	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		return nil, translate(err, "get doctor", "doctor", id)
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	query := `
		UPDATE doctors
		SET name = $1, email = $2, phone = $3, specialization = $4,
			available = $5, available_times = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		doctor.Name,
		doctor.Email,
		doctor.Phone,
		doctor.Specialization,
		doctor.Available,
		doctor.AvailableTimes,
		doctor.UpdatedAt,
		doctor.ID,
	)
	if err != nil {
		return translate(err, "update doctor", "doctor", doctor.ID)
	}
	return requireRows(result, "doctor", doctor.ID)
}

func (r *doctorRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*model.Doctor, error) {
	query := `
		UPDATE doctors SET available = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + doctorColumns

	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, available, time.Now().UTC(), id); err != nil {
		return nil, translate(err, "set doctor availability", "doctor", id)
	}
	return &doctor, nil
}

func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if pqCode(err) == pqForeignKeyViolation {
		return apperrors.Conflict("doctor still has appointments, prescriptions or records on file")
	}
	if err != nil {
		return fmt.Errorf("failed to delete doctor: %w", err)
	}
	return requireRows(result, "doctor", id)
}

func (r *doctorRepository) List(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors`

	var f filterBuilder
	if filters != nil {
		if name := strings.TrimSpace(filters.Name); name != "" {
			f.add("name ILIKE $%d", "%"+escapeLike(name)+"%")
		}
		if spec := strings.TrimSpace(filters.Specialization); spec != "" {
			f.add("specialization ILIKE $%d", "%"+escapeLike(spec)+"%")
		}
		if filters.AvailableOnly {
			f.add("available = $%d", true)
		}
	}
	query += f.where() + " ORDER BY name ASC"

	doctors := []*model.Doctor{}
	if err := r.db.SelectContext(ctx, &doctors, query, f.args...); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}
