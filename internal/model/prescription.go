package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PrescriptionStatus string

const (
	PrescriptionStatusActive    PrescriptionStatus = "ACTIVE"
	PrescriptionStatusExpired   PrescriptionStatus = "EXPIRED"
	PrescriptionStatusCompleted PrescriptionStatus = "COMPLETED"
)

func ParsePrescriptionStatus(s string) (PrescriptionStatus, error) {
	status := PrescriptionStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case PrescriptionStatusActive, PrescriptionStatusExpired, PrescriptionStatusCompleted:
		return status, nil
	}
	return "", fmt.Errorf("unknown prescription status %q", s)
}

type Prescription struct {
	Base
	PatientID      uuid.UUID          `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID          `db:"doctor_id" json:"doctor_id"`
	Diagnosis      string             `db:"diagnosis" json:"diagnosis"`
	Medications    string             `db:"medications" json:"medications"`
	Instructions   string             `db:"instructions" json:"instructions"`
	PrescribedDate time.Time          `db:"prescribed_date" json:"prescribed_date"`
	ValidUntil     time.Time          `db:"valid_until" json:"valid_until"`
	Status         PrescriptionStatus `db:"status" json:"status"`
}

// EffectiveStatus reports ACTIVE prescriptions past their validity as EXPIRED.
func (p *Prescription) EffectiveStatus(now time.Time) PrescriptionStatus {
	if p.Status == PrescriptionStatusActive && now.After(p.ValidUntil) {
		return PrescriptionStatusExpired
	}
	return p.Status
}

type CreatePrescriptionRequest struct {
	PatientID    uuid.UUID `json:"patient_id" validate:"required"`
	DoctorID     uuid.UUID `json:"doctor_id" validate:"required"`
	Diagnosis    string    `json:"diagnosis" validate:"max=1000"`
	Medications  string    `json:"medications" validate:"required"`
	Instructions string    `json:"instructions"`
	ValidDays    *int      `json:"valid_days" validate:"omitempty,min=1,max=365"`
}

type UpdatePrescriptionRequest struct {
	Diagnosis    *string `json:"diagnosis" validate:"omitempty,max=1000"`
	Medications  *string `json:"medications" validate:"omitempty,min=1"`
	Instructions *string `json:"instructions"`
	Status       *string `json:"status"`
}
