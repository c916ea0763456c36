package model

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	Base
	UserID         *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	Name           string     `db:"name" json:"name"`
	Email          string     `db:"email" json:"email"`
	ContactNo      string     `db:"contact_no" json:"contact_no"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender         string     `db:"gender" json:"gender"`
	Address        string     `db:"address" json:"address"`
	MedicalHistory string     `db:"medical_history" json:"medical_history"`
}

type CreatePatientRequest struct {
	UserID         *uuid.UUID `json:"user_id"`
	Name           string     `json:"name" validate:"required,max=200"`
	Email          string     `json:"email" validate:"omitempty,email"`
	ContactNo      string     `json:"contact_no" validate:"max=30"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Gender         string     `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER male female other"`
	Address        string     `json:"address" validate:"max=500"`
	MedicalHistory string     `json:"medical_history"`
}

type UpdatePatientRequest struct {
	Name           *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Email          *string    `json:"email" validate:"omitempty,email"`
	ContactNo      *string    `json:"contact_no" validate:"omitempty,max=30"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Gender         *string    `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER male female other"`
	Address        *string    `json:"address" validate:"omitempty,max=500"`
	MedicalHistory *string    `json:"medical_history"`
}

type PatientFilters struct {
	Name string `form:"name"`
}
