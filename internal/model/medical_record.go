package model

import (
	"github.com/google/uuid"
)

type MedicalRecord struct {
	Base
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Diagnosis     string     `db:"diagnosis" json:"diagnosis"`
	Prescription  string     `db:"prescription" json:"prescription"`
	LabResultsURL string     `db:"lab_results_url" json:"lab_results_url"`
}

type CreateMedicalRecordRequest struct {
	PatientID     uuid.UUID  `json:"patient_id" validate:"required"`
	DoctorID      uuid.UUID  `json:"doctor_id" validate:"required"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	Diagnosis     string     `json:"diagnosis" validate:"required"`
	Prescription  string     `json:"prescription"`
	LabResultsURL string     `json:"lab_results_url" validate:"omitempty,url"`
}

type UpdateMedicalRecordRequest struct {
	Diagnosis     *string `json:"diagnosis" validate:"omitempty,min=1"`
	Prescription  *string `json:"prescription"`
	LabResultsURL *string `json:"lab_results_url" validate:"omitempty,url"`
}
