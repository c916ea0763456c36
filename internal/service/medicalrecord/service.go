package medicalrecord

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

type Service struct {
	repo         repository.MedicalRecordRepository
	patients     repository.PatientRepository
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	validator    validator.Validator
	now          func() time.Time
}

func NewService(repos *repository.Repositories) *Service {
	return &Service{
		repo:         repos.MedicalRecords,
		patients:     repos.Patients,
		doctors:      repos.Doctors,
		appointments: repos.Appointments,
		validator:    validator.New(),
		now:          time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req *model.CreateMedicalRecordRequest) (*model.MedicalRecord, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.doctors.Get(ctx, req.DoctorID); err != nil {
		return nil, err
	}
	if req.AppointmentID != nil {
		apt, err := s.appointments.Get(ctx, *req.AppointmentID)
		if err != nil {
			return nil, err
		}
		if apt.PatientID != req.PatientID {
			return nil, apperrors.Validation("appointment belongs to a different patient",
				map[string]string{"appointment_id": "must belong to the same patient"})
		}
	}

	rec := &model.MedicalRecord{
		Base:          model.NewBase(s.now().UTC()),
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		AppointmentID: req.AppointmentID,
		Diagnosis:     req.Diagnosis,
		Prescription:  req.Prescription,
		LabResultsURL: req.LabResultsURL,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateMedicalRecordRequest) (*model.MedicalRecord, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Diagnosis != nil {
		rec.Diagnosis = *req.Diagnosis
	}
	if req.Prescription != nil {
		rec.Prescription = *req.Prescription
	}
	if req.LabResultsURL != nil {
		rec.LabResultsURL = *req.LabResultsURL
	}
	rec.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, patientID *uuid.UUID) ([]*model.MedicalRecord, error) {
	return s.repo.List(ctx, patientID)
}
