package prescription

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
	repo        repository.PrescriptionRepository
	patients    repository.PatientRepository
	doctors     repository.DoctorRepository
	validator   validator.Validator
	defaultDays int
	now         func() time.Time
}

func NewService(repos *repository.Repositories, defaultDays int) *Service {
	if defaultDays <= 0 {
		defaultDays = 30
	}
	return &Service{
		repo:        repos.Prescriptions,
		patients:    repos.Patients,
		doctors:     repos.Doctors,
		validator:   validator.New(),
		defaultDays: defaultDays,
		now:         time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req *model.CreatePrescriptionRequest) (*model.Prescription, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.doctors.Get(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	days := s.defaultDays
	if req.ValidDays != nil {
		days = *req.ValidDays
	}
	now := s.now().UTC()
	p := &model.Prescription{
		Base:           model.NewBase(now),
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		Diagnosis:      req.Diagnosis,
		Medications:    req.Medications,
		Instructions:   req.Instructions,
		PrescribedDate: now,
		ValidUntil:     now.AddDate(0, 0, days),
		Status:         model.PrescriptionStatusActive,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = p.EffectiveStatus(s.now())
	return p, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdatePrescriptionRequest) (*model.Prescription, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Diagnosis != nil {
		p.Diagnosis = *req.Diagnosis
	}
	if req.Medications != nil {
		p.Medications = *req.Medications
	}
	if req.Instructions != nil {
		p.Instructions = *req.Instructions
	}
	if req.Status != nil {
		status, err := model.ParsePrescriptionStatus(*req.Status)
		if err != nil {
			return nil, apperrors.Validation(err.Error(), map[string]string{"status": "unknown prescription status"})
		}
		p.Status = status
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	p.Status = p.EffectiveStatus(s.now())
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, patientID, doctorID *uuid.UUID) ([]*model.Prescription, error) {
	list, err := s.repo.List(ctx, patientID, doctorID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, p := range list {
		p.Status = p.EffectiveStatus(now)
	}
	return list, nil
}
