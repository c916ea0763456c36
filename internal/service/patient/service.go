package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

type Service struct {
	repo      repository.PatientRepository
	bills     repository.BillRepository
	validator validator.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo repository.PatientRepository, bills repository.BillRepository, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		bills:     bills,
		validator: validator.New(),
		logger:    logger.With().Str("component", "patient_service").Logger(),
		now:       time.Now,
	}
}

func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	patient := &model.Patient{
		Base:           model.NewBase(s.now().UTC()),
		UserID:         req.UserID,
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		ContactNo:      req.ContactNo,
		DateOfBirth:    req.DateOfBirth,
		Gender:         strings.ToUpper(req.Gender),
		Address:        req.Address,
		MedicalHistory: req.MedicalHistory,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		patient.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		patient.Email = strings.TrimSpace(*req.Email)
	}
	if req.ContactNo != nil {
		patient.ContactNo = *req.ContactNo
	}
	if req.DateOfBirth != nil {
		patient.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != nil {
		patient.Gender = strings.ToUpper(*req.Gender)
	}
	if req.Address != nil {
		patient.Address = *req.Address
	}
	if req.MedicalHistory != nil {
		patient.MedicalHistory = *req.MedicalHistory
	}
	patient.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// DeletePatient removes the patient and everything they own. Patients with
// payment history are refused.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	paid, err := s.bills.HasPaidForPatient(ctx, id)
	if err != nil {
		return err
	}
	if paid {
		return apperrors.Conflict("patient has paid bills and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient deleted")
	return nil
}

func (s *Service) ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	return s.repo.List(ctx, filters)
}
