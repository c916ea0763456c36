package doctor

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
	repo         repository.DoctorRepository
	appointments repository.AppointmentRepository
	validator    validator.Validator
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(repo repository.DoctorRepository, appointments repository.AppointmentRepository, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		appointments: appointments,
		validator:    validator.New(),
		logger:       logger.With().Str("component", "doctor_service").Logger(),
		now:          time.Now,
	}
}

func (s *Service) CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}
	doctor := &model.Doctor{
		Base:           model.NewBase(s.now().UTC()),
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		Phone:          req.Phone,
		Specialization: strings.TrimSpace(req.Specialization),
		Available:      available,
		AvailableTimes: req.AvailableTimes,
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, err
	}
	return doctor, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, req *model.UpdateDoctorRequest) (*model.Doctor, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		doctor.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		doctor.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		doctor.Phone = *req.Phone
	}
	if req.Specialization != nil {
		doctor.Specialization = strings.TrimSpace(*req.Specialization)
	}
	if req.Available != nil {
		doctor.Available = *req.Available
	}
	if req.AvailableTimes != nil {
		doctor.AvailableTimes = *req.AvailableTimes
	}
	doctor.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, err
	}
	return doctor, nil
}

// SetAvailability toggles whether the doctor accepts new bookings. Existing
// appointments are kept.
func (s *Service) SetAvailability(ctx context.Context, id uuid.UUID, req *model.SetAvailabilityRequest) (*model.Doctor, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	doctor, err := s.repo.SetAvailability(ctx, id, *req.Available)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("doctor_id", id.String()).
		Bool("available", doctor.Available).
		Msg("doctor availability changed")
	return doctor, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	open, err := s.appointments.CountOpenByDoctor(ctx, id)
	if err != nil {
		return err
	}
	if open > 0 {
		return apperrors.Conflict("doctor has open appointments")
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) ListAvailable(ctx context.Context) ([]*model.Doctor, error) {
	return s.repo.List(ctx, &model.DoctorFilters{AvailableOnly: true})
}

func (s *Service) ListBySpecialization(ctx context.Context, specialization string) ([]*model.Doctor, error) {
	if strings.TrimSpace(specialization) == "" {
		return []*model.Doctor{}, nil
	}
	return s.repo.List(ctx, &model.DoctorFilters{Specialization: specialization})
}
