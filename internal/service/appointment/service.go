package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/lock"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

// maxTransitionAttempts bounds re-reads when a conditional status write loses
// a race.
const maxTransitionAttempts = 3

type Config struct {
	AllowPastBookings bool
	Location          *time.Location
}

type Service struct {
	repo      repository.AppointmentRepository
	patients  repository.PatientRepository
	doctors   repository.DoctorRepository
	bills     repository.BillRepository
	locker    lock.Locker
	events    event.Recorder
	validator validator.Validator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	cfg       Config
	now       func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	repos *repository.Repositories,
	locker lock.Locker,
	events event.Recorder,
	m *metrics.Metrics,
	logger zerolog.Logger,
	cfg Config,
	opts ...Option,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Service{
		repo:      repos.Appointments,
		patients:  repos.Patients,
		doctors:   repos.Doctors,
		bills:     repos.Bills,
		locker:    locker,
		events:    events,
		validator: validator.New(),
		metrics:   m,
		logger:    logger.With().Str("component", "appointment_service").Logger(),
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func bookingKey(doctorID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("booking:%s:%d", doctorID, at.Unix())
}

// normalize drops sub-second precision so equality checks agree with what the
// store round-trips.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func (s *Service) checkNotPast(at time.Time) error {
	if s.cfg.AllowPastBookings || !at.Before(s.now()) {
		return nil
	}
	return apperrors.Validation("appointment time must not be in the past",
		map[string]string{"appointment_time": "must not be in the past"})
}

// Book creates a SCHEDULED appointment. The doctor/time pair is locked across
// the conflict check and the insert.
func (s *Service) Book(ctx context.Context, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	at := normalize(req.AppointmentTime)
	if err := s.checkNotPast(at); err != nil {
		return nil, err
	}

	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}
	doctor, err := s.doctors.Get(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Available {
		return nil, apperrors.InvalidState("doctor is not accepting bookings")
	}

	now := s.now().UTC()
	apt := &model.Appointment{
		Base:            model.NewBase(now),
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		AppointmentTime: at,
		Status:          model.AppointmentStatusScheduled,
		Notes:           req.Notes,
	}

	err = s.withSlotLock(ctx, req.DoctorID, at, func(ctx context.Context) error {
		taken, err := s.repo.ExistsActiveAt(ctx, req.DoctorID, at, nil)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.Conflict("doctor already has an appointment at this time")
		}
		return s.repo.Create(ctx, apt)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, err
	}

	s.metrics.AppointmentsBooked.Inc()
	s.events.Record(ctx, model.EventAppointmentBooked, apt.ID, event.AppointmentPayload(apt, ""))
	s.logger.Info().
		Str("appointment_id", apt.ID.String()).
		Str("doctor_id", apt.DoctorID.String()).
		Time("appointment_time", apt.AppointmentTime).
		Msg("appointment booked")

	return apt, nil
}

// Reschedule moves a non-terminal appointment to a new time.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	at := normalize(req.AppointmentTime)

	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.Status.IsTerminal() {
		return nil, apperrors.InvalidState(fmt.Sprintf("cannot reschedule a %s appointment", apt.Status))
	}
	if apt.AppointmentTime.Equal(at) {
		return apt, nil
	}
	if err := s.checkNotPast(at); err != nil {
		return nil, err
	}
	doctor, err := s.doctors.Get(ctx, apt.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Available {
		return nil, apperrors.InvalidState("doctor is not accepting bookings")
	}

	previous := apt.AppointmentTime
	err = s.withSlotLock(ctx, apt.DoctorID, at, func(ctx context.Context) error {
		taken, err := s.repo.ExistsActiveAt(ctx, apt.DoctorID, at, &apt.ID)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.Conflict("doctor already has an appointment at this time")
		}

		apt.AppointmentTime = at
		apt.UpdatedAt = s.now().UTC()
		return s.repo.Update(ctx, apt, apt.Status)
	})
	if errors.Is(err, repository.ErrStatusMismatch) {
		current, getErr := s.repo.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status.IsTerminal() {
			return nil, apperrors.InvalidState(fmt.Sprintf("cannot reschedule a %s appointment", current.Status))
		}
		return nil, apperrors.Conflict("appointment was modified concurrently")
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, err
	}

	s.events.Record(ctx, model.EventAppointmentRescheduled, apt.ID, event.AppointmentPayload(apt, apt.Status))
	s.logger.Info().
		Str("appointment_id", apt.ID.String()).
		Time("from", previous).
		Time("to", at).
		Msg("appointment rescheduled")

	return apt, nil
}

// TransitionStatus applies one edge of the appointment state machine.
func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, status string) (*model.Appointment, error) {
	to, err := model.ParseAppointmentStatus(status)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), map[string]string{"status": "unknown appointment status"})
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !current.Status.CanTransitionTo(to) {
			return nil, apperrors.InvalidTransition("appointment", current.Status, to)
		}

		updated, err := s.repo.UpdateStatus(ctx, id, current.Status, to)
		if errors.Is(err, repository.ErrStatusMismatch) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.metrics.AppointmentTransitions.WithLabelValues(string(to)).Inc()
		s.events.Record(ctx, model.EventAppointmentStatusChanged, id, event.AppointmentPayload(updated, current.Status))
		s.logger.Info().
			Str("appointment_id", id.String()).
			Str("from", string(current.Status)).
			Str("to", string(to)).
			Msg("appointment status changed")
		return updated, nil
	}
	return nil, apperrors.Conflict("appointment was modified concurrently")
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.TransitionStatus(ctx, id, string(model.AppointmentStatusCancelled))
}

// Delete hard-removes the appointment with its unpaid bill. Appointments
// carrying payment history are refused.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	// the store re-checks inside its delete transaction
	paid, err := s.bills.HasPaidForAppointment(ctx, id)
	if err != nil {
		return err
	}
	if paid {
		return apperrors.Conflict("appointment has a paid bill and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.events.Record(ctx, model.EventAppointmentDeleted, id, event.AppointmentPayload(apt, apt.Status))
	s.logger.Info().Str("appointment_id", id.String()).Msg("appointment deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return s.repo.List(ctx, filters)
}

// UpdateNotes edits the free-text notes; the time and status are untouched.
func (s *Service) UpdateNotes(ctx context.Context, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Notes == nil {
		return apt, nil
	}

	apt.Notes = *req.Notes
	apt.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, apt, apt.Status); err != nil {
		if errors.Is(err, repository.ErrStatusMismatch) {
			return nil, apperrors.Conflict("appointment was modified concurrently")
		}
		return nil, err
	}
	return apt, nil
}

// CountToday counts appointments whose time falls on today's date in the
// clinic timezone.
func (s *Service) CountToday(ctx context.Context) (int, error) {
	y, m, d := s.now().In(s.cfg.Location).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)
	to := from.AddDate(0, 0, 1)

	list, err := s.repo.List(ctx, &model.AppointmentFilters{From: &from, To: &to})
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// CountPending counts SCHEDULED appointments.
func (s *Service) CountPending(ctx context.Context) (int, error) {
	status := model.AppointmentStatusScheduled
	list, err := s.repo.List(ctx, &model.AppointmentFilters{Status: &status})
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (s *Service) withSlotLock(ctx context.Context, doctorID uuid.UUID, at time.Time, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, bookingKey(doctorID, at), fn)
	if errors.Is(err, lock.ErrLockNotAcquired) {
		return apperrors.Conflict("slot is being booked by another request")
	}
	return err
}
