package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/lock"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

// Amounts are stored as NUMERIC(12,2).
var maxAmount = decimal.New(1, 10)

type Service struct {
	repo         repository.BillRepository
	patients     repository.PatientRepository
	appointments repository.AppointmentRepository
	locker       lock.Locker
	events       event.Recorder
	validator    validator.Validator
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	repos *repository.Repositories,
	locker lock.Locker,
	events event.Recorder,
	m *metrics.Metrics,
	logger zerolog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		repo:         repos.Bills,
		patients:     repos.Patients,
		appointments: repos.Appointments,
		locker:       locker,
		events:       events,
		validator:    validator.New(),
		metrics:      m,
		logger:       logger.With().Str("component", "billing_service").Logger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func billKey(id uuid.UUID) string {
	return "bill:" + id.String()
}

func validateAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return apperrors.Validation("amount must be positive", map[string]string{"amount": "must be greater than 0"})
	case !amount.Equal(amount.Round(2)):
		return apperrors.Validation("amount has too many decimal places", map[string]string{"amount": "at most 2 decimal places"})
	case amount.GreaterThanOrEqual(maxAmount):
		return apperrors.Validation("amount is too large", map[string]string{"amount": "must be less than 10000000000"})
	}
	return nil
}

// CreateBill issues a PENDING bill, optionally tied to one appointment of the
// same patient.
func (s *Service) CreateBill(ctx context.Context, req *model.CreateBillRequest) (*model.Bill, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if req.AppointmentID != nil {
		apt, err := s.appointments.Get(ctx, *req.AppointmentID)
		if err != nil {
			return nil, err
		}
		if apt.PatientID != req.PatientID {
			return nil, apperrors.Validation("appointment belongs to a different patient",
				map[string]string{"appointment_id": "must belong to the billed patient"})
		}
		if apt.Status == model.AppointmentStatusCancelled {
			return nil, apperrors.InvalidState("cannot bill a cancelled appointment")
		}
	}

	now := s.now().UTC()
	bill := &model.Bill{
		Base:          model.NewBase(now),
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		Amount:        req.Amount.Round(2),
		Status:        model.BillStatusPending,
		IssueDate:     now,
		Description:   req.Description,
	}
	if err := s.repo.Create(ctx, bill); err != nil {
		return nil, err
	}

	s.metrics.BillsCreated.Inc()
	s.events.Record(ctx, model.EventBillCreated, bill.ID, event.BillPayload(bill))
	s.logger.Info().
		Str("bill_id", bill.ID.String()).
		Str("amount", bill.Amount.StringFixed(2)).
		Msg("bill created")
	return bill, nil
}

// MarkPaid settles a PENDING bill. Paying an already PAID bill returns it
// unchanged; the first payment wins.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, req *model.MarkPaidRequest) (*model.Bill, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return nil, blankPaymentMethod()
	}

	var (
		result *model.Bill
		paid   bool
	)
	err := s.locker.WithLock(ctx, billKey(id), func(ctx context.Context) error {
		bill, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if bill.Status != model.BillStatusPending {
			result, err = settled(bill)
			return err
		}

		updated, err := s.repo.MarkPaid(ctx, id, method, s.now().UTC())
		if errors.Is(err, repository.ErrStatusMismatch) {
			current, getErr := s.repo.Get(ctx, id)
			if getErr != nil {
				return getErr
			}
			result, err = settled(current)
			return err
		}
		if err != nil {
			return err
		}
		result, paid = updated, true
		return nil
	})
	if errors.Is(err, lock.ErrLockNotAcquired) {
		return nil, apperrors.Conflict("bill is being updated by another request")
	}
	if err != nil {
		return nil, err
	}

	if paid {
		s.metrics.BillsPaid.Inc()
		s.events.Record(ctx, model.EventBillPaid, result.ID, event.BillPayload(result))
		s.logger.Info().
			Str("bill_id", result.ID.String()).
			Str("payment_method", method).
			Msg("bill paid")
	}
	return result, nil
}

// settled resolves MarkPaid on a bill that is no longer PENDING.
func settled(bill *model.Bill) (*model.Bill, error) {
	if bill.Status == model.BillStatusPaid {
		return bill, nil
	}
	return nil, apperrors.InvalidTransition("bill", bill.Status, model.BillStatusPaid)
}

// UpdateBill applies a partial patch. Terminal bills keep their status and
// amount; only the description may still change.
func (s *Service) UpdateBill(ctx context.Context, id uuid.UUID, req *model.UpdateBillRequest) (*model.Bill, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		result     *model.Bill
		becamePaid bool
	)
	err := s.locker.WithLock(ctx, billKey(id), func(ctx context.Context) error {
		bill, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		expected := bill.Status
		now := s.now().UTC()

		if err := applyPatch(bill, req, now); err != nil {
			return err
		}
		bill.UpdatedAt = now
		if err := bill.CheckPaymentInvariant(); err != nil {
			return apperrors.Internal(err)
		}

		if err := s.repo.Update(ctx, bill, expected); err != nil {
			if errors.Is(err, repository.ErrStatusMismatch) {
				return apperrors.Conflict("bill was modified concurrently")
			}
			return err
		}
		result = bill
		becamePaid = expected != model.BillStatusPaid && bill.Status == model.BillStatusPaid
		return nil
	})
	if errors.Is(err, lock.ErrLockNotAcquired) {
		return nil, apperrors.Conflict("bill is being updated by another request")
	}
	if err != nil {
		return nil, err
	}

	if becamePaid {
		s.metrics.BillsPaid.Inc()
		s.events.Record(ctx, model.EventBillPaid, result.ID, event.BillPayload(result))
	} else {
		s.events.Record(ctx, model.EventBillUpdated, result.ID, event.BillPayload(result))
	}
	s.logger.Info().
		Str("bill_id", result.ID.String()).
		Str("status", string(result.Status)).
		Msg("bill updated")
	return result, nil
}

func blankPaymentMethod() error {
	return apperrors.Validation("payment method must not be blank",
		map[string]string{"payment_method": "must not be blank"})
}

func applyPatch(bill *model.Bill, req *model.UpdateBillRequest, now time.Time) error {
	if req.PaymentMethod != nil && strings.TrimSpace(*req.PaymentMethod) == "" {
		return blankPaymentMethod()
	}
	if req.Description != nil {
		bill.Description = *req.Description
	}

	if req.Amount != nil {
		if bill.Status.IsTerminal() {
			return apperrors.InvalidState(fmt.Sprintf("cannot change the amount of a %s bill", bill.Status))
		}
		if err := validateAmount(*req.Amount); err != nil {
			return err
		}
		bill.Amount = req.Amount.Round(2)
	}

	next := bill.Status
	if req.Status != nil {
		parsed, err := model.ParseBillStatus(*req.Status)
		if err != nil {
			return apperrors.Validation(err.Error(), map[string]string{"status": "unknown bill status"})
		}
		next = parsed
	}
	if next != bill.Status {
		if bill.Status.IsTerminal() {
			return apperrors.InvalidTransition("bill", bill.Status, next)
		}
		bill.Status = next
	}

	if req.PaymentMethod != nil && bill.Status != model.BillStatusPaid {
		return apperrors.Validation("payment method is only accepted for paid bills",
			map[string]string{"payment_method": "requires status PAID"})
	}
	if bill.Status == model.BillStatusPaid {
		if bill.PaymentDate == nil {
			paidAt := now
			if paidAt.Before(bill.IssueDate) {
				paidAt = bill.IssueDate
			}
			bill.PaymentDate = &paidAt
		}
		if req.PaymentMethod != nil && bill.PaymentMethod == nil {
			method := strings.TrimSpace(*req.PaymentMethod)
			bill.PaymentMethod = &method
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Bill, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Bill, error) {
	return s.repo.GetByAppointment(ctx, appointmentID)
}

func (s *Service) List(ctx context.Context, filters *model.BillFilters) ([]*model.Bill, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Bill, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, &model.BillFilters{PatientID: &patientID})
}

// Delete removes an unpaid bill. Payment history is never deleted.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.locker.WithLock(ctx, billKey(id), func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	if errors.Is(err, lock.ErrLockNotAcquired) {
		return apperrors.Conflict("bill is being updated by another request")
	}
	if err != nil {
		return err
	}
	s.logger.Info().Str("bill_id", id.String()).Msg("bill deleted")
	return nil
}
