package lab

import (
	"context"
	"errors"
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
	tests     repository.LabTestRepository
	orders    repository.LabOrderRepository
	results   repository.LabResultRepository
	patients  repository.PatientRepository
	doctors   repository.DoctorRepository
	validator validator.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repos *repository.Repositories, logger zerolog.Logger) *Service {
	return &Service{
		tests:     repos.LabTests,
		orders:    repos.LabOrders,
		results:   repos.LabResults,
		patients:  repos.Patients,
		doctors:   repos.Doctors,
		validator: validator.New(),
		logger:    logger.With().Str("component", "lab_service").Logger(),
		now:       time.Now,
	}
}

func (s *Service) CreateTest(ctx context.Context, req *model.CreateLabTestRequest) (*model.LabTest, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Price.IsNegative() {
		return nil, apperrors.Validation("price must not be negative", map[string]string{"price": "must be 0 or more"})
	}

	test := &model.LabTest{
		Base:        model.NewBase(s.now().UTC()),
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:        req.Name,
		Description: req.Description,
		NormalRange: req.NormalRange,
		Units:       req.Units,
		Price:       req.Price.Round(2),
	}
	if err := s.tests.Create(ctx, test); err != nil {
		return nil, err
	}
	return test, nil
}

func (s *Service) ListTests(ctx context.Context) ([]*model.LabTest, error) {
	return s.tests.List(ctx)
}

func (s *Service) CreateOrder(ctx context.Context, req *model.CreateLabOrderRequest) (*model.LabOrder, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.doctors.Get(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &model.LabOrder{
		Base:      model.NewBase(now),
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		OrderDate: now,
		Status:    model.LabOrderStatusPending,
		Notes:     req.Notes,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*model.LabOrder, error) {
	return s.orders.Get(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, filters *model.LabOrderFilters) ([]*model.LabOrder, error) {
	return s.orders.List(ctx, filters)
}

// UpdateOrderStatus moves an order along PENDING, IN_PROGRESS, COMPLETED, or
// to CANCELLED before completion.
func (s *Service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, req *model.UpdateLabOrderStatusRequest) (*model.LabOrder, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	to, err := model.ParseLabOrderStatus(req.Status)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), map[string]string{"status": "unknown lab order status"})
	}

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(to) {
		return nil, apperrors.InvalidTransition("lab order", order.Status, to)
	}

	updated, err := s.orders.UpdateStatus(ctx, id, order.Status, to)
	if errors.Is(err, repository.ErrStatusMismatch) {
		current, getErr := s.orders.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.InvalidTransition("lab order", current.Status, to)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("lab_order_id", id.String()).
		Str("from", string(order.Status)).
		Str("to", string(to)).
		Msg("lab order status changed")
	return updated, nil
}

func (s *Service) AddResult(ctx context.Context, req *model.CreateLabResultRequest) (*model.LabResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	order, err := s.orders.Get(ctx, req.LabOrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == model.LabOrderStatusCancelled {
		return nil, apperrors.InvalidState("cannot record results on a cancelled lab order")
	}

	result := &model.LabResult{
		Base:           model.NewBase(s.now().UTC()),
		LabOrderID:     req.LabOrderID,
		TestName:       req.TestName,
		ResultValue:    req.ResultValue,
		Unit:           req.Unit,
		ReferenceRange: req.ReferenceRange,
		IsAbnormal:     req.IsAbnormal,
		Remarks:        req.Remarks,
	}
	if err := s.results.Create(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) ListResults(ctx context.Context, orderID uuid.UUID) ([]*model.LabResult, error) {
	if _, err := s.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.results.ListByOrder(ctx, orderID)
}
