// Package analytics computes dashboard and report snapshots from the current
// store. It never writes.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type Config struct {
	Location      *time.Location
	DefaultMonths int
	MaxMonths     int
}

type Service struct {
	reports repository.ReportRepository
	cfg     Config
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(reports repository.ReportRepository, cfg Config, m *metrics.Metrics, logger zerolog.Logger, opts ...Option) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultMonths <= 0 {
		cfg.DefaultMonths = 6
	}
	if cfg.MaxMonths < cfg.DefaultMonths {
		cfg.MaxMonths = cfg.DefaultMonths
	}
	s := &Service{
		reports: reports,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With().Str("component", "analytics_service").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ComputeDashboard(ctx context.Context) (*model.Dashboard, error) {
	timer := prometheus.NewTimer(s.metrics.AnalyticsComputeLatency)
	defer timer.ObserveDuration()

	now := s.now()
	counts, err := s.reports.Counts(ctx)
	if err != nil {
		return nil, err
	}

	start, end := dayBounds(now, s.cfg.Location)
	today, err := s.reports.CountAppointmentsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	pending, err := s.reports.CountAppointmentsByStatus(ctx, model.AppointmentStatusScheduled)
	if err != nil {
		return nil, err
	}
	revenue, err := s.reports.SumBills(ctx, model.BillStatusPaid)
	if err != nil {
		return nil, err
	}
	owed, err := s.reports.SumBills(ctx, model.BillStatusPending)
	if err != nil {
		return nil, err
	}

	return &model.Dashboard{
		TotalPatients:       counts.Patients,
		TotalDoctors:        counts.Doctors,
		AppointmentsToday:   today,
		PendingAppointments: pending,
		TotalRevenue:        revenue,
		PendingBills:        owed,
		GeneratedAt:         now.UTC(),
	}, nil
}

// ComputeAnalytics builds the report snapshot over the trailing months. Zero
// months selects the configured default.
func (s *Service) ComputeAnalytics(ctx context.Context, months int) (*model.Analytics, error) {
	if months == 0 {
		months = s.cfg.DefaultMonths
	}
	if months < 1 || months > s.cfg.MaxMonths {
		return nil, apperrors.Validation("months out of range",
			map[string]string{"months": fmt.Sprintf("must be between 1 and %d", s.cfg.MaxMonths)})
	}

	timer := prometheus.NewTimer(s.metrics.AnalyticsComputeLatency)
	defer timer.ObserveDuration()

	now := s.now()
	counts, err := s.reports.Counts(ctx)
	if err != nil {
		return nil, err
	}
	appointments, err := s.reports.AppointmentFacts(ctx)
	if err != nil {
		return nil, err
	}
	bills, err := s.reports.BillFacts(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &model.Analytics{
		TotalPatients:           counts.Patients,
		TotalDoctors:            counts.Doctors,
		TotalAppointments:       counts.Appointments,
		TotalBills:              counts.Bills,
		TotalRevenue:            SumByStatus(bills, model.BillStatusPaid),
		PendingRevenue:          SumByStatus(bills, model.BillStatusPending),
		AppointmentsByStatus:    StatusHistogram(appointments),
		MonthlyRevenue:          MonthlyRevenue(bills, now, months, s.cfg.Location),
		AppointmentsByDayOfWeek: DayOfWeekDistribution(appointments, s.cfg.Location),
		AppointmentsByDoctor:    DoctorLoad(appointments),
		AppointmentsToday:       CountOnDay(appointments, now, s.cfg.Location),
		GeneratedAt:             now.UTC(),
	}

	s.logger.Debug().
		Int("appointments", len(appointments)).
		Int("bills", len(bills)).
		Int("months", months).
		Msg("analytics computed")
	return snapshot, nil
}
