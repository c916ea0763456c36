package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

var clock = time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC)

func populate(t *testing.T) *repository.Repositories {
	t.Helper()
	ctx := context.Background()
	repos := memory.NewRepositories()

	patient := &model.Patient{Base: model.NewBase(clock), Name: "Ravi"}
	require.NoError(t, repos.Patients.Create(ctx, patient))
	doctor := &model.Doctor{Base: model.NewBase(clock), Name: "Dr. Shah", Available: true}
	require.NoError(t, repos.Doctors.Create(ctx, doctor))

	add := func(at time.Time, status model.AppointmentStatus) *model.Appointment {
		a := &model.Appointment{
			Base: model.NewBase(clock), PatientID: patient.ID, DoctorID: doctor.ID,
			AppointmentTime: at, Status: status,
		}
		require.NoError(t, repos.Appointments.Create(ctx, a))
		return a
	}
	done := add(clock.AddDate(0, -1, 0), model.AppointmentStatusCompleted)
	add(clock.Add(time.Hour), model.AppointmentStatusScheduled)
	add(clock.Add(2*time.Hour), model.AppointmentStatusScheduled)
	add(clock.AddDate(0, 0, 1), model.AppointmentStatusConfirmed)

	paid := &model.Bill{
		Base: model.NewBase(clock), PatientID: patient.ID, AppointmentID: &done.ID,
		Amount: decimal.RequireFromString("250.00"), Status: model.BillStatusPending,
		IssueDate: clock.AddDate(0, -1, 0),
	}
	require.NoError(t, repos.Bills.Create(ctx, paid))
	_, err := repos.Bills.MarkPaid(ctx, paid.ID, "CARD", clock.AddDate(0, -1, 1))
	require.NoError(t, err)

	require.NoError(t, repos.Bills.Create(ctx, &model.Bill{
		Base: model.NewBase(clock), PatientID: patient.ID,
		Amount: decimal.RequireFromString("80.50"), Status: model.BillStatusPending, IssueDate: clock,
	}))
	return repos
}

func newService(repos *repository.Repositories) *Service {
	return NewService(repos.Reports, Config{MaxMonths: 24}, metrics.NewNop(), zerolog.Nop(),
		WithClock(func() time.Time { return clock }))
}

func TestComputeDashboard(t *testing.T) {
	svc := newService(populate(t))

	d, err := svc.ComputeDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.TotalPatients)
	assert.Equal(t, int64(1), d.TotalDoctors)
	assert.Equal(t, int64(2), d.AppointmentsToday)
	assert.Equal(t, int64(2), d.PendingAppointments)
	assert.True(t, decimal.RequireFromString("250").Equal(d.TotalRevenue))
	assert.True(t, decimal.RequireFromString("80.5").Equal(d.PendingBills))
	assert.Equal(t, clock, d.GeneratedAt)
}

func TestComputeAnalytics(t *testing.T) {
	svc := newService(populate(t))

	a, err := svc.ComputeAnalytics(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), a.TotalAppointments)
	assert.Equal(t, int64(2), a.TotalBills)
	assert.True(t, decimal.RequireFromString("250").Equal(a.TotalRevenue))
	assert.True(t, decimal.RequireFromString("80.5").Equal(a.PendingRevenue))
	assert.Equal(t, map[string]int64{"COMPLETED": 1, "SCHEDULED": 2, "CONFIRMED": 1}, a.AppointmentsByStatus)
	assert.Equal(t, map[string]int64{"Dr. Shah": 4}, a.AppointmentsByDoctor)
	assert.Equal(t, int64(2), a.AppointmentsToday)

	require.Len(t, a.MonthlyRevenue, 6)
	assert.Equal(t, "JAN", a.MonthlyRevenue[0].Month)
	assert.Equal(t, "MAY", a.MonthlyRevenue[4].Month)
	assert.True(t, decimal.RequireFromString("250").Equal(a.MonthlyRevenue[4].Revenue))
	assert.True(t, a.MonthlyRevenue[5].Revenue.IsZero())

	var weekdays int64
	for _, n := range a.AppointmentsByDayOfWeek {
		weekdays += n
	}
	assert.Equal(t, int64(4), weekdays)
	assert.Equal(t, int64(2), a.AppointmentsByDayOfWeek["WEDNESDAY"])
}

func TestComputeAnalyticsMonthsRange(t *testing.T) {
	svc := newService(memory.NewRepositories())
	ctx := context.Background()

	for _, months := range []int{-1, 25} {
		_, err := svc.ComputeAnalytics(ctx, months)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	}

	a, err := svc.ComputeAnalytics(ctx, 24)
	require.NoError(t, err)
	assert.Len(t, a.MonthlyRevenue, 24)
	assert.True(t, a.TotalRevenue.IsZero())
	assert.Empty(t, a.AppointmentsByStatus)
}
