package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

var created = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, available bool) (*repository.Repositories, *model.Doctor, *model.Patient) {
	t.Helper()
	ctx := context.Background()
	repos := memory.NewRepositories()

	doctor := &model.Doctor{Base: model.NewBase(created), Name: "Dr. Rao", Available: available}
	require.NoError(t, repos.Doctors.Create(ctx, doctor))
	patient := &model.Patient{Base: model.NewBase(created), Name: "Meera"}
	require.NoError(t, repos.Patients.Create(ctx, patient))
	return repos, doctor, patient
}

func book(t *testing.T, repos *repository.Repositories, doctor *model.Doctor, patient *model.Patient, at time.Time, status model.AppointmentStatus) {
	t.Helper()
	require.NoError(t, repos.Appointments.Create(context.Background(), &model.Appointment{
		Base: model.NewBase(created), PatientID: patient.ID, DoctorID: doctor.ID,
		AppointmentTime: at, Status: status,
	}))
}

func TestSlotStarts(t *testing.T) {
	svc := NewService(nil, nil, DefaultConfig())
	starts := svc.SlotStarts(time.Date(2025, 6, 2, 22, 15, 0, 0, time.UTC))

	require.Len(t, starts, 8)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), starts[0])
	assert.Equal(t, time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC), starts[7])
}

func TestSlotStartsUseClinicCalendarDate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	svc := NewService(nil, nil, Config{DayStartHour: 10, SlotCount: 3, SlotMinutes: 30, Location: ist})

	// 20:00 UTC on the 2nd is already the 3rd in IST
	starts := svc.SlotStarts(time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC))
	require.Len(t, starts, 3)
	assert.Equal(t, time.Date(2025, 6, 3, 10, 0, 0, 0, ist), starts[0])
	assert.Equal(t, time.Date(2025, 6, 3, 11, 0, 0, 0, ist), starts[2])
	assert.Equal(t, ist, svc.Location())
}

func TestGetSlots(t *testing.T) {
	repos, doctor, patient := seed(t, true)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	book(t, repos, doctor, patient, day.Add(9*time.Hour), model.AppointmentStatusScheduled)
	book(t, repos, doctor, patient, day.Add(11*time.Hour), model.AppointmentStatusCompleted)
	// cancelled appointments free the slot
	book(t, repos, doctor, patient, day.Add(12*time.Hour), model.AppointmentStatusCancelled)
	// off-anchor appointments do not block an anchor
	book(t, repos, doctor, patient, day.Add(13*time.Hour+30*time.Minute), model.AppointmentStatusScheduled)
	// another day
	book(t, repos, doctor, patient, day.Add(34*time.Hour), model.AppointmentStatusScheduled)

	svc := NewService(repos.Doctors, repos.Appointments, DefaultConfig())
	slots, err := svc.GetSlots(context.Background(), doctor.ID, day)
	require.NoError(t, err)
	require.Len(t, slots, 8)

	free := make(map[int]bool)
	for _, s := range slots {
		free[s.StartTime.Hour()] = s.Free
	}
	assert.Equal(t, map[int]bool{
		9: false, 10: true, 11: false, 12: true,
		13: true, 14: true, 15: true, 16: true,
	}, free)
}

func TestGetSlotsUnavailableDoctor(t *testing.T) {
	repos, doctor, _ := seed(t, false)
	svc := NewService(repos.Doctors, repos.Appointments, DefaultConfig())

	slots, err := svc.GetSlots(context.Background(), doctor.ID, created)
	require.NoError(t, err)
	require.Len(t, slots, 8)
	for _, s := range slots {
		assert.False(t, s.Free)
	}
}

func TestGetSlotsUnknownDoctor(t *testing.T) {
	repos, _, _ := seed(t, true)
	svc := NewService(repos.Doctors, repos.Appointments, DefaultConfig())

	_, err := svc.GetSlots(context.Background(), uuid.New(), created)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
