// Package availability derives a doctor's bookable slots for a day.
package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type Config struct {
	DayStartHour int
	SlotCount    int
	SlotMinutes  int
	Location     *time.Location
}

// DefaultConfig is the 09:00 to 16:00 hourly day in UTC.
func DefaultConfig() Config {
	return Config{DayStartHour: 9, SlotCount: 8, SlotMinutes: 60, Location: time.UTC}
}

type Service struct {
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	cfg          Config
}

func NewService(doctors repository.DoctorRepository, appointments repository.AppointmentRepository, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{doctors: doctors, appointments: appointments, cfg: cfg}
}

// Location is the clinic timezone calendar dates are read in.
func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

// SlotStarts lists the slot anchors for the calendar date of day, read in the
// clinic timezone.
func (s *Service) SlotStarts(day time.Time) []time.Time {
	y, m, d := day.In(s.cfg.Location).Date()
	first := time.Date(y, m, d, s.cfg.DayStartHour, 0, 0, 0, s.cfg.Location)

	starts := make([]time.Time, s.cfg.SlotCount)
	for i := range starts {
		starts[i] = first.Add(time.Duration(i*s.cfg.SlotMinutes) * time.Minute)
	}
	return starts
}

// GetSlots marks each anchor busy when a non-cancelled appointment sits on it
// exactly, and every anchor busy when the doctor is not accepting bookings.
func (s *Service) GetSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]model.Slot, error) {
	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	starts := s.SlotStarts(day)
	slots := make([]model.Slot, len(starts))
	if !doctor.Available || len(starts) == 0 {
		for i, start := range starts {
			slots[i] = model.Slot{StartTime: start, Free: false}
		}
		return slots, nil
	}

	end := starts[len(starts)-1].Add(time.Duration(s.cfg.SlotMinutes) * time.Minute)
	booked, err := s.appointments.ListActiveByDoctor(ctx, doctorID, starts[0], end)
	if err != nil {
		return nil, err
	}

	taken := make(map[int64]struct{}, len(booked))
	for _, a := range booked {
		taken[a.AppointmentTime.UnixNano()] = struct{}{}
	}
	for i, start := range starts {
		_, busy := taken[start.UnixNano()]
		slots[i] = model.Slot{StartTime: start, Free: !busy}
	}
	return slots, nil
}
