package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/bootstrap"
	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
	doctorService "github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/lock"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

var specialties = []string{
	"General Practice",
	"Cardiology",
	"Dermatology",
	"Orthopedics",
	"Pediatrics",
	"Neurology",
	"ENT",
}

var paymentMethods = []string{"CASH", "CARD", "UPI", "INSURANCE"}

type options struct {
	doctors       int
	patients      int
	appointments  int
	adminEmail    string
	adminPassword string
	seed          int64
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Fill the clinic database with fake patients, doctors, appointments and bills",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.doctors, "doctors", 10, "Number of doctors")
	cmd.Flags().IntVar(&opts.patients, "patients", 200, "Number of patients")
	cmd.Flags().IntVar(&opts.appointments, "appointments", 600, "Number of appointments spread over the last six months and the next two weeks")
	cmd.Flags().StringVar(&opts.adminEmail, "admin-email", "admin@clinic.local", "Email of the admin account to create")
	cmd.Flags().StringVar(&opts.adminPassword, "admin-password", "", "Password of the admin account (skipped when empty)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Random seed (0 means time based)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := bootstrap.Logger(cfg.Log, "clinic-seed")
	log.Logger = logger

	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("seeding needs the postgres driver, got %q", cfg.Database.Driver)
	}

	repos, closeStore, err := bootstrap.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.seed == 0 {
		opts.seed = time.Now().UnixNano()
	}
	_ = gofakeit.Seed(opts.seed)

	s := newSeeder(repos, cfg, logger)
	if opts.adminPassword != "" {
		if err := s.admin(ctx, opts.adminEmail, opts.adminPassword); err != nil {
			return err
		}
	}

	doctors, err := s.doctors(ctx, opts.doctors)
	if err != nil {
		return err
	}
	patients, err := s.patients(ctx, opts.patients)
	if err != nil {
		return err
	}
	if err := s.appointments(ctx, opts.appointments, doctors, patients); err != nil {
		return err
	}

	logger.Info().
		Int("doctors", len(doctors)).
		Int("patients", len(patients)).
		Int("appointments", s.booked).
		Int("bills", s.billed).
		Msg("seed complete")
	return nil
}

// seeder drives the real services so every seeded row satisfies the same
// rules as live traffic. The clock is moved per appointment so history lands
// in the past.
type seeder struct {
	cfg          *config.Config
	logger       zerolog.Logger
	clock        time.Time
	auth         *authService.Service
	patientSvc   *patientService.Service
	doctorSvc    *doctorService.Service
	bookings     *appointmentService.Service
	billing      *billing.Service
	booked       int
	billed       int
}

func newSeeder(repos *repository.Repositories, cfg *config.Config, logger zerolog.Logger) *seeder {
	s := &seeder{cfg: cfg, logger: logger, clock: time.Now()}
	now := func() time.Time { return s.clock }

	m := metrics.NewNop()
	locker := lock.NewLocalLocker(lock.Options{TTL: cfg.Scheduling.LockTTL})
	events := event.Nop{}
	quiet := logger.Level(zerolog.WarnLevel)

	jwtSvc := auth.NewJWTService(auth.Config{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Expiry: time.Hour})
	s.auth = authService.NewService(repos.Users, jwtSvc, security.NewBcryptHasher(0), quiet)
	s.patientSvc = patientService.NewService(repos.Patients, repos.Bills, quiet)
	s.doctorSvc = doctorService.NewService(repos.Doctors, repos.Appointments, quiet)
	s.bookings = appointmentService.NewService(repos, locker, events, m, quiet, appointmentService.Config{
		AllowPastBookings: true,
		Location:          cfg.Scheduling.Location(),
	}, appointmentService.WithClock(now))
	s.billing = billing.NewService(repos, locker, events, m, quiet, billing.WithClock(now))
	return s
}

func (s *seeder) admin(ctx context.Context, email, password string) error {
	_, err := s.auth.Register(ctx, &model.RegisterRequest{
		Name:     "Clinic Admin",
		Email:    email,
		Password: password,
		Role:     string(model.RoleAdmin),
	})
	if errors.Is(err, apperrors.ErrConflict) {
		s.logger.Info().Str("email", email).Msg("admin already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Info().Str("email", email).Msg("admin created")
	return nil
}

func (s *seeder) doctors(ctx context.Context, count int) ([]*model.Doctor, error) {
	out := make([]*model.Doctor, 0, count)
	for i := 0; i < count; i++ {
		d, err := s.doctorSvc.CreateDoctor(ctx, &model.CreateDoctorRequest{
			Name:           "Dr. " + gofakeit.Name(),
			Email:          gofakeit.Email(),
			Phone:          gofakeit.Phone(),
			Specialization: gofakeit.RandomString(specialties),
			AvailableTimes: "Mon-Fri 09:00-17:00",
		})
		if err != nil {
			return nil, fmt.Errorf("seed doctor: %w", err)
		}
		out = append(out, d)
	}
	s.logger.Info().Int("count", len(out)).Msg("doctors seeded")
	return out, nil
}

func (s *seeder) patients(ctx context.Context, count int) ([]*model.Patient, error) {
	out := make([]*model.Patient, 0, count)
	now := time.Now()
	for i := 0; i < count; i++ {
		dob := gofakeit.DateRange(now.AddDate(-90, 0, 0), now.AddDate(-1, 0, 0))
		p, err := s.patientSvc.CreatePatient(ctx, &model.CreatePatientRequest{
			Name:        gofakeit.Name(),
			Email:       gofakeit.Email(),
			ContactNo:   gofakeit.Phone(),
			DateOfBirth: &dob,
			Gender:      gofakeit.RandomString([]string{"MALE", "FEMALE", "OTHER"}),
			Address:     gofakeit.Street() + ", " + gofakeit.City(),
		})
		if err != nil {
			return nil, fmt.Errorf("seed patient: %w", err)
		}
		out = append(out, p)
	}
	s.logger.Info().Int("count", len(out)).Msg("patients seeded")
	return out, nil
}

// appointments books on slot anchors between six months ago and two weeks
// ahead. Past ones are completed or cancelled, completed ones are billed and
// mostly paid.
func (s *seeder) appointments(ctx context.Context, count int, doctors []*model.Doctor, patients []*model.Patient) error {
	if len(doctors) == 0 || len(patients) == 0 {
		return nil
	}
	loc := s.cfg.Scheduling.Location()
	today := time.Now().In(loc)

	for i := 0; i < count; i++ {
		day := today.AddDate(0, 0, gofakeit.Number(-180, 14))
		slot := gofakeit.Number(0, s.cfg.Scheduling.SlotCount-1)
		at := time.Date(day.Year(), day.Month(), day.Day(), s.cfg.Scheduling.DayStartHour, 0, 0, 0, loc).
			Add(time.Duration(slot*s.cfg.Scheduling.SlotMinutes) * time.Minute)

		doctor := doctors[gofakeit.Number(0, len(doctors)-1)]
		patient := patients[gofakeit.Number(0, len(patients)-1)]

		s.clock = at.Add(-72 * time.Hour)
		apt, err := s.bookings.Book(ctx, &model.BookAppointmentRequest{
			PatientID:       patient.ID,
			DoctorID:        doctor.ID,
			AppointmentTime: at,
		})
		if errors.Is(err, apperrors.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed appointment: %w", err)
		}
		s.booked++

		if at.After(time.Now()) {
			continue
		}
		if err := s.settle(ctx, apt); err != nil {
			return err
		}
	}
	s.clock = time.Now()
	return nil
}

func (s *seeder) settle(ctx context.Context, apt *model.Appointment) error {
	s.clock = apt.AppointmentTime.Add(time.Hour)

	if gofakeit.Number(1, 10) == 1 {
		_, err := s.bookings.Cancel(ctx, apt.ID)
		return err
	}
	if _, err := s.bookings.TransitionStatus(ctx, apt.ID, string(model.AppointmentStatusCompleted)); err != nil {
		return fmt.Errorf("complete appointment: %w", err)
	}

	amount := decimal.NewFromFloat(gofakeit.Price(20, 400)).Round(2)
	bill, err := s.billing.CreateBill(ctx, &model.CreateBillRequest{
		PatientID:     apt.PatientID,
		AppointmentID: &apt.ID,
		Amount:        amount,
		Description:   "Consultation",
	})
	if err != nil {
		return fmt.Errorf("seed bill: %w", err)
	}
	s.billed++

	if gofakeit.Number(1, 5) == 1 {
		return nil
	}
	s.clock = s.clock.Add(time.Duration(gofakeit.Number(0, 72)) * time.Hour)
	if _, err := s.billing.MarkPaid(ctx, bill.ID, &model.MarkPaidRequest{
		PaymentMethod: gofakeit.RandomString(paymentMethods),
	}); err != nil {
		return fmt.Errorf("pay bill: %w", err)
	}
	return nil
}
