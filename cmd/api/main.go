package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/bootstrap"
	"github.com/jwalitptl/clinic-api/internal/config"
	appointmentHandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	billHandler "github.com/jwalitptl/clinic-api/internal/handler/bill"
	doctorHandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	labHandler "github.com/jwalitptl/clinic-api/internal/handler/lab"
	medicalRecordHandler "github.com/jwalitptl/clinic-api/internal/handler/medicalrecord"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	prescriptionHandler "github.com/jwalitptl/clinic-api/internal/handler/prescription"
	reportHandler "github.com/jwalitptl/clinic-api/internal/handler/report"
	searchHandler "github.com/jwalitptl/clinic-api/internal/handler/search"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/router"
	analyticsService "github.com/jwalitptl/clinic-api/internal/service/analytics"
	appointmentService "github.com/jwalitptl/clinic-api/internal/service/appointment"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
	doctorService "github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	labService "github.com/jwalitptl/clinic-api/internal/service/lab"
	medicalRecordService "github.com/jwalitptl/clinic-api/internal/service/medicalrecord"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	prescriptionService "github.com/jwalitptl/clinic-api/internal/service/prescription"
	searchService "github.com/jwalitptl/clinic-api/internal/service/search"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := bootstrap.Logger(cfg.Log, "clinic-api")
	log.Logger = logger
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, closeStore, err := bootstrap.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error().Err(err).Msg("failed to close store")
		}
	}()

	redisClient, err := bootstrap.OpenRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
	locker := bootstrap.Locker(redisClient, cfg.Scheduling)
	recorder := event.NewOutboxRecorder(repos.Outbox, logger)
	loc := cfg.Scheduling.Location()

	jwtSvc := auth.NewJWTService(auth.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: time.Duration(cfg.JWT.ExpiryHours) * time.Hour,
		Leeway: cfg.JWT.Leeway,
	})
	authSvc := authService.NewService(repos.Users, jwtSvc, security.NewBcryptHasher(0), logger)

	availabilitySvc := availability.NewService(repos.Doctors, repos.Appointments, availability.Config{
		DayStartHour: cfg.Scheduling.DayStartHour,
		SlotCount:    cfg.Scheduling.SlotCount,
		SlotMinutes:  cfg.Scheduling.SlotMinutes,
		Location:     loc,
	})
	appointmentSvc := appointmentService.NewService(repos, locker, recorder, m, logger, appointmentService.Config{
		AllowPastBookings: cfg.Scheduling.AllowPastBookings,
		Location:          loc,
	})
	billingSvc := billing.NewService(repos, locker, recorder, m, logger)
	analyticsSvc := analyticsService.NewService(repos.Reports, analyticsService.Config{
		Location:      loc,
		DefaultMonths: cfg.Scheduling.AnalyticsMonths,
		MaxMonths:     cfg.Scheduling.MaxAnalyticsMonths,
	}, m, logger)
	patientSvc := patientService.NewService(repos.Patients, repos.Bills, logger)
	doctorSvc := doctorService.NewService(repos.Doctors, repos.Appointments, logger)

	handlers := router.Handlers{
		Health:         health.NewHandler(repos.Health, prometheus.DefaultGatherer, logger),
		Auth:           authHandler.NewHandler(authSvc),
		Patients:       patientHandler.NewHandler(patientSvc, appointmentSvc, billingSvc),
		Doctors:        doctorHandler.NewHandler(doctorSvc, availabilitySvc),
		Appointments:   appointmentHandler.NewHandler(appointmentSvc, billingSvc, loc),
		Bills:          billHandler.NewHandler(billingSvc),
		Prescriptions:  prescriptionHandler.NewHandler(prescriptionService.NewService(repos, cfg.Scheduling.PrescriptionDays)),
		Lab:            labHandler.NewHandler(labService.NewService(repos, logger)),
		MedicalRecords: medicalRecordHandler.NewHandler(medicalRecordService.NewService(repos)),
		Search:         searchHandler.NewHandler(searchService.NewService(repos.Patients, repos.Doctors)),
		Reports:        reportHandler.NewHandler(analyticsSvc),
	}

	r := router.NewRouter(handlers, authSvc, m, logger, router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		CORSConfig:       middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins...),
		RequestTimeout:   cfg.Server.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// The memory store lives in this process, so no separate worker can see
	// its outbox. Relay events from here instead.
	pipelineDone := make(chan struct{})
	if cfg.Database.Driver == "memory" {
		broker := bootstrap.Broker(redisClient, logger)
		go func() {
			defer close(pipelineDone)
			if err := bootstrap.RunEventPipeline(ctx, cfg, repos, broker, m, logger); err != nil {
				logger.Error().Err(err).Msg("event pipeline failed")
			}
		}()
	} else {
		close(pipelineDone)
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}
	<-pipelineDone

	logger.Info().Msg("server exited properly")
}
