package bootstrap

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/notification"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/worker"
)

// Mailer returns the SMTP sender when SMTP is enabled, a logging stub otherwise.
func Mailer(cfg config.SMTPConfig, log zerolog.Logger) email.Service {
	if !cfg.Enabled {
		return email.NewLogService(log)
	}
	return email.NewSMTPService(email.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

// RunEventPipeline relays the outbox to the broker, purges old events and
// sends notices until ctx is cancelled.
func RunEventPipeline(
	ctx context.Context,
	cfg *config.Config,
	repos *repository.Repositories,
	broker messaging.Broker,
	m *metrics.Metrics,
	log zerolog.Logger,
) error {
	processor, err := worker.NewOutboxProcessor(repos.Outbox, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		Channel:       cfg.Outbox.Channel,
	}, log, m)
	if err != nil {
		return err
	}

	subscriber := notification.NewSubscriber(
		broker,
		cfg.Outbox.Channel,
		Mailer(cfg.SMTP, log),
		repos,
		cfg.Scheduling.Location(),
		log,
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := subscriber.Run(ctx); err != nil {
			log.Error().Err(err).Msg("notification subscriber stopped")
		}
	}()

	if cfg.Outbox.Retention > 0 && cfg.Outbox.CleanupInterval > 0 {
		cleanup := worker.NewOutboxCleanupWorker(repos.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, log, m)
		wg.Add(1)
		go func() {
			defer wg.Done()
			cleanup.Start(ctx)
		}()
	}

	wg.Wait()
	return nil
}
