package bootstrap

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	redisbroker "github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	repos, closeFn, err := OpenStore(ctx, config.DatabaseConfig{Driver: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, repos.Patients)
	assert.NoError(t, repos.Health.Ping(ctx))
	assert.NoError(t, closeFn())

	_, _, err = OpenStore(ctx, config.DatabaseConfig{Driver: "sqlite"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestRedisBackedComponents(t *testing.T) {
	ctx := context.Background()

	client, err := OpenRedis(ctx, config.RedisConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, client)
	ran := false
	require.NoError(t, Locker(nil, config.SchedulingConfig{}).WithLock(ctx, "k", func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
	assert.IsType(t, &messaging.MemoryBroker{}, Broker(nil, zerolog.Nop()))

	mr := miniredis.RunT(t)
	client, err = OpenRedis(ctx, config.RedisConfig{Enabled: true, URL: "redis://" + mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	locker := Locker(client, config.SchedulingConfig{LockTTL: time.Second})
	require.NoError(t, locker.WithLock(ctx, "booking:x", func(context.Context) error {
		assert.True(t, mr.Exists("lock:booking:x"))
		return nil
	}))
	assert.False(t, mr.Exists("lock:booking:x"))
	assert.IsType(t, &redisbroker.RedisBroker{}, Broker(client, zerolog.Nop()))
}

func TestMailerFallsBackToLogging(t *testing.T) {
	assert.NotNil(t, Mailer(config.SMTPConfig{}, zerolog.Nop()))
	assert.NotNil(t, Mailer(config.SMTPConfig{Enabled: true, Host: "localhost", Port: 2525, From: "a@b.co"}, zerolog.Nop()))
}

func TestRunEventPipelineRelaysOutbox(t *testing.T) {
	store := memory.NewStore()
	repos := store.Repositories()
	broker := messaging.NewMemoryBroker(16)
	t.Cleanup(func() { _ = broker.Close() })

	cfg := &config.Config{
		Outbox: config.OutboxConfig{
			BatchSize:     10,
			PollInterval:  10 * time.Millisecond,
			RetryAttempts: 2,
			Channel:       "clinic.events",
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	received, err := broker.Subscribe(ctx, cfg.Outbox.Channel)
	require.NoError(t, err)

	aggregate := uuid.New()
	event.NewOutboxRecorder(repos.Outbox, zerolog.Nop()).
		Record(ctx, model.EventBillCreated, aggregate, map[string]string{"bill_id": aggregate.String()})

	done := make(chan error, 1)
	go func() { done <- RunEventPipeline(ctx, cfg, repos, broker, metrics.NewNop(), zerolog.Nop()) }()

	select {
	case raw := <-received:
		var msg model.EventMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, model.EventBillCreated, msg.Type)
		assert.Equal(t, aggregate, msg.AggregateID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not relayed")
	}

	require.Eventually(t, func() bool {
		events := store.Events()
		return len(events) == 1 && events[0].Status == model.OutboxStatusProcessed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
}
