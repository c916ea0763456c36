package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), Config{URL: "redis://" + mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, 2, client.Options().PoolSize)

	_, err = Connect(context.Background(), Config{URL: "://bad"})
	assert.Error(t, err)
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := NewRedisBroker(client, zerolog.Nop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := b.Subscribe(ctx, "clinic.events")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "clinic.events", []byte(`{"type":"appointment.booked"}`)))

	select {
	case msg := <-msgs:
		assert.JSONEq(t, `{"type":"appointment.booked"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}

func TestRedisBrokerPublishFailsWhenDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	b := NewRedisBroker(client, zerolog.Nop())
	mr.Close()

	err := b.Publish(context.Background(), "clinic.events", []byte("x"))
	assert.Error(t, err)
}
