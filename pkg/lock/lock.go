package lock

import (
	"context"
	"errors"
	"time"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker guards a critical section per key. fn runs only while the key is
// held by this caller.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type Options struct {
	// TTL bounds how long a crashed holder can keep the key.
	TTL time.Duration
	// Wait is how long to keep retrying acquisition before giving up.
	Wait time.Duration
	// RetryInterval is the pause between acquisition attempts.
	RetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Second
	}
	if o.Wait < 0 {
		o.Wait = 0
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 25 * time.Millisecond
	}
	return o
}

// acquire polls try until it succeeds, fails, or the wait budget runs out.
func acquire(ctx context.Context, opts Options, try func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(opts.Wait)
	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrLockNotAcquired
		}

		timer := time.NewTimer(opts.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
