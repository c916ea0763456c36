package lock

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// localLocker is the single-process fallback used when Redis is disabled.
type localLocker struct {
	mu    sync.Mutex
	store *cache.Cache
	opts  Options
}

func NewLocalLocker(opts Options) Locker {
	opts = opts.withDefaults()
	return &localLocker{
		store: cache.New(opts.TTL, 2*opts.TTL),
		opts:  opts,
	}
}

func (l *localLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	err := acquire(ctx, l.opts, func(context.Context) (bool, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		// Add fails while an unexpired entry exists.
		return l.store.Add(key, token, l.opts.TTL) == nil, nil
	})
	if err != nil {
		return err
	}
	defer l.release(key, token)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.opts.TTL)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *localLocker) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.store.Get(key); ok && v.(string) == token {
		l.store.Delete(key)
	}
}
