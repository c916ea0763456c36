package memory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type outboxRepository struct {
	s *Store
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}
	if len(event.Payload) == 0 {
		return errors.New("event payload cannot be empty")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.Status = model.OutboxStatusPending

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *event
	r.s.outbox = append(r.s.outbox, &stored)
	return nil
}

// ProcessPending snapshots the pending batch and hands copies to fn without
// holding the store lock, so handlers may call back into the store.
func (r *outboxRepository) ProcessPending(
	ctx context.Context,
	limit, maxAttempts int,
	fn func(ctx context.Context, event *model.OutboxEvent) error,
) (int, error) {
	r.s.mu.RLock()
	batch := make([]model.OutboxEvent, 0, limit)
	for _, e := range r.s.outbox {
		if len(batch) == limit {
			break
		}
		if e.Status == model.OutboxStatusPending {
			batch = append(batch, *e)
		}
	}
	r.s.mu.RUnlock()

	processed := 0
	for i := range batch {
		event := batch[i]
		handleErr := fn(ctx, &event)

		r.s.mu.Lock()
		stored := r.s.findOutbox(event.ID)
		if stored != nil {
			if handleErr == nil {
				now := time.Now().UTC()
				stored.Status = model.OutboxStatusProcessed
				stored.ProcessedAt = &now
				stored.ErrorMessage = nil
				processed++
			} else {
				msg := handleErr.Error()
				stored.RetryCount++
				stored.ErrorMessage = &msg
				if stored.RetryCount >= maxAttempts {
					stored.Status = model.OutboxStatusFailed
				}
			}
		}
		r.s.mu.Unlock()
	}
	return processed, nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.outbox[:0]
	var removed int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return removed, nil
}

// Events returns a copy of the outbox, oldest first.
func (s *Store) Events() []model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, *e)
	}
	return out
}

func (s *Store) findOutbox(id uuid.UUID) *model.OutboxEvent {
	for _, e := range s.outbox {
		if e.ID == id {
			return e
		}
	}
	return nil
}
