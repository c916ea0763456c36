package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const outboxColumns = `id, event_type, aggregate_id, payload, status, error_message,
	retry_count, created_at, processed_at`

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

	query := `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.EventType, event.AggregateID, []byte(event.Payload), event.Status, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// ProcessPending runs inside one transaction so the row locks taken by
// SKIP LOCKED hold until each event's outcome is written.
func (r *outboxRepository) ProcessPending(
	ctx context.Context,
	limit, maxAttempts int,
	fn func(ctx context.Context, event *model.OutboxEvent) error,
) (int, error) {
	processed := 0
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			SELECT ` + outboxColumns + `
			FROM outbox_events
			WHERE status = 'PENDING'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`
		events := []*model.OutboxEvent{}
		if err := tx.SelectContext(ctx, &events, query, limit); err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}

		for _, event := range events {
			if handleErr := fn(ctx, event); handleErr != nil {
				if err := r.recordFailure(ctx, tx, event, handleErr, maxAttempts); err != nil {
					return err
				}
				continue
			}

			_, err := tx.ExecContext(ctx,
				`UPDATE outbox_events SET status = 'PROCESSED', processed_at = NOW(), error_message = NULL WHERE id = $1`,
				event.ID)
			if err != nil {
				return fmt.Errorf("failed to mark event processed: %w", err)
			}
			processed++
		}
		return nil
	})
	return processed, err
}

func (r *outboxRepository) recordFailure(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent, cause error, maxAttempts int) error {
	status := model.OutboxStatusPending
	if event.RetryCount+1 >= maxAttempts {
		status = model.OutboxStatusFailed
	}
	msg := cause.Error()

	_, err := tx.ExecContext(ctx,
		`UPDATE outbox_events SET status = $1, error_message = $2, retry_count = retry_count + 1 WHERE id = $3`,
		status, msg, event.ID)
	if err != nil {
		return fmt.Errorf("failed to record event failure: %w", err)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = 'PROCESSED' AND processed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}
