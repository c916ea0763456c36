// Package event records lifecycle changes in the outbox for the worker to
// publish.
package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Recorder never fails the caller: a lifecycle change that committed stays
// committed even if its event cannot be stored.
type Recorder interface {
	Record(ctx context.Context, eventType string, aggregateID uuid.UUID, payload interface{})
}

type OutboxRecorder struct {
	repo   repository.OutboxRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewOutboxRecorder(repo repository.OutboxRepository, logger zerolog.Logger) *OutboxRecorder {
	return &OutboxRecorder{
		repo:   repo,
		logger: logger.With().Str("component", "event_recorder").Logger(),
		now:    time.Now,
	}
}

func (r *OutboxRecorder) Record(ctx context.Context, eventType string, aggregateID uuid.UUID, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		return
	}

	evt := &model.OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     body,
		CreatedAt:   r.now().UTC(),
	}
	// The request may be cancelled right after the write it describes.
	if err := r.repo.Create(context.WithoutCancel(ctx), evt); err != nil {
		r.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("aggregate_id", aggregateID.String()).
			Msg("failed to record event")
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, string, uuid.UUID, interface{}) {}

// AppointmentPayload builds the event body for an appointment change.
func AppointmentPayload(a *model.Appointment, from model.AppointmentStatus) model.AppointmentEventPayload {
	return model.AppointmentEventPayload{
		AppointmentID:   a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		AppointmentTime: a.AppointmentTime,
		From:            from,
		Status:          a.Status,
	}
}

// BillPayload builds the event body for a bill change.
func BillPayload(b *model.Bill) model.BillEventPayload {
	return model.BillEventPayload{
		BillID:        b.ID,
		PatientID:     b.PatientID,
		AppointmentID: b.AppointmentID,
		Amount:        b.Amount.StringFixed(2),
		Status:        b.Status,
		PaymentMethod: b.PaymentMethod,
	}
}
