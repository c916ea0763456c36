package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
)

type failingOutbox struct {
	repository.OutboxRepository
}

func (failingOutbox) Create(context.Context, *model.OutboxEvent) error {
	return errors.New("outbox unavailable")
}

func TestOutboxRecorderStoresPendingEvent(t *testing.T) {
	store := memory.NewStore()
	rec := NewOutboxRecorder(store.Repositories().Outbox, zerolog.Nop())
	at := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return at }

	apt := &model.Appointment{
		Base:            model.NewBase(at),
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		AppointmentTime: at.Add(time.Hour),
		Status:          model.AppointmentStatusConfirmed,
	}

	// a cancelled request still gets its event written
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Record(ctx, model.EventAppointmentStatusChanged, apt.ID, AppointmentPayload(apt, model.AppointmentStatusScheduled))

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAppointmentStatusChanged, events[0].EventType)
	assert.Equal(t, apt.ID, events[0].AggregateID)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)
	assert.Equal(t, at, events[0].CreatedAt)

	var payload model.AppointmentEventPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, model.AppointmentStatusScheduled, payload.From)
	assert.Equal(t, model.AppointmentStatusConfirmed, payload.Status)
	assert.Equal(t, apt.DoctorID, payload.DoctorID)
}

func TestOutboxRecorderSwallowsFailures(t *testing.T) {
	var buf bytes.Buffer
	rec := NewOutboxRecorder(failingOutbox{}, zerolog.New(&buf))

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), model.EventBillCreated, uuid.New(), map[string]string{"k": "v"})
	})
	assert.Contains(t, buf.String(), "failed to record event")

	buf.Reset()
	rec.Record(context.Background(), model.EventBillCreated, uuid.New(), make(chan int))
	assert.Contains(t, buf.String(), "failed to marshal event payload")
}

func TestBillPayload(t *testing.T) {
	method := "CARD"
	aptID := uuid.New()
	b := &model.Bill{
		Base:          model.NewBase(time.Now()),
		PatientID:     uuid.New(),
		AppointmentID: &aptID,
		Amount:        decimal.RequireFromString("99.5"),
		Status:        model.BillStatusPaid,
		PaymentMethod: &method,
	}

	p := BillPayload(b)
	assert.Equal(t, "99.50", p.Amount)
	assert.Equal(t, &aptID, p.AppointmentID)
	assert.Equal(t, model.BillStatusPaid, p.Status)
	assert.Equal(t, "CARD", *p.PaymentMethod)
}
