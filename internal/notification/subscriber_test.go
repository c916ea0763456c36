package notification

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Message(nil), m.sent...)
}

type fixture struct {
	repos   *repository.Repositories
	patient *model.Patient
	doctor  *model.Doctor
	mailer  *fakeMailer
	sub     *Subscriber
	broker  *messaging.MemoryBroker
}

func setup(t *testing.T, patientEmail string) *fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	f := &fixture{repos: memory.NewRepositories(), mailer: &fakeMailer{}, broker: messaging.NewMemoryBroker(8)}
	t.Cleanup(func() { _ = f.broker.Close() })

	f.patient = &model.Patient{Base: model.NewBase(now), Name: "Anita Joshi", Email: patientEmail}
	require.NoError(t, f.repos.Patients.Create(ctx, f.patient))
	f.doctor = &model.Doctor{Base: model.NewBase(now), Name: "Dr. Kulkarni", Available: true}
	require.NoError(t, f.repos.Doctors.Create(ctx, f.doctor))

	f.sub = NewSubscriber(f.broker, "clinic.events", f.mailer, f.repos, time.UTC, zerolog.Nop())
	return f
}

func message(t *testing.T, eventType string, payload interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(model.EventMessage{
		ID: uuid.New(), Type: eventType, AggregateID: uuid.New(), OccurredAt: time.Now(), Payload: body,
	})
	require.NoError(t, err)
	return raw
}

func (f *fixture) booked(t *testing.T) []byte {
	return message(t, model.EventAppointmentBooked, model.AppointmentEventPayload{
		AppointmentID:   uuid.New(),
		PatientID:       f.patient.ID,
		DoctorID:        f.doctor.ID,
		AppointmentTime: time.Date(2025, 8, 4, 11, 0, 0, 0, time.UTC),
		Status:          model.AppointmentStatusScheduled,
	})
}

func TestHandleAppointmentBooked(t *testing.T) {
	f := setup(t, "anita@example.com")

	require.NoError(t, f.sub.Handle(context.Background(), f.booked(t)))

	sent := f.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "anita@example.com", sent[0].To)
	assert.Equal(t, "Appointment confirmation", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Dr. Kulkarni")
	assert.Contains(t, sent[0].Body, "Mon 04 Aug 2025 11:00 UTC")
}

func TestHandleBillPaid(t *testing.T) {
	f := setup(t, "anita@example.com")
	method := "UPI"

	raw := message(t, model.EventBillPaid, model.BillEventPayload{
		BillID: uuid.New(), PatientID: f.patient.ID, Amount: "450.00",
		Status: model.BillStatusPaid, PaymentMethod: &method,
	})
	require.NoError(t, f.sub.Handle(context.Background(), raw))

	sent := f.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Payment receipt", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "450.00 (UPI)")
}

func TestHandleSkips(t *testing.T) {
	f := setup(t, "")
	ctx := context.Background()

	require.NoError(t, f.sub.Handle(ctx, f.booked(t)))
	require.NoError(t, f.sub.Handle(ctx, message(t, model.EventBillCreated, map[string]string{})))
	assert.Empty(t, f.mailer.messages())

	assert.Error(t, f.sub.Handle(ctx, []byte("{not json")))
	assert.Error(t, f.sub.Handle(ctx, message(t, model.EventAppointmentBooked, "not an object")))

	unknown := message(t, model.EventBillPaid, model.BillEventPayload{PatientID: uuid.New()})
	assert.Error(t, f.sub.Handle(ctx, unknown))
}

func TestRunDelivers(t *testing.T) {
	f := setup(t, "anita@example.com")

	raw := f.booked(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sub.Run(ctx) }()

	// publishes before Run subscribes are dropped, so keep publishing
	require.Eventually(t, func() bool {
		_ = f.broker.Publish(ctx, "clinic.events", raw)
		return len(f.mailer.messages()) > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestRunReportsSubscribeFailure(t *testing.T) {
	f := setup(t, "anita@example.com")
	require.NoError(t, f.broker.Close())

	assert.ErrorIs(t, f.sub.Run(context.Background()), messaging.ErrBrokerClosed)
}
