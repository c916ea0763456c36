// Package notification emails patients about lifecycle events relayed by the
// outbox worker.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

const timeLayout = "Mon 02 Jan 2006 15:04 MST"

type Subscriber struct {
	broker   messaging.Broker
	channel  string
	mailer   email.Service
	patients repository.PatientRepository
	doctors  repository.DoctorRepository
	loc      *time.Location
	logger   zerolog.Logger
}

func NewSubscriber(
	broker messaging.Broker,
	channel string,
	mailer email.Service,
	repos *repository.Repositories,
	loc *time.Location,
	logger zerolog.Logger,
) *Subscriber {
	if loc == nil {
		loc = time.UTC
	}
	return &Subscriber{
		broker:   broker,
		channel:  channel,
		mailer:   mailer,
		patients: repos.Patients,
		doctors:  repos.Doctors,
		loc:      loc,
		logger:   logger.With().Str("component", "notification_subscriber").Logger(),
	}
}

// Run consumes the event channel until ctx is cancelled. A failed notice is
// logged and skipped; the event stays processed in the outbox.
func (s *Subscriber) Run(ctx context.Context) error {
	messages, err := s.broker.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	s.logger.Info().Str("channel", s.channel).Msg("notification subscriber started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-messages:
			if !ok {
				return nil
			}
			if err := s.Handle(ctx, raw); err != nil {
				s.logger.Error().Err(err).Msg("failed to send notification")
			}
		}
	}
}

// Handle sends the notice for one broker message, if its type has one.
func (s *Subscriber) Handle(ctx context.Context, raw []byte) error {
	var msg model.EventMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}

	switch msg.Type {
	case model.EventAppointmentBooked:
		var p model.AppointmentEventPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
		}
		return s.appointmentBooked(ctx, &p)
	case model.EventBillPaid:
		var p model.BillEventPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
		}
		return s.billPaid(ctx, &p)
	}
	return nil
}

func (s *Subscriber) appointmentBooked(ctx context.Context, p *model.AppointmentEventPayload) error {
	patient, err := s.patients.Get(ctx, p.PatientID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(patient.Email) == "" {
		s.logger.Debug().Str("patient_id", patient.ID.String()).Msg("patient has no email, notice skipped")
		return nil
	}

	doctorName := "your doctor"
	if doctor, err := s.doctors.Get(ctx, p.DoctorID); err == nil {
		doctorName = doctor.Name
	}

	body := fmt.Sprintf(
		"Dear %s,\n\nYour appointment with %s is booked for %s.\n\nReference: %s\n",
		patient.Name, doctorName, p.AppointmentTime.In(s.loc).Format(timeLayout), p.AppointmentID,
	)
	return s.mailer.Send(ctx, email.Message{
		To:      patient.Email,
		Subject: "Appointment confirmation",
		Body:    body,
	})
}

func (s *Subscriber) billPaid(ctx context.Context, p *model.BillEventPayload) error {
	patient, err := s.patients.Get(ctx, p.PatientID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(patient.Email) == "" {
		s.logger.Debug().Str("patient_id", patient.ID.String()).Msg("patient has no email, notice skipped")
		return nil
	}

	method := "unspecified"
	if p.PaymentMethod != nil {
		method = *p.PaymentMethod
	}
	body := fmt.Sprintf(
		"Dear %s,\n\nWe received your payment of %s (%s).\n\nBill: %s\n",
		patient.Name, p.Amount, method, p.BillID,
	)
	return s.mailer.Send(ctx, email.Message{
		To:      patient.Email,
		Subject: "Payment receipt",
		Body:    body,
	})
}
