package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clinic-scheduler/internal/model"
	"clinic-scheduler/internal/scheduling"
)

var allEvents = []scheduling.Event{
	scheduling.EventCreated,
	scheduling.EventCancelled,
	scheduling.EventCompleted,
	scheduling.EventNoShow,
}

// AuditListener writes one log line per event. Nothing depends on it.
func AuditListener(log zerolog.Logger) Listener {
	on := make(map[scheduling.Event]HandlerFunc, len(allEvents))
	for _, ev := range allEvents {
		ev := ev
		on[ev] = func(_ context.Context, a model.Appointment) error {
			log.Info().
				Str("event", string(ev)).
				Str("appointment_id", a.ID).
				Str("patient_id", a.PatientID).
				Str("doctor_id", a.DoctorID).
				Time("date", a.Date).
				Str("status", string(a.Status)).
				Msgf("appointment %s", ev)
			return nil
		}
	}
	return Listener{Name: "audit", On: on}
}

// EmailSender delivers one message. The real transport lives outside this
// service.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// LogSender "delivers" by logging, the default when no transport is wired.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	s.Log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

type template struct {
	Subject string
	Body    string
}

var emailTemplates = map[scheduling.Event]template{
	scheduling.EventCreated: {
		Subject: "Appointment confirmed for {{date}}",
		Body:    "Hello {{name}}, the appointment between {{patient}} and Dr. {{doctor}} on {{date}} at {{time}} is confirmed.",
	},
	scheduling.EventCancelled: {
		Subject: "Appointment on {{date}} cancelled",
		Body:    "Hello {{name}}, the appointment between {{patient}} and Dr. {{doctor}} on {{date}} at {{time}} has been cancelled.",
	},
	scheduling.EventCompleted: {
		Subject: "Appointment on {{date}} completed",
		Body:    "Hello {{name}}, the appointment between {{patient}} and Dr. {{doctor}} on {{date}} at {{time}} has been marked as completed.",
	},
	scheduling.EventNoShow: {
		Subject: "Missed appointment on {{date}}",
		Body:    "Hello {{name}}, the appointment between {{patient}} and Dr. {{doctor}} on {{date}} at {{time}} was recorded as a no-show.",
	},
}

func render(t template, data map[string]string) (string, string) {
	subject, body := t.Subject, t.Body
	for k, v := range data {
		ph := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, ph, v)
		body = strings.ReplaceAll(body, ph, v)
	}
	return subject, body
}

// EmailListener mails both the patient and the doctor on every lifecycle
// event. Every recipient is attempted; failures are joined into the result.
func EmailListener(sender EmailSender, loc *time.Location) Listener {
	if loc == nil {
		loc = time.UTC
	}
	on := make(map[scheduling.Event]HandlerFunc, len(emailTemplates))
	for ev, tpl := range emailTemplates {
		tpl := tpl
		on[ev] = func(ctx context.Context, a model.Appointment) error {
			if a.Patient == nil || a.Doctor == nil {
				return fmt.Errorf("appointment %s: participants not resolved", a.ID)
			}
			local := a.Date.In(loc)
			data := map[string]string{
				"patient": a.Patient.Name,
				"doctor":  a.Doctor.Name,
				"date":    local.Format("2006-01-02"),
				"time":    local.Format("15:04"),
			}
			var errs []error
			for _, to := range []*model.UserSummary{a.Patient, a.Doctor} {
				if to.Email == "" {
					continue
				}
				data["name"] = to.Name
				subject, body := render(tpl, data)
				if err := sender.SendEmail(ctx, to.Email, subject, body); err != nil {
					errs = append(errs, fmt.Errorf("email %s: %w", to.Email, err))
				}
			}
			return errors.Join(errs...)
		}
	}
	return Listener{Name: "email", On: on}
}
