package notifications

import (
	"context"
	"log/slog"

	"agenda-backend/internal/models"
)

// Mailer sends the meeting e-mails. It returns the provider message id.
type Mailer interface {
	SendMeetingConfirmation(ctx context.Context, meeting models.Meeting, service models.Service) (string, error)
	SendMeetingReminder(ctx context.Context, meeting models.Meeting, service models.Service) (string, error)
	SendMeetingStatus(ctx context.Context, meeting models.Meeting, service models.Service) (string, error)
	SendAdminNotice(ctx context.Context, adminEmail string, meeting models.Meeting, service models.Service) (string, error)
}

// NewMailer returns the Brevo client when configured and a logging stand-in otherwise.
func NewMailer(client *BrevoClient, log *slog.Logger) Mailer {
	if client != nil {
		return client
	}
	return &LogMailer{Log: log}
}

// LogMailer records e-mails it would have sent.
type LogMailer struct {
	Log *slog.Logger
}

func (m *LogMailer) skip(kind, to string, meeting models.Meeting) (string, error) {
	if m.Log != nil {
		m.Log.Info("mail skipped: brevo not configured",
			slog.String("kind", kind),
			slog.String("to", to),
			slog.String("meeting_id", meeting.ID),
		)
	}
	return "", nil
}

func (m *LogMailer) SendMeetingConfirmation(ctx context.Context, meeting models.Meeting, service models.Service) (string, error) {
	return m.skip("confirmation", meeting.ClientEmail, meeting)
}

func (m *LogMailer) SendMeetingReminder(ctx context.Context, meeting models.Meeting, service models.Service) (string, error) {
	return m.skip("reminder", meeting.ClientEmail, meeting)
}

func (m *LogMailer) SendMeetingStatus(ctx context.Context, meeting models.Meeting, service models.Service) (string, error) {
	return m.skip("status", meeting.ClientEmail, meeting)
}

func (m *LogMailer) SendAdminNotice(ctx context.Context, adminEmail string, meeting models.Meeting, service models.Service) (string, error) {
	return m.skip("admin_notice", adminEmail, meeting)
}
