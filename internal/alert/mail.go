package alert

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// MailSink delivers via SendGrid's transactional mail API.
type MailSink struct {
	from        string
	to          string
	minSeverity Severity
	client      *sendgrid.Client
}

func NewMailSink(apiKey, from, to string, minSeverity Severity) *MailSink {
	return &MailSink{
		from:        from,
		to:          to,
		minSeverity: minSeverity,
		client:      sendgrid.NewSendClient(apiKey),
	}
}

func (s *MailSink) MinSeverity() Severity { return s.minSeverity }
func (s *MailSink) Kind() string          { return "mail" }

func (s *MailSink) Send(ctx context.Context, n Notification) error {
	from := mail.NewEmail("AI Scraping Defense", s.from)
	to := mail.NewEmail("", s.to)
	subject := fmt.Sprintf("[%s] scraping defense alert: %s", severityLabel(n.Severity), n.Reason)
	body := fmt.Sprintf("Client %s was escalated (score %.2f) for: %s", n.ClientIdentity, n.Score, n.Reason)

	m := mail.NewSingleEmail(from, subject, to, body, "")
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("alert: sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("alert: sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
