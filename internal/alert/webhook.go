package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/httpclient"
)

// WebhookSink posts a plain JSON body to a generic webhook receiver.
type WebhookSink struct {
	url         string
	minSeverity Severity
	client      *httpclient.Client
}

func NewWebhookSink(url string, minSeverity Severity, client *httpclient.Client) *WebhookSink {
	return &WebhookSink{url: url, minSeverity: minSeverity, client: client}
}

func (s *WebhookSink) MinSeverity() Severity { return s.minSeverity }
func (s *WebhookSink) Kind() string          { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert: webhook sink returned status %d", resp.StatusCode)
	}
	return nil
}

// ChatWebhookSink posts a Slack/Discord/Teams-style "{text: ...}" payload.
type ChatWebhookSink struct {
	url         string
	minSeverity Severity
	client      *httpclient.Client
}

func NewChatWebhookSink(url string, minSeverity Severity, client *httpclient.Client) *ChatWebhookSink {
	return &ChatWebhookSink{url: url, minSeverity: minSeverity, client: client}
}

func (s *ChatWebhookSink) MinSeverity() Severity { return s.minSeverity }
func (s *ChatWebhookSink) Kind() string          { return "chat_webhook" }

type chatPayload struct {
	Text string `json:"text"`
}

func (s *ChatWebhookSink) Send(ctx context.Context, n Notification) error {
	text := fmt.Sprintf("[%s] suspicious client %s — reason=%s score=%.2f at %s",
		severityLabel(n.Severity), n.ClientIdentity, n.Reason, n.Score, time.Now().UTC().Format(time.RFC3339))

	body, err := json.Marshal(chatPayload{Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert: chat webhook sink returned status %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s Severity) string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityWarning:
		return "WARNING"
	default:
		return "INFO"
	}
}
