package alert

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/httpclient"
	"github.com/rhamenator/ai-scraping-defense-sub001/pkg/metrics"
)

// SinkConfig mirrors config.AlertSink; defined here rather than imported
// to keep this package free of a dependency on the config package.
type SinkConfig struct {
	Kind           string
	URL            string
	MinSeverity    string
	MailFrom       string
	MailTo         string
	SendgridAPIKey string
}

// Build constructs a Sink from cfg. Unrecognized kinds are rejected at
// startup rather than silently ignored, since a misconfigured sink would
// otherwise fail every alert dispatch with no diagnostic.
func Build(cfg SinkConfig, client *httpclient.Client) (Sink, error) {
	sev := ParseSeverity(cfg.MinSeverity)
	switch cfg.Kind {
	case "webhook":
		return NewWebhookSink(cfg.URL, sev, client), nil
	case "chat_webhook":
		return NewChatWebhookSink(cfg.URL, sev, client), nil
	case "mail":
		return NewMailSink(cfg.SendgridAPIKey, cfg.MailFrom, cfg.MailTo, sev), nil
	default:
		return nil, fmt.Errorf("alert: unrecognized sink kind %q", cfg.Kind)
	}
}

// Dispatcher fans a single Notification out to every configured sink
// whose severity gate it clears. Each sink's failure is logged
// independently and never blocks the others.
type Dispatcher struct {
	sinks []Sink
}

func NewDispatcher(sinks []Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	for _, sink := range d.sinks {
		if !ShouldSend(sink, n) {
			continue
		}
		if err := sink.Send(ctx, n); err != nil {
			metrics.AlertsDispatchedTotal.WithLabelValues(sink.Kind(), "error").Inc()
			log.Error().Err(err).Str("client", n.ClientIdentity).Msg("alert_sink_dispatch_failed")
			continue
		}
		metrics.AlertsDispatchedTotal.WithLabelValues(sink.Kind(), "ok").Inc()
	}
}
