package alert_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/alert"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/httpclient"
)

func TestWebhookSink_SendsExpectedPayload(t *testing.T) {
	var received alert.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.Config{})
	sink := alert.NewWebhookSink(srv.URL, alert.SeverityInfo, client)

	n := alert.Notification{Reason: "hop_ceiling_exceeded", ClientIdentity: "1.2.3.4", Score: 0.9, Severity: alert.SeverityCritical}
	if err := sink.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if received.ClientIdentity != "1.2.3.4" {
		t.Fatalf("expected client identity to round-trip, got %q", received.ClientIdentity)
	}
}

func TestShouldSend_GatesOnMinSeverity(t *testing.T) {
	client := httpclient.New(httpclient.Config{})
	sink := alert.NewWebhookSink("http://example.invalid", alert.SeverityWarning, client)

	low := alert.Notification{Severity: alert.SeverityInfo}
	high := alert.Notification{Severity: alert.SeverityCritical}

	if alert.ShouldSend(sink, low) {
		t.Fatalf("expected info-severity notification to be gated out by a warning-minimum sink")
	}
	if !alert.ShouldSend(sink, high) {
		t.Fatalf("expected critical-severity notification to clear a warning-minimum sink")
	}
}

func TestDispatcher_ContinuesPastFailingSink(t *testing.T) {
	var secondCalled bool
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondCalled = true
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	client := httpclient.New(httpclient.Config{MaxRetries: 0})
	d := alert.NewDispatcher([]alert.Sink{
		alert.NewWebhookSink(failing.URL, alert.SeverityInfo, client),
		alert.NewWebhookSink(ok.URL, alert.SeverityInfo, client),
	})

	d.Dispatch(context.Background(), alert.Notification{Severity: alert.SeverityInfo})
	if !secondCalled {
		t.Fatalf("expected dispatcher to still call the second sink after the first failed")
	}
}
