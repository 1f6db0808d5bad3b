// Package reputation implements the optional IP-reputation lookup
// EscalationEngine consults in step 4: an HTTP backend returning a
// severity score for a client identity.
package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/httpclient"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
	"github.com/rhamenator/ai-scraping-defense-sub001/pkg/metrics"
)

// Client is the reputation backend contract. A disabled or absent client
// is represented by nil at the call site rather than a variant of this
// interface, matching the model package's "ok=false means absent" idiom
// instead of a second sentinel type.
type Client interface {
	Lookup(ctx context.Context, id identity.ClientIdentity) (severity float64, err error)
}

// HTTPClient is the production Client, backed by a single GET against a
// configured reputation backend.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
}

// Config carries the backend URL and API key (IP_REPUTATION_URL and
// IP_REPUTATION_API_KEY in the environment) and the request timeout.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func New(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		http:    httpclient.New(httpclient.Config{RequestTimeout: timeout}),
	}
}

type lookupResponse struct {
	Severity float64 `json:"severity"`
}

// Lookup queries the backend for id's severity, in [0,1].
func (c *HTTPClient) Lookup(ctx context.Context, id identity.ClientIdentity) (float64, error) {
	start := time.Now()
	severity, err := c.lookup(ctx, id)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ReputationLookupDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return severity, err
}

func (c *HTTPClient) lookup(ctx context.Context, id identity.ClientIdentity) (float64, error) {
	url := fmt.Sprintf("%s?ip=%s", c.baseURL, string(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("reputation: unexpected status %d", resp.StatusCode)
	}

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Severity, nil
}
