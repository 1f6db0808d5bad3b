// Package httpclient provides the outbound HTTP client wrapper: retry
// with exponential backoff via hashicorp/go-retryablehttp, layered with a
// per-host circuit breaker via sony/gobreaker. cmd/gateway builds one
// Client shared by the webhook and chat-webhook alert sinks and the
// community-reporting submitter; ModelAdapter's HTTP/LLM variants and the
// reputation backend client each build their own Client, and the mail
// alert sink does not use this package.
package httpclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/rhamenator/ai-scraping-defense-sub001/pkg/metrics"
)

// Config tunes retry and circuit-breaker behavior. Zero values fall back
// to retryablehttp's own defaults where sensible.
type Config struct {
	MaxRetries              int
	RetryWaitMin            time.Duration
	RetryWaitMax            time.Duration
	BreakerFailureThreshold uint32
	BreakerResetTimeout     time.Duration
	RequestTimeout          time.Duration
}

// Client wraps a retryablehttp.Client with a per-host gobreaker pool.
type Client struct {
	rc       *retryablehttp.Client
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	cfg      Config
}

func New(cfg Config) *Client {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	if cfg.MaxRetries > 0 {
		rc.RetryMax = cfg.MaxRetries
	}
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.RequestTimeout > 0 {
		rc.HTTPClient.Timeout = cfg.RequestTimeout
	}
	rc.CheckRetry = retryablehttp.DefaultRetryPolicy

	return &Client{rc: rc, breakers: make(map[string]*gobreaker.CircuitBreaker), cfg: cfg}
}

func (c *Client) breakerFor(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[host]; ok {
		return b
	}
	threshold := c.cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	reset := c.cfg.BreakerResetTimeout
	if reset == 0 {
		reset = 30 * time.Second
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    host,
		Timeout: reset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerStateTotal.WithLabelValues(name, to.String()).Inc()
			log.Warn().Str("host", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit_breaker_state_change")
		},
	})
	c.breakers[host] = b
	return b
}

// Do sends req through the per-host circuit breaker and the retrying
// transport underneath it.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	breaker := c.breakerFor(req.URL.Host)
	result, err := breaker.Execute(func() (any, error) {
		rreq, err := retryablehttp.FromRequest(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		resp, err := c.rc.Do(rreq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, errStatusCode(resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

type errStatusCode int

func (e errStatusCode) Error() string {
	return http.StatusText(int(e))
}
