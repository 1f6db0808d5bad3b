package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/httpclient"
	"github.com/rhamenator/ai-scraping-defense-sub001/pkg/metrics"
)

// httpAdapter POSTs {"features": {...}} and reads a numeric "score" field.
type httpAdapter struct {
	url     string
	timeout time.Duration
	client  *httpclient.Client
}

func newHTTPAdapter(url string, timeout time.Duration) (Adapter, error) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &httpAdapter{url: url, timeout: timeout, client: httpclient.New(httpclient.Config{RequestTimeout: timeout})}, nil
}

type httpAdapterRequest struct {
	Features map[string]float64 `json:"features"`
}

type httpAdapterResponse struct {
	Score float64 `json:"score"`
}

func (a *httpAdapter) Classify(ctx context.Context, features map[string]float64) (float64, bool, error) {
	start := time.Now()
	score, ok, err := a.classify(ctx, features)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ModelClassifyDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return score, ok, err
}

func (a *httpAdapter) classify(ctx context.Context, features map[string]float64) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(httpAdapterRequest{Features: features})
	if err != nil {
		return 0, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("model: unexpected status %d", resp.StatusCode)
	}

	var out httpAdapterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, false, err
	}
	return clamp01(out.Score), true, nil
}

func (a *httpAdapter) Close() error { return nil }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
