// Package model implements ModelAdapter: a uniform classify interface over
// pluggable scoring backends, selected at construction time by the scheme
// of a configured URI.
package model

import (
	"context"
	"time"
)

// Adapter is the uniform ModelAdapter contract. Absent returns ok=false
// rather than an error — a missing or disabled model is not a failure
// condition for EscalationEngine, which simply omits the model term.
type Adapter interface {
	Classify(ctx context.Context, features map[string]float64) (score float64, ok bool, err error)
	Close() error
}

// Config carries the construction parameters shared by every variant.
type Config struct {
	URI         string
	Timeout     time.Duration
	InitRetries int
	InitDelay   time.Duration
}

// New builds an Adapter from cfg.URI's scheme, retrying construction up to
// InitRetries times with InitDelay between attempts. On permanent failure
// it returns a heuristicOnly adapter rather than an error, per §4.8:
// "on permanent failure the adapter returns absent and the engine
// continues."
func New(cfg Config) Adapter {
	if cfg.InitRetries <= 0 {
		cfg.InitRetries = 1
	}
	var lastErr error
	for attempt := 0; attempt < cfg.InitRetries; attempt++ {
		a, err := build(cfg)
		if err == nil {
			return a
		}
		lastErr = err
		if cfg.InitDelay > 0 && attempt < cfg.InitRetries-1 {
			time.Sleep(cfg.InitDelay)
		}
	}
	_ = lastErr
	return heuristicOnly{}
}

// heuristicOnly is the sentinel "absent" variant: it never produces a
// model score, so EscalationEngine's combine step falls back to its
// heuristic-plus-reputation form.
type heuristicOnly struct{}

func (heuristicOnly) Classify(context.Context, map[string]float64) (float64, bool, error) {
	return 0, false, nil
}
func (heuristicOnly) Close() error { return nil }
