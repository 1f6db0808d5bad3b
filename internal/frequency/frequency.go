// Package frequency implements FrequencyTracker: a per-identity sliding
// window counter used by the escalation scoring pipeline. Semantics are
// identical to HopCounter's window but there is no enforcement action —
// the count only ever feeds a heuristic bonus.
package frequency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/window"
)

const keyPrefix = "freq:"

type Tracker struct {
	win        *window.Counter
	windowSize time.Duration
}

func New(rdb *redis.Client, windowSize time.Duration) *Tracker {
	return &Tracker{win: window.New(rdb, keyPrefix), windowSize: windowSize}
}

// Increment bumps the per-identity counter and returns the new count.
func (t *Tracker) Increment(ctx context.Context, id identity.ClientIdentity) (int64, error) {
	if t.windowSize <= 0 {
		return 0, nil
	}
	return t.win.Increment(ctx, string(id), t.windowSize)
}

func (t *Tracker) Peek(ctx context.Context, id identity.ClientIdentity) (int64, error) {
	return t.win.Peek(ctx, string(id))
}
