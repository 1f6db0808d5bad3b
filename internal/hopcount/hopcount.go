// Package hopcount implements HopCounter: a per-identity tarpit-hit
// counter with a rolling window and a ceiling. A single call to
// IncrementAndCheck tells the caller whether the post-increment value
// strictly exceeds the ceiling — ties at the ceiling are "not yet
// exceeded", matching the spec's invariant that the strict > comparison
// drives the 403 trigger.
package hopcount

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/window"
)

const keyPrefix = "hop:"

// Counter is the HopCounter contract.
type Counter struct {
	win        *window.Counter
	windowSize time.Duration
	maxHops    int
}

// New builds a HopCounter. A non-positive maxHops or windowSize disables
// enforcement: IsExceeded always reports false.
func New(rdb *redis.Client, windowSize time.Duration, maxHops int) *Counter {
	return &Counter{
		win:        window.New(rdb, keyPrefix),
		windowSize: windowSize,
		maxHops:    maxHops,
	}
}

func (c *Counter) Enabled() bool {
	return c.maxHops > 0 && c.windowSize > 0
}

// IncrementAndCheck increments the per-identity hop count and reports
// whether it now strictly exceeds the configured ceiling.
func (c *Counter) IncrementAndCheck(ctx context.Context, id identity.ClientIdentity) (count int64, exceeded bool, err error) {
	if !c.Enabled() {
		return 0, false, nil
	}
	count, err = c.win.Increment(ctx, string(id), c.windowSize)
	if err != nil {
		return 0, false, err
	}
	return count, count > int64(c.maxHops), nil
}

// IsExceeded peeks at the current count without incrementing.
func (c *Counter) IsExceeded(ctx context.Context, id identity.ClientIdentity) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	n, err := c.win.Peek(ctx, string(id))
	if err != nil {
		return false, err
	}
	return n > int64(c.maxHops), nil
}

func (c *Counter) Reset(ctx context.Context, id identity.ClientIdentity) error {
	return c.win.Reset(ctx, string(id))
}
