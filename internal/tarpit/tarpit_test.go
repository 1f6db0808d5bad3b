package tarpit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/markov"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/tarpit"
)

// fakeHopEnforcer simulates HopCounter's ceiling semantics in memory, so
// this package's tests don't need a live Redis instance.
type fakeHopEnforcer struct {
	ceiling int64
	counts  map[identity.ClientIdentity]int64
}

func newFakeHopEnforcer(ceiling int64) *fakeHopEnforcer {
	return &fakeHopEnforcer{ceiling: ceiling, counts: map[identity.ClientIdentity]int64{}}
}

func (f *fakeHopEnforcer) IncrementAndCheck(ctx context.Context, id identity.ClientIdentity) (int64, bool, error) {
	f.counts[id]++
	n := f.counts[id]
	return n, n > f.ceiling, nil
}

type fakeBlocklist struct{ blocked map[identity.ClientIdentity]bool }

func (f *fakeBlocklist) IsBlocked(ctx context.Context, id identity.ClientIdentity) bool {
	return f.blocked[id]
}
func (f *fakeBlocklist) Block(ctx context.Context, id identity.ClientIdentity, ttl time.Duration) error {
	f.blocked[id] = true
	return nil
}
func (f *fakeBlocklist) Unblock(ctx context.Context, id identity.ClientIdentity) error {
	delete(f.blocked, id)
	return nil
}
func (f *fakeBlocklist) TTLRemaining(ctx context.Context, id identity.ClientIdentity) (time.Duration, bool) {
	return 0, false
}

func TestServeHTTP_StreamsGeneratedContentWithoutHopCounter(t *testing.T) {
	gen := markov.NewGenerator(nil, markov.GeneratorConfig{})
	svc := tarpit.New(tarpit.Config{SystemSeed: "seed", MinDelay: 0, MaxDelay: time.Microsecond}, nil, nil, gen, nil)

	r := httptest.NewRequest(http.MethodGet, "/tarpit/articles/foo", nil)
	w := httptest.NewRecorder()

	svc.ServeHTTP(w, r, "1.2.3.4")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Fatalf("expected a non-empty streamed body")
	}
}

func TestServeHTTP_HopCeilingExceededBlocksAndRejects(t *testing.T) {
	hops := newFakeHopEnforcer(1)
	bl := &fakeBlocklist{blocked: map[identity.ClientIdentity]bool{}}
	gen := markov.NewGenerator(nil, markov.GeneratorConfig{})
	svc := tarpit.New(tarpit.Config{SystemSeed: "seed"}, hops, bl, gen, nil)

	r := httptest.NewRequest(http.MethodGet, "/tarpit/x", nil)

	// First hit: within ceiling.
	svc.ServeHTTP(httptest.NewRecorder(), r, "5.5.5.5")
	// Second hit: exceeds the ceiling of 1.
	w := httptest.NewRecorder()
	svc.ServeHTTP(w, r, "5.5.5.5")

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 once the hop ceiling is exceeded, got %d", w.Code)
	}
	if !bl.blocked["5.5.5.5"] {
		t.Fatalf("expected client to be blocklisted after exceeding the hop ceiling")
	}
}
