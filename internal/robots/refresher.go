package robots

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Refresher owns a RuleSet read from a filesystem artifact and refreshes
// it on a cadence. Readers call Current() and hold the returned snapshot
// for the duration of a request; the refresh itself builds a brand new
// RuleSet off to the side and only then swaps the pointer, so a reader
// never observes a half-built ruleset.
type Refresher struct {
	path     string
	interval time.Duration
	current  atomic.Pointer[RuleSet]
	stop     chan struct{}
}

// NewRefresher performs the first load synchronously (so the service
// never serves its first request with an empty ruleset by surprise) and
// then starts the background refresh loop.
func NewRefresher(path string, interval time.Duration) *Refresher {
	r := &Refresher{path: path, interval: interval, stop: make(chan struct{})}
	r.loadOnce()
	if interval > 0 {
		go r.loop()
	}
	return r
}

// NewFromString builds a Refresher over a fixed in-memory document rather
// than a filesystem path — used by tests and by callers that embed a
// default robots document rather than shipping a file.
func NewFromString(doc string, interval time.Duration) (*Refresher, error) {
	rs, err := ParseString(doc)
	if err != nil {
		return nil, err
	}
	r := &Refresher{interval: interval, stop: make(chan struct{})}
	r.current.Store(rs)
	return r, nil
}

func (r *Refresher) loadOnce() {
	rs, err := r.load()
	if err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("robots_load_failed_using_empty")
		rs = Empty()
	}
	r.current.Store(rs)
}

func (r *Refresher) load() (*RuleSet, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func (r *Refresher) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Reload()
		}
	}
}

// Reload forces an out-of-cadence refresh (used by the admin endpoint).
// Identical bytes produce an observationally identical ruleset, so we
// skip the atomic swap entirely when nothing changed.
func (r *Refresher) Reload() {
	rs, err := r.load()
	if err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("robots_reload_failed")
		return
	}
	if prev := r.current.Load(); prev != nil && prev.Raw() == rs.Raw() {
		return
	}
	r.current.Store(rs)
	log.Info().Str("path", r.path).Int("rules", len(rs.Rules())).Msg("robots_reloaded")
}

// Current returns the live snapshot.
func (r *Refresher) Current() *RuleSet {
	if rs := r.current.Load(); rs != nil {
		return rs
	}
	return Empty()
}

func (r *Refresher) Close() {
	close(r.stop)
}
