// Package tarpit implements TarpitService: hop-ceiling enforcement, async
// escalation emit, deterministic content generation, and slow chunked
// streaming for requests the edge classifier has diverted.
package tarpit

import (
	"context"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/blocklist"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/edge"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/escalation"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/fingerprint"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/markov"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/reqmeta"
	"github.com/rhamenator/ai-scraping-defense-sub001/pkg/metrics"
)

// HopEnforcer is the narrow HopCounter contract TarpitService depends on.
// hopcount.Counter satisfies it; tests substitute an in-memory fake.
type HopEnforcer interface {
	IncrementAndCheck(ctx context.Context, id identity.ClientIdentity) (count int64, exceeded bool, err error)
}

// Config tunes the streaming and labyrinth behavior described in §4.5.
type Config struct {
	SystemSeed        string
	BlockTTL          time.Duration
	MinDelay          time.Duration
	MaxDelay          time.Duration
	LabyrinthFraction float64
	LabyrinthDepth    int
	FingerprintScript bool
}

// Service is the production TarpitService.
type Service struct {
	cfg         Config
	hops        HopEnforcer
	blocklist   blocklist.Store
	generator   *markov.Generator
	escalation  *escalation.Engine
	fingerprint *fingerprint.Store
}

func New(cfg Config, hops HopEnforcer, bl blocklist.Store, gen *markov.Generator, esc *escalation.Engine) *Service {
	return &Service{cfg: cfg, hops: hops, blocklist: bl, generator: gen, escalation: esc}
}

// WithFingerprint attaches the opportunistic header-order fingerprint
// store; nil leaves fingerprinting disabled.
func (s *Service) WithFingerprint(fp *fingerprint.Store) *Service {
	s.fingerprint = fp
	return s
}

// ServeHTTP implements the full per-request protocol from §4.5.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request, id identity.ClientIdentity) {
	ctx := r.Context()

	if s.hops != nil {
		_, exceeded, err := s.hops.IncrementAndCheck(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("client", string(id)).Msg("tarpit_hopcount_error")
		}
		if exceeded {
			if s.blocklist != nil {
				ttl := s.cfg.BlockTTL
				if ttl <= 0 {
					ttl = 24 * time.Hour
				}
				if err := s.blocklist.Block(ctx, id, ttl); err != nil {
					log.Error().Err(err).Str("client", string(id)).Msg("tarpit_block_failed")
				}
			}
			metrics.TarpitHitsTotal.WithLabelValues("hop_ceiling_blocked").Inc()
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	s.emitEscalation(r, id)
	s.recordFingerprint(r, id)

	page := s.buildPage(ctx, r.URL.Path)
	metrics.TarpitHitsTotal.WithLabelValues("streamed").Inc()
	s.stream(w, r.URL.Path, page)
}

// emitEscalation fires the ActionEvent-shaped RequestMetadata at
// EscalationEngine without the tarpit response path ever waiting on it.
func (s *Service) emitEscalation(r *http.Request, id identity.ClientIdentity) {
	if s.escalation == nil {
		return
	}
	meta := reqmeta.FromRequest(r, id, "tarpit")
	features := edge.Features(r)
	job := escalation.Job{Metadata: meta, Features: features}
	job.HeaderHash = fingerprint.HeaderOrderHash(r)
	s.escalation.Submit(job)
}

// recordFingerprint stores the header-order hash in the background; a
// tarpit hit is as opportunistic a place to capture it as the classifier,
// since many scrapers reach the tarpit without ever matching a heuristic
// reason that would have triggered it earlier.
func (s *Service) recordFingerprint(r *http.Request, id identity.ClientIdentity) {
	if s.fingerprint == nil {
		return
	}
	hash := fingerprint.HeaderOrderHash(r)
	go s.fingerprint.Record(context.Background(), id, hash)
}

func (s *Service) buildPage(ctx context.Context, path string) markov.Page {
	if markov.ShouldUseLabyrinth(s.cfg.SystemSeed, path, s.cfg.LabyrinthFraction) {
		return s.generator.LabyrinthPage(s.cfg.SystemSeed, path, s.cfg.LabyrinthDepth)
	}
	return s.generator.Generate(ctx, s.cfg.SystemSeed, path)
}

// stream emits the rendered page in chunks, sleeping a seeded-random
// interval between each and flushing so the client observes progress.
// The delay RNG is derived from the same (systemSeed, path) pair as the
// content itself, so replaying a URL reproduces identical pacing too.
func (s *Service) stream(w http.ResponseWriter, path string, page markov.Page) {
	html := markov.RenderHTML(page, s.cfg.FingerprintScript)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	rng := markov.NewRand(s.cfg.SystemSeed, "delay:"+path)

	minDelay, maxDelay := s.cfg.MinDelay, s.cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Second
	}
	if minDelay > maxDelay {
		minDelay = maxDelay
	}

	const chunkSize = 256
	for i := 0; i < len(html); i += chunkSize {
		end := i + chunkSize
		if end > len(html) {
			end = len(html)
		}
		if _, err := w.Write([]byte(html[i:end])); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
		if end < len(html) {
			time.Sleep(randomDelay(rng, minDelay, maxDelay))
		}
	}
}

func randomDelay(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := int64(max - min)
	return min + time.Duration(rng.Int63n(span))
}

// PathParam extracts the wildcard tail of a chi "/tarpit/{path*}" route
// so handlers can recover the original logical path for seeding and
// content generation.
func PathParam(routePrefix, requestPath string) string {
	p := strings.TrimPrefix(requestPath, routePrefix)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
