// Package httpserver wires every inbound HTTP surface onto a chi router:
// the public proxy path (guarded by EdgeClassifier), the tarpit, the
// async escalation/analyze endpoints, health/metrics, and the operator
// admin endpoints. Mirrors the teacher's NewRouter shape (built-in
// safety middlewares, a single registered Prometheus counter, drain-flag
// awareness) generalized onto this system's components instead of the
// teacher's rate-limit/anomaly middleware stack.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/action"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/apperr"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/blocklist"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/edge"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/escalation"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
	Lm "github.com/rhamenator/ai-scraping-defense-sub001/internal/middleware"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/reqmeta"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/robots"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/tarpit"
	"github.com/rhamenator/ai-scraping-defense-sub001/pkg/metrics"
)

const tarpitPrefix = "/tarpit"

// RouterDeps bundles every component the router dispatches into. The
// reverse proxy passed to NewRouter may be nil (e.g. in tests that only
// exercise local routes), in which case proxied requests fail with a 503
// error envelope rather than panicking.
type RouterDeps struct {
	Classifier  *edge.Classifier
	Tarpit      *tarpit.Service
	Escalation  *escalation.Engine
	Action      *action.Service
	Blocklist   blocklist.Store
	Robots      *robots.Refresher
	IDSource    identity.Source
	ProxyPrefix string
}

// NewRouter builds the chi router. proxy may be nil.
func NewRouter(d RouterDeps, proxy *httputil.ReverseProxy) (http.Handler, func()) {
	r := chi.NewRouter()
	metrics.Register(prometheus.DefaultRegisterer)

	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(Lm.AccessLoggerFromEnv())

	r.Get("/health", newHealthHandler(d))
	r.Handle("/metrics", promhttp.Handler())

	r.Get(tarpitPrefix+"/*", newTarpitHandler(d))

	r.Post("/escalate", newEscalateHandler(d))
	r.Post("/analyze", newAnalyzeHandler(d))

	r.Route("/admin", func(ar chi.Router) {
		ar.Post("/block", newAdminBlockHandler(d))
		ar.Post("/unblock", newAdminUnblockHandler(d))
		ar.Post("/robots/reload", newAdminRobotsReloadHandler(d))
	})

	mountProxy(r, d, proxy)

	cleanup := func() {
		if d.Robots != nil {
			d.Robots.Close()
		}
	}
	return r, cleanup
}

// pinger is satisfied by blocklist.RedisStore; a test fake that doesn't
// implement it is simply reported present-but-unprobed ("ok"), since
// Store's own contract has no ping concept.
type pinger interface {
	Ping(ctx context.Context) error
}

// newHealthHandler reports a per-dependency status map and an overall
// status in {ok, degraded, error} per §6. A missing hard dependency
// (Blocklist, since every routing decision needs it) is "error"; a
// missing optional one (Robots, Tarpit, Escalation, Action) is
// "degraded" rather than "error" since the gateway still serves plain
// proxy traffic without it.
func newHealthHandler(d RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if IsDraining() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "draining"})
			return
		}

		deps := map[string]string{
			"blocklist":  checkBlocklist(r.Context(), d.Blocklist),
			"robots":     presence(d.Robots != nil),
			"tarpit":     presence(d.Tarpit != nil),
			"escalation": presence(d.Escalation != nil),
			"action":     presence(d.Action != nil),
		}

		overall := "ok"
		if deps["blocklist"] == "error" {
			overall = "error"
		} else {
			for k, v := range deps {
				if k != "blocklist" && v != "ok" {
					overall = "degraded"
					break
				}
			}
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": overall, "dependencies": deps})
	}
}

func checkBlocklist(ctx context.Context, bl blocklist.Store) string {
	if bl == nil {
		return "error"
	}
	if p, ok := bl.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return "error"
		}
	}
	return "ok"
}

func presence(ok bool) string {
	if ok {
		return "ok"
	}
	return "degraded"
}

// mountProxy puts the classifier in front of the reverse proxy: a
// tarpit decision diverts to the tarpit handler instead of upstream, a
// reject decision short-circuits with 403, and only a proxy decision
// reaches the backend.
func mountProxy(r chi.Router, d RouterDeps, proxy *httputil.ReverseProxy) {
	prefix := d.ProxyPrefix
	if prefix == "" {
		prefix = "/"
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		reqID := chimw.GetReqID(req.Context())
		id := identity.From(req, d.IDSource)

		if d.Classifier == nil {
			forwardToProxy(w, req, proxy)
			return
		}

		decision := d.Classifier.Classify(req.Context(), req, id)
		switch decision.Route {
		case edge.RouteReject:
			apperr.Write(w, reqID, apperr.New(apperr.KindThresholdBlock, "client is blocklisted"))
		case edge.RouteTarpit:
			if d.Tarpit == nil {
				apperr.Write(w, reqID, apperr.New(apperr.KindDependencyUnavailable, "tarpit unavailable"))
				return
			}
			d.Tarpit.ServeHTTP(w, req, id)
		default:
			forwardToProxy(w, req, proxy)
		}
	})

	if prefix == "/" {
		r.NotFound(handler.ServeHTTP)
		return
	}
	r.Mount(prefix, http.StripPrefix(prefix, handler))
}

func forwardToProxy(w http.ResponseWriter, req *http.Request, proxy *httputil.ReverseProxy) {
	if proxy == nil {
		apperr.Write(w, chimw.GetReqID(req.Context()), apperr.New(apperr.KindDependencyUnavailable, "no backend configured"))
		return
	}
	proxy.ServeHTTP(w, req)
}

// newTarpitHandler serves GET /tarpit/{path*} directly, for out-of-band
// probing or when an operator wants to route a suspected scraper into
// the tarpit without going through the classifier (e.g. from a WAF rule
// upstream of this service).
func newTarpitHandler(d RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Tarpit == nil {
			apperr.Write(w, chimw.GetReqID(r.Context()), apperr.New(apperr.KindDependencyUnavailable, "tarpit unavailable"))
			return
		}
		id := identity.From(r, d.IDSource)
		d.Tarpit.ServeHTTP(w, r, id)
	}
}

// newEscalateHandler is the EscalationEngine external surface (§6): the
// body is a RequestMetadata, the engine runs its full scoring pipeline
// synchronously, and the response reports the resulting score rather
// than just acknowledging a queued job — callers that want fire-and-
// forget behavior use EscalationEngine.Submit in-process (TarpitService
// does); nothing HTTP-facing needs that path.
func newEscalateHandler(d RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := chimw.GetReqID(r.Context())
		var meta reqmeta.Metadata
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
			apperr.Write(w, reqID, apperr.Invalid("invalid request body", err.Error()))
			return
		}
		if meta.ClientIdentity == "" {
			apperr.Write(w, reqID, apperr.Invalid("client_identity is required"))
			return
		}
		if meta.Method == "" {
			meta.Method = http.MethodGet
		}
		if d.Escalation == nil {
			apperr.Write(w, reqID, apperr.New(apperr.KindDependencyUnavailable, "escalation engine unavailable"))
			return
		}

		features := featuresFromMetadata(meta)
		report, actionTaken, err := d.Escalation.Evaluate(r.Context(), escalation.Job{Metadata: meta, Features: features})
		if err != nil {
			apperr.Write(w, reqID, apperr.Wrap(apperr.KindDependencyUnavailable, "escalation evaluation failed", err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":       "scored",
			"action_taken": actionTaken,
			"score":        report,
		})
	}
}

// featuresFromMetadata rebuilds a synthetic *http.Request from the
// RequestMetadata snapshot so edge.Features' heuristic vector can be
// recomputed without the original live request.
func featuresFromMetadata(meta reqmeta.Metadata) map[string]float64 {
	fake, err := http.NewRequest(meta.Method, "http://escalate.local"+meta.Path, nil)
	if err != nil {
		return map[string]float64{}
	}
	for k, v := range meta.Headers {
		fake.Header.Set(k, v)
	}
	if meta.UserAgent != "" {
		fake.Header.Set("User-Agent", meta.UserAgent)
	}
	if meta.Referer != "" {
		fake.Header.Set("Referer", meta.Referer)
	}
	return edge.Features(fake)
}

// newAnalyzeHandler is the ActionService external surface (§6): the body
// is an ActionEvent, decoded and submitted directly to ActionService
// (blocklist mutation, alert dispatch, optional community report), for
// callers that have already scored a request out-of-band (e.g. a batch
// replay job) and only need the terminal action taken.
func newAnalyzeHandler(d RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := chimw.GetReqID(r.Context())
		if d.Action == nil {
			apperr.Write(w, reqID, apperr.New(apperr.KindDependencyUnavailable, "action service unavailable"))
			return
		}
		var ev action.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			apperr.Write(w, reqID, apperr.Invalid("invalid request body", err.Error()))
			return
		}
		if ev.Metadata.ClientIdentity == "" {
			apperr.Write(w, reqID, apperr.Invalid("metadata.client_identity is required"))
			return
		}

		if err := d.Action.Submit(r.Context(), ev); err != nil {
			log.Error().Err(err).Str("client", string(ev.Metadata.ClientIdentity)).Msg("analyze_action_submit_failed")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": true})
	}
}

type adminIdentityRequest struct {
	ClientIdentity string `json:"client_identity"`
	TTLSeconds     int    `json:"ttl_seconds"`
}

func newAdminBlockHandler(d RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := chimw.GetReqID(r.Context())
		var body adminIdentityRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ClientIdentity == "" {
			apperr.Write(w, reqID, apperr.Invalid("client_identity is required"))
			return
		}
		if d.Blocklist == nil {
			apperr.Write(w, reqID, apperr.New(apperr.KindDependencyUnavailable, "blocklist unavailable"))
			return
		}
		ttl := time.Duration(body.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		if err := d.Blocklist.Block(r.Context(), identity.ClientIdentity(body.ClientIdentity), ttl); err != nil {
			apperr.Write(w, reqID, apperr.Wrap(apperr.KindDependencyUnavailable, "block failed", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func newAdminUnblockHandler(d RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := chimw.GetReqID(r.Context())
		if d.Blocklist == nil {
			apperr.Write(w, reqID, apperr.New(apperr.KindDependencyUnavailable, "blocklist unavailable"))
			return
		}
		var body adminIdentityRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ClientIdentity == "" {
			apperr.Write(w, reqID, apperr.Invalid("client_identity is required"))
			return
		}
		if err := d.Blocklist.Unblock(r.Context(), identity.ClientIdentity(body.ClientIdentity)); err != nil {
			apperr.Write(w, reqID, apperr.Wrap(apperr.KindDependencyUnavailable, "unblock failed", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func newAdminRobotsReloadHandler(d RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := chimw.GetReqID(r.Context())
		if d.Robots == nil {
			apperr.Write(w, reqID, apperr.New(apperr.KindDependencyUnavailable, "robots refresher unavailable"))
			return
		}
		d.Robots.Reload()
		log.Info().Str("req_id", reqID).Msg("admin_robots_reload")
		w.WriteHeader(http.StatusNoContent)
	}
}
