// Package edge implements EdgeClassifier: the first-pass decision that
// every inbound request goes through before it is proxied, rejected, or
// diverted to the tarpit.
package edge

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/blocklist"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/fingerprint"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/robots"
	"github.com/rhamenator/ai-scraping-defense-sub001/pkg/metrics"
)

// Route is the outcome of classification.
type Route int

const (
	RouteProxy Route = iota
	RouteReject
	RouteTarpit
)

func (r Route) String() string {
	switch r {
	case RouteProxy:
		return "proxy"
	case RouteReject:
		return "reject"
	case RouteTarpit:
		return "tarpit"
	default:
		return "unknown"
	}
}

// Decision is the full classification result, returned for logging and
// for the router to act on.
type Decision struct {
	Route   Route
	Reasons []string
	Score   float64
}

const threshold = 0.70

// FeatureWeights is the weighted heuristic table from §4.4, keyed by the
// same reason names ScoreRequest and Features emit. EscalationEngine
// reuses this exact table for its own heuristic term (§4.6 step 2), since
// a tarpit job may outlive the original *http.Request.
var FeatureWeights = map[string]float64{
	"hostile_ua":              0.80,
	"missing_user_agent":      0.40,
	"missing_accept_language": 0.20,
	"missing_sec_fetch_site":  0.15,
	"accept_wildcard":         0.10,
	"missing_referer":         0.05,
	"disallowed_method":       0.20,
}

// Features extracts the 0/1 indicator vector ScoreRequest's weights apply
// to, for callers (TarpitService) that need to carry the signal forward
// into an asynchronous job without keeping the *http.Request alive.
func Features(r *http.Request) map[string]float64 {
	f := make(map[string]float64, len(FeatureWeights))
	ua := r.Header.Get("User-Agent")
	hostile, _ := IsHostileBot(ua)

	if hostile {
		f["hostile_ua"] = 1
	}
	if ua == "" {
		f["missing_user_agent"] = 1
	}
	if r.Header.Get("Accept-Language") == "" {
		f["missing_accept_language"] = 1
	}
	if r.Header.Get("Sec-Fetch-Site") == "" && !hostile {
		f["missing_sec_fetch_site"] = 1
	}
	if r.Header.Get("Accept") == "*/*" {
		f["accept_wildcard"] = 1
	}
	if r.Header.Get("Referer") == "" && !isAssetOrRootPath(r.URL.Path) {
		f["missing_referer"] = 1
	}
	if !isAllowedMethod(r.Method) {
		f["disallowed_method"] = 1
	}
	return f
}

// ScoreRequest computes the heuristic suspicion score for req, independent
// of the blocklist/benign-bot branches.
func ScoreRequest(r *http.Request) (float64, []string) {
	features := Features(r)
	var total float64
	var reasons []string
	for _, name := range []string{
		"hostile_ua", "missing_user_agent", "missing_accept_language",
		"missing_sec_fetch_site", "accept_wildcard", "missing_referer", "disallowed_method",
	} {
		if features[name] > 0 {
			total += FeatureWeights[name]
			reasons = append(reasons, name)
		}
	}
	if total > 1.0 {
		total = 1.0
	}
	return total, reasons
}

func isAllowedMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func isAssetOrRootPath(p string) bool {
	if p == "" || p == "/" {
		return true
	}
	for _, suffix := range []string{".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".woff", ".woff2"} {
		if len(p) >= len(suffix) && p[len(p)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

// Classifier is the EdgeClassifier.
type Classifier struct {
	blocklist   blocklist.Store
	robots      *robots.Refresher
	fingerprint *fingerprint.Store
}

func New(bl blocklist.Store, rf *robots.Refresher) *Classifier {
	return &Classifier{blocklist: bl, robots: rf}
}

// WithFingerprint attaches the opportunistic header-order fingerprint
// store; nil leaves fingerprinting disabled.
func (c *Classifier) WithFingerprint(fp *fingerprint.Store) *Classifier {
	c.fingerprint = fp
	return c
}

// Classify runs the full decision protocol in order: blocklist gate,
// benign-bot branch, heuristic branch.
func (c *Classifier) Classify(ctx context.Context, r *http.Request, id identity.ClientIdentity) Decision {
	ua := r.Header.Get("User-Agent")
	c.recordFingerprint(r, id)

	if c.blocklist != nil && c.blocklist.IsBlocked(ctx, id) {
		return c.logged(id, ua, Decision{Route: RouteReject, Reasons: []string{"blocklisted"}})
	}

	if benign, match := IsBenignBot(ua); benign {
		if c.robots != nil {
			if disallowed, reason := c.robots.Current().Disallowed(r.URL.Path); disallowed {
				return c.logged(id, ua, Decision{Route: RouteTarpit, Reasons: []string{"benign_bot:" + match, string(reason)}})
			}
		}
		return c.logged(id, ua, Decision{Route: RouteProxy, Reasons: []string{"benign_bot:" + match}})
	}

	score, reasons := ScoreRequest(r)
	if score >= threshold {
		return c.logged(id, ua, Decision{Route: RouteTarpit, Reasons: reasons, Score: score})
	}
	return c.logged(id, ua, Decision{Route: RouteProxy, Reasons: reasons, Score: score})
}

// recordFingerprint stores the header-order hash in the background; it
// never delays or fails the classification path.
func (c *Classifier) recordFingerprint(r *http.Request, id identity.ClientIdentity) {
	if c.fingerprint == nil {
		return
	}
	hash := fingerprint.HeaderOrderHash(r)
	go c.fingerprint.Record(context.Background(), id, hash)
}

func (c *Classifier) logged(id identity.ClientIdentity, ua string, d Decision) Decision {
	metrics.EdgeDecisionsTotal.WithLabelValues(d.Route.String()).Inc()
	log.Info().
		Str("client", string(id)).
		Str("user_agent", ua).
		Str("route", d.Route.String()).
		Float64("score", d.Score).
		Strs("reasons", d.Reasons).
		Msg("edge_classified")
	return d
}
