// Package reqmeta defines RequestMetadata, the read-only value passed by
// value through the edge, tarpit, and escalation pipeline stages.
package reqmeta

import (
	"net/http"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
)

// Metadata is created once at ingress and never mutated thereafter.
type Metadata struct {
	Timestamp      time.Time           `json:"timestamp"`
	ClientIdentity identity.ClientIdentity `json:"client_identity"`
	UserAgent      string              `json:"user_agent"`
	Referer        string              `json:"referer"`
	Path           string              `json:"path"`
	Method         string              `json:"method"`
	Headers        map[string]string   `json:"headers_snapshot"`
	OriginHint     string              `json:"origin_hint"`
}

// snapshotHeaders lists the small set of headers the heuristic
// scorer and the escalation pipeline actually look at, rather than the
// full header map — keeps RequestMetadata small and redaction-friendly
// (community reporting trims it further still).
var snapshotHeaders = []string{
	"User-Agent", "Accept-Language", "Accept", "Referer",
	"Sec-Fetch-Site", "Sec-Fetch-Mode", "Sec-Fetch-Dest", "X-Forwarded-For",
}

// FromRequest builds Metadata from an inbound *http.Request.
func FromRequest(r *http.Request, id identity.ClientIdentity, originHint string) Metadata {
	snap := make(map[string]string, len(snapshotHeaders))
	for _, h := range snapshotHeaders {
		if v := r.Header.Get(h); v != "" {
			snap[h] = v
		}
	}
	return Metadata{
		Timestamp:      time.Now().UTC(),
		ClientIdentity: id,
		UserAgent:      r.Header.Get("User-Agent"),
		Referer:        r.Header.Get("Referer"),
		Path:           r.URL.Path,
		Method:         r.Method,
		Headers:        snap,
		OriginHint:     originHint,
	}
}

// Redacted returns a copy suitable for community reporting: only
// User-Agent and Accept-Language survive.
func (m Metadata) Redacted() Metadata {
	r := m
	r.Headers = map[string]string{}
	if ua, ok := m.Headers["User-Agent"]; ok {
		r.Headers["User-Agent"] = ua
	}
	if al, ok := m.Headers["Accept-Language"]; ok {
		r.Headers["Accept-Language"] = al
	}
	r.Referer = ""
	return r
}
