// Package fingerprint stores a best-effort per-client header-order
// fingerprint in the "fingerprints" KV logical database. It is never
// load-bearing for a routing decision — absence or a store error is
// always treated the same as "no fingerprint on file".
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
)

const keyPrefix = "fp:"
const ttl = 7 * 24 * time.Hour

type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// HeaderOrderHash hashes the set of header names present on the
// request, a cheap signal that tends to differ between hand-rolled
// HTTP clients and real browsers. Go's http.Header is a map and does
// not retain wire order, so names are sorted first — this hashes
// which headers were sent, not the order they arrived in, and must
// stay deterministic for the same header set across calls.
func HeaderOrderHash(r *http.Request) string {
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)
	sum := sha256.Sum256([]byte(strings.Join(names, ",")))
	return hex.EncodeToString(sum[:8])
}

// Record opportunistically stores the header-order hash, first-seen
// only (subsequent calls are no-ops unless the key expired) so repeat
// visits don't overwrite a legitimately-changing browser fingerprint
// with noise.
func (s *Store) Record(ctx context.Context, id identity.ClientIdentity, hash string) {
	if s == nil || s.rdb == nil {
		return
	}
	_ = s.rdb.SetNX(ctx, keyPrefix+string(id), hash, ttl).Err()
}

// Lookup returns the stored hash and whether one is on file. The
// escalation engine compares it with the current request's hash; a
// mismatch is a weak signal of a changed or spoofed client and adds an
// extra heuristic reason.
func (s *Store) Lookup(ctx context.Context, id identity.ClientIdentity) (string, bool) {
	if s == nil || s.rdb == nil {
		return "", false
	}
	v, err := s.rdb.Get(ctx, keyPrefix+string(id)).Result()
	if err != nil {
		return "", false
	}
	return v, true
}
