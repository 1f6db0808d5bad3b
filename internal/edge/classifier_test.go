package edge_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/edge"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/robots"
)

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

func newRefresher(t *testing.T, doc string) *robots.Refresher {
	t.Helper()
	rf, err := robots.NewFromString(doc, 0)
	if err != nil {
		t.Fatalf("NewFromString: %v", err)
	}
	return rf
}

func TestScoreRequest_HostileUserAgentScoresHigh(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/anything", nil)
	r.Header.Set("User-Agent", "python-requests/2.31")
	score, reasons := edge.ScoreRequest(r)
	if score < 0.70 {
		t.Fatalf("expected hostile UA to clear the threshold, got %f (%v)", score, reasons)
	}
}

func TestScoreRequest_NormalBrowserScoresLow(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/page", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/124.0")
	r.Header.Set("Accept-Language", "en-US")
	r.Header.Set("Sec-Fetch-Site", "same-origin")
	r.Header.Set("Accept", "text/html")
	r.Header.Set("Referer", "https://example.com/")
	score, _ := edge.ScoreRequest(r)
	if score >= 0.70 {
		t.Fatalf("expected ordinary browser request to stay below threshold, got %f", score)
	}
}

func TestClassify_BlocklistedIdentityIsRejected(t *testing.T) {
	bl := &fakeBlocklist{blocked: map[identity.ClientIdentity]bool{"1.2.3.4": true}}
	c := edge.New(bl, newRefresher(t, ""))
	r := httptest.NewRequest(http.MethodGet, "/x", nil)

	d := c.Classify(context.Background(), r, "1.2.3.4")
	if d.Route != edge.RouteReject {
		t.Fatalf("expected RouteReject for blocklisted client, got %v", d.Route)
	}
}

func TestClassify_BenignBotDisallowedPathGoesToTarpit(t *testing.T) {
	bl := &fakeBlocklist{blocked: map[identity.ClientIdentity]bool{}}
	rf := newRefresher(t, "User-agent: *\nDisallow: /private\n")
	c := edge.New(bl, rf)

	r := httptest.NewRequest(http.MethodGet, "/private/data", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")

	d := c.Classify(context.Background(), r, "5.6.7.8")
	if d.Route != edge.RouteTarpit {
		t.Fatalf("expected benign bot on disallowed path to divert to tarpit, got %v", d.Route)
	}
}

func TestClassify_BenignBotAllowedPathProxies(t *testing.T) {
	bl := &fakeBlocklist{blocked: map[identity.ClientIdentity]bool{}}
	rf := newRefresher(t, "User-agent: *\nDisallow: /private\n")
	c := edge.New(bl, rf)

	r := httptest.NewRequest(http.MethodGet, "/public/data", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")

	d := c.Classify(context.Background(), r, "5.6.7.8")
	if d.Route != edge.RouteProxy {
		t.Fatalf("expected benign bot on allowed path to proxy, got %v", d.Route)
	}
}

func TestClassify_HostileScoreDivertsToTarpit(t *testing.T) {
	bl := &fakeBlocklist{blocked: map[identity.ClientIdentity]bool{}}
	c := edge.New(bl, newRefresher(t, ""))

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("User-Agent", "Scrapy/2.5")

	d := c.Classify(context.Background(), r, "9.9.9.9")
	if d.Route != edge.RouteTarpit {
		t.Fatalf("expected hostile-scoring request to divert to tarpit, got %v", d.Route)
	}
}
