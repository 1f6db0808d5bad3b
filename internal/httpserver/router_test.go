package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/action"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/httpserver"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/identity"
)

func newProxy(t *testing.T, target string) *httputil.ReverseProxy {
	t.Helper()
	u, err := url.Parse(target)
	if err != nil {
		t.Fatal(err)
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"bad_gateway"}`))
	}
	return rp
}

// fakeBlocklist is an in-memory stand-in for blocklist.Store. It
// deliberately does not implement the optional Ping method, exercising
// the "present but unprobed" branch of the health check.
type fakeBlocklist struct {
	blocked map[identity.ClientIdentity]bool
}

func newFakeBlocklist() *fakeBlocklist {
	return &fakeBlocklist{blocked: map[identity.ClientIdentity]bool{}}
}

func (f *fakeBlocklist) IsBlocked(_ context.Context, id identity.ClientIdentity) bool {
	return f.blocked[id]
}

func (f *fakeBlocklist) Block(_ context.Context, id identity.ClientIdentity, _ time.Duration) error {
	f.blocked[id] = true
	return nil
}

func (f *fakeBlocklist) Unblock(_ context.Context, id identity.ClientIdentity) error {
	delete(f.blocked, id)
	return nil
}

func (f *fakeBlocklist) TTLRemaining(_ context.Context, _ identity.ClientIdentity) (time.Duration, bool) {
	return 0, false
}

func TestHealth_ReportsErrorWithNoBlocklistConfigured(t *testing.T) {
	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{}, nil)
	defer cleanup()
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "error" {
		t.Fatalf("want overall status error with no blocklist configured, got %q", body.Status)
	}
	if body.Dependencies["blocklist"] != "error" {
		t.Fatalf("want blocklist dependency error, got %q", body.Dependencies["blocklist"])
	}
	if body.Dependencies["escalation"] != "degraded" {
		t.Fatalf("want escalation dependency degraded, got %q", body.Dependencies["escalation"])
	}
}

func TestHealth_DegradedWhenOnlyOptionalDepsMissing(t *testing.T) {
	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{Blocklist: newFakeBlocklist()}, nil)
	defer cleanup()
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" {
		t.Fatalf("want overall status degraded, got %q", body.Status)
	}
	if body.Dependencies["blocklist"] != "ok" {
		t.Fatalf("want blocklist dependency ok, got %q", body.Dependencies["blocklist"])
	}
}

func TestMetrics_Returns200(t *testing.T) {
	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{}, nil)
	defer cleanup()
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestProxy_NoClassifierForwardsEverythingToBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hello" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(backend.Close)

	proxy := newProxy(t, backend.URL)
	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{}, proxy)
	defer cleanup()
	gw := httptest.NewServer(router)
	t.Cleanup(gw.Close)

	resp, err := http.Get(gw.URL + "/hello")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestProxy_NoBackendReturns503Envelope(t *testing.T) {
	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{}, nil)
	defer cleanup()
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/anything")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", resp.StatusCode)
	}
}

func TestAdminBlock_RequiresClientIdentity(t *testing.T) {
	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{}, nil)
	defer cleanup()
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/admin/block", "application/json", strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("want 422 for missing body, got %d", resp.StatusCode)
	}
}

func TestEscalate_RequiresClientIdentity(t *testing.T) {
	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{}, nil)
	defer cleanup()
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/escalate", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("want 422 for missing client_identity, got %d", resp.StatusCode)
	}
}

func TestEscalate_NoEngineConfiguredReturns503(t *testing.T) {
	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{}, nil)
	defer cleanup()
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/escalate", "application/json",
		strings.NewReader(`{"client_identity":"1.2.3.4","path":"/x","method":"GET"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("want 503 with no escalation engine configured, got %d", resp.StatusCode)
	}
}

func TestAnalyze_AcceptsActionEvent(t *testing.T) {
	actionSvc := action.New(action.Config{BlockTTL: time.Minute}, newFakeBlocklist(), nil, nil)
	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{Action: actionSvc}, nil)
	defer cleanup()
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	body := `{
		"event_type": "tarpit_escalation",
		"reason": "hostile_ua",
		"metadata": {"client_identity": "1.2.3.4", "path": "/x"},
		"score": {"combined_score": 0.9}
	}`
	resp, err := http.Post(ts.URL+"/analyze", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("want 202, got %d", resp.StatusCode)
	}
}

func TestAnalyze_RequiresClientIdentity(t *testing.T) {
	actionSvc := action.New(action.Config{}, newFakeBlocklist(), nil, nil)
	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{Action: actionSvc}, nil)
	defer cleanup()
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/analyze", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("want 422 for missing metadata.client_identity, got %d", resp.StatusCode)
	}
}

func TestAnalyze_NoActionServiceConfiguredReturns503(t *testing.T) {
	router, cleanup := httpserver.NewRouter(httpserver.RouterDeps{}, nil)
	defer cleanup()
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/analyze", "application/json",
		strings.NewReader(`{"metadata":{"client_identity":"1.2.3.4"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("want 503 with no action service configured, got %d", resp.StatusCode)
	}
}
