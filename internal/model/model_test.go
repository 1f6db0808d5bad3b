package model_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

func TestNew_EmptyURIYieldsAbsentAdapter(t *testing.T) {
	a := model.New(model.Config{})
	score, ok, err := a.Classify(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected heuristic-only adapter to report absent, got score %f", score)
	}
}

func TestNew_HeuristicSchemeYieldsAbsentAdapter(t *testing.T) {
	a := model.New(model.Config{URI: "heuristic://"})
	_, ok, _ := a.Classify(context.Background(), nil)
	if ok {
		t.Fatalf("expected heuristic:// to always report absent")
	}
}

func TestNew_FileSchemeEvaluatesInProcess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.json")
	artifact := map[string]any{
		"bias":    0.0,
		"weights": map[string]float64{"hostile_ua": 5.0},
	}
	b, _ := json.Marshal(artifact)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	a := model.New(model.Config{URI: "file://" + path})
	score, ok, err := a.Classify(context.Background(), map[string]float64{"hostile_ua": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected file adapter to report present")
	}
	if score < 0.9 {
		t.Fatalf("expected high score for a strongly-weighted feature, got %f", score)
	}
}

func TestNew_HTTPSchemeReadsScoreField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"score":0.42}`))
	}))
	defer srv.Close()

	a := model.New(model.Config{URI: srv.URL})
	score, ok, err := a.Classify(context.Background(), map[string]float64{"x": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || score != 0.42 {
		t.Fatalf("expected score 0.42, got %f (ok=%v)", score, ok)
	}
}

func TestNew_UnrecognizedSchemeFallsBackToAbsent(t *testing.T) {
	a := model.New(model.Config{URI: "ftp://nope", InitRetries: 1})
	_, ok, _ := a.Classify(context.Background(), nil)
	if ok {
		t.Fatalf("expected unrecognized scheme to fall back to the absent adapter")
	}
}
