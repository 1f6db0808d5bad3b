package markov_test

import (
	"context"
	"testing"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/markov"
)

// fakeCorpus is a tiny in-memory Corpus used for deterministic tests.
type fakeCorpus struct {
	table map[[2]string][]markov.Candidate
	fail  bool
}

func (f *fakeCorpus) Next(ctx context.Context, w1, w2 string) ([]markov.Candidate, error) {
	if f.fail {
		return nil, context.DeadlineExceeded
	}
	return f.table[[2]string{w1, w2}], nil
}

func (f *fakeCorpus) Close() error { return nil }

func newFakeCorpus() *fakeCorpus {
	return &fakeCorpus{table: map[[2]string][]markov.Candidate{
		{markov.EmptyWord, markov.EmptyWord}: {{Next: "the", Frequency: 10}},
		{markov.EmptyWord, "the"}:            {{Next: "quick", Frequency: 5}, {Next: "slow", Frequency: 1}},
		{"the", "quick"}:                     {{Next: "fox", Frequency: 8}},
		{"quick", "fox"}:                     {{Next: "jumps", Frequency: 3}},
		{"fox", "jumps"}:                     {{Next: markov.EmptyWord, Frequency: 1}},
	}}
}

func TestGenerate_DeterministicForSameSeedAndPath(t *testing.T) {
	corpus := newFakeCorpus()
	gen := markov.NewGenerator(corpus, markov.GeneratorConfig{MinWalkWords: 2, MaxWalkWords: 10, Paragraphs: 2, Links: 4})

	p1 := gen.Generate(context.Background(), "seed-123", "/articles/foo")
	p2 := gen.Generate(context.Background(), "seed-123", "/articles/foo")

	if p1.Title != p2.Title {
		t.Fatalf("title not deterministic: %q vs %q", p1.Title, p2.Title)
	}
	if len(p1.Paragraphs) != len(p2.Paragraphs) {
		t.Fatalf("paragraph count differs")
	}
	for i := range p1.Paragraphs {
		if p1.Paragraphs[i] != p2.Paragraphs[i] {
			t.Fatalf("paragraph %d differs: %q vs %q", i, p1.Paragraphs[i], p2.Paragraphs[i])
		}
	}
	for i := range p1.Links {
		if p1.Links[i] != p2.Links[i] {
			t.Fatalf("link %d differs: %q vs %q", i, p1.Links[i], p2.Links[i])
		}
	}
}

func TestGenerate_DifferentPathDiffersDeterministically(t *testing.T) {
	corpus := newFakeCorpus()
	gen := markov.NewGenerator(corpus, markov.GeneratorConfig{MinWalkWords: 2, MaxWalkWords: 10, Paragraphs: 1, Links: 3})

	pA := gen.Generate(context.Background(), "seed-123", "/articles/foo")
	pB := gen.Generate(context.Background(), "seed-123", "/articles/bar")

	if pA.Title == pB.Title && pA.Links[0] == pB.Links[0] {
		t.Fatalf("expected different paths to plausibly diverge in at least one derived field")
	}
}

func TestGenerate_UnreachableCorpusFallsBackToCanned(t *testing.T) {
	corpus := &fakeCorpus{fail: true}
	gen := markov.NewGenerator(corpus, markov.GeneratorConfig{})

	p := gen.Generate(context.Background(), "seed-xyz", "/a")
	if len(p.Paragraphs) == 0 {
		t.Fatalf("expected canned fallback paragraphs, got none")
	}
}

func TestRenderHTML_EscapesContent(t *testing.T) {
	p := markov.Page{Title: "<script>", Paragraphs: []string{"a & b"}, Links: []string{"/x"}}
	out := markov.RenderHTML(p, false)
	if contains := "<script>"; stringsContains(out, contains) {
		t.Fatalf("expected title to be escaped, got raw script tag in output")
	}
}

func stringsContains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestShouldUseLabyrinth_Deterministic(t *testing.T) {
	a := markov.ShouldUseLabyrinth("seed", "/x/y", 0.3)
	b := markov.ShouldUseLabyrinth("seed", "/x/y", 0.3)
	if a != b {
		t.Fatalf("labyrinth selection must be deterministic for the same seed and path")
	}
}

func TestShouldUseLabyrinth_ZeroFractionNeverSelects(t *testing.T) {
	if markov.ShouldUseLabyrinth("seed", "/anything", 0) {
		t.Fatalf("fraction 0 must never select labyrinth mode")
	}
}
