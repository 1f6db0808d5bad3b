// Package markov (continued): DeterministicGenerator builds tarpit page
// content by walking the Markov corpus under a seeded RNG.
package markov

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
)

// Page is the generated content for one tarpit response.
type Page struct {
	Title      string
	Paragraphs []string
	Links      []string
}

// GeneratorConfig controls walk shape.
type GeneratorConfig struct {
	MinWalkWords  int
	MaxWalkWords  int
	TerminateProb float64
	Paragraphs    int
	Links         int
}

func (c GeneratorConfig) normalized() GeneratorConfig {
	if c.MinWalkWords <= 0 {
		c.MinWalkWords = 40
	}
	if c.MaxWalkWords <= c.MinWalkWords {
		c.MaxWalkWords = c.MinWalkWords * 4
	}
	if c.TerminateProb <= 0 {
		c.TerminateProb = 0.04
	}
	if c.Paragraphs <= 0 {
		c.Paragraphs = 3
	}
	if c.Links <= 0 {
		c.Links = 8
	}
	return c
}

// Generator produces deterministic Pages from a Corpus and an RNG seeded
// per §4.5's seeding rule.
type Generator struct {
	corpus Corpus
	cfg    GeneratorConfig
}

func NewGenerator(corpus Corpus, cfg GeneratorConfig) *Generator {
	return &Generator{corpus: corpus, cfg: cfg.normalized()}
}

// cannedFallback is the low-entropy body substituted when the corpus is
// unreachable. The response must still succeed with 200 — a crawler
// that can't tell the difference keeps wasting its own time regardless.
var cannedFallback = []string{
	"This page describes a topic related to your search query. Additional details follow in the sections below, covering background, context, and related resources.",
	"For more information, please review the related links. Each link leads to a page with further supporting material and cross references.",
	"Thank you for visiting. Content is updated periodically and new sections are added as they become available.",
}

// Generate produces a Page for the given request path. Title and link
// targets are derived from the same seeded RNG as the body text, so the
// whole page is reproducible for identical (systemSeed, path).
func (g *Generator) Generate(ctx context.Context, systemSeed, path string) Page {
	rng := NewRand(systemSeed, path)

	words, corpusOK := g.walkParagraphs(ctx, rng)
	var paragraphs []string
	if corpusOK {
		paragraphs = words
	} else {
		paragraphs = append([]string(nil), cannedFallback...)
	}

	return Page{
		Title:      g.title(rng, path),
		Paragraphs: paragraphs,
		Links:      g.links(rng, path),
	}
}

func (g *Generator) title(rng *rand.Rand, path string) string {
	base := strings.Trim(path, "/")
	base = strings.ReplaceAll(base, "/", " ")
	base = strings.ReplaceAll(base, "-", " ")
	if base == "" {
		base = "overview"
	}
	adjectives := []string{"Complete", "Practical", "Essential", "Updated", "Detailed", "Comprehensive"}
	return fmt.Sprintf("%s Guide to %s", adjectives[rng.Intn(len(adjectives))], strings.Title(base)) //nolint:staticcheck
}

// walkParagraphs runs g.cfg.Paragraphs independent Markov walks, each
// starting from the (empty, empty) sentinel pair. Returns ok=false if
// the corpus never produced a single candidate (treated as unreachable
// or empty, which fall back identically per the spec).
func (g *Generator) walkParagraphs(ctx context.Context, rng *rand.Rand) ([]string, bool) {
	if g.corpus == nil {
		return nil, false
	}
	paragraphs := make([]string, 0, g.cfg.Paragraphs)
	any := false
	for p := 0; p < g.cfg.Paragraphs; p++ {
		words, ok := g.walkOnce(ctx, rng)
		if ok {
			any = true
			paragraphs = append(paragraphs, strings.Join(words, " ")+".")
		}
	}
	if !any {
		return nil, false
	}
	return paragraphs, true
}

func (g *Generator) walkOnce(ctx context.Context, rng *rand.Rand) ([]string, bool) {
	w1, w2 := EmptyWord, EmptyWord
	var out []string

	for len(out) < g.cfg.MaxWalkWords {
		candidates, err := g.corpus.Next(ctx, w1, w2)
		if err != nil || len(candidates) == 0 {
			break
		}
		next := weightedPick(rng, candidates)
		if next == EmptyWord {
			break
		}
		out = append(out, next)
		w1, w2 = w2, next

		if len(out) >= g.cfg.MinWalkWords && rng.Float64() < g.cfg.TerminateProb {
			break
		}
	}
	return out, len(out) > 0
}

// weightedPick selects a candidate proportional to Frequency using rng.
func weightedPick(rng *rand.Rand, candidates []Candidate) string {
	var total int64
	for _, c := range candidates {
		total += c.Frequency
	}
	if total <= 0 {
		return candidates[rng.Intn(len(candidates))].Next
	}
	target := rng.Int63n(total)
	var running int64
	for _, c := range candidates {
		running += c.Frequency
		if target < running {
			return c.Next
		}
	}
	return candidates[len(candidates)-1].Next
}

// links synthesizes plausible sibling fake paths under the same parent
// directory as path.
func (g *Generator) links(rng *rand.Rand, path string) []string {
	parent := path
	if idx := strings.LastIndex(strings.TrimSuffix(path, "/"), "/"); idx >= 0 {
		parent = path[:idx]
	}
	if parent == "" {
		parent = "/articles"
	}
	slugs := []string{
		"overview", "getting-started", "advanced-topics", "faq", "case-study",
		"reference", "changelog", "best-practices", "troubleshooting", "glossary",
		"appendix", "examples",
	}
	rng.Shuffle(len(slugs), func(i, j int) { slugs[i], slugs[j] = slugs[j], slugs[i] })

	n := g.cfg.Links
	if n > len(slugs) {
		n = len(slugs)
	}
	links := make([]string, 0, n)
	for i := 0; i < n; i++ {
		links = append(links, strings.TrimRight(parent, "/")+"/"+slugs[i]+fmt.Sprintf("-%d", rng.Intn(1000)))
	}
	return links
}
