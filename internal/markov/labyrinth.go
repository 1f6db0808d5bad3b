package markov

import (
	"fmt"
	"math/rand"
	"strings"
)

// LabyrinthPage builds a maze page with only forward-links (no
// back-links), depth fake paths deep, deterministically from the same
// seeding rule as the classic tarpit page.
func (g *Generator) LabyrinthPage(systemSeed, path string, depth int) Page {
	rng := NewRand(systemSeed, path)
	if depth <= 0 {
		depth = 8
	}

	paragraphs := []string{
		"You have reached a corridor with several unmarked doors. Each leads further in; none leads back.",
	}

	links := make([]string, 0, depth)
	base := strings.TrimRight(path, "/")
	for i := 0; i < depth; i++ {
		links = append(links, fmt.Sprintf("%s/room-%d-%d", base, i, rng.Intn(100000)))
	}

	return Page{
		Title:      "The Archive: " + randomRoomName(rng),
		Paragraphs: paragraphs,
		Links:      links,
	}
}

func randomRoomName(rng *rand.Rand) string {
	names := []string{"East Wing", "Lower Stacks", "Annex B", "Reading Room", "Sub-Basement", "Old Catalog"}
	return names[rng.Intn(len(names))]
}

// ShouldUseLabyrinth decides, per request, whether the labyrinth variant
// applies — deterministically from hash(path) so the choice is
// reproducible and auditable rather than a single global toggle. See
// DESIGN.md's Open Question decision for the rationale.
func ShouldUseLabyrinth(systemSeed, path string, fraction float64) bool {
	if fraction <= 0 {
		return false
	}
	if fraction >= 1 {
		return true
	}
	h := DeriveSeed(systemSeed, "labyrinth:"+path)
	// Map the hash into [0,1) using the low 32 bits for even distribution.
	v := float64(uint32(h)) / float64(1<<32)
	return v < fraction
}
