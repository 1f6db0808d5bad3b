package markov

import (
	"hash/fnv"
	"math/rand"
)

// DeriveSeed combines the process-wide SYSTEM_SEED with a hash of the
// request path to obtain a 64-bit seed. All randomness for a given
// response derives solely from this seed, so an identical URL always
// yields byte-identical content.
func DeriveSeed(systemSeed, path string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(systemSeed))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(path))
	return int64(h.Sum64())
}

// NewRand returns a *rand.Rand seeded deterministically for path.
func NewRand(systemSeed, path string) *rand.Rand {
	return rand.New(rand.NewSource(DeriveSeed(systemSeed, path)))
}
