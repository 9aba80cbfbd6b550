package engine

import "math/rand"

// RNG wraps math/rand.Rand with deterministic position tracking, so battles
// replay identically from a seed in tests.
type RNG struct {
	seed int64
	src  *rand.Rand
	pos  int64
}

// NewRNG creates a deterministic RNG from a seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		seed: seed,
		src:  rand.New(rand.NewSource(seed)),
	}
}

// IntN returns a random integer in [0, n). n must be positive.
func (r *RNG) IntN(n int) int {
	r.pos++
	return r.src.Intn(n)
}

// Pick returns a uniform index into a collection of size n.
func (r *RNG) Pick(n int) int {
	r.pos++
	return r.src.Intn(n)
}

// Position returns the number of draws made since creation.
func (r *RNG) Position() int64 {
	return r.pos
}
