package engine

import (
	"math/rand/v2"
	"time"
)

// Rand is the random source behind every sampling, shuffling and attachment
// decision of a run.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// NewRand returns a seeded source. Seed 0 picks a seed from the clock; the
// chosen seed is returned so the run can be replayed.
func NewRand(seed uint64) (Rand, uint64) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed>>1^0x9e3779b97f4a7c15)), seed
}

// shuffle permutes a copy of items.
func shuffle[T any](r Rand, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// chance reports true with probability p.
func chance(r Rand, p float64) bool {
	return r.Float64() < p
}

// between returns a duration uniformly in [lo, hi].
func between(r Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.IntN(int(hi-lo)+1))
}
