package testutil

import (
	"fmt"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Bytes returns n pseudo-random bytes.
// Locks only once per call (preferred over calling Intn in a loop).
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := make([]byte, n)
	r.rand.Read(buf)
	return buf
}

// Name returns a deterministic pseudo-random filename like "f07-3a91" that
// fits the directory's name limit.
func (r *RNG) Name(i int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("f%02d-%04x", i, r.rand.Intn(0x10000))
}
