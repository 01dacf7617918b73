package services

import (
	"math/rand/v2"
	"sync"
)

// Rand is a goroutine-safe random source shared by the services. Tests seed
// it for repeatable choices.
type Rand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRand(seed uint64) *Rand {
	return &Rand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// IntN returns a value in [0, n). n must be positive.
func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

func (r *Rand) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng.Shuffle(n, swap)
}

// Choice picks one element of items, or "" when items is empty.
func (r *Rand) Choice(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[r.IntN(len(items))]
}

// Sample picks up to k distinct elements of items.
func (r *Rand) Sample(items []string, k int) []string {
	pool := append([]string(nil), items...)
	r.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if k < len(pool) {
		pool = pool[:k]
	}
	return pool
}
