package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator returns run IDs <prefix>-1, <prefix>-2, ...
//
// This enables deterministic ledgers: the same scenarios run with a fresh
// generator record identical rows.
//
// Thread-safety: SequenceIDGenerator is safe for concurrent use via internal mutex.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDGenerator creates a generator with the given prefix.
// If prefix is empty, "run" is used.
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next run ID.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
