package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator returns UUID-shaped identifiers numbered from 1.
//
// The same scenario run with a fresh generator produces byte-identical ids,
// which keeps golden event traces stable.
//
// Thread-safety: SequenceIDGenerator is safe for concurrent use.
type SequenceIDGenerator struct {
	mu sync.Mutex
	n  int
}

// NewSequenceIDGenerator creates a generator whose first id ends in 1.
func NewSequenceIDGenerator() *SequenceIDGenerator {
	return &SequenceIDGenerator{}
}

// Generate returns the next id, e.g. "00000000-0000-7000-8000-000000000001".
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", g.n)
}
