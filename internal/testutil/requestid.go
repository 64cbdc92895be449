package testutil

import (
	"fmt"
	"sync"
)

// FixedRequestIDs generates request ids in a fixed sequence:
// "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same FixedRequestIDs produces byte-identical
// logs and continuation entries.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedRequestIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedRequestIDs creates a generator. If prefix is empty, ids start
// with "test-request".
func NewFixedRequestIDs(prefix string) *FixedRequestIDs {
	if prefix == "" {
		prefix = "test-request"
	}
	return &FixedRequestIDs{prefix: prefix}
}

// Generate returns the next id in the sequence.
//
// Implements engine.RequestIDGenerator interface.
func (g *FixedRequestIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *FixedRequestIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
