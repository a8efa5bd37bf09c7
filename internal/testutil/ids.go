package testutil

import (
	"fmt"
	"sync"
)

// CallIDs hands out "<prefix>-1", "<prefix>-2", ... and can be rewound.
// It satisfies engine.CallIDGenerator.
//
// Scenario runs reset both the clock and the IDs so the same scenario
// produces a byte-identical trace every time.
type CallIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCallIDs creates a generator. An empty prefix becomes "call".
func NewCallIDs(prefix string) *CallIDs {
	if prefix == "" {
		prefix = "call"
	}
	return &CallIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *CallIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset rewinds the generator to "<prefix>-1".
func (g *CallIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
