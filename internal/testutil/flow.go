package testutil

import (
	"strconv"
	"sync"
)

// SequenceFlowGenerator numbers flow tokens from a prefix: "prefix-1",
// "prefix-2", and so on. Each root dispatch of a scenario gets its own
// readable token, so golden traces stay stable across runs.
//
// Thread-safety: SequenceFlowGenerator is safe for concurrent use.
type SequenceFlowGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceFlowGenerator creates a generator for prefix.
// If prefix is empty, tokens are numbered from "test-flow".
func NewSequenceFlowGenerator(prefix string) *SequenceFlowGenerator {
	if prefix == "" {
		prefix = "test-flow"
	}
	return &SequenceFlowGenerator{prefix: prefix}
}

// Generate returns the next token.
//
// Implements engine.FlowTokenGenerator.
func (g *SequenceFlowGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + "-" + strconv.Itoa(g.n)
}
