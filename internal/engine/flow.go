package engine

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// FlowTokenGenerator generates flow tokens for root dispatches.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type FlowTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 flow tokens, so flows
// list in creation order in the journal.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined flow tokens, so journaled intent
// IDs are reproducible in golden traces.
//
// Once the list is exhausted it keeps numbering from the last prefix
// rather than panicking: a scenario may dispatch more roots than it named.
//
// Thread-safety: FixedGenerator is safe for concurrent use.
type FixedGenerator struct {
	mu       sync.Mutex
	tokens   []string
	idx      int
	overflow int
}

// NewFixedGenerator creates a generator that returns tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx < len(g.tokens) {
		token := g.tokens[g.idx]
		g.idx++
		return token
	}
	g.overflow++
	return "flow-extra-" + strconv.Itoa(g.overflow)
}
