package chem

import (
	"errors"
	"sync"

	"github.com/roach88/flame/internal/ir"
)

// ErrInvalidSmiles is returned by a Renderer for input it cannot draw.
var ErrInvalidSmiles = errors.New("invalid smiles")

// ErrNotRendered is returned when a renderer has no drawing for valid input.
var ErrNotRendered = errors.New("no rendering available")

// Rendering is what the structure toolkit produces for one SMILES string.
type Rendering struct {
	SVG     string
	Formula string
}

// Renderer is the SMILES rendering collaborator.
type Renderer interface {
	Render(smiles string) (Rendering, error)
}

// TryRender calls r and swallows failures: invalid input simply renders
// nothing, with no message.
func TryRender(r Renderer, smiles string) (Rendering, bool) {
	if r == nil {
		return Rendering{}, false
	}
	out, err := r.Render(SplitComponents(smiles))
	if err != nil {
		return Rendering{}, false
	}
	return out, true
}

// CatalogRenderer serves renderings the backend already computed. Every
// fetched summary carries its connectivity SMILES with an SVG, so the client
// can display anything it has listed without a local toolkit.
//
// Thread-safety: CatalogRenderer is safe for concurrent use.
type CatalogRenderer struct {
	mu       sync.RWMutex
	bySmiles map[string]Rendering
}

// NewCatalogRenderer creates an empty renderer.
func NewCatalogRenderer() *CatalogRenderer {
	return &CatalogRenderer{bySmiles: make(map[string]Rendering)}
}

// Learn records the renderings carried by a listing. Rows without an SVG
// are skipped.
func (c *CatalogRenderer) Learn(items []ir.Connectivity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		if item.ConnSmiles == "" || item.SVGString == "" {
			continue
		}
		c.bySmiles[item.ConnSmiles] = Rendering{SVG: item.SVGString, Formula: item.Formula}
	}
}

// Len returns the number of known renderings.
func (c *CatalogRenderer) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bySmiles)
}

// Render implements Renderer.
func (c *CatalogRenderer) Render(smiles string) (Rendering, error) {
	if !PlausibleSmiles(smiles) {
		return Rendering{}, ErrInvalidSmiles
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out, ok := c.bySmiles[smiles]
	if !ok {
		return Rendering{}, ErrNotRendered
	}
	return out, nil
}
