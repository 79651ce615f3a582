package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceFlowGenerator_Numbers(t *testing.T) {
	gen := NewSequenceFlowGenerator("search")

	assert.Equal(t, "search-1", gen.Generate())
	assert.Equal(t, "search-2", gen.Generate())
	assert.Equal(t, "search-3", gen.Generate())
}

func TestSequenceFlowGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequenceFlowGenerator("")
	assert.Equal(t, "test-flow-1", gen.Generate())
}

func TestSequenceFlowGenerator_ConcurrentUnique(t *testing.T) {
	gen := NewSequenceFlowGenerator("p")

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := gen.Generate()
			mu.Lock()
			seen[tok] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	assert.True(t, seen["p-50"])
}
