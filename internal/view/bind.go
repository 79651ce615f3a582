// Package view renders session state as terminal text and keeps renderings
// in step with the store.
package view

import (
	"sync"

	"github.com/roach88/flame/internal/state"
)

// RenderFunc draws one snapshot. changed is the slice whose update caused
// the render, or "" for the initial render.
type RenderFunc func(changed state.Slice, snap state.Snapshot)

// Bind renders once immediately and again whenever one of the named slices
// changes (every slice when none are named). Renders are serialized and
// each one reads the store under the render lock, so concurrent updates
// from several task goroutines never draw an older snapshot after a newer
// one. A RenderFunc must not update the store. The returned func unbinds.
func Bind(st *state.Store, render RenderFunc, slices ...state.Slice) func() {
	var mu sync.Mutex
	draw := func(changed state.Slice, _ state.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		render(changed, st.Snapshot())
	}

	unsub := st.Subscribe(draw, slices...)
	draw("", state.Snapshot{})
	return unsub
}
