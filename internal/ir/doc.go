// Package ir provides the typed intents and catalog entities shared by every
// flame package.
//
// ir imports nothing internal. Every other package builds on it, which keeps
// the intent vocabulary free of transport and storage concerns.
//
// Key design constraints:
//   - One Go type per intent, each with an explicit payload shape
//   - All JSON tags use snake_case, matching the catalog backend
//   - Intent identity is content-addressed over canonical JSON (see hash.go)
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
