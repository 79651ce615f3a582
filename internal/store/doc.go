// Package store is the SQLite-backed intent journal.
//
// The journal is an append-only audit log of what the dispatcher did:
//   - Intents: one row per dispatch, root or follow-up
//   - Outcomes: at most one row per intent (ok, failed or superseded)
//
// It is never read back into session state. The trace command and the
// scenario harness read it to show or compare what happened in a flow.
//
// # Ordering
//
// All ordering uses the seq column (a logical clock), never wall time.
// Every query orders by seq ASC, id COLLATE BINARY ASC so a replayed
// scenario produces byte-identical traces.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Outcomes must name a journaled intent
package store
