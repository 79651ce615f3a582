// Package engine dispatches intents to their effect handlers.
//
// A Dispatcher owns the concurrency policy, the backend client, the state
// store it writes to and the optional intent journal.
//
// # Strategies
//
// Every remote op is routed through the catalog, which also declares its
// strategy:
//
//   - latest: one task slot per op. A new dispatch cancels the in-flight
//     task (its HTTP request is aborted) and bumps the slot generation.
//     A task commits state only while its generation is current, checked
//     under the slot lock.
//   - every: each dispatch runs in its own goroutine, with no ordering
//     between concurrent tasks.
//
// Local ops never reach the backend and apply synchronously inside
// Dispatch.
//
// # Flows
//
// A root dispatch starts a flow (UUIDv7 token). Follow-ups a handler
// queues inherit the token and are dispatched after the parent's outcome
// is recorded. A flow is refused once it exceeds the max-steps quota.
//
// # Logical Clock
//
// Every journal record is stamped with a seq from Clock.Next(). Ordering
// never uses wall time.
package engine
