// Package engine implements the compilation scheduler: the single-writer
// loop that keeps the published composition module in step with the scene
// store while edits stream in.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// All scheduler state transitions happen in one goroutine (Run). External
// callers submit snapshots via Update/Flush from any goroutine; the loop
// dequeues them, fingerprints them, and drives the state machine. This keeps
// the coordination problem - edits arriving while a compile is in flight -
// down to one pending slot with no locking subtleties.
//
// State machine:
//
//	Idle ──fingerprint change──▶ Debouncing ──timer──▶ Compiling ──▶ Idle
//	  Debouncing: restarts on further changes; reverting to the last
//	    published fingerprint cancels back to Idle.
//	  Compiling + change ──▶ CompilingWithPending (depth-1, latest wins)
//	  CompilingWithPending ──compile done──▶ Compiling (immediately)
//
// INVARIANTS:
//   - At most one compile is in flight at any time.
//   - The pending slot holds only the newest fingerprint; intermediate
//     states are discarded, never queued.
//   - A superseded in-flight compile is allowed to finish; its result is
//     discarded by a fingerprint recheck before publish. No cancellation
//     primitive exists or is needed.
//   - The fingerprint that is current when a compile finishes is always
//     compiled next - no user edit is permanently lost.
//
// The compile itself (lower, assemble, load) runs on a worker goroutine so
// the loop keeps absorbing edits; the result is posted back to the loop for
// the staleness recheck and publish.
package engine
