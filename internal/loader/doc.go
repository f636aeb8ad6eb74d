// Package loader turns assembled composition module source into an
// executable handle and owns that handle's lifecycle.
//
// LIFECYCLE:
// Load compiles module text and always returns a usable handle - on compile
// failure it degrades to a static "composition failed" placeholder handle
// and reports through the notifier, mirroring the per-scene fallback
// contract at whole-composition granularity. Publish installs a new current
// handle and releases the superseded one exactly once, only after the new
// one is confirmed loadable, so the player never observes a gap and handles
// never leak across recompiles.
//
// RUNTIME FAULT BOUNDARY:
// Every frame evaluation runs inside a per-scene boundary. A unit that
// raises during evaluation yields a standardized auto-repair placeholder
// scoped to that scene's duration; sibling scenes keep rendering
// undisturbed. Failure episodes are reported once (not per frame), and a
// recovery notification fires when the scene evaluates cleanly again.
package loader
