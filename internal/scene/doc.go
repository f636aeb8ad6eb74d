// Package scene defines the shared data model for the composition engine.
//
// The types here are the contract between every other package:
//
//   - Descriptor / AudioOverlay: the read-only snapshot the engine receives
//     from the external scene store on every change notification.
//   - CompiledUnit: one scene lowered to directly executable form. Units are
//     immutable once produced - they are replaced wholesale, never mutated,
//     which is what makes per-scene fault isolation safe.
//   - Fingerprint: the deterministic, order-sensitive summary of the whole
//     composition. Two equal fingerprints guarantee a byte-identical module,
//     so the fingerprint is the sole memoization key for the scheduler.
//   - Notifier: the outbound channel for compile- and run-time failures.
//     The engine never attempts semantic repair itself; it reports and
//     substitutes fallback content.
//
// Frames are the only time unit inside the engine. Seconds appear only on
// AudioOverlay fields and are converted at composition-assembly time.
package scene
