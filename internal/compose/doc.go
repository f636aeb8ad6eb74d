// Package compose assembles compiled units into one loadable composition
// module and resolves frame-accurate loop windows.
//
// The assembler is a pure text emitter: given the ordered units (valid or
// fallback, one per scene) and the optional audio overlay, it produces a
// single self-contained CUE source file - unit definitions, the shared
// capability schema, the placement sequence, and the audio envelope - plus
// the scene boundary table the loader and the loop resolver consume.
//
// OFFSETS:
// Per-scene start offsets are recomputed from scratch on every assembly,
// never incrementally patched. Drift from stale prior state is impossible
// because no prior state exists.
//
// AUDIO:
// Fade-in/fade-out are piecewise-linear gain ramps anchored to the
// composition timeline (frame 0 is composition frame 0, not a position in
// the source file). The audio segment always starts at composition frame 0,
// offset into the source file by its trim start.
package compose
