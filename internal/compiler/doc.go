// Package compiler lowers scene sources into directly executable units.
//
// Each scene arrives either as authored source (the CUE scene dialect the
// generation pipeline writes) or as a pre-lowered form cached from a prior
// run. Both paths converge on one canonical lowered contract: a single
// self-contained CUE definition
//
//	#<EntryName>: {
//		frame: int & >=0
//		elements: [...]
//	}
//
// with the entry name derived from the scene id so no two scenes collide
// even when authored with identical names.
//
// FAULT ISOLATION (compile time):
// Compile never fails the whole composition. A scene whose source cannot be
// lowered yields a fallback unit - a literal-only placeholder that cannot
// itself raise - and a structured error event for the external repair
// pipeline. The unit count always equals the scene count.
//
// CACHING:
// Units are cached keyed by (scene id, audio offset, source hash), so edits
// to one scene never force recompilation of untouched siblings.
package compiler
