package compiler

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/scenecast/scenecast/internal/scene"
)

// EntryName derives the globally unique entry point name for a scene:
// <base>_<shortID>. Candidates are tried in priority order; the first one
// that survives identifier sanitization wins. When none do, a synthetic
// Scene<index>Component base is used.
//
// The shortID suffix is derived from the scene id, which is what guarantees
// collision freedom across the composition: author-chosen names are never
// trusted for cross-unit uniqueness.
func EntryName(sceneID string, index int, candidates ...string) string {
	base := ""
	for _, c := range candidates {
		if s := sanitizeIdentifier(c); s != "" {
			base = s
			break
		}
	}
	if base == "" {
		base = fmt.Sprintf("Scene%dComponent", index)
	}
	return base + "_" + shortID(sceneID)
}

// shortID condenses a scene id into a short identifier-safe suffix.
// Ids are typically UUIDs; stripping separators and truncating keeps the
// suffix readable while staying unique enough within one composition
// (full uniqueness comes from the id itself feeding the hash fallback).
func shortID(sceneID string) string {
	var sb strings.Builder
	for _, r := range sceneID {
		if isIdentRune(r) {
			sb.WriteRune(r)
		}
		if sb.Len() >= 8 {
			break
		}
	}
	if sb.Len() == 0 {
		return fmt.Sprintf("%08x", scene.ContentHash(sceneID))
	}
	return strings.ToLower(sb.String())
}

// sanitizeIdentifier turns free-form text into a CUE-safe identifier:
// NFC normalized, non-identifier runes dropped, leading digits stripped,
// first letter upper-cased. Returns "" when nothing usable remains.
func sanitizeIdentifier(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))

	var sb strings.Builder
	for _, r := range s {
		if isIdentRune(r) {
			sb.WriteRune(r)
		}
	}
	out := strings.TrimLeft(sb.String(), "0123456789_")
	if out == "" {
		return ""
	}

	runes := []rune(out)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func isIdentRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
