package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryName_CandidatePriority(t *testing.T) {
	// First sanitizable candidate wins.
	assert.Equal(t, "Explicit_id123456", EntryName("id123456", 0, "Explicit", "Declared", "Store"))
	// Empty and unsanitizable candidates are skipped.
	assert.Equal(t, "Declared_id123456", EntryName("id123456", 0, "", "Declared"))
	assert.Equal(t, "Declared_id123456", EntryName("id123456", 0, "!!!", "Declared"))
	// No candidate at all: synthetic base from the scene index.
	assert.Equal(t, "Scene3Component_id123456", EntryName("id123456", 3))
}

func TestEntryName_SuffixFromSceneID(t *testing.T) {
	a := EntryName("aaaa-1111-2222", 0, "Intro")
	b := EntryName("bbbb-3333-4444", 1, "Intro")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "Intro_aaaa1111", a, "uuid separators stripped, truncated to 8")
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Intro", "Intro"},
		{"my scene", "Myscene"},
		{"3rd act", "Rdact"},
		{"___", ""},
		{"", ""},
		{"café-scène", "Cafscne"},
		{"lower", "Lower"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeIdentifier(tt.in), "input %q", tt.in)
	}
}

func TestShortID_EmptyFallsBackToHash(t *testing.T) {
	assert.Len(t, shortID("!!!"), 8, "non-identifier id hashes to hex")
	assert.Equal(t, shortID("abc"), "abc")
}

func TestStripModuleSyntax(t *testing.T) {
	body, ret := stripModuleSyntax(`package scenes

import (
	"list"
	"strings"
)

#Card: {
	frame: int
}

return #Card
`)
	assert.Equal(t, "Card", ret)
	assert.NotContains(t, body, "package")
	assert.NotContains(t, body, "list")
	assert.NotContains(t, body, "return")
	assert.Contains(t, body, "#Card: {")
}
