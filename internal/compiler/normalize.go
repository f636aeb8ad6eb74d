package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/ast/astutil"
	"cuelang.org/go/cue/format"
	"cuelang.org/go/cue/parser"

	"github.com/scenecast/scenecast/internal/scene"
)

var returnLineRE = regexp.MustCompile(`^\s*return\s+#?([A-Za-z_][A-Za-z0-9_]*)\s*$`)

// normalizePrelowered is the fast path: the scene already carries executable
// text, cached from a prior lowering. The pre-lowered form may assume it is
// the sole top-level program, so it is normalized into the same canonical
// contract as freshly lowered scenes:
//
//  1. module syntax (package clause, imports) is stripped
//  2. a trailing `return <Identifier>` line is stripped, the identifier kept
//     as an entry-name hint
//  3. the top-level definition is renamed to the unique identity-derived
//     entry name; a bare body with no definition is wrapped in one
//
// Both paths share canonicalizeLowered/verifyLowered, so the persisted cache
// and the fresh-lowering output are byte-compatible.
func normalizePrelowered(d scene.Descriptor, index int) (entryName, lowered string, err error) {
	body, returnIdent := stripModuleSyntax(d.LoweredText)
	if strings.TrimSpace(body) == "" {
		return "", "", sceneError(d.ID, d.Name, index,
			fmt.Errorf("pre-lowered form is empty after stripping module syntax"))
	}

	f, parseErr := parser.ParseFile("prelowered.cue", body)
	if parseErr != nil {
		return "", "", sceneError(d.ID, d.Name, index,
			fmt.Errorf("pre-lowered form does not parse: %w", parseErr))
	}

	oldName := topLevelDefinition(f)
	entryName = EntryName(d.ID, index, oldName, returnIdent, d.Name)

	var raw string
	switch {
	case oldName == "":
		// Sole top-level program with no definition: wrap the whole body
		// in a self-contained evaluation scope assigned to the entry name.
		raw = fmt.Sprintf("#%s: {\n%s\n}\n", entryName, body)
	case oldName == entryName:
		raw = body
	default:
		renameDefinition(f, oldName, entryName)
		b, fmtErr := format.Node(f)
		if fmtErr != nil {
			return "", "", sceneError(d.ID, d.Name, index,
				fmt.Errorf("format renamed form: %w", fmtErr))
		}
		raw = string(b)
	}

	lowered, err = canonicalizeLowered(raw)
	if err != nil {
		return "", "", sceneError(d.ID, d.Name, index, err)
	}
	if err := verifyLowered(entryName, lowered); err != nil {
		return "", "", sceneError(d.ID, d.Name, index, err)
	}
	return entryName, lowered, nil
}

// stripModuleSyntax removes package clauses, import declarations and a
// trailing `return <Identifier>` line. Returns the remaining body and the
// captured return identifier ("" when absent).
func stripModuleSyntax(text string) (body, returnIdent string) {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	inImportBlock := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if inImportBlock {
			if trimmed == ")" {
				inImportBlock = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "package ") {
			continue
		}
		if trimmed == "import (" {
			inImportBlock = true
			continue
		}
		if strings.HasPrefix(trimmed, "import ") {
			continue
		}
		if m := returnLineRE.FindStringSubmatch(line); m != nil {
			returnIdent = m[1]
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), returnIdent
}

// topLevelDefinition returns the name of the parsed program's entry point,
// without the leading '#'. The entry point is either the first top-level
// definition (#Name), or - for legacy pre-lowered programs - a sole
// struct-valued top-level field. Returns "" for a bare struct body (plain
// fields with no enclosing component), which the caller wraps.
func topLevelDefinition(f *ast.File) string {
	var fields []*ast.Field
	for _, decl := range f.Decls {
		if field, ok := decl.(*ast.Field); ok {
			fields = append(fields, field)
		}
	}

	for _, field := range fields {
		ident, ok := field.Label.(*ast.Ident)
		if !ok {
			continue
		}
		if strings.HasPrefix(ident.Name, "#") {
			return strings.TrimPrefix(ident.Name, "#")
		}
	}

	if len(fields) == 1 {
		if ident, ok := fields[0].Label.(*ast.Ident); ok {
			if _, isStruct := fields[0].Value.(*ast.StructLit); isStruct {
				return ident.Name
			}
		}
	}
	return ""
}

// renameDefinition rewrites the entry definition's label and every
// identifier reference to it into #newName, in place on the parsed file.
// Only identifier nodes are touched: a string literal that happens to
// mention the old name is scene content and must survive the rename
// byte-for-byte. Bare labels are promoted to definitions so the canonical
// form always exposes exactly one entry definition.
func renameDefinition(f *ast.File, oldName, newName string) {
	astutil.Apply(f, func(c astutil.Cursor) bool {
		if ident, ok := c.Node().(*ast.Ident); ok {
			if ident.Name == oldName || ident.Name == "#"+oldName {
				ident.Name = "#" + newName
			}
		}
		return true
	}, nil)
}
