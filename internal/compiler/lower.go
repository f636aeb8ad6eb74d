package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"

	"github.com/scenecast/scenecast/internal/scene"
)

// lowerAuthored lowers authored scene source (the CUE scene dialect) into
// the canonical executable form. This is the slow path: a full parse and
// validation of the authored struct.
//
// The authored dialect is a top-level `scene` struct:
//
//	scene: {
//		name:     "Intro"
//		entry:    "Intro"        // optional explicit entry name
//		render: {
//			frame: int
//			elements: [...]
//		}
//	}
//
// The render struct must be self-contained: it may only reference its own
// fields. References escaping render surface as compile errors on the
// verification pass and route the scene to the fallback path.
func lowerAuthored(cctx *cue.Context, d scene.Descriptor, index int) (entryName, lowered string, err error) {
	v := cctx.CompileString(d.SourceText, cue.Filename(sceneFilename(d)))
	if v.Err() != nil {
		return "", "", sceneError(d.ID, d.Name, index, v.Err())
	}

	sceneVal := v.LookupPath(cue.ParsePath("scene"))
	if !sceneVal.Exists() {
		return "", "", sceneError(d.ID, d.Name, index,
			fmt.Errorf("authored source has no top-level scene struct"))
	}

	renderVal := sceneVal.LookupPath(cue.ParsePath("render"))
	if !renderVal.Exists() {
		return "", "", sceneError(d.ID, d.Name, index,
			fmt.Errorf("scene has no render struct"))
	}
	if !renderVal.LookupPath(cue.ParsePath("frame")).Exists() {
		return "", "", sceneError(d.ID, d.Name, index,
			fmt.Errorf("render struct does not declare frame"))
	}
	if !renderVal.LookupPath(cue.ParsePath("elements")).Exists() {
		return "", "", sceneError(d.ID, d.Name, index,
			fmt.Errorf("render struct does not declare elements"))
	}

	// Entry name priority: explicit entry field, declared scene name,
	// store-side scene name, synthetic fallback inside EntryName.
	explicitEntry, _ := sceneVal.LookupPath(cue.ParsePath("entry")).String()
	declaredName, _ := sceneVal.LookupPath(cue.ParsePath("name")).String()
	entryName = EntryName(d.ID, index, explicitEntry, declaredName, d.Name)

	body, err := renderSourceText(renderVal)
	if err != nil {
		return "", "", sceneError(d.ID, d.Name, index, err)
	}

	raw := fmt.Sprintf("#%s: {\n\tframe: int & >=0\n} & %s\n", entryName, body)
	lowered, err = canonicalizeLowered(raw)
	if err != nil {
		return "", "", sceneError(d.ID, d.Name, index, err)
	}

	// Verification pass: the lowered text must compile standalone. This is
	// what catches render bodies that reference fields outside render.
	if err := verifyLowered(entryName, lowered); err != nil {
		return "", "", sceneError(d.ID, d.Name, index, err)
	}

	return entryName, lowered, nil
}

// renderSourceText extracts the render struct's source text from the
// authored value, preserving expressions unevaluated (frame-dependent
// arithmetic must survive lowering, not be resolved away).
func renderSourceText(renderVal cue.Value) (string, error) {
	node := renderVal.Syntax(cue.Raw())
	if node == nil {
		return "", fmt.Errorf("render struct has no source form")
	}
	b, err := format.Node(node)
	if err != nil {
		return "", fmt.Errorf("format render struct: %w", err)
	}
	return string(b), nil
}

// canonicalizeLowered runs the assembled lowered text through the CUE
// formatter so both lowering paths emit byte-identical canonical form for
// identical input. Equal fingerprints guaranteeing byte-identical modules
// depends on this.
func canonicalizeLowered(raw string) (string, error) {
	b, err := format.Source([]byte(raw))
	if err != nil {
		return "", fmt.Errorf("canonicalize lowered form: %w", err)
	}
	return string(b), nil
}

// verifyLowered checks that lowered text compiles standalone and actually
// declares its entry definition.
func verifyLowered(entryName, lowered string) error {
	v := cuecontext.New().CompileString(lowered)
	if v.Err() != nil {
		return fmt.Errorf("lowered form does not compile standalone: %w", v.Err())
	}
	def := v.LookupPath(cue.MakePath(cue.Def("#" + entryName)))
	if !def.Exists() {
		return fmt.Errorf("lowered form does not declare #%s", entryName)
	}
	return nil
}

func sceneFilename(d scene.Descriptor) string {
	return fmt.Sprintf("scene-%s.cue", d.ID)
}
