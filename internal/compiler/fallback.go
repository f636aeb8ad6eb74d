package compiler

import (
	"fmt"
	"strconv"

	"github.com/scenecast/scenecast/internal/scene"
)

// FallbackUnit produces the placeholder unit substituted for a scene that
// could not be compiled. The emitted body is literal-only - no references,
// no arithmetic, nothing derived from the failed scene's data beyond quoted
// strings - so the fallback itself can never raise at evaluation time.
//
// The placeholder is visually distinct ("fallback" element kind), carries
// the failure reason for display, and exposes a retry affordance so the UI
// can offer a manual recompile.
func FallbackUnit(d scene.Descriptor, index int, reason string) scene.CompiledUnit {
	entryName := EntryName(d.ID, index, "Fallback")

	text := fmt.Sprintf(`#%s: {
	frame: int & >=0
	elements: [{
		kind:    "fallback"
		sceneId: %s
		title:   %s
		message: %s
		retry:   true
	}]
}
`,
		entryName,
		strconv.Quote(d.ID),
		strconv.Quote(fallbackTitle(d)),
		strconv.Quote(reason),
	)

	return scene.CompiledUnit{
		SceneID:        d.ID,
		IsValid:        false,
		ExecutableText: text,
		EntryPointName: entryName,
		SourceHash:     scene.SourceHash(d.ResolvedSource()),
	}
}

func fallbackTitle(d scene.Descriptor) string {
	if d.Name != "" {
		return d.Name + ": auto-repair in progress"
	}
	return "Scene auto-repair in progress"
}
