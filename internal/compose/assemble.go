package compose

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue/format"

	"github.com/scenecast/scenecast/internal/scene"
)

// Mode identifies the shape of the emitted module.
type Mode string

const (
	// ModeEmpty is the placeholder module for a zero-scene composition.
	ModeEmpty Mode = "empty"
	// ModeSingle is the minimal wrapper for exactly one scene: the entry
	// point is exposed directly, skipping the sequencing machinery.
	ModeSingle Mode = "single"
	// ModeSequence is the general multi-scene timeline.
	ModeSequence Mode = "sequence"
)

// EmptyEntryName is the built-in entry point of the zero-scene placeholder.
const EmptyEntryName = "EmptyComposition"

// Placement is one unit scheduled into the timeline.
type Placement struct {
	Unit           scene.CompiledUnit
	Name           string
	DurationFrames int
}

// Boundary is one scene's resolved position on the composition timeline.
type Boundary struct {
	SceneID        string
	EntryPointName string
	Name           string
	From           int
	DurationFrames int
	IsValid        bool
}

// End returns the boundary's exclusive end frame.
func (b Boundary) End() int { return b.From + b.DurationFrames }

// Assembly is the result of one composition assembly.
type Assembly struct {
	Source      string
	Mode        Mode
	FPS         int
	TotalFrames int
	Boundaries  []Boundary
}

// stdCapability is the shared standard library made available to every
// unit's evaluation scope. It is an explicit definition in the module, not
// ambient state, so each unit's obligations are visible per-unit: the loader
// unifies every entry with #Std.#Scene before evaluating a frame.
const stdCapability = `#Std: {
	#Element: {
		kind: string
		...
	}
	#Scene: {
		frame: int & >=0
		elements: [...#Element]
		...
	}
}`

// emptyPlaceholderUnit is the built-in unit emitted for a zero-scene
// composition. Literal-only, like every fallback: it cannot raise.
const emptyPlaceholderUnit = `#` + EmptyEntryName + `: {
	frame: int & >=0
	elements: [{
		kind:    "empty-canvas"
		message: "Add a scene to get started"
	}]
}`

// Assemble emits the composition module for the given placements and audio
// overlay. Placements must already be in timeline order; offsets are
// computed here, cumulatively, from scratch.
//
// Degenerate durations (zero or negative) are clamped to one frame before
// any offset arithmetic so segments can never overlap or go negative-width.
// A zero-length placement list yields the empty-canvas placeholder module.
func Assemble(placements []Placement, audio *scene.AudioOverlay, fps int) (*Assembly, error) {
	if fps <= 0 {
		fps = scene.DefaultFPS
	}

	boundaries := resolveBoundaries(placements)
	totalFrames := 0
	for _, b := range boundaries {
		totalFrames = b.End()
	}

	mode := ModeSequence
	switch len(placements) {
	case 0:
		mode = ModeEmpty
		totalFrames = scene.PlaceholderDurationFrames
	case 1:
		mode = ModeSingle
	}

	var sb strings.Builder
	sb.WriteString("package composition\n\n")
	sb.WriteString(stdCapability)
	sb.WriteString("\n\n")

	if mode == ModeEmpty {
		sb.WriteString(emptyPlaceholderUnit)
		sb.WriteString("\n\n")
	}
	for _, p := range placements {
		sb.WriteString(strings.TrimRight(p.Unit.ExecutableText, "\n"))
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "fps:              %d\n", fps)
	fmt.Fprintf(&sb, "durationInFrames: %d\n", totalFrames)
	fmt.Fprintf(&sb, "mode:             %q\n\n", string(mode))

	switch mode {
	case ModeEmpty:
		emitMain(&sb, Boundary{
			EntryPointName: EmptyEntryName,
			From:           0,
			DurationFrames: totalFrames,
			IsValid:        true,
		})
	case ModeSingle:
		emitMain(&sb, boundaries[0])
	case ModeSequence:
		emitSequence(&sb, boundaries)
	}

	if audio != nil {
		emitAudio(&sb, audio, totalFrames, fps)
	}

	formatted, err := format.Source([]byte(sb.String()))
	if err != nil {
		return nil, fmt.Errorf("assemble composition: emitted module does not format: %w", err)
	}

	return &Assembly{
		Source:      string(formatted),
		Mode:        mode,
		FPS:         fps,
		TotalFrames: totalFrames,
		Boundaries:  boundaries,
	}, nil
}

// resolveBoundaries computes every placement's start offset as the sum of
// the durations of all strictly preceding placements.
func resolveBoundaries(placements []Placement) []Boundary {
	boundaries := make([]Boundary, 0, len(placements))
	from := 0
	for _, p := range placements {
		duration := p.DurationFrames
		if duration < 1 {
			duration = 1
		}
		boundaries = append(boundaries, Boundary{
			SceneID:        p.Unit.SceneID,
			EntryPointName: p.Unit.EntryPointName,
			Name:           p.Name,
			From:           from,
			DurationFrames: duration,
			IsValid:        p.Unit.IsValid,
		})
		from += duration
	}
	return boundaries
}

func emitMain(sb *strings.Builder, b Boundary) {
	fmt.Fprintf(sb, "main: {\n")
	fmt.Fprintf(sb, "\tsceneId:          %q\n", b.SceneID)
	fmt.Fprintf(sb, "\tentry:            %q\n", b.EntryPointName)
	fmt.Fprintf(sb, "\tdurationInFrames: %d\n", b.DurationFrames)
	fmt.Fprintf(sb, "\tvalid:            %t\n", b.IsValid)
	fmt.Fprintf(sb, "}\n")
}

func emitSequence(sb *strings.Builder, boundaries []Boundary) {
	sb.WriteString("sequence: [")
	for i, b := range boundaries {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "{\n")
		fmt.Fprintf(sb, "\tsceneId:          %q\n", b.SceneID)
		fmt.Fprintf(sb, "\tname:             %q\n", b.Name)
		fmt.Fprintf(sb, "\tentry:            %q\n", b.EntryPointName)
		fmt.Fprintf(sb, "\tfrom:             %d\n", b.From)
		fmt.Fprintf(sb, "\tdurationInFrames: %d\n", b.DurationFrames)
		fmt.Fprintf(sb, "\tvalid:            %t\n", b.IsValid)
		fmt.Fprintf(sb, "}")
	}
	sb.WriteString("]\n")
}

func emitAudio(sb *strings.Builder, audio *scene.AudioOverlay, totalFrames, fps int) {
	env := Envelope(audio, totalFrames, fps)

	fmt.Fprintf(sb, "\naudio: {\n")
	fmt.Fprintf(sb, "\tsrc:          %q\n", audio.URL)
	fmt.Fprintf(sb, "\ttrimStartSec: %s\n", formatSeconds(audio.StartTimeSec))
	fmt.Fprintf(sb, "\ttrimEndSec:   %s\n", formatSeconds(audio.EndTimeSec))
	fmt.Fprintf(sb, "\tplaybackRate: %s\n", formatSeconds(audio.Rate()))
	fmt.Fprintf(sb, "\tvolume:       %s\n", formatGain(audio.Volume))
	sb.WriteString("\tenvelope: [")
	for i, a := range env {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "[%d, %s]", a.Frame, formatGain(a.Gain))
	}
	sb.WriteString("]\n}\n")
}

// formatSeconds and formatGain pin float formatting so the emitted module is
// byte-stable for equal inputs (the fingerprint contract depends on it).
func formatSeconds(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

func formatGain(v float64) string   { return strconv.FormatFloat(v, 'f', 4, 64) }
