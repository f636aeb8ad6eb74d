package scene

import (
	"fmt"
)

// DefaultFPS is the shared frame clock rate for every composition.
const DefaultFPS = 30

// PlaceholderDurationFrames is the total duration of the module emitted for
// an empty scene list, so the player always has something loadable.
const PlaceholderDurationFrames = 150

// SourceKind distinguishes how a scene's source should be lowered.
type SourceKind string

const (
	// SourceAuthored is the authoring-level dialect; it requires lowering
	// before it can be executed.
	SourceAuthored SourceKind = "authored"
	// SourcePrelowered is text already in executable form, cached from a
	// prior lowering. Preferred over authored source for latency.
	SourcePrelowered SourceKind = "prelowered"
)

// Descriptor is one scene as provided by the external scene store.
//
// Exactly one of SourceText / LoweredText must be non-empty for the scene to
// be compilable; LoweredText takes precedence when both are present.
// Descriptors are read-only snapshots - the engine never writes back.
type Descriptor struct {
	ID             string     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	Order          int        `json:"order" yaml:"order"`
	DurationFrames int        `json:"duration_frames" yaml:"duration"`
	SourceKind     SourceKind `json:"source_kind" yaml:"source_kind"`
	SourceText     string     `json:"source_text,omitempty" yaml:"source_text,omitempty"`
	LoweredText    string     `json:"lowered_text,omitempty" yaml:"lowered_text,omitempty"`
	// Revision is a monotonic counter bumped by the store on every edit.
	// It is informational; content changes are detected by hashing.
	Revision int64 `json:"revision" yaml:"revision,omitempty"`
}

// ResolvedSource returns the text that will actually be lowered: the
// pre-lowered form when present, otherwise the authored source.
func (d Descriptor) ResolvedSource() string {
	if d.LoweredText != "" {
		return d.LoweredText
	}
	return d.SourceText
}

// Compilable reports whether the descriptor carries any source at all.
// A non-compilable descriptor still yields a unit - a fallback one.
func (d Descriptor) Compilable() bool {
	return d.SourceText != "" || d.LoweredText != ""
}

// Validate checks descriptor-level invariants. A failed validation does not
// abort compilation; the compiler substitutes a fallback unit instead.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("scene: missing id")
	}
	if d.DurationFrames <= 0 {
		return fmt.Errorf("scene %s: duration must be positive, got %d", d.ID, d.DurationFrames)
	}
	if !d.Compilable() {
		return fmt.Errorf("scene %s: no source text", d.ID)
	}
	return nil
}

// AudioOverlay is the optional audio track merged into the composition.
// At most one overlay exists per composition.
type AudioOverlay struct {
	URL          string  `json:"url" yaml:"url"`
	Volume       float64 `json:"volume" yaml:"volume"`
	StartTimeSec float64 `json:"start_time_sec" yaml:"start_time_sec"`
	EndTimeSec   float64 `json:"end_time_sec" yaml:"end_time_sec"`
	FadeInSec    float64 `json:"fade_in_sec" yaml:"fade_in_sec"`
	FadeOutSec   float64 `json:"fade_out_sec" yaml:"fade_out_sec"`
	PlaybackRate float64 `json:"playback_rate" yaml:"playback_rate"`
}

// Validate checks the overlay's trim window and ranges.
func (a AudioOverlay) Validate() error {
	if a.URL == "" {
		return fmt.Errorf("audio: missing url")
	}
	if a.StartTimeSec >= a.EndTimeSec {
		return fmt.Errorf("audio: trim start %.3f must be before trim end %.3f", a.StartTimeSec, a.EndTimeSec)
	}
	if a.Volume < 0 || a.Volume > 1 {
		return fmt.Errorf("audio: volume %.3f outside [0,1]", a.Volume)
	}
	return nil
}

// Rate returns the playback rate, defaulting to 1.0 when unset.
func (a AudioOverlay) Rate() float64 {
	if a.PlaybackRate <= 0 {
		return 1.0
	}
	return a.PlaybackRate
}

// CompiledUnit is one scene lowered to directly executable form.
//
// Units are immutable: a recompile produces a fresh unit, the old one is
// discarded. EntryPointName is derived from the scene id and is unique
// across the whole composition even when two scenes were authored with
// identical names.
type CompiledUnit struct {
	SceneID        string
	IsValid        bool
	ExecutableText string
	EntryPointName string
	SourceHash     string
}

// Snapshot is the full read-only input to one compilation: the ordered scene
// list plus the optional audio overlay, as observed at one instant.
type Snapshot struct {
	Scenes []Descriptor
	Audio  *AudioOverlay
}

// LoopWindow is an inclusive/exclusive playable frame range. A nil window
// means "whole composition" - no restriction.
type LoopWindow struct {
	StartFrame        int
	EndFrameExclusive int
}

// Element is one drawing primitive produced by a unit for a single frame.
// The schema is open: the standard-library capability definition in the
// assembled module constrains the known kinds.
type Element map[string]any

// Frame is the result of evaluating the composition at one frame index.
type Frame struct {
	Frame     int       `json:"frame"`
	SceneID   string    `json:"scene_id,omitempty"`
	Elements  []Element `json:"elements"`
	AudioGain float64   `json:"audio_gain"`
	// Fallback is true when the elements come from a fault boundary
	// (scene runtime error or whole-composition load failure).
	Fallback bool `json:"fallback,omitempty"`
}
