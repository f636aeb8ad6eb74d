package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scenecast/scenecast/internal/scene"
)

// Scenario defines a conformance test scenario: a sequence of scene-store
// revisions fed through the pipeline, plus probes and assertions on the
// resulting trace.
type Scenario struct {
	// Name uniquely identifies this scenario (and its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// FPS is the composition frame rate. Defaults to scene.DefaultFPS.
	FPS int `yaml:"fps,omitempty"`

	// Revisions are successive snapshots of the scene store. Each revision
	// recompiles unless its fingerprint matches the previous one, in which
	// case a revision-skipped event is traced instead.
	Revisions []Revision `yaml:"revisions"`

	// Probes are frames to render against the final revision's module.
	Probes []Probe `yaml:"probes,omitempty"`

	// Assertions validate the final trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Revision is one snapshot of the scene store.
type Revision struct {
	Scenes []SceneFixture `yaml:"scenes"`
	Audio  *AudioFixture  `yaml:"audio,omitempty"`
}

// SceneFixture describes one scene in a revision. Lowered text wins over
// authored source, mirroring the compiler's fast path.
type SceneFixture struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Order          int    `yaml:"order,omitempty"`
	DurationFrames int    `yaml:"duration_frames"`
	Source         string `yaml:"source,omitempty"`
	Lowered        string `yaml:"lowered,omitempty"`
}

// AudioFixture mirrors scene.AudioOverlay in YAML form.
type AudioFixture struct {
	URL          string  `yaml:"url"`
	Volume       float64 `yaml:"volume"`
	StartTimeSec float64 `yaml:"start_time_sec"`
	EndTimeSec   float64 `yaml:"end_time_sec"`
	FadeInSec    float64 `yaml:"fade_in_sec,omitempty"`
	FadeOutSec   float64 `yaml:"fade_out_sec,omitempty"`
	PlaybackRate float64 `yaml:"playback_rate,omitempty"`
}

// Probe renders one frame of the final module.
type Probe struct {
	Frame int `yaml:"frame"`
}

// Assertion validates the trace or the final module.
type Assertion struct {
	// Type specifies the assertion type (see package doc).
	Type string `yaml:"type"`

	// Event is the event type (used by event_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected event order (used by event_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (used by event_count).
	Count int `yaml:"count,omitempty"`

	// Scene identifies the scene (used by boundary, frame).
	Scene string `yaml:"scene,omitempty"`

	// Mode and TotalFrames describe the module (used by module).
	Mode        string `yaml:"mode,omitempty"`
	TotalFrames int    `yaml:"total_frames,omitempty"`

	// From and Duration describe a boundary (used by boundary).
	From     int   `yaml:"from,omitempty"`
	Duration int   `yaml:"duration,omitempty"`
	Valid    *bool `yaml:"valid,omitempty"`

	// Frame, Kind and Fallback describe a probe result (used by frame).
	Frame    *int   `yaml:"frame,omitempty"`
	Kind     string `yaml:"kind,omitempty"`
	Fallback *bool  `yaml:"fallback,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
	AssertModule     = "module"
	AssertBoundary   = "boundary"
	AssertFrame      = "frame"
	AssertUnitParity = "unit_parity"
)

// snapshot converts a revision into the pipeline's input form.
func (rev Revision) snapshot() scene.Snapshot {
	snap := scene.Snapshot{}
	for i, f := range rev.Scenes {
		order := f.Order
		if order == 0 {
			order = i + 1
		}
		kind := scene.SourceAuthored
		if f.Lowered != "" {
			kind = scene.SourcePrelowered
		}
		snap.Scenes = append(snap.Scenes, scene.Descriptor{
			ID:             f.ID,
			Name:           f.Name,
			Order:          order,
			DurationFrames: f.DurationFrames,
			SourceKind:     kind,
			SourceText:     f.Source,
			LoweredText:    f.Lowered,
		})
	}
	if rev.Audio != nil {
		snap.Audio = &scene.AudioOverlay{
			URL:          rev.Audio.URL,
			Volume:       rev.Audio.Volume,
			StartTimeSec: rev.Audio.StartTimeSec,
			EndTimeSec:   rev.Audio.EndTimeSec,
			FadeInSec:    rev.Audio.FadeInSec,
			FadeOutSec:   rev.Audio.FadeOutSec,
			PlaybackRate: rev.Audio.PlaybackRate,
		}
	}
	return snap
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Revisions) == 0 {
		return fmt.Errorf("revisions list is required and must be non-empty")
	}

	for i, rev := range s.Revisions {
		for j, f := range rev.Scenes {
			if f.ID == "" {
				return fmt.Errorf("revisions[%d].scenes[%d]: id is required", i, j)
			}
			if f.Name == "" {
				return fmt.Errorf("revisions[%d].scenes[%d]: name is required", i, j)
			}
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertModule:
		if a.Mode == "" && a.TotalFrames == 0 {
			return fmt.Errorf("assertions[%d]: mode or total_frames is required for module", index)
		}
	case AssertBoundary:
		if a.Scene == "" {
			return fmt.Errorf("assertions[%d]: scene is required for boundary", index)
		}
	case AssertFrame:
		if a.Frame == nil {
			return fmt.Errorf("assertions[%d]: frame is required for frame", index)
		}
	case AssertUnitParity:
		// No extra fields.
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
