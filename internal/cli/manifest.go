package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/scenecast/scenecast/internal/scene"
)

// Manifest is the on-disk project description: an ordered scene list plus
// an optional audio overlay. Scene sources may be inline or referenced by
// file path (resolved relative to the manifest's directory).
type Manifest struct {
	FPS    int             `yaml:"fps"`
	Scenes []ManifestScene `yaml:"scenes"`
	Audio  *ManifestAudio  `yaml:"audio"`
}

// ManifestScene describes one scene entry. Exactly one of Source/SourceFile
// or Lowered/LoweredFile should be set; lowered text wins when both appear,
// mirroring the compiler's fast path.
type ManifestScene struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Order          int    `yaml:"order"`
	DurationFrames int    `yaml:"duration_frames"`
	Source         string `yaml:"source"`
	SourceFile     string `yaml:"source_file"`
	Lowered        string `yaml:"lowered"`
	LoweredFile    string `yaml:"lowered_file"`
}

// ManifestAudio mirrors scene.AudioOverlay in YAML form.
type ManifestAudio struct {
	URL          string  `yaml:"url"`
	Volume       float64 `yaml:"volume"`
	StartTimeSec float64 `yaml:"start_time_sec"`
	EndTimeSec   float64 `yaml:"end_time_sec"`
	FadeInSec    float64 `yaml:"fade_in_sec"`
	FadeOutSec   float64 `yaml:"fade_out_sec"`
	PlaybackRate float64 `yaml:"playback_rate"`
}

// LoadManifest reads and resolves a project manifest into a snapshot the
// pipeline can compile. Scenes without an id get a generated UUID; scenes
// without an explicit order keep their list position.
func LoadManifest(path string) (scene.Snapshot, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scene.Snapshot{}, 0, &ExitError{
			Code:    ExitCommandError,
			Message: fmt.Sprintf("%s: manifest not readable: %v", ErrCodeNotFound, err),
			Err:     err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return scene.Snapshot{}, 0, &ExitError{
			Code:    ExitCommandError,
			Message: fmt.Sprintf("%s: manifest parse failed: %v", ErrCodeManifest, err),
			Err:     err,
		}
	}

	baseDir := filepath.Dir(path)
	snap := scene.Snapshot{}
	for i, ms := range m.Scenes {
		d, err := resolveScene(baseDir, i, ms)
		if err != nil {
			return scene.Snapshot{}, 0, err
		}
		snap.Scenes = append(snap.Scenes, d)
	}

	if m.Audio != nil {
		snap.Audio = &scene.AudioOverlay{
			URL:          m.Audio.URL,
			Volume:       m.Audio.Volume,
			StartTimeSec: m.Audio.StartTimeSec,
			EndTimeSec:   m.Audio.EndTimeSec,
			FadeInSec:    m.Audio.FadeInSec,
			FadeOutSec:   m.Audio.FadeOutSec,
			PlaybackRate: m.Audio.PlaybackRate,
		}
		if err := snap.Audio.Validate(); err != nil {
			return scene.Snapshot{}, 0, &ExitError{
				Code:    ExitCommandError,
				Message: fmt.Sprintf("%s: audio overlay invalid: %v", ErrCodeManifest, err),
				Err:     err,
			}
		}
	}

	fps := m.FPS
	if fps <= 0 {
		fps = scene.DefaultFPS
	}
	return snap, fps, nil
}

// resolveScene turns one manifest entry into a descriptor, reading any
// referenced source files.
func resolveScene(baseDir string, index int, ms ManifestScene) (scene.Descriptor, error) {
	sourceText := ms.Source
	if sourceText == "" && ms.SourceFile != "" {
		text, err := readSceneFile(baseDir, ms.SourceFile)
		if err != nil {
			return scene.Descriptor{}, err
		}
		sourceText = text
	}

	loweredText := ms.Lowered
	if loweredText == "" && ms.LoweredFile != "" {
		text, err := readSceneFile(baseDir, ms.LoweredFile)
		if err != nil {
			return scene.Descriptor{}, err
		}
		loweredText = text
	}

	id := ms.ID
	if id == "" {
		id = uuid.NewString()
	}
	order := ms.Order
	if order == 0 {
		order = index + 1
	}

	kind := scene.SourceAuthored
	if loweredText != "" {
		kind = scene.SourcePrelowered
	}

	return scene.Descriptor{
		ID:             id,
		Name:           ms.Name,
		Order:          order,
		DurationFrames: ms.DurationFrames,
		SourceKind:     kind,
		SourceText:     sourceText,
		LoweredText:    loweredText,
	}, nil
}

func readSceneFile(baseDir, ref string) (string, error) {
	p := ref
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, ref)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", &ExitError{
			Code:    ExitCommandError,
			Message: fmt.Sprintf("%s: scene source not readable: %v", ErrCodeSceneSource, err),
			Err:     err,
		}
	}
	return string(data), nil
}
