package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenecast/scenecast/internal/scene"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadManifest_InlineSource(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.yaml", `
fps: 60
scenes:
  - id: intro
    name: Intro
    order: 1
    duration_frames: 120
    source: |
      scene: {
        render: {
          frame: int & >=0
          elements: []
        }
      }
`)

	snap, fps, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 60, fps)
	require.Len(t, snap.Scenes, 1)

	d := snap.Scenes[0]
	assert.Equal(t, "intro", d.ID)
	assert.Equal(t, scene.SourceAuthored, d.SourceKind)
	assert.Contains(t, d.SourceText, "render:")
	assert.Empty(t, d.LoweredText)
	assert.Nil(t, snap.Audio)
}

func TestLoadManifest_FileRefsResolveRelatively(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "card.cue", "#Card: {frame: int & >=0\nelements: []\n}\n")
	path := writeFile(t, dir, "project.yaml", `
scenes:
  - id: card
    name: Card
    duration_frames: 90
    lowered_file: card.cue
`)

	snap, fps, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, scene.DefaultFPS, fps, "fps defaults when unset")
	require.Len(t, snap.Scenes, 1)

	d := snap.Scenes[0]
	assert.Equal(t, scene.SourcePrelowered, d.SourceKind)
	assert.Contains(t, d.LoweredText, "#Card:")
}

func TestLoadManifest_DefaultsIDAndOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.yaml", `
scenes:
  - name: First
    duration_frames: 10
    source: "scene: {render: {frame: int, elements: []}}"
  - name: Second
    duration_frames: 10
    source: "scene: {render: {frame: int, elements: []}}"
`)

	snap, _, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, snap.Scenes, 2)

	assert.NotEmpty(t, snap.Scenes[0].ID)
	assert.NotEmpty(t, snap.Scenes[1].ID)
	assert.NotEqual(t, snap.Scenes[0].ID, snap.Scenes[1].ID, "generated ids must be unique")
	assert.Equal(t, 1, snap.Scenes[0].Order)
	assert.Equal(t, 2, snap.Scenes[1].Order)
}

func TestLoadManifest_AudioOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.yaml", `
scenes:
  - id: a
    name: A
    duration_frames: 100
    source: "scene: {render: {frame: int, elements: []}}"
audio:
  url: track.mp3
  volume: 0.8
  start_time_sec: 0
  end_time_sec: 5
  fade_in_sec: 1
  fade_out_sec: 1
`)

	snap, _, err := LoadManifest(path)
	require.NoError(t, err)
	require.NotNil(t, snap.Audio)
	assert.Equal(t, "track.mp3", snap.Audio.URL)
	assert.Equal(t, 0.8, snap.Audio.Volume)
	assert.Equal(t, 1.0, snap.Audio.Rate(), "unset playback rate defaults to 1.0")
}

func TestLoadManifest_InvalidAudioRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.yaml", `
scenes:
  - id: a
    name: A
    duration_frames: 100
    source: "scene: {render: {frame: int, elements: []}}"
audio:
  url: track.mp3
  volume: 2.5
  start_time_sec: 5
  end_time_sec: 1
`)

	_, _, err := LoadManifest(path)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitCommandError, exitErr.Code)
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, _, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitCommandError, exitErr.Code)
}

func TestLoadManifest_MissingSceneFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "project.yaml", `
scenes:
  - id: a
    name: A
    duration_frames: 100
    source_file: gone.cue
`)

	_, _, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene source not readable")
}
