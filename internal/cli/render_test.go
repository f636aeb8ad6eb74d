package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenecast/scenecast/internal/scene"
)

func TestRenderCommand_EvaluatesFrame(t *testing.T) {
	manifest := projectManifest(t, false)

	stdout, _, err := execute(t, "render", manifest, "--frame", "5")
	require.NoError(t, err)

	var frame scene.Frame
	require.NoError(t, json.Unmarshal([]byte(stdout), &frame))
	assert.Equal(t, 5, frame.Frame)
	assert.Equal(t, "intro", frame.SceneID)
	assert.False(t, frame.Fallback)

	require.Len(t, frame.Elements, 1)
	assert.Equal(t, "text", frame.Elements[0]["kind"])
	assert.Equal(t, float64(5), frame.Elements[0]["opacity"], "frame flows into the unit's scope")
}

func TestRenderCommand_BrokenSceneRendersFallback(t *testing.T) {
	manifest := projectManifest(t, true)

	// Frame 130 falls inside the broken scene's segment (120..180).
	stdout, _, err := execute(t, "render", manifest, "--frame", "130")
	require.NoError(t, err)

	var frame scene.Frame
	require.NoError(t, json.Unmarshal([]byte(stdout), &frame))
	assert.Equal(t, "broken", frame.SceneID)
	require.NotEmpty(t, frame.Elements)
	assert.Equal(t, "fallback", frame.Elements[0]["kind"])
}

func TestRenderCommand_JSONEnvelope(t *testing.T) {
	manifest := projectManifest(t, false)

	stdout, _, err := execute(t, "render", manifest, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(0), data["frame"])
}
