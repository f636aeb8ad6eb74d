package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand_AllValid(t *testing.T) {
	manifest := projectManifest(t, false)

	stdout, _, err := execute(t, "validate", manifest)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Intro (intro) → #Intro_intro")
	assert.Contains(t, stdout, "1 scene(s) valid, 0 failed")
}

func TestValidateCommand_ReportsFailuresAndExitsNonZero(t *testing.T) {
	manifest := projectManifest(t, true)

	stdout, _, err := execute(t, "validate", manifest)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitFailure, exitErr.Code)

	// One failure never masks the valid sibling.
	assert.Contains(t, stdout, "✓ Intro (intro)")
	assert.Contains(t, stdout, "✗ Broken (broken):")
	assert.Contains(t, stdout, "1 scene(s) valid, 1 failed")
}

func TestValidateCommand_JSON(t *testing.T) {
	manifest := projectManifest(t, true)

	stdout, _, err := execute(t, "validate", manifest, "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status, "report emits normally; the exit code carries the failure")

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["valid_count"])
	assert.Equal(t, float64(1), data["failed_count"])

	scenes, ok := data["scenes"].([]interface{})
	require.True(t, ok)
	require.Len(t, scenes, 2)

	broken := scenes[1].(map[string]interface{})
	assert.Equal(t, false, broken["valid"])
	assert.NotEmpty(t, broken["error"])
}
