package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// SceneError is a structured lowering failure for exactly one scene.
// It carries everything the external repair pipeline needs to regenerate
// the scene; it never aborts the surrounding composition compile.
type SceneError struct {
	SceneID    string
	SceneName  string
	SceneIndex int
	Message    string
	Pos        token.Pos
}

// Error implements the error interface.
func (e *SceneError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("scene %s (%q, index %d): %s at %s:%d:%d",
			e.SceneID, e.SceneName, e.SceneIndex, e.Message,
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	return fmt.Sprintf("scene %s (%q, index %d): %s", e.SceneID, e.SceneName, e.SceneIndex, e.Message)
}

// sceneError builds a SceneError for a descriptor position, extracting CUE
// position info when the underlying error carries it.
func sceneError(sceneID, sceneName string, sceneIndex int, err error) *SceneError {
	se := &SceneError{
		SceneID:    sceneID,
		SceneName:  sceneName,
		SceneIndex: sceneIndex,
		Message:    err.Error(),
	}

	// CUE errors may contain multiple errors; keep the first position.
	errs := errors.Errors(err)
	if len(errs) > 0 {
		se.Message = errs[0].Error()
		positions := errors.Positions(errs[0])
		if len(positions) > 0 {
			se.Pos = positions[0]
		}
	}
	return se
}
