package cli

import (
	"log/slog"

	"github.com/scenecast/scenecast/internal/scene"
)

// sceneFailure is one captured lowering failure, for command reports.
type sceneFailure struct {
	SceneID   string `json:"scene_id"`
	SceneName string `json:"scene_name"`
	Index     int    `json:"index"`
	Message   string `json:"message"`
}

// collectNotifier records repair requests so one-shot commands can print a
// per-scene failure report after the pipeline runs. Single-goroutine use.
type collectNotifier struct {
	scene.NopNotifier
	failures []sceneFailure
}

func (c *collectNotifier) RepairRequested(req scene.RepairRequest) {
	c.failures = append(c.failures, sceneFailure{
		SceneID:   req.SceneID,
		SceneName: req.SceneName,
		Index:     req.SceneIndex,
		Message:   req.Err,
	})
}

// logNotifier forwards engine notifications to structured logs. Used by the
// watch command, where there is no UI to deliver events to.
type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) CompilationSucceeded(fingerprint string) {
	n.logger.Info("composition published", "fingerprint", fingerprint)
}

func (n *logNotifier) CompilationFailed(sceneID string, err error) {
	n.logger.Warn("scene compilation failed", "scene", sceneID, "error", err)
}

func (n *logNotifier) RepairRequested(req scene.RepairRequest) {
	n.logger.Warn("repair requested",
		"scene", req.SceneID, "name", req.SceneName, "index", req.SceneIndex, "error", req.Err)
}

func (n *logNotifier) SceneRuntimeError(sceneID string, err error) {
	n.logger.Warn("scene runtime error", "scene", sceneID, "error", err)
}

func (n *logNotifier) SceneRecovered(sceneID string) {
	n.logger.Info("scene recovered", "scene", sceneID)
}
