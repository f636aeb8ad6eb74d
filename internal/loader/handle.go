package loader

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"cuelang.org/go/cue"

	"github.com/scenecast/scenecast/internal/compose"
	"github.com/scenecast/scenecast/internal/scene"
)

// Handle is a loaded, executable composition module.
//
// RenderFrame never propagates a fault: scene-level evaluation errors render
// the per-scene auto-repair placeholder, and a disposed or failed handle
// renders the whole-composition placeholder. Dispose releases the handle's
// resources exactly once; rendering a disposed handle is safe but yields
// placeholder frames only.
type Handle struct {
	id   string
	val  cue.Value
	std  cue.Value
	meta ModuleMeta

	failed  bool
	failErr error

	notifier scene.Notifier
	logger   *slog.Logger
	release  func()
	disposed atomic.Bool

	// broken tracks scenes currently in a runtime-failure episode, so the
	// error fires once per episode and recovery can be observed.
	mu     sync.Mutex
	broken map[string]bool
}

// ID returns the opaque handle id.
func (h *Handle) ID() string { return h.id }

// Meta returns the assembly facts this handle was loaded with.
func (h *Handle) Meta() ModuleMeta { return h.meta }

// Failed reports whether this handle is a whole-composition placeholder.
func (h *Handle) Failed() bool { return h.failed }

// Disposed reports whether Dispose has been called.
func (h *Handle) Disposed() bool { return h.disposed.Load() }

// Dispose releases the handle. Safe to call multiple times; the release
// runs exactly once. After disposal the handle only renders placeholders.
func (h *Handle) Dispose() {
	if !h.disposed.CompareAndSwap(false, true) {
		return
	}
	// Drop the module value so the per-module CUE context can be collected.
	h.val = cue.Value{}
	h.std = cue.Value{}
	if h.release != nil {
		h.release()
	}
}

// RenderFrame evaluates the composition at one global frame index.
func (h *Handle) RenderFrame(frame int) scene.Frame {
	if frame < 0 {
		frame = 0
	}
	if h.meta.TotalFrames > 0 && frame >= h.meta.TotalFrames {
		frame = h.meta.TotalFrames - 1
	}

	if h.disposed.Load() || h.failed {
		return h.compositionPlaceholder(frame)
	}

	b, ok := h.activeBoundary(frame)
	if !ok {
		return h.compositionPlaceholder(frame)
	}

	elements, err := h.evaluate(b, frame-b.From)
	if err != nil {
		h.enterFailureEpisode(b, err)
		return scene.Frame{
			Frame:     frame,
			SceneID:   b.SceneID,
			Elements:  runtimeFallbackElements(b, err),
			AudioGain: compose.GainAt(h.meta.Envelope, frame),
			Fallback:  true,
		}
	}
	h.clearFailureEpisode(b)

	return scene.Frame{
		Frame:     frame,
		SceneID:   b.SceneID,
		Elements:  elements,
		AudioGain: compose.GainAt(h.meta.Envelope, frame),
	}
}

// activeBoundary finds the scene covering the global frame. Single and
// empty modules expose one implicit boundary spanning the whole timeline.
func (h *Handle) activeBoundary(frame int) (compose.Boundary, bool) {
	if h.meta.Mode != compose.ModeSequence {
		if len(h.meta.Boundaries) == 1 {
			return h.meta.Boundaries[0], true
		}
		return compose.Boundary{
			EntryPointName: compose.EmptyEntryName,
			DurationFrames: h.meta.TotalFrames,
			IsValid:        true,
		}, true
	}
	for _, b := range h.meta.Boundaries {
		if frame >= b.From && frame < b.End() {
			return b, true
		}
	}
	return compose.Boundary{}, false
}

// evaluate runs one unit for one scene-local frame inside the capability
// scope: the unit is unified with #Std.#Scene before the frame is filled,
// so the shared element contract applies per unit, not ambiently.
func (h *Handle) evaluate(b compose.Boundary, localFrame int) ([]scene.Element, error) {
	unit := h.val.LookupPath(cue.MakePath(cue.Def("#" + b.EntryPointName)))
	if !unit.Exists() {
		return nil, fmt.Errorf("entry point #%s vanished from module", b.EntryPointName)
	}

	scoped := unit
	if h.std.Exists() {
		scoped = unit.Unify(h.std)
	}

	filled := scoped.FillPath(cue.ParsePath("frame"), localFrame)
	if err := filled.Err(); err != nil {
		return nil, fmt.Errorf("fill frame %d: %w", localFrame, err)
	}
	if err := filled.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("evaluate frame %d: %w", localFrame, err)
	}

	elemsVal := filled.LookupPath(cue.ParsePath("elements"))
	if !elemsVal.Exists() {
		return nil, fmt.Errorf("unit #%s produced no elements", b.EntryPointName)
	}

	iter, err := elemsVal.List()
	if err != nil {
		return nil, fmt.Errorf("elements is not a list: %w", err)
	}
	var elements []scene.Element
	for iter.Next() {
		var el scene.Element
		if err := iter.Value().Decode(&el); err != nil {
			return nil, fmt.Errorf("decode element %d: %w", len(elements), err)
		}
		elements = append(elements, el)
	}
	return elements, nil
}

// enterFailureEpisode reports a scene runtime error once per episode.
func (h *Handle) enterFailureEpisode(b compose.Boundary, err error) {
	h.mu.Lock()
	first := !h.broken[b.SceneID]
	h.broken[b.SceneID] = true
	h.mu.Unlock()

	if !first {
		return
	}
	h.logger.Warn("scene raised at render time, swapping in fallback",
		"scene", b.SceneID, "name", b.Name, "error", err)
	h.notifier.SceneRuntimeError(b.SceneID, err)
	h.notifier.RepairRequested(scene.RepairRequest{
		SceneID:    b.SceneID,
		SceneName:  b.Name,
		SceneIndex: -1,
		Err:        err.Error(),
	})
}

// clearFailureEpisode reports recovery for a previously broken scene.
func (h *Handle) clearFailureEpisode(b compose.Boundary) {
	h.mu.Lock()
	wasBroken := h.broken[b.SceneID]
	delete(h.broken, b.SceneID)
	h.mu.Unlock()

	if wasBroken {
		h.notifier.SceneRecovered(b.SceneID)
	}
}

// runtimeFallbackElements is the standardized per-scene placeholder: literal
// content only, scoped to the failing scene's duration by construction.
func runtimeFallbackElements(b compose.Boundary, err error) []scene.Element {
	title := "Scene auto-repair in progress"
	if b.Name != "" {
		title = b.Name + ": auto-repair in progress"
	}
	return []scene.Element{{
		"kind":    "fallback",
		"sceneId": b.SceneID,
		"title":   title,
		"message": err.Error(),
		"retry":   true,
	}}
}

// compositionPlaceholder is the whole-composition failure frame.
func (h *Handle) compositionPlaceholder(frame int) scene.Frame {
	message := "composition unavailable"
	if h.failErr != nil {
		message = h.failErr.Error()
	}
	return scene.Frame{
		Frame: frame,
		Elements: []scene.Element{{
			"kind":    "composition-failed",
			"message": message,
			"retry":   true,
		}},
		Fallback: true,
	}
}
