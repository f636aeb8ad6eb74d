package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/scenecast/scenecast/internal/compiler"
	"github.com/scenecast/scenecast/internal/compose"
	"github.com/scenecast/scenecast/internal/loader"
	"github.com/scenecast/scenecast/internal/scene"
)

// Run executes a scenario: every revision goes through the pipeline in
// order, the final module is loaded, probes are rendered, and assertions
// are evaluated against the trace.
//
// Run returns an error only for scenario-level failures (an unassemblable
// module, no revisions). Scene failures are pipeline behavior, not errors:
// they show up in the trace as fallback events.
func Run(s *Scenario) (*Result, error) {
	result := NewResult()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := &recorder{result: result}

	comp := compiler.New(compiler.WithNotifier(rec), compiler.WithLogger(logger))
	ld := loader.New(loader.WithNotifier(rec), loader.WithLogger(logger))
	ctx := context.Background()

	var (
		lastFP   string
		finalAsm *compose.Assembly
		finalRev scene.Snapshot
	)

	for _, rev := range s.Revisions {
		snap := rev.snapshot()
		fp := scene.Fingerprint(snap.Scenes, snap.Audio)
		if finalAsm != nil && fp == lastFP {
			result.addEvent(TraceEvent{Type: EventRevisionSkipped})
			continue
		}
		lastFP = fp

		asm, err := runRevision(ctx, comp, snap, s.fps(), result)
		if err != nil {
			return nil, err
		}
		finalAsm = asm
		finalRev = snap
	}

	if finalAsm == nil {
		return nil, fmt.Errorf("scenario %s has no revisions", s.Name)
	}

	h := ld.Load(finalAsm.Source, loader.ModuleMeta{
		Fingerprint: lastFP,
		Mode:        finalAsm.Mode,
		FPS:         finalAsm.FPS,
		TotalFrames: finalAsm.TotalFrames,
		Boundaries:  finalAsm.Boundaries,
		Envelope:    compose.Envelope(finalRev.Audio, finalAsm.TotalFrames, finalAsm.FPS),
	})
	defer h.Dispose()
	result.addEvent(TraceEvent{Type: EventModuleLoaded, Fallback: h.Failed()})

	for _, p := range s.Probes {
		frame := h.RenderFrame(p.Frame)
		ev := TraceEvent{
			Type:     EventFrameRendered,
			Scene:    frame.SceneID,
			Frame:    intPtr(frame.Frame),
			Kinds:    elementKinds(frame.Elements),
			Fallback: frame.Fallback,
		}
		if finalRev.Audio != nil {
			gain := frame.AudioGain
			ev.Gain = &gain
		}
		result.addEvent(ev)
	}

	applyAssertions(s, result, finalAsm, finalRev)
	return result, nil
}

// runRevision compiles one revision's scenes in timeline order and
// assembles them, tracing per-unit outcomes and the module summary.
func runRevision(ctx context.Context, comp *compiler.Compiler, snap scene.Snapshot, fps int, result *Result) (*compose.Assembly, error) {
	scenes := make([]scene.Descriptor, len(snap.Scenes))
	copy(scenes, snap.Scenes)
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].Order < scenes[j].Order
	})

	placements := make([]compose.Placement, 0, len(scenes))
	offset := 0
	for i, d := range scenes {
		unit := comp.CompileScene(ctx, d, i, offset)

		eventType := EventSceneLowered
		if !unit.IsValid {
			eventType = EventSceneFallback
		}
		result.addEvent(TraceEvent{Type: eventType, Scene: d.ID, Entry: unit.EntryPointName})

		placements = append(placements, compose.Placement{
			Unit:           unit,
			Name:           d.Name,
			DurationFrames: d.DurationFrames,
		})
		dur := d.DurationFrames
		if dur < 1 {
			dur = 1
		}
		offset += dur
	}

	asm, err := compose.Assemble(placements, snap.Audio, fps)
	if err != nil {
		return nil, fmt.Errorf("assemble revision: %w", err)
	}

	result.addEvent(TraceEvent{
		Type:        EventModuleAssembled,
		Mode:        string(asm.Mode),
		TotalFrames: asm.TotalFrames,
		Boundaries:  traceBoundaries(asm.Boundaries),
	})
	return asm, nil
}

func (s *Scenario) fps() int {
	if s.FPS > 0 {
		return s.FPS
	}
	return scene.DefaultFPS
}

func traceBoundaries(boundaries []compose.Boundary) []BoundaryTrace {
	out := make([]BoundaryTrace, 0, len(boundaries))
	for _, b := range boundaries {
		out = append(out, BoundaryTrace{
			Scene:    b.SceneID,
			Entry:    b.EntryPointName,
			From:     b.From,
			Duration: b.DurationFrames,
			Valid:    b.IsValid,
		})
	}
	return out
}

func elementKinds(elements []scene.Element) []string {
	kinds := make([]string, 0, len(elements))
	for _, el := range elements {
		kind, _ := el["kind"].(string)
		kinds = append(kinds, kind)
	}
	return kinds
}

func intPtr(v int) *int { return &v }

// recorder adapts the pipeline's notifier to the trace. Message text is
// deliberately dropped (it varies across CUE releases); the event type and
// scene are the stable facts.
type recorder struct {
	result *Result
}

func (r *recorder) CompilationSucceeded(string) {}

func (r *recorder) CompilationFailed(sceneID string, err error) {
	r.result.addEvent(TraceEvent{Type: EventCompilationFailed, Scene: sceneID})
}

func (r *recorder) RepairRequested(req scene.RepairRequest) {
	r.result.addEvent(TraceEvent{Type: EventRepairRequested, Scene: req.SceneID})
}

func (r *recorder) SceneRuntimeError(sceneID string, err error) {
	r.result.addEvent(TraceEvent{Type: EventRuntimeError, Scene: sceneID})
}

func (r *recorder) SceneRecovered(sceneID string) {
	r.result.addEvent(TraceEvent{Type: EventSceneRecovered, Scene: sceneID})
}
