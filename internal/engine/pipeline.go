package engine

import (
	"context"
	"sort"

	"github.com/scenecast/scenecast/internal/compose"
	"github.com/scenecast/scenecast/internal/loader"
	"github.com/scenecast/scenecast/internal/scene"
)

// runPipeline is the default CompileFunc: lower every scene in timeline
// order, assemble the composition module, load it into a fresh handle.
// Runs on a worker goroutine and must not touch loop-owned state. The
// single-flight guarantee makes it the only goroutine using the compiler
// while it runs; the loader is safe for concurrent use on its own.
func (e *Engine) runPipeline(ctx context.Context, snap scene.Snapshot, fp string, seq int64) CompileResult {
	scenes := make([]scene.Descriptor, len(snap.Scenes))
	copy(scenes, snap.Scenes)
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].Order < scenes[j].Order
	})

	placements := make([]compose.Placement, 0, len(scenes))
	live := make(map[string]bool, len(scenes))
	offset := 0
	for i, d := range scenes {
		live[d.ID] = true
		unit := e.compiler.CompileScene(ctx, d, i, offset)
		placements = append(placements, compose.Placement{
			Unit:           unit,
			Name:           d.Name,
			DurationFrames: d.DurationFrames,
		})
		// Mirror the assembler's clamp so the audio-offset cache key and
		// the emitted boundary table agree on where each scene starts.
		dur := d.DurationFrames
		if dur < 1 {
			dur = 1
		}
		offset += dur
	}
	e.compiler.Prune(live)

	asm, err := compose.Assemble(placements, snap.Audio, e.fps)
	if err != nil {
		h := e.loader.Fail(err, loader.ModuleMeta{Fingerprint: fp, FPS: e.fps})
		return CompileResult{Fingerprint: fp, Seq: seq, Handle: h}
	}

	meta := loader.ModuleMeta{
		Fingerprint: fp,
		Mode:        asm.Mode,
		FPS:         asm.FPS,
		TotalFrames: asm.TotalFrames,
		Boundaries:  asm.Boundaries,
		Envelope:    compose.Envelope(snap.Audio, asm.TotalFrames, asm.FPS),
	}
	h := e.loader.Load(asm.Source, meta)

	return CompileResult{
		Fingerprint: fp,
		Seq:         seq,
		Handle:      h,
		Boundaries:  asm.Boundaries,
		TotalFrames: asm.TotalFrames,
	}
}
