package cli

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/scenecast/scenecast/internal/compiler"
	"github.com/scenecast/scenecast/internal/compose"
	"github.com/scenecast/scenecast/internal/scene"
)

// newCommandLogger builds the slog logger one-shot commands hand to the
// pipeline. Diagnostics go to stderr so JSON output on stdout stays clean.
func newCommandLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// compilePlacements lowers every scene in timeline order. This is the
// one-shot equivalent of the engine's pipeline: same ordering, same offset
// arithmetic, no scheduler.
func compilePlacements(ctx context.Context, comp *compiler.Compiler, snap scene.Snapshot) []compose.Placement {
	scenes := make([]scene.Descriptor, len(snap.Scenes))
	copy(scenes, snap.Scenes)
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].Order < scenes[j].Order
	})

	placements := make([]compose.Placement, 0, len(scenes))
	offset := 0
	for i, d := range scenes {
		unit := comp.CompileScene(ctx, d, i, offset)
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
	return placements
}
