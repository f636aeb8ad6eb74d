package compose

import (
	"github.com/scenecast/scenecast/internal/scene"
)

// LoopWindow resolves the playable frame window for a loop target.
//
// An empty sceneID means "loop the whole composition": nil is returned, no
// restriction. For a scene target the window starts at the scene's
// cumulative offset and ends at min(offset+duration, totalFrames-1),
// exclusive - the cap keeps the window inside the player's seekable range,
// which stops one frame short of the final frame.
//
// The window is clamped so start < endExclusive always holds: a single-frame
// scene at the very end of the timeline yields a one-frame window shifted
// one frame earlier rather than an empty one. An unknown sceneID resolves to
// nil (whole composition) - scene boundaries may lag a deletion by one
// compile, and a stale loop target must not produce an invalid window.
func LoopWindow(boundaries []Boundary, totalFrames int, sceneID string) *scene.LoopWindow {
	if sceneID == "" || totalFrames <= 0 {
		return nil
	}

	for _, b := range boundaries {
		if b.SceneID != sceneID {
			continue
		}

		start := b.From
		end := b.End()
		if max := totalFrames - 1; end > max {
			end = max
		}
		if end <= start {
			start = end - 1
		}
		if start < 0 {
			start = 0
			if end <= start {
				end = 1
			}
		}
		return &scene.LoopWindow{StartFrame: start, EndFrameExclusive: end}
	}
	return nil
}
