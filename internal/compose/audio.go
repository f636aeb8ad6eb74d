package compose

import (
	"math"

	"github.com/scenecast/scenecast/internal/scene"
)

// Anchor is one point of the piecewise-linear gain envelope, in composition
// frames. Gain between anchors is linearly interpolated; before the first
// and after the last anchor it is held.
type Anchor struct {
	Frame int
	Gain  float64
}

// Envelope computes the frame-domain gain envelope for the overlay, anchored
// to the composition timeline: frame 0 is the start of the composition, and
// the audio segment starts there regardless of its trim offset into the
// source file.
//
// The audible length is the trimmed source duration divided by the playback
// rate, capped at the composition length. Fades are linear ramps; a fade-in
// of one second at 30fps reaches full volume exactly at frame 30 and is
// zero at frame 0. When the two fades would overlap, the crossing point
// splits them so the envelope stays single-valued and monotone in frames.
func Envelope(audio *scene.AudioOverlay, totalFrames, fps int) []Anchor {
	if audio == nil || totalFrames <= 0 {
		return nil
	}

	vol := audio.Volume
	audibleSec := (audio.EndTimeSec - audio.StartTimeSec) / audio.Rate()
	endFrame := secToFrames(audibleSec, fps)
	if endFrame > totalFrames {
		endFrame = totalFrames
	}
	if endFrame < 1 {
		endFrame = 1
	}

	fadeInEnd := secToFrames(audio.FadeInSec, fps)
	fadeOutStart := endFrame - secToFrames(audio.FadeOutSec, fps)

	if fadeInEnd <= 0 && fadeOutStart >= endFrame {
		// No fades: flat gain across the audible range.
		return []Anchor{{0, vol}, {endFrame, vol}}
	}

	if fadeInEnd > fadeOutStart {
		if fadeInEnd <= 0 {
			// Fade-out only, longer than the audible range: the ramp began
			// before frame 0. Evaluate it at frame 0 rather than forcing a
			// silent start the author never asked for.
			startGain := vol * float64(endFrame) / float64(endFrame-fadeOutStart)
			return []Anchor{{0, startGain}, {endFrame, 0}}
		}
		if fadeOutStart >= endFrame {
			// Fade-in only, longer than the audible range: still rising when
			// the segment ends.
			endGain := vol * float64(endFrame) / float64(fadeInEnd)
			return []Anchor{{0, 0}, {endFrame, endGain}}
		}
		// Overlapping ramps: meet at the crossing point.
		mid := (fadeInEnd + fadeOutStart) / 2
		if mid < 1 {
			mid = 1
		}
		if mid >= endFrame {
			mid = endFrame - 1
		}
		midGain := vol * float64(mid) / float64(maxInt(fadeInEnd, 1))
		if midGain > vol {
			midGain = vol
		}
		return []Anchor{{0, 0}, {mid, midGain}, {endFrame, 0}}
	}

	anchors := make([]Anchor, 0, 4)
	if fadeInEnd > 0 {
		anchors = append(anchors, Anchor{0, 0}, Anchor{fadeInEnd, vol})
	} else {
		anchors = append(anchors, Anchor{0, vol})
	}
	if fadeOutStart < endFrame {
		if fadeOutStart > fadeInEnd {
			anchors = append(anchors, Anchor{fadeOutStart, vol})
		}
		anchors = append(anchors, Anchor{endFrame, 0})
	} else {
		anchors = append(anchors, Anchor{endFrame, vol})
	}
	return anchors
}

// GainAt evaluates a piecewise-linear envelope at one frame.
func GainAt(env []Anchor, frame int) float64 {
	if len(env) == 0 {
		return 0
	}
	if frame <= env[0].Frame {
		return env[0].Gain
	}
	last := env[len(env)-1]
	if frame >= last.Frame {
		// Past the audible range the segment has ended.
		if frame > last.Frame {
			return 0
		}
		return last.Gain
	}
	for i := 1; i < len(env); i++ {
		if frame <= env[i].Frame {
			prev, next := env[i-1], env[i]
			span := next.Frame - prev.Frame
			if span == 0 {
				return next.Gain
			}
			t := float64(frame-prev.Frame) / float64(span)
			return prev.Gain + t*(next.Gain-prev.Gain)
		}
	}
	return last.Gain
}

func secToFrames(sec float64, fps int) int {
	return int(math.Round(sec * float64(fps)))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
