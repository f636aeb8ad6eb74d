package harness

import (
	"fmt"

	"github.com/scenecast/scenecast/internal/compose"
	"github.com/scenecast/scenecast/internal/scene"
)

// applyAssertions evaluates every assertion against the trace and the
// final module, accumulating failures on the result.
func applyAssertions(s *Scenario, result *Result, asm *compose.Assembly, snap scene.Snapshot) {
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertEventCount:
			assertEventCount(i, a, result)
		case AssertEventOrder:
			assertEventOrder(i, a, result)
		case AssertModule:
			assertModule(i, a, result, asm)
		case AssertBoundary:
			assertBoundary(i, a, result, asm)
		case AssertFrame:
			assertFrame(i, a, result)
		case AssertUnitParity:
			assertUnitParity(i, result, asm, snap)
		}
	}
}

func assertEventCount(index int, a Assertion, result *Result) {
	got := result.CountEvents(a.Event)
	if got != a.Count {
		result.AddError(fmt.Sprintf(
			"assertions[%d]: event %q appeared %d time(s), expected %d",
			index, a.Event, got, a.Count))
	}
}

// assertEventOrder checks the given event types appear as a subsequence of
// the trace: other events may interleave, the listed ones must keep order.
func assertEventOrder(index int, a Assertion, result *Result) {
	pos := 0
	for _, e := range result.Trace {
		if pos < len(a.Events) && e.Type == a.Events[pos] {
			pos++
		}
	}
	if pos != len(a.Events) {
		result.AddError(fmt.Sprintf(
			"assertions[%d]: event order not satisfied, matched %d of %v",
			index, pos, a.Events))
	}
}

func assertModule(index int, a Assertion, result *Result, asm *compose.Assembly) {
	if a.Mode != "" && a.Mode != string(asm.Mode) {
		result.AddError(fmt.Sprintf(
			"assertions[%d]: module mode = %q, expected %q", index, asm.Mode, a.Mode))
	}
	if a.TotalFrames != 0 && a.TotalFrames != asm.TotalFrames {
		result.AddError(fmt.Sprintf(
			"assertions[%d]: module total frames = %d, expected %d",
			index, asm.TotalFrames, a.TotalFrames))
	}
}

func assertBoundary(index int, a Assertion, result *Result, asm *compose.Assembly) {
	for _, b := range asm.Boundaries {
		if b.SceneID != a.Scene {
			continue
		}
		if b.From != a.From {
			result.AddError(fmt.Sprintf(
				"assertions[%d]: boundary %s from = %d, expected %d",
				index, a.Scene, b.From, a.From))
		}
		if a.Duration != 0 && b.DurationFrames != a.Duration {
			result.AddError(fmt.Sprintf(
				"assertions[%d]: boundary %s duration = %d, expected %d",
				index, a.Scene, b.DurationFrames, a.Duration))
		}
		if a.Valid != nil && b.IsValid != *a.Valid {
			result.AddError(fmt.Sprintf(
				"assertions[%d]: boundary %s valid = %v, expected %v",
				index, a.Scene, b.IsValid, *a.Valid))
		}
		return
	}
	result.AddError(fmt.Sprintf(
		"assertions[%d]: no boundary for scene %q", index, a.Scene))
}

func assertFrame(index int, a Assertion, result *Result) {
	for _, e := range result.Trace {
		if e.Type != EventFrameRendered || e.Frame == nil || *e.Frame != *a.Frame {
			continue
		}
		if a.Scene != "" && e.Scene != a.Scene {
			result.AddError(fmt.Sprintf(
				"assertions[%d]: frame %d active scene = %q, expected %q",
				index, *a.Frame, e.Scene, a.Scene))
		}
		if a.Kind != "" && !containsKind(e.Kinds, a.Kind) {
			result.AddError(fmt.Sprintf(
				"assertions[%d]: frame %d kinds %v missing %q",
				index, *a.Frame, e.Kinds, a.Kind))
		}
		if a.Fallback != nil && e.Fallback != *a.Fallback {
			result.AddError(fmt.Sprintf(
				"assertions[%d]: frame %d fallback = %v, expected %v",
				index, *a.Frame, e.Fallback, *a.Fallback))
		}
		return
	}
	result.AddError(fmt.Sprintf(
		"assertions[%d]: no probe rendered frame %d", index, *a.Frame))
}

// assertUnitParity checks the structural isolation invariant: every scene
// yields exactly one unit, so the boundary count equals the scene count.
func assertUnitParity(index int, result *Result, asm *compose.Assembly, snap scene.Snapshot) {
	if len(asm.Boundaries) != len(snap.Scenes) {
		result.AddError(fmt.Sprintf(
			"assertions[%d]: %d boundaries for %d scene(s)",
			index, len(asm.Boundaries), len(snap.Scenes)))
	}
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
