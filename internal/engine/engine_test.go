package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenecast/scenecast/internal/compose"
	"github.com/scenecast/scenecast/internal/loader"
	"github.com/scenecast/scenecast/internal/scene"
	"github.com/scenecast/scenecast/internal/testutil"
)

const waitFor = 5 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// authoredDescriptor builds a compilable authored scene whose content (and
// therefore fingerprint) varies with value.
func authoredDescriptor(id, name, value string, order, duration int) scene.Descriptor {
	src := fmt.Sprintf(`scene: {
	name: %q
	render: {
		frame: int & >=0
		elements: [{
			kind:  "text"
			value: %q
		}]
	}
}
`, name, value)
	return scene.Descriptor{
		ID:             id,
		Name:           name,
		Order:          order,
		DurationFrames: duration,
		SourceKind:     scene.SourceAuthored,
		SourceText:     src,
	}
}

func startEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Error("engine loop did not stop")
		}
	})
}

func waitEvent(t *testing.T, n *scene.ChannelNotifier, kind scene.EventKind) scene.Event {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case ev := <-n.C:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestEngine_EmptyCompositionPublishesImmediately(t *testing.T) {
	n := scene.NewChannelNotifier(16)
	timer := testutil.NewManualTimer()
	e := New(WithNotifier(n), WithTimer(timer), WithLogger(discardLogger()))
	startEngine(t, e)

	require.True(t, e.Update(scene.Snapshot{}))

	ev := waitEvent(t, n, scene.EventCompilationSucceeded)
	assert.Equal(t, scene.Fingerprint(nil, nil), ev.Fingerprint)

	// Empty composition skips the debounce entirely.
	assert.Equal(t, 0, timer.Starts())

	h := e.CurrentModule()
	require.NotNil(t, h)
	frame := h.RenderFrame(0)
	require.Len(t, frame.Elements, 1)
	assert.Equal(t, "empty-canvas", frame.Elements[0]["kind"])
}

func TestEngine_DebounceRestartsOnRapidEdits(t *testing.T) {
	n := scene.NewChannelNotifier(16)
	timer := testutil.NewManualTimer()
	e := New(WithNotifier(n), WithTimer(timer), WithLogger(discardLogger()))
	startEngine(t, e)

	v1 := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v1", 1, 100)}}
	v2 := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v2", 1, 100)}}

	require.True(t, e.Update(v1))
	require.Eventually(t, timer.Armed, waitFor, time.Millisecond)
	assert.Equal(t, DefaultDebounce, timer.LastDuration())
	assert.EqualValues(t, 0, e.CompilesStarted(), "no compile before the timer fires")

	// A second edit inside the window restarts the timer.
	require.True(t, e.Update(v2))
	require.Eventually(t, func() bool { return timer.Starts() == 2 }, waitFor, time.Millisecond)

	require.True(t, timer.Fire())

	ev := waitEvent(t, n, scene.EventCompilationSucceeded)
	assert.Equal(t, scene.Fingerprint(v2.Scenes, nil), ev.Fingerprint,
		"the compile that runs sees the newest snapshot")
	assert.EqualValues(t, 1, e.CompilesStarted(), "rapid edits coalesce into one compile")
}

func TestEngine_FlushSkipsDebounce(t *testing.T) {
	n := scene.NewChannelNotifier(16)
	timer := testutil.NewManualTimer()
	e := New(WithNotifier(n), WithTimer(timer), WithLogger(discardLogger()))
	startEngine(t, e)

	snap := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v1", 1, 100)}}
	require.True(t, e.Update(snap))
	require.Eventually(t, timer.Armed, waitFor, time.Millisecond)

	require.True(t, e.Flush())

	ev := waitEvent(t, n, scene.EventCompilationSucceeded)
	assert.Equal(t, scene.Fingerprint(snap.Scenes, nil), ev.Fingerprint)
	assert.EqualValues(t, 1, e.CompilesStarted())
	assert.False(t, timer.Fire(), "flush must have disarmed the debounce timer")
}

func TestEngine_RevertDuringDebounceCancels(t *testing.T) {
	n := scene.NewChannelNotifier(16)
	timer := testutil.NewManualTimer()
	e := New(WithNotifier(n), WithTimer(timer), WithLogger(discardLogger()))
	startEngine(t, e)

	a := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v1", 1, 100)}}
	b := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v2", 1, 100)}}

	require.True(t, e.Update(a))
	require.True(t, e.Flush())
	waitEvent(t, n, scene.EventCompilationSucceeded)

	require.True(t, e.Update(b))
	require.Eventually(t, timer.Armed, waitFor, time.Millisecond)

	// Undo back to the published state before the timer fires.
	require.True(t, e.Update(a))
	require.Eventually(t, func() bool { return !timer.Armed() }, waitFor, time.Millisecond)

	assert.False(t, timer.Fire())
	assert.EqualValues(t, 1, e.CompilesStarted(), "revert must not trigger a recompile")
}

func TestEngine_IdenticalFingerprintIsNoop(t *testing.T) {
	n := scene.NewChannelNotifier(16)
	timer := testutil.NewManualTimer()
	e := New(WithNotifier(n), WithTimer(timer), WithLogger(discardLogger()))
	startEngine(t, e)

	a := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v1", 1, 100)}}
	b := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v2", 1, 100)}}

	require.True(t, e.Update(a))
	require.True(t, e.Flush())
	waitEvent(t, n, scene.EventCompilationSucceeded)
	startsAfterPublish := timer.Starts()

	// Same fingerprint again: nothing to do, not even a debounce.
	require.True(t, e.Update(a))

	// A genuinely new fingerprint still schedules normally afterwards.
	require.True(t, e.Update(b))
	require.Eventually(t, timer.Armed, waitFor, time.Millisecond)
	assert.Equal(t, startsAfterPublish+1, timer.Starts(),
		"identical snapshot must not arm the timer")
	assert.EqualValues(t, 1, e.CompilesStarted())
}

func TestEngine_SingleFlightLatestWins(t *testing.T) {
	n := scene.NewChannelNotifier(32)
	timer := testutil.NewManualTimer()

	// Gated pipeline stand-in: each compile reports its fingerprint, then
	// blocks until the test releases it. Handles come from a side loader so
	// disposal is observable via LiveHandles.
	ld := loader.New(loader.WithLogger(discardLogger()))
	asm, err := compose.Assemble(nil, nil, scene.DefaultFPS)
	require.NoError(t, err)

	gate := make(chan struct{})
	started := make(chan string, 8)
	compileFn := func(ctx context.Context, snap scene.Snapshot, fp string, seq int64) CompileResult {
		started <- fp
		<-gate
		h := ld.Load(asm.Source, loader.ModuleMeta{
			Fingerprint: fp,
			Mode:        asm.Mode,
			FPS:         asm.FPS,
			TotalFrames: asm.TotalFrames,
			Boundaries:  asm.Boundaries,
		})
		return CompileResult{
			Fingerprint: fp,
			Seq:         seq,
			Handle:      h,
			Boundaries:  asm.Boundaries,
			TotalFrames: asm.TotalFrames,
		}
	}

	e := New(WithNotifier(n), WithTimer(timer), WithCompileFunc(compileFn), WithLogger(discardLogger()))
	startEngine(t, e)

	snapA := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v1", 1, 100)}}
	snapB := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v2", 1, 100)}}
	snapC := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v3", 1, 100)}}
	fpA := scene.Fingerprint(snapA.Scenes, nil)
	fpC := scene.Fingerprint(snapC.Scenes, nil)

	require.True(t, e.Update(snapA))
	require.True(t, e.Flush())
	require.Equal(t, fpA, <-started)

	// Two more edits land while the first compile is in flight.
	require.True(t, e.Update(snapB))
	require.True(t, e.Update(snapC))
	require.Eventually(t, func() bool { return e.queue.Len() == 0 }, waitFor, time.Millisecond)

	// Release the first compile: its result is stale and must be discarded,
	// and the follow-up compile sees only the newest fingerprint.
	gate <- struct{}{}
	require.Equal(t, fpC, <-started, "the intermediate snapshot is skipped entirely")
	gate <- struct{}{}

	ev := waitEvent(t, n, scene.EventCompilationSucceeded)
	assert.Equal(t, fpC, ev.Fingerprint)
	assert.EqualValues(t, 2, e.CompilesStarted(), "three edits, two compiles, zero overlap")

	// The superseded compile's handle was disposed, never published.
	require.Eventually(t, func() bool { return ld.LiveHandles() == 1 }, waitFor, time.Millisecond)
	require.NotNil(t, e.CurrentModule())
	assert.Equal(t, fpC, e.CurrentModule().Meta().Fingerprint)
}

func TestEngine_PendingRevertSkipsRecompile(t *testing.T) {
	n := scene.NewChannelNotifier(32)
	timer := testutil.NewManualTimer()

	ld := loader.New(loader.WithLogger(discardLogger()))
	asm, err := compose.Assemble(nil, nil, scene.DefaultFPS)
	require.NoError(t, err)

	gate := make(chan struct{})
	started := make(chan string, 8)
	compileFn := func(ctx context.Context, snap scene.Snapshot, fp string, seq int64) CompileResult {
		started <- fp
		<-gate
		h := ld.Load(asm.Source, loader.ModuleMeta{Fingerprint: fp})
		return CompileResult{Fingerprint: fp, Seq: seq, Handle: h}
	}

	e := New(WithNotifier(n), WithTimer(timer), WithCompileFunc(compileFn), WithLogger(discardLogger()))
	startEngine(t, e)

	snapA := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v1", 1, 100)}}
	snapB := scene.Snapshot{Scenes: []scene.Descriptor{authoredDescriptor("aaaa1111", "Intro", "v2", 1, 100)}}
	fpA := scene.Fingerprint(snapA.Scenes, nil)

	require.True(t, e.Update(snapA))
	require.True(t, e.Flush())
	require.Equal(t, fpA, <-started)
	gate <- struct{}{}
	waitEvent(t, n, scene.EventCompilationSucceeded)

	// Edit, flush, then revert while that compile is in flight.
	require.True(t, e.Update(snapB))
	require.True(t, e.Flush())
	<-started
	require.True(t, e.Update(snapA))
	require.Eventually(t, func() bool { return e.queue.Len() == 0 }, waitFor, time.Millisecond)
	gate <- struct{}{}

	// The in-flight result is stale (current fingerprint reverted to A,
	// which is already published), so nothing new starts.
	require.Eventually(t, func() bool { return ld.LiveHandles() == 1 }, waitFor, time.Millisecond)
	assert.EqualValues(t, 2, e.CompilesStarted())
	assert.Equal(t, fpA, e.CurrentModule().Meta().Fingerprint)
}

func TestEngine_LoopWindowFromPublishedBoundaries(t *testing.T) {
	n := scene.NewChannelNotifier(16)
	timer := testutil.NewManualTimer()
	e := New(WithNotifier(n), WithTimer(timer), WithLogger(discardLogger()))
	startEngine(t, e)

	snap := scene.Snapshot{Scenes: []scene.Descriptor{
		authoredDescriptor("aaaa1111", "Intro", "v1", 1, 100),
		authoredDescriptor("bbbb2222", "Outro", "v1", 2, 50),
	}}
	require.True(t, e.Update(snap))
	require.True(t, e.Flush())
	waitEvent(t, n, scene.EventCompilationSucceeded)

	// Empty loop target means the whole composition: no restriction.
	assert.Nil(t, e.LoopWindow(""))

	w := e.LoopWindow("bbbb2222")
	require.NotNil(t, w)
	assert.Equal(t, 100, w.StartFrame)
	assert.Equal(t, 149, w.EndFrameExclusive, "window is capped one frame short of the composition end")

	first := e.LoopWindow("aaaa1111")
	require.NotNil(t, first)
	assert.Equal(t, 0, first.StartFrame)
	assert.Equal(t, 100, first.EndFrameExclusive)

	assert.Nil(t, e.LoopWindow("deleted-scene"), "stale loop target falls back to the whole composition")
}

func TestEngine_StopDrainsAndReturns(t *testing.T) {
	e := New(WithLogger(discardLogger()), WithTimer(testutil.NewManualTimer()))

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	e.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after Stop")
	}

	assert.False(t, e.Update(scene.Snapshot{}), "updates after Stop are rejected")
}
