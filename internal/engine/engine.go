package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/scenecast/scenecast/internal/compiler"
	"github.com/scenecast/scenecast/internal/compose"
	"github.com/scenecast/scenecast/internal/loader"
	"github.com/scenecast/scenecast/internal/scene"
)

// State is the scheduler's position in the compile lifecycle.
type State string

const (
	// StateIdle: nothing to do; published module matches the store.
	StateIdle State = "idle"
	// StateDebouncing: a change arrived; the timer is running.
	StateDebouncing State = "debouncing"
	// StateCompiling: one compile is in flight, nothing queued behind it.
	StateCompiling State = "compiling"
	// StateCompilingWithPending: one compile in flight, and the store has
	// changed since it started. Only the newest fingerprint is retained.
	StateCompilingWithPending State = "compiling-with-pending"
)

// DefaultDebounce is the settle time after an edit before compiling.
// Empty compositions and explicit save signals skip it.
const DefaultDebounce = 600 * time.Millisecond

// CompileResult is what one compile run hands back to the loop. Handle is
// always non-nil: pipeline failures degrade to placeholder handles inside
// the pipeline, they never surface here as errors.
type CompileResult struct {
	Fingerprint string
	Seq         int64
	Handle      *loader.Handle
	Boundaries  []compose.Boundary
	TotalFrames int
}

// CompileFunc runs the full pipeline (lower, assemble, load) for one
// snapshot. Replaced in tests to make compile timing deterministic.
type CompileFunc func(ctx context.Context, snap scene.Snapshot, fp string, seq int64) CompileResult

// Engine is the compilation scheduler.
//
// Thread-safety model:
//   - Update/Flush: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - CurrentModule/LoopWindow: safe from any goroutine
//
// All state-machine fields are owned by the Run goroutine.
type Engine struct {
	compiler  *compiler.Compiler
	loader    *loader.Loader
	notifier  scene.Notifier
	logger    *slog.Logger
	fps       int
	debounce  time.Duration
	timer     DebounceTimer
	clock     *Clock
	queue     *eventQueue
	compileFn CompileFunc

	compileDone   chan CompileResult
	runCtx        context.Context
	preloweredOpt compiler.PreloweredCache

	// Loop-owned scheduler state.
	state         State
	snapshot      scene.Snapshot
	currentFP     string
	lastPublished string

	// Published boundary table, read by LoopWindow from any goroutine.
	mu          sync.Mutex
	boundaries  []compose.Boundary
	totalFrames int
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the outbound notifier shared by the whole pipeline.
func WithNotifier(n scene.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithFPS sets the composition frame rate.
func WithFPS(fps int) Option {
	return func(e *Engine) { e.fps = fps }
}

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// WithTimer replaces the debounce timer (deterministic tests).
func WithTimer(t DebounceTimer) Option {
	return func(e *Engine) { e.timer = t }
}

// WithPreloweredCache attaches the persistent lowered-form cache.
func WithPreloweredCache(c compiler.PreloweredCache) Option {
	return func(e *Engine) { e.preloweredOpt = c }
}

// WithCompileFunc replaces the compile pipeline (deterministic tests).
func WithCompileFunc(fn CompileFunc) Option {
	return func(e *Engine) { e.compileFn = fn }
}

// New creates an Engine. The compiler and loader are constructed here so
// the whole pipeline shares one notifier and logger.
func New(opts ...Option) *Engine {
	e := &Engine{
		notifier:    scene.NopNotifier{},
		logger:      slog.Default(),
		fps:         scene.DefaultFPS,
		debounce:    DefaultDebounce,
		clock:       NewClock(),
		queue:       newEventQueue(),
		compileDone: make(chan CompileResult, 1),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.timer == nil {
		e.timer = newRealTimer()
	}

	compilerOpts := []compiler.Option{
		compiler.WithNotifier(e.notifier),
		compiler.WithLogger(e.logger),
	}
	if e.preloweredOpt != nil {
		compilerOpts = append(compilerOpts, compiler.WithPreloweredCache(e.preloweredOpt))
	}
	e.compiler = compiler.New(compilerOpts...)
	e.loader = loader.New(loader.WithNotifier(e.notifier), loader.WithLogger(e.logger))

	if e.compileFn == nil {
		e.compileFn = e.runPipeline
	}
	return e
}

// Update submits a fresh scene/audio snapshot. Every store change
// notification is a candidate fingerprint change; the loop decides whether
// anything worth recompiling actually changed.
// Thread-safe. Returns false after the engine has stopped.
func (e *Engine) Update(snap scene.Snapshot) bool {
	return e.queue.Enqueue(Event{Type: EventTypeUpdate, Snapshot: snap})
}

// Flush is the explicit save signal: compile the current snapshot now,
// skipping the debounce. Thread-safe.
func (e *Engine) Flush() bool {
	return e.queue.Enqueue(Event{Type: EventTypeFlush})
}

// CurrentModule returns the live executable handle, or nil before the
// first successful publish. Callers must not retain the handle across
// recompiles; re-fetch it instead.
func (e *Engine) CurrentModule() *loader.Handle {
	return e.loader.Current()
}

// LoopWindow resolves the loop window for a target scene against the
// currently published boundaries. Empty target or unknown scene: nil
// (whole composition).
func (e *Engine) LoopWindow(sceneID string) *scene.LoopWindow {
	e.mu.Lock()
	boundaries, total := e.boundaries, e.totalFrames
	e.mu.Unlock()
	return compose.LoopWindow(boundaries, total, sceneID)
}

// CompilesStarted reports how many compiles have been launched. Exposed for
// observability and for asserting the single-flight property in tests.
func (e *Engine) CompilesStarted() int64 {
	return e.clock.Current()
}

// Run starts the single-writer scheduler loop. Blocks until the context is
// cancelled or Stop is called. Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("scheduler starting")
	e.runCtx = ctx

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.processEvent(ev)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("scheduler stopping: context cancelled")
			e.queue.Close()
			e.timer.Stop()
			return ctx.Err()

		case <-e.queue.Wait():
			// A wakeup with an empty queue is either shutdown or a stale
			// signal from an enqueue the eager drain already consumed.
			if e.queue.Len() == 0 && e.queue.Closed() {
				e.logger.Info("scheduler stopping: queue closed")
				e.timer.Stop()
				return nil
			}

		case <-e.timer.Fired():
			e.handleTimerFired()

		case res := <-e.compileDone:
			e.handleCompileDone(res)
		}
	}
}

// Stop gracefully shuts down the engine; Run returns once the queue drains.
func (e *Engine) Stop() {
	e.queue.Close()
}

// processEvent routes one input. Called only from the Run goroutine.
func (e *Engine) processEvent(ev Event) {
	switch ev.Type {
	case EventTypeUpdate:
		e.snapshot = cloneSnapshot(ev.Snapshot)
		e.currentFP = scene.Fingerprint(e.snapshot.Scenes, e.snapshot.Audio)
		e.handleChange(false)
	case EventTypeFlush:
		e.currentFP = scene.Fingerprint(e.snapshot.Scenes, e.snapshot.Audio)
		e.handleChange(true)
	}
}

// handleChange drives the state machine for a (candidate) fingerprint
// change. immediate skips the debounce (save signal).
func (e *Engine) handleChange(immediate bool) {
	switch e.state {
	case StateIdle:
		if e.isNoop() {
			return
		}
		if immediate || e.debounceDelay() == 0 {
			e.startCompile()
			return
		}
		e.state = StateDebouncing
		e.timer.Start(e.debounceDelay())

	case StateDebouncing:
		if e.isNoop() {
			// Reverted to the last published state: cancel, no compile.
			e.timer.Stop()
			e.state = StateIdle
			return
		}
		if immediate || e.debounceDelay() == 0 {
			e.timer.Stop()
			e.startCompile()
			return
		}
		// Another edit before the timer fired: restart it.
		e.timer.Start(e.debounceDelay())

	case StateCompiling:
		e.state = StateCompilingWithPending

	case StateCompilingWithPending:
		// Latest wins: currentFP already tracks the newest snapshot and
		// the slot never grows past depth one.
	}
}

func (e *Engine) handleTimerFired() {
	// A fire that races a state transition is stale; only Debouncing acts.
	if e.state != StateDebouncing {
		return
	}
	e.startCompile()
}

// isNoop reports whether the current fingerprint matches what is already
// published, making a compile pointless.
func (e *Engine) isNoop() bool {
	return e.currentFP == e.lastPublished && e.loader.Current() != nil
}

// debounceDelay is 0 for an empty composition (nothing to settle, publish
// the placeholder immediately), the configured interval otherwise.
func (e *Engine) debounceDelay() time.Duration {
	if len(e.snapshot.Scenes) == 0 {
		return 0
	}
	return e.debounce
}

// startCompile launches the pipeline for the current fingerprint on a
// worker goroutine. Exactly one compile is ever in flight: this is only
// called from Idle/Debouncing transitions or from handleCompileDone.
func (e *Engine) startCompile() {
	e.state = StateCompiling
	seq := e.clock.Next()
	fp := e.currentFP
	snap := cloneSnapshot(e.snapshot)
	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	e.logger.Debug("compile starting", "seq", seq, "scenes", len(snap.Scenes))
	go func() {
		e.compileDone <- e.compileFn(ctx, snap, fp, seq)
	}()
}

// handleCompileDone publishes or discards a finished compile, then
// immediately launches the pending one if the store moved on meanwhile.
func (e *Engine) handleCompileDone(res CompileResult) {
	if res.Fingerprint == e.currentFP {
		e.loader.Publish(res.Handle)
		e.mu.Lock()
		e.boundaries = res.Boundaries
		e.totalFrames = res.TotalFrames
		e.mu.Unlock()
		e.lastPublished = res.Fingerprint
		e.logger.Debug("compile published", "seq", res.Seq, "frames", res.TotalFrames)
		e.notifier.CompilationSucceeded(res.Fingerprint)
	} else {
		// Superseded mid-flight: the result is discarded, the handle
		// released, and the newest fingerprint compiles next.
		e.logger.Debug("compile superseded, discarding", "seq", res.Seq)
		res.Handle.Dispose()
	}

	if e.state == StateCompilingWithPending && !e.isNoop() {
		e.startCompile()
		return
	}
	e.state = StateIdle
}

func cloneSnapshot(snap scene.Snapshot) scene.Snapshot {
	out := scene.Snapshot{}
	if snap.Scenes != nil {
		out.Scenes = make([]scene.Descriptor, len(snap.Scenes))
		copy(out.Scenes, snap.Scenes)
	}
	if snap.Audio != nil {
		audio := *snap.Audio
		out.Audio = &audio
	}
	return out
}
