package loader

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/scenecast/scenecast/internal/compose"
	"github.com/scenecast/scenecast/internal/scene"
)

// ModuleMeta carries the assembly facts the handle needs at render time.
type ModuleMeta struct {
	Fingerprint string
	Mode        compose.Mode
	FPS         int
	TotalFrames int
	Boundaries  []compose.Boundary
	Envelope    []compose.Anchor
}

// Loader loads composition modules and tracks live handles.
//
// Loader methods are safe for concurrent use; handle bookkeeping follows
// the opaque handle-store pattern: every loaded module is registered under
// a generated id and pinned until disposed.
type Loader struct {
	notifier scene.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	handles map[string]*Handle
	current *Handle
	nextID  atomic.Uint64
}

// Option configures a Loader.
type Option func(*Loader)

// WithNotifier sets the outbound notifier for load and runtime failures.
func WithNotifier(n scene.Notifier) Option {
	return func(l *Loader) { l.notifier = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loader) { l.logger = lg }
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		notifier: scene.NopNotifier{},
		logger:   slog.Default(),
		handles:  make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load compiles module source into an executable handle. It never fails
// outward: a module that does not compile yields a placeholder handle whose
// every frame renders the whole-composition failure placeholder, plus a
// repair notification.
//
// Each module gets its own CUE context, so disposing the handle releases
// everything the module allocated.
func (l *Loader) Load(src string, meta ModuleMeta) *Handle {
	h := &Handle{
		id:       fmt.Sprintf("h-%d", l.nextID.Add(1)),
		meta:     meta,
		notifier: l.notifier,
		logger:   l.logger,
		broken:   make(map[string]bool),
	}

	v := cuecontext.New().CompileString(src, cue.Filename("composition.cue"))
	if err := v.Err(); err != nil {
		l.failLoad(h, fmt.Errorf("composition module does not compile: %w", err))
		l.register(h)
		return h
	}
	if err := checkEntryPoints(v, meta); err != nil {
		l.failLoad(h, err)
		l.register(h)
		return h
	}

	h.val = v
	h.std = v.LookupPath(cue.MakePath(cue.Def("#Std"))).LookupPath(cue.MakePath(cue.Def("#Scene")))
	l.register(h)
	return h
}

// Fail creates a degraded handle with no module source at all. Used when
// assembly itself fails upstream of loading: the player still needs a
// loadable (placeholder) module while repair runs.
func (l *Loader) Fail(err error, meta ModuleMeta) *Handle {
	h := &Handle{
		id:       fmt.Sprintf("h-%d", l.nextID.Add(1)),
		meta:     meta,
		notifier: l.notifier,
		logger:   l.logger,
		broken:   make(map[string]bool),
	}
	l.failLoad(h, err)
	l.register(h)
	return h
}

// failLoad marks the handle as a whole-composition placeholder and reports.
func (l *Loader) failLoad(h *Handle, err error) {
	l.logger.Error("composition load failed, degrading to placeholder", "error", err)
	h.failed = true
	h.failErr = err

	l.notifier.CompilationFailed("", err)
	l.notifier.RepairRequested(scene.RepairRequest{
		SceneName:  "composition",
		SceneIndex: -1,
		Err:        err.Error(),
	})
}

// checkEntryPoints confirms every placed entry definition exists before the
// handle is published. A missing definition is a global naming defect and
// must surface at load time, not as a per-frame runtime error.
func checkEntryPoints(v cue.Value, meta ModuleMeta) error {
	for _, b := range meta.Boundaries {
		def := v.LookupPath(cue.MakePath(cue.Def("#" + b.EntryPointName)))
		if !def.Exists() {
			return fmt.Errorf("module missing entry point #%s for scene %s", b.EntryPointName, b.SceneID)
		}
	}
	return nil
}

func (l *Loader) register(h *Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h.release = func() { l.unregister(h.id) }
	l.handles[h.id] = h
}

func (l *Loader) unregister(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handles, id)
}

// Publish installs h as the current handle and disposes the superseded one.
// Returns the previous handle (already disposed), mainly for tests.
//
// The caller must only publish handles returned by Load, which are confirmed
// loadable (or deliberately degraded) - so the previous handle is never
// released before a usable successor exists.
func (l *Loader) Publish(h *Handle) *Handle {
	l.mu.Lock()
	prev := l.current
	l.current = h
	l.mu.Unlock()

	if prev != nil && prev != h {
		prev.Dispose()
	}
	return prev
}

// Current returns the live handle, or nil before the first publish.
func (l *Loader) Current() *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// LiveHandles reports how many handles are registered and undisposed.
func (l *Loader) LiveHandles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handles)
}
