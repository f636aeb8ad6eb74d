package compiler

import (
	"context"
	"log/slog"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/scenecast/scenecast/internal/scene"
)

// PreloweredCache persists canonical lowered forms across restarts so the
// fast path stays warm. Implemented by store.Store; nil disables persistence.
type PreloweredCache interface {
	GetLowered(ctx context.Context, sceneID, sourceHash string) (entryName, loweredText string, ok bool, err error)
	PutLowered(ctx context.Context, sceneID, sourceHash, entryName, loweredText string) error
}

// cacheKey identifies one compiled unit. The audio offset (the scene's start
// frame within the composition) is part of the key so units that ever bake
// in absolute timing stay correct across reorders; the source hash keeps
// unrelated edits from invalidating untouched scenes.
type cacheKey struct {
	sceneID     string
	offsetFrame int
	sourceHash  string
}

// cachedUnit is one unit-cache entry. gen records the last pipeline run
// (Prune generation) that reached the entry, so stale variants of live
// scenes can be evicted.
type cachedUnit struct {
	unit scene.CompiledUnit
	gen  uint64
}

// Compiler lowers scene descriptors into compiled units.
//
// Not safe for concurrent use: the scheduler's single-flight guarantee means
// exactly one compilation runs at a time, and the CUE context plus the unit
// cache rely on that.
type Compiler struct {
	cctx       *cue.Context
	units      map[cacheKey]cachedUnit
	gen        uint64
	prelowered PreloweredCache
	notifier   scene.Notifier
	logger     *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithPreloweredCache attaches a persistent cache for lowered forms.
func WithPreloweredCache(c PreloweredCache) Option {
	return func(co *Compiler) { co.prelowered = c }
}

// WithNotifier sets the outbound notifier for compile failures.
func WithNotifier(n scene.Notifier) Option {
	return func(co *Compiler) { co.notifier = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(co *Compiler) { co.logger = l }
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		cctx:     cuecontext.New(),
		units:    make(map[cacheKey]cachedUnit),
		notifier: scene.NopNotifier{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileScene produces the unit for one scene. It always returns a unit:
// any lowering failure is reported through the notifier and replaced by a
// fallback unit, never propagated. offsetFrame is the scene's start frame
// within the composition (part of the cache key).
func (c *Compiler) CompileScene(ctx context.Context, d scene.Descriptor, index, offsetFrame int) scene.CompiledUnit {
	sourceHash := scene.SourceHash(d.ResolvedSource())
	key := cacheKey{sceneID: d.ID, offsetFrame: offsetFrame, sourceHash: sourceHash}

	if e, ok := c.units[key]; ok {
		c.logger.Debug("unit cache hit", "scene", d.ID, "hash", sourceHash[:8])
		e.gen = c.gen
		c.units[key] = e
		return e.unit
	}

	unit := c.compileMiss(ctx, d, index, sourceHash)
	c.units[key] = cachedUnit{unit: unit, gen: c.gen}
	return unit
}

func (c *Compiler) compileMiss(ctx context.Context, d scene.Descriptor, index int, sourceHash string) scene.CompiledUnit {
	if err := d.Validate(); err != nil {
		return c.failScene(d, index, err)
	}

	entryName, lowered, err := c.lower(ctx, d, index, sourceHash)
	if err != nil {
		return c.failScene(d, index, err)
	}

	return scene.CompiledUnit{
		SceneID:        d.ID,
		IsValid:        true,
		ExecutableText: lowered,
		EntryPointName: entryName,
		SourceHash:     sourceHash,
	}
}

// lower picks the lowering path: in-memory pre-lowered text first, then the
// persisted cache, then a fresh lowering of the authored source. Successful
// fresh lowerings are written back to the persisted cache.
func (c *Compiler) lower(ctx context.Context, d scene.Descriptor, index int, sourceHash string) (string, string, error) {
	if d.LoweredText != "" {
		return normalizePrelowered(d, index)
	}

	if c.prelowered != nil {
		entryName, lowered, ok, err := c.prelowered.GetLowered(ctx, d.ID, sourceHash)
		if err != nil {
			c.logger.Warn("pre-lowered cache read failed", "scene", d.ID, "error", err)
		} else if ok {
			c.logger.Debug("pre-lowered cache hit", "scene", d.ID, "hash", sourceHash[:8])
			return entryName, lowered, nil
		}
	}

	entryName, lowered, err := lowerAuthored(c.cctx, d, index)
	if err != nil {
		return "", "", err
	}

	if c.prelowered != nil {
		if err := c.prelowered.PutLowered(ctx, d.ID, sourceHash, entryName, lowered); err != nil {
			c.logger.Warn("pre-lowered cache write failed", "scene", d.ID, "error", err)
		}
	}
	return entryName, lowered, nil
}

// failScene reports a lowering failure and substitutes the fallback unit.
func (c *Compiler) failScene(d scene.Descriptor, index int, err error) scene.CompiledUnit {
	c.logger.Warn("scene lowering failed, substituting fallback",
		"scene", d.ID, "name", d.Name, "index", index, "error", err)

	c.notifier.CompilationFailed(d.ID, err)
	c.notifier.RepairRequested(scene.RepairRequest{
		SceneID:    d.ID,
		SceneName:  d.Name,
		SceneIndex: index,
		Err:        err.Error(),
	})
	return FallbackUnit(d, index, err.Error())
}

// Prune drops cached units no longer reachable from the current composition:
// scenes that were removed, and stale (offset, hash) variants of scenes that
// were edited or reordered. The entries touched since the previous Prune are
// exactly the reachable set, so across pipeline runs the cache stays bounded
// by one unit per live scene.
func (c *Compiler) Prune(live map[string]bool) {
	for key, e := range c.units {
		if !live[key.sceneID] || e.gen != c.gen {
			delete(c.units, key)
		}
	}
	c.gen++
}
