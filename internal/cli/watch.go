package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scenecast/scenecast/internal/engine"
	"github.com/scenecast/scenecast/internal/store"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Database string
	Interval time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <manifest>",
		Short: "Run the compilation scheduler against a manifest",
		Long: `Start the compilation scheduler and keep the composition module in step
with the manifest on disk.

The manifest is polled for modification-time changes; every change feeds a
fresh snapshot into the scheduler, which debounces, compiles off the loop,
and publishes atomically. With --db, canonical lowered forms are persisted
so a restart skips re-lowering unchanged scenes.

Example:
  scenecast watch ./project.yaml
  scenecast watch ./project.yaml --db ./scenecast.db --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite lowered-form cache (optional)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 500*time.Millisecond, "manifest poll interval")

	return cmd
}

func runWatch(opts *WatchOptions, manifestPath string) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	snap, fps, err := LoadManifest(manifestPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}

	engineOpts := []engine.Option{
		engine.WithFPS(fps),
		engine.WithLogger(logger),
		engine.WithNotifier(&logNotifier{logger: logger}),
	}
	if opts.Database != "" {
		logger.Info("opening lowered-form cache", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		engineOpts = append(engineOpts, engine.WithPreloweredCache(st))
	}

	eng := engine.New(engineOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run(ctx) }()

	// First publish happens immediately; later edits go through the
	// debounce like any other change.
	eng.Update(snap)
	eng.Flush()

	lastMod := statMtime(manifestPath)
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	logger.Info("watching manifest", "path", manifestPath, "interval", opts.Interval)
	for {
		select {
		case <-ctx.Done():
			err := <-runErr
			if err != nil && err != context.Canceled {
				return err
			}
			logger.Info("watch stopped")
			return nil

		case <-ticker.C:
			mod := statMtime(manifestPath)
			if mod.IsZero() || mod.Equal(lastMod) {
				continue
			}
			lastMod = mod

			snap, _, err := LoadManifest(manifestPath)
			if err != nil {
				// Half-written saves show up as transient parse errors;
				// keep the last good composition and try again next tick.
				logger.Warn("manifest reload failed, keeping current composition", "error", err)
				continue
			}
			logger.Debug("manifest changed", "scenes", len(snap.Scenes))
			eng.Update(snap)
		}
	}
}

// statMtime returns the file's modification time, or the zero time when the
// file is momentarily missing (editors replace files via rename).
func statMtime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
