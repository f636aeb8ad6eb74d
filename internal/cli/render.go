package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scenecast/scenecast/internal/compiler"
	"github.com/scenecast/scenecast/internal/compose"
	"github.com/scenecast/scenecast/internal/loader"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Frame int
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <manifest>",
		Short: "Evaluate one frame of the assembled composition",
		Long: `Compile and assemble the manifest, load the composition module, and
evaluate a single frame to JSON.

The output is the element list the active scene produces at that frame,
plus the audio gain from the overlay envelope. A scene that raises during
evaluation yields its fallback elements, exactly as it would in the player.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Frame, "frame", "f", 0, "frame number to evaluate")

	return cmd
}

func runRender(opts *RenderOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	snap, fps, err := LoadManifest(manifestPath)
	if err != nil {
		return outputCommandError(formatter, ErrCodeManifest, err)
	}

	logger := newCommandLogger(opts.Verbose)
	comp := compiler.New(compiler.WithLogger(logger))

	placements := compilePlacements(cmd.Context(), comp, snap)
	asm, err := compose.Assemble(placements, snap.Audio, fps)
	if err != nil {
		return outputCommandError(formatter, ErrCodeAssembly, err)
	}

	ld := loader.New(loader.WithLogger(logger))
	h := ld.Load(asm.Source, loader.ModuleMeta{
		Mode:        asm.Mode,
		FPS:         asm.FPS,
		TotalFrames: asm.TotalFrames,
		Boundaries:  asm.Boundaries,
		Envelope:    compose.Envelope(snap.Audio, asm.TotalFrames, asm.FPS),
	})
	defer h.Dispose()

	if h.Failed() {
		return outputCommandError(formatter, ErrCodeLoad, fmt.Errorf("composition module failed to load"))
	}

	frame := h.RenderFrame(opts.Frame)
	formatter.VerboseLog("Rendered frame %d (scene %s, fallback=%v)", frame.Frame, frame.SceneID, frame.Fallback)

	if formatter.Format == "json" {
		return formatter.Success(frame)
	}

	data, err := json.MarshalIndent(frame, "", "  ")
	if err != nil {
		return WrapExitError(ExitCommandError, "encoding frame", err)
	}
	fmt.Fprintln(formatter.Writer, string(data))
	return nil
}
