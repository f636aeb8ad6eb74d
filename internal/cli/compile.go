package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scenecast/scenecast/internal/compiler"
	"github.com/scenecast/scenecast/internal/compose"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// BoundarySummary is one timeline segment in compile/validate reports.
type BoundarySummary struct {
	SceneID    string `json:"scene_id"`
	Name       string `json:"name"`
	EntryPoint string `json:"entry_point"`
	From       int    `json:"from"`
	Duration   int    `json:"duration_frames"`
	Valid      bool   `json:"valid"`
}

// CompileResult is the compile command's JSON payload.
type CompileResult struct {
	Mode        string            `json:"mode"`
	FPS         int               `json:"fps"`
	TotalFrames int               `json:"total_frames"`
	Boundaries  []BoundarySummary `json:"boundaries"`
	Failures    []sceneFailure    `json:"failures,omitempty"`
	Source      string            `json:"source"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <manifest>",
		Short: "Compile a project manifest into a composition module",
		Long: `Compile every scene in a YAML project manifest and assemble the result
into a single executable composition module.

Scenes that fail to lower are replaced by fallback units, so the emitted
module is always loadable. Without --output the module source is printed
to stdout.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, manifestPath string, cmd *cobra.Command) error {
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
	formatter.VerboseLog("Loaded %d scene(s) from %s", len(snap.Scenes), manifestPath)

	collect := &collectNotifier{}
	comp := compiler.New(
		compiler.WithNotifier(collect),
		compiler.WithLogger(newCommandLogger(opts.Verbose)),
	)

	placements := compilePlacements(cmd.Context(), comp, snap)
	asm, err := compose.Assemble(placements, snap.Audio, fps)
	if err != nil {
		return outputCommandError(formatter, ErrCodeAssembly, err)
	}

	result := &CompileResult{
		Mode:        string(asm.Mode),
		FPS:         asm.FPS,
		TotalFrames: asm.TotalFrames,
		Boundaries:  summarizeBoundaries(asm.Boundaries),
		Failures:    collect.failures,
		Source:      asm.Source,
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(asm.Source), 0644); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Errorf("writing output file: %w", err))
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

func summarizeBoundaries(boundaries []compose.Boundary) []BoundarySummary {
	out := make([]BoundarySummary, 0, len(boundaries))
	for _, b := range boundaries {
		out = append(out, BoundarySummary{
			SceneID:    b.SceneID,
			Name:       b.Name,
			EntryPoint: b.EntryPointName,
			From:       b.From,
			Duration:   b.DurationFrames,
			Valid:      b.IsValid,
		})
	}
	return out
}

// outputCompileSuccess prints the result. In text mode the summary goes to
// stderr and the module source to stdout, so the source stays pipeable.
func outputCompileSuccess(formatter *OutputFormatter, result *CompileResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.ErrWriter
	if w == nil {
		w = formatter.Writer
	}

	fmt.Fprintf(w, "✓ Assembled %d scene(s): %d frames @ %dfps (%s)\n",
		len(result.Boundaries), result.TotalFrames, result.FPS, result.Mode)
	for _, b := range result.Boundaries {
		marker := "✓"
		if !b.Valid {
			marker = "✗"
		}
		fmt.Fprintf(w, "  %s [%d..%d) %s (#%s)\n",
			marker, b.From, b.From+b.Duration, b.Name, b.EntryPoint)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(w, "  ✗ %s: %s\n", f.SceneName, f.Message)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote composition module to %s\n", outputFile)
		return nil
	}

	fmt.Fprint(formatter.Writer, result.Source)
	return nil
}

// outputCommandError prints an error and maps it to an exit code. An
// ExitError passes through with its code intact.
func outputCommandError(formatter *OutputFormatter, code string, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		_ = formatter.Error(errCodeFromMessage(exitErr.Message, code), exitErr.Error(), nil)
		return exitErr
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, err.Error()), err)
}

// errCodeFromMessage recovers the "Exxx" prefix embedded in ExitError
// messages by the manifest loader; falls back to the caller's code.
func errCodeFromMessage(message, fallback string) string {
	if len(message) >= 4 && message[0] == 'E' {
		if _, err := fmt.Sscanf(message[:4], "E%03d", new(int)); err == nil {
			return message[:4]
		}
	}
	return fallback
}
