package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/scenecast/scenecast/internal/compiler"
	"github.com/scenecast/scenecast/internal/scene"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// SceneReport is the per-scene validation outcome.
type SceneReport struct {
	SceneID    string `json:"scene_id"`
	Name       string `json:"name"`
	EntryPoint string `json:"entry_point,omitempty"`
	Valid      bool   `json:"valid"`
	Error      string `json:"error,omitempty"`
}

// ValidationResult is the validate command's JSON payload.
type ValidationResult struct {
	Scenes      []SceneReport `json:"scenes"`
	ValidCount  int           `json:"valid_count"`
	FailedCount int           `json:"failed_count"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Lower every scene and report per-scene errors",
		Long: `Lower every scene in a YAML project manifest without assembling a module.

Each scene is checked independently: one broken scene never masks errors in
its siblings. Exits 1 if any scene fails to lower.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	snap, _, err := LoadManifest(manifestPath)
	if err != nil {
		return outputCommandError(formatter, ErrCodeManifest, err)
	}

	collect := &collectNotifier{}
	comp := compiler.New(
		compiler.WithNotifier(collect),
		compiler.WithLogger(newCommandLogger(opts.Verbose)),
	)

	scenes := make([]scene.Descriptor, len(snap.Scenes))
	copy(scenes, snap.Scenes)
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].Order < scenes[j].Order
	})

	result := &ValidationResult{}
	offset := 0
	for i, d := range scenes {
		formatter.VerboseLog("Lowering scene %s (%s)", d.Name, d.ID)
		unit := comp.CompileScene(cmd.Context(), d, i, offset)

		report := SceneReport{
			SceneID: d.ID,
			Name:    d.Name,
			Valid:   unit.IsValid,
		}
		if unit.IsValid {
			report.EntryPoint = unit.EntryPointName
			result.ValidCount++
		} else {
			report.Error = lastFailureFor(collect, d.ID)
			result.FailedCount++
		}
		result.Scenes = append(result.Scenes, report)

		dur := d.DurationFrames
		if dur < 1 {
			dur = 1
		}
		offset += dur
	}

	return outputValidationResult(formatter, result)
}

// lastFailureFor finds the captured failure message for a scene. The
// notifier records failures in compile order, so the last match reflects
// the scene's most recent attempt.
func lastFailureFor(collect *collectNotifier, sceneID string) string {
	for i := len(collect.failures) - 1; i >= 0; i-- {
		if collect.failures[i].SceneID == sceneID {
			return collect.failures[i].Message
		}
	}
	return "lowering failed"
}

func outputValidationResult(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		for _, r := range result.Scenes {
			if r.Valid {
				fmt.Fprintf(formatter.Writer, "✓ %s (%s) → #%s\n", r.Name, r.SceneID, r.EntryPoint)
			} else {
				fmt.Fprintf(formatter.Writer, "✗ %s (%s): %s\n", r.Name, r.SceneID, r.Error)
			}
		}
		fmt.Fprintf(formatter.Writer, "\n%d scene(s) valid, %d failed\n",
			result.ValidCount, result.FailedCount)
	}

	if result.FailedCount > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scene(s) failed to lower", result.FailedCount))
	}
	return nil
}
