package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/leapmix/internal/cli/output"
	"github.com/leapstack-labs/leapmix/internal/recipe"
	"github.com/leapstack-labs/leapmix/pkg/core"
	"github.com/spf13/cobra"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Watch    bool
	Debounce time.Duration
}

// BuildEvent is the JSON form of a build result.
type BuildEvent struct {
	Event        string              `json:"event"`
	Recipe       string              `json:"recipe"`
	Reused       bool                `json:"reused,omitempty"`
	Rows         int                 `json:"rows,omitempty"`
	ElapsedMS    int64               `json:"elapsed_ms,omitempty"`
	Splits       []string            `json:"splits,omitempty"`
	Distribution []DistributionShare `json:"distribution,omitempty"`
	Artifact     string              `json:"artifact,omitempty"`
	Available    []string            `json:"available,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// DistributionShare is one input's share of an interleaved build.
type DistributionShare struct {
	Source  string  `json:"source"`
	Rows    int     `json:"rows"`
	Percent float64 `json:"percent"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build <recipe>",
		Short: "Build a recipe and its stale dependencies",
		Long: `Build a recipe into a dataset artifact.

Referenced recipes are resolved first. Recipes whose artifact is newer than
their definition are loaded from disk instead of being rebuilt.`,
		Example: `  # Build a recipe
  leapmix build news_mix

  # Rebuild whenever a definition changes
  leapmix build news_mix --watch

  # Emit JSON lines for CI
  leapmix build news_mix --output json`,
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			names, _ := recipeNames(cmd)
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Rebuild when the recipe or a recipe it depends on changes")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 300*time.Millisecond, "Quiet period before a watch rebuild")

	return cmd
}

func runBuild(cmd *cobra.Command, name string, opts *BuildOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ok, err := buildOnce(ctx, cmdCtx, name)
	if err != nil || !ok || !opts.Watch {
		return err
	}
	return watchAndRebuild(ctx, cmdCtx, name, opts.Debounce)
}

// buildOnce builds name and renders the result. It returns false without an
// error when the recipe does not exist; the failure notice has been printed.
func buildOnce(ctx context.Context, cmdCtx *CommandContext, name string) (bool, error) {
	r := cmdCtx.Renderer
	built, err := cmdCtx.Engine.Build(ctx, name)

	var notFound *core.DefinitionNotFoundError
	if errors.As(err, &notFound) && notFound.Kind == core.KindRecipe && notFound.Name == name {
		renderInvalidRecipe(r, name, notFound.Available)
		return false, nil
	}
	if err != nil {
		if r.EffectiveMode() == output.ModeJSON {
			_ = r.JSON(BuildEvent{Event: "build_failed", Recipe: name, Error: err.Error()})
		}
		return false, fmt.Errorf("build failed: %w", err)
	}

	renderBuild(r, built, cmdCtx.Engine.OutputDir())
	return true, nil
}

func renderInvalidRecipe(r *output.Renderer, name string, available []string) {
	if r.EffectiveMode() == output.ModeJSON {
		_ = r.JSON(BuildEvent{Event: "invalid_recipe", Recipe: name, Available: available})
		return
	}
	r.Error(fmt.Sprintf("Invalid recipe '%s'", name))
	if len(available) == 0 {
		r.Println("No recipes are defined.")
		return
	}
	r.Println("Available recipes:")
	for _, n := range available {
		r.Println("  - " + n)
	}
}

func renderBuild(r *output.Renderer, rec *recipe.Recipe, outputDir string) {
	report := rec.LastBuild
	artifact := filepath.Join(outputDir, rec.Name)

	if r.EffectiveMode() == output.ModeJSON {
		event := BuildEvent{
			Event:     "recipe_built",
			Recipe:    rec.Name,
			Reused:    report.Reused,
			Rows:      report.Rows,
			ElapsedMS: report.Elapsed.Milliseconds(),
			Splits:    report.Splits,
			Artifact:  artifact,
		}
		for _, share := range report.Distribution {
			event.Distribution = append(event.Distribution, DistributionShare{
				Source: share.Name, Rows: share.Rows, Percent: share.Percent,
			})
		}
		_ = r.JSON(event)
		return
	}

	if report.Reused {
		r.StatusLine(output.StatusReused, fmt.Sprintf("Recipe '%s' is up to date (%d rows)", rec.Name, report.Rows))
	} else {
		r.Success(fmt.Sprintf("Built recipe '%s' (%d rows in %s)", rec.Name, report.Rows, report.Elapsed.Round(time.Millisecond)))
	}
	for _, share := range report.Distribution {
		r.Println("  " + share.String())
	}
	if len(report.Splits) > 0 {
		r.Println("  splits: " + strings.Join(report.Splits, ", "))
	}
	r.Muted("  " + artifact)
}
