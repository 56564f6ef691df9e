package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapmix/internal/cli/output"
	"github.com/leapstack-labs/leapmix/internal/engine"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

// RunEvent is the JSON form of one history entry.
type RunEvent struct {
	ID          string       `json:"id"`
	Recipe      string       `json:"recipe"`
	Status      string       `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
	Builds      []BuildEntry `json:"builds,omitempty"`
}

// BuildEntry is one recipe resolved during a run.
type BuildEntry struct {
	Recipe    string `json:"recipe"`
	Reused    bool   `json:"reused"`
	Rows      int64  `json:"rows"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [recipe]",
		Short: "Show recent build runs",
		Long: `Show recent build runs, newest first, with every recipe each run built
or reused. Pass a recipe name to show only runs that targeted it.`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			names, _ := recipeNames(cmd)
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			return runHistory(cmd, name, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of runs to show (0 for all)")
	return cmd
}

func runHistory(cmd *cobra.Command, name string, limit int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cmdCtx.Engine.History(name, limit)
	if errors.Is(err, engine.ErrHistoryDisabled) {
		cmdCtx.Renderer.Warning(err.Error())
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	renderHistory(cmdCtx.Renderer, runs)
	return nil
}

func renderHistory(r *output.Renderer, runs []engine.RunHistory) {
	if r.EffectiveMode() == output.ModeJSON {
		for _, h := range runs {
			event := RunEvent{
				ID:          h.Run.ID,
				Recipe:      h.Run.Recipe,
				Status:      string(h.Run.Status),
				StartedAt:   h.Run.StartedAt,
				CompletedAt: h.Run.CompletedAt,
				Error:       h.Run.Error,
			}
			for _, b := range h.Builds {
				event.Builds = append(event.Builds, BuildEntry{
					Recipe: b.Recipe, Reused: b.Reused, Rows: b.Rows, ElapsedMS: b.ElapsedMS,
				})
			}
			_ = r.JSON(event)
		}
		return
	}

	if len(runs) == 0 {
		r.Muted("No runs recorded.")
		return
	}

	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
	rows := make([][]string, 0, len(runs))
	for _, h := range runs {
		built, reused := 0, 0
		for _, b := range h.Builds {
			if b.Reused {
				reused++
			} else {
				built++
			}
		}
		duration := "-"
		if h.Run.CompletedAt != nil {
			duration = h.Run.CompletedAt.Sub(h.Run.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			h.Run.StartedAt.Local().Format(timeLayout),
			h.Run.Recipe,
			string(h.Run.Status),
			strconv.Itoa(built),
			strconv.Itoa(reused),
			duration,
			h.Run.Error,
		})
	}
	r.Table([]string{"Started", "Recipe", "Status", "Built", "Reused", "Duration", "Error"}, rows)
}
