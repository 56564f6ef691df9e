package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmix/internal/catalog"
	"github.com/leapstack-labs/leapmix/internal/cli/output"
	"github.com/leapstack-labs/leapmix/internal/engine"
	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/pkg/core"
	"github.com/spf13/cobra"

	// Register built-in operations in operation.Default.
	_ "github.com/leapstack-labs/leapmix/internal/operations"
)

// RecipeListing is the JSON form of one list-recipes entry.
type RecipeListing struct {
	Name         string   `json:"name"`
	References   []string `json:"references,omitempty"`
	ReferencedBy []string `json:"referenced_by,omitempty"`
	LastBuilt    string   `json:"last_built,omitempty"`
	Rows         int64    `json:"rows,omitempty"`
}

// OperationListing is the JSON form of one list-operations entry.
type OperationListing struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// NewListRecipesCommand creates the list-recipes command.
func NewListRecipesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list-recipes",
		Aliases: []string{"recipes", "ls"},
		Short:   "List recipe definitions",
		Long: `List every recipe defined in the recipes directory with the recipes it
references, the recipes that reference it, and its last recorded build.`,
		Args: cobra.NoArgs,
		RunE: runListRecipes,
	}
}

func runListRecipes(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	listings, err := recipeListings(cmdCtx.Engine)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		for _, l := range listings {
			if err := r.JSON(l); err != nil {
				return err
			}
		}
		return nil
	default:
		if len(listings) == 0 {
			r.Muted("No recipes found in " + cmdCtx.Cfg.RecipesDir)
			return nil
		}
		r.Header(1, fmt.Sprintf("Recipes (%d)", len(listings)))
		rows := make([][]string, 0, len(listings))
		for _, l := range listings {
			lastBuilt := "-"
			if l.LastBuilt != "" {
				lastBuilt = fmt.Sprintf("%s (%d rows)", l.LastBuilt, l.Rows)
			}
			rows = append(rows, []string{l.Name, joinOrDash(l.References), joinOrDash(l.ReferencedBy), lastBuilt})
		}
		r.Table([]string{"Recipe", "References", "Referenced by", "Last built"}, rows)
		return nil
	}
}

func recipeListings(eng *engine.Engine) ([]RecipeListing, error) {
	g, err := eng.Graph()
	if err != nil {
		return nil, err
	}

	ids := g.IDs()
	listings := make([]RecipeListing, 0, len(ids))
	for _, name := range ids {
		rec, _ := g.Node(name)
		l := RecipeListing{
			Name:         name,
			References:   rec.References,
			ReferencedBy: rec.ReferencedBy,
		}
		build, err := eng.LatestBuild(name)
		switch {
		case errors.Is(err, engine.ErrHistoryDisabled):
		case err != nil:
			return nil, err
		case build != nil:
			l.LastBuilt = build.BuiltAt.Local().Format("2006-01-02 15:04:05")
			l.Rows = build.Rows
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// NewListOperationsCommand creates the list-operations command.
func NewListOperationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list-operations",
		Aliases: []string{"operations", "ops"},
		Short:   "List registered operations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			return renderOperations(cmdCtx.Renderer, operation.Default)
		},
	}
}

func renderOperations(r *output.Renderer, reg *operation.Registry) error {
	names := reg.Names()
	if r.EffectiveMode() == output.ModeJSON {
		for _, name := range names {
			if err := r.JSON(OperationListing{Name: name, Description: reg.Describe(name)}); err != nil {
				return err
			}
		}
		return nil
	}

	r.Header(1, fmt.Sprintf("Operations (%d)", len(names)))
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, reg.Describe(name)})
	}
	r.Table([]string{"Operation", "Description"}, rows)
	return nil
}

// recipeNames lists recipe names for shell completion without opening the
// history store.
func recipeNames(_ *cobra.Command) ([]string, error) {
	cfg := getConfig()
	return catalog.New(core.KindRecipe, cfg.RecipesDir).List()
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
