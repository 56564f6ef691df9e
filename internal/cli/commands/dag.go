package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmix/internal/cli/output"
	"github.com/leapstack-labs/leapmix/internal/dag"
	"github.com/leapstack-labs/leapmix/internal/recipe"
	"github.com/leapstack-labs/leapmix/pkg/core"
	"github.com/spf13/cobra"
)

// GraphNode is the JSON form of one recipe in the dependency graph.
type GraphNode struct {
	Name         string   `json:"name"`
	References   []string `json:"references"`
	ReferencedBy []string `json:"referenced_by"`
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dag",
		Short: "Show the recipe dependency graph",
		Long: `Show recipes in build order, dependencies first, with the recipes each one
references and is referenced by. Fails if the recipes reference each other in
a cycle.`,
		Args: cobra.NoArgs,
		RunE: runDAG,
	}
}

func runDAG(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	g, err := cmdCtx.Engine.Graph()
	if err != nil {
		return err
	}
	order, err := buildOrder(g)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		for _, name := range order {
			_ = r.JSON(GraphNode{
				Name:         name,
				References:   nonNil(g.Parents(name)),
				ReferencedBy: nonNil(g.Children(name)),
			})
		}
		return nil
	}

	if len(order) == 0 {
		r.Muted("No recipes found in " + cmdCtx.Cfg.RecipesDir)
		return nil
	}
	r.Header(1, "Build order")
	for i, name := range order {
		line := fmt.Sprintf("%d. %s", i+1, name)
		if parents := g.Parents(name); len(parents) > 0 {
			line += " <- " + strings.Join(parents, ", ")
		}
		r.Println(line)
	}
	r.Println("")
	r.Muted(fmt.Sprintf("%d recipes, %d references", g.NodeCount(), g.EdgeCount()))
	return nil
}

// buildOrder sorts the graph dependencies first and reports a reference cycle
// the same way a build does.
func buildOrder(g *dag.Graph[*recipe.Recipe]) ([]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		if len(cycle) == 2 {
			return nil, &core.SelfReferenceError{Recipe: cycle[0]}
		}
		return nil, &core.CyclicDependencyError{Cycle: cycle}
	}
	return g.TopologicalSort()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
