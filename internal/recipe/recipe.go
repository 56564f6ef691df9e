package recipe

import (
	"fmt"
	"os"
	"time"

	"github.com/leapstack-labs/leapmix/internal/interleave"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// State is the build state of a recipe within one session.
type State int

// Recipe states. A recipe moves unbuilt → resolving → built when its artifact
// is up to date, or unbuilt → resolving → building → built when it is rebuilt.
const (
	StateUnbuilt State = iota
	StateResolving
	StateBuilding
	StateBuilt
)

func (s State) String() string {
	switch s {
	case StateUnbuilt:
		return "unbuilt"
	case StateResolving:
		return "resolving"
	case StateBuilding:
		return "building"
	case StateBuilt:
		return "built"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Recipe is a node of the recipe graph as seen by one build session.
type Recipe struct {
	Name       string
	Path       string
	Definition *Definition
	// ModTime is the definition file's modification time.
	ModTime time.Time

	State State
	// Modified is the last staleness verdict: true when the recipe had to be
	// (or will be) rebuilt.
	Modified bool

	// References are the recipes this recipe reads from, in declaration order.
	References []string
	// ReferencedBy is filled from the recipe graph.
	ReferencedBy []string

	// Dataset is the built or loaded data once State is StateBuilt.
	Dataset   dataset.Dataset
	LastBuild *BuildReport
}

// Load parses the definition at path and returns an unbuilt recipe.
func Load(name, path string) (*Recipe, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat recipe %s: %w", name, err)
	}
	def, err := ParseFile(name, path)
	if err != nil {
		return nil, err
	}
	return &Recipe{
		Name:       name,
		Path:       path,
		Definition: def,
		ModTime:    info.ModTime(),
		References: def.RecipeReferences(),
	}, nil
}

// Built reports whether the recipe is built in this session.
func (r *Recipe) Built() bool {
	return r.State == StateBuilt
}

// Reset returns the recipe to the unbuilt state and drops its data.
func (r *Recipe) Reset() {
	r.State = StateUnbuilt
	r.Modified = false
	r.Dataset = nil
}

// BuildReport summarizes how a recipe was produced.
type BuildReport struct {
	Recipe string
	// Reused is true when the persisted artifact was loaded instead of rebuilt.
	Reused  bool
	Rows    int
	Elapsed time.Duration
	// Distribution is the approximate share of rows per weighted input.
	Distribution []interleave.Share
	Splits       []string
}
