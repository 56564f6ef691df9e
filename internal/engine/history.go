package engine

import (
	"errors"

	"github.com/leapstack-labs/leapmix/pkg/core"
)

// ErrHistoryDisabled is returned by history queries when no state path is configured.
var ErrHistoryDisabled = errors.New("build history is disabled (set state_path)")

// RunHistory is a past run with the recipe builds it performed.
type RunHistory struct {
	Run    *core.Run
	Builds []*core.RecipeBuild
}

// History returns the most recent runs, newest first. An empty recipe lists
// the runs of every recipe.
func (e *Engine) History(recipe string, limit int) ([]RunHistory, error) {
	if e.store == nil {
		return nil, ErrHistoryDisabled
	}
	runs, err := e.store.ListRuns(recipe, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunHistory, 0, len(runs))
	for _, run := range runs {
		builds, err := e.store.GetBuildsForRun(run.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, RunHistory{Run: run, Builds: builds})
	}
	return out, nil
}

// LatestBuild returns the last recorded build of a recipe, or nil.
func (e *Engine) LatestBuild(recipe string) (*core.RecipeBuild, error) {
	if e.store == nil {
		return nil, ErrHistoryDisabled
	}
	return e.store.GetLatestBuild(recipe)
}
