package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/leapstack-labs/leapmix/internal/recipe"
	"github.com/leapstack-labs/leapmix/pkg/core"
)

// resolve decides whether r must be rebuilt. Referenced recipes are resolved
// first; r is stale when any of them is stale, when it has no artifact, or
// when its definition is newer than its artifact. A recipe that is not stale
// is loaded from its artifact and marked built.
//
// Verdicts are memoized for the session: a built recipe answers with its last
// verdict and a recipe judged stale but not yet built answers true.
func (e *Engine) resolve(ctx context.Context, r *recipe.Recipe) (stale bool, err error) {
	if r.Built() {
		return r.Modified, nil
	}
	if v, ok := e.verdicts[r.Name]; ok {
		return v, nil
	}
	if i := slices.Index(e.resolving, r.Name); i >= 0 {
		cycle := append(slices.Clone(e.resolving[i:]), r.Name)
		return false, &core.CyclicDependencyError{Cycle: cycle}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	e.resolving = append(e.resolving, r.Name)
	r.State = recipe.StateResolving
	defer func() {
		e.resolving = e.resolving[:len(e.resolving)-1]
		if err != nil {
			r.Reset()
		}
	}()

	for _, ref := range r.References {
		if ref == r.Name {
			return false, &core.SelfReferenceError{Recipe: r.Name}
		}
		dep, err := e.lookup(ref)
		if err != nil {
			return false, fmt.Errorf("recipe %s: %w", r.Name, err)
		}
		depStale, err := e.resolve(ctx, dep)
		if err != nil {
			return false, err
		}
		if depStale {
			e.logger.Debug("dependency is stale", "recipe", r.Name, "dependency", ref)
			stale = true
		}
	}

	if !stale {
		stale, err = e.artifactStale(r)
		if err != nil {
			return false, err
		}
	}

	e.verdicts[r.Name] = stale
	r.Modified = stale
	if stale {
		r.State = recipe.StateUnbuilt
		return true, nil
	}

	if err := e.reuse(r); err != nil {
		delete(e.verdicts, r.Name)
		return false, err
	}
	return false, nil
}

// artifactStale compares the definition's mtime with the artifact marker's.
func (e *Engine) artifactStale(r *recipe.Recipe) (bool, error) {
	builtAt, ok, err := e.artifacts.ModTime(r.Name, r.Definition.Split())
	if err != nil {
		return false, err
	}
	if !ok {
		e.logger.Debug("no artifact", "recipe", r.Name)
		return true, nil
	}
	if r.ModTime.After(builtAt) {
		e.logger.Debug("definition changed since last build", "recipe", r.Name,
			"definition_mtime", r.ModTime, "artifact_mtime", builtAt)
		return true, nil
	}
	return false, nil
}

// reuse loads r's persisted artifact and marks it built.
func (e *Engine) reuse(r *recipe.Recipe) error {
	start := time.Now()
	ds, err := e.artifacts.Load(r.Name, r.Definition.Split())
	if err != nil {
		return fmt.Errorf("load artifact for recipe %s: %w", r.Name, err)
	}

	r.Dataset = ds
	r.State = recipe.StateBuilt
	r.LastBuild = &recipe.BuildReport{
		Recipe:  r.Name,
		Reused:  true,
		Rows:    ds.NumRows(),
		Elapsed: time.Since(start),
		Splits:  splitNames(ds),
	}
	e.logger.Info("recipe is up to date", "recipe", r.Name, "rows", ds.NumRows())
	e.record(r.LastBuild)
	return nil
}
