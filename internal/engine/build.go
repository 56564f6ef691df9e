package engine

// build.go - Recipe build orchestration

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/leapstack-labs/leapmix/internal/interleave"
	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/internal/recipe"
	"github.com/leapstack-labs/leapmix/pkg/core"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// SplitSeed seeds the shuffle before a train/test split.
const SplitSeed uint64 = 42

// Build makes sure the named recipe is built, rebuilding only the stale part
// of its dependency graph. Each call is recorded as a run in the build
// history when one is configured.
func (e *Engine) Build(ctx context.Context, name string) (*recipe.Recipe, error) {
	e.logger.Info("starting build", "recipe", name)

	ctx = operation.WithLogger(ctx, e.logger)
	if e.workers > 0 {
		ctx = operation.WithWorkers(ctx, e.workers)
	}

	if e.store != nil {
		run, err := e.store.CreateRun(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		e.logger.Debug("created run", "run_id", run.ID)
		e.run = run
		defer func() { e.run = nil }()
	}

	r, err := e.build(ctx, name)

	if e.run != nil {
		status, msg := core.RunStatusCompleted, ""
		if err != nil {
			status, msg = core.RunStatusFailed, err.Error()
		}
		if cerr := e.store.CompleteRun(e.run.ID, status, msg); cerr != nil {
			e.logger.Warn("failed to complete run", "run_id", e.run.ID, "error", cerr)
		}
	}

	if err != nil {
		e.logger.Info("build failed", "recipe", name, "error", err.Error())
		return nil, err
	}
	return r, nil
}

func (e *Engine) build(ctx context.Context, name string) (*recipe.Recipe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	if r.Built() {
		return r, nil
	}

	stale, err := e.resolve(ctx, r)
	if err != nil {
		return nil, err
	}
	if !stale {
		return r, nil
	}
	if r.State == recipe.StateBuilding {
		return nil, &core.CyclicDependencyError{Cycle: []string{name, name}}
	}

	e.logger.Info("building recipe", "recipe", name)
	r.State = recipe.StateBuilding
	start := time.Now()

	report, err := e.produce(ctx, r)
	if err != nil {
		r.Reset()
		delete(e.verdicts, name)
		return nil, fmt.Errorf("build recipe %s: %w", name, err)
	}

	r.State = recipe.StateBuilt
	report.Elapsed = time.Since(start)
	r.LastBuild = report
	e.logger.Info("recipe built", "recipe", name, "rows", report.Rows, "duration_ms", report.Elapsed.Milliseconds())
	e.record(report)
	return r, nil
}

// produce runs steps 4 to 7 of a build: load and transform every input,
// interleave, apply the final pipeline and persist.
func (e *Engine) produce(ctx context.Context, r *recipe.Recipe) (*recipe.BuildReport, error) {
	def := r.Definition
	report := &recipe.BuildReport{Recipe: r.Name}

	inputs := make([]interleave.Input, 0, len(def.Sources))
	for _, ref := range def.Sources {
		table, err := e.input(ctx, r, ref)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, interleave.Input{Name: ref.Name, Table: table, Weight: ref.Probability})
	}

	res, err := interleave.Interleave(inputs, e.seed)
	if err != nil {
		return nil, fmt.Errorf("interleave: %w", err)
	}
	table := res.Table
	if res.Weighted {
		names := make([]string, len(inputs))
		for i, in := range inputs {
			names[i] = in.Name
		}
		report.Distribution = interleave.Distribution(names, res.Probabilities, table.NumRows())
		for _, share := range report.Distribution {
			e.logger.Info("interleave distribution", "recipe", r.Name, "share", share.String())
		}
	}

	table, err = operation.Apply(ctx, e.operations, table, def.FinalOperations)
	if err != nil {
		return nil, fmt.Errorf("final operations: %w", err)
	}

	var ds dataset.Dataset = table
	if def.Split() {
		splits, err := trainTestSplit(table, def.TestSplitRatio)
		if err != nil {
			return nil, &core.ConfigValidationError{Subject: "recipe " + r.Name, Path: r.Path, Reason: err.Error()}
		}
		ds = splits
	}
	if err := e.artifacts.Save(r.Name, ds); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	e.logger.Debug("artifact saved", "recipe", r.Name, "path", e.artifacts.Path(r.Name))

	r.Dataset = ds
	report.Rows = ds.NumRows()
	report.Splits = splitNames(ds)
	return report, nil
}

// input loads one reference, flattens it and applies its local pipeline.
func (e *Engine) input(ctx context.Context, r *recipe.Recipe, ref recipe.Reference) (*dataset.Table, error) {
	var ds dataset.Dataset
	if ref.IsRecipe() {
		if ref.Name == r.Name {
			return nil, &core.SelfReferenceError{Recipe: r.Name}
		}
		dep, err := e.build(ctx, ref.Name)
		if err != nil {
			return nil, err
		}
		ds = dep.Dataset
	} else {
		src, err := e.sources.Get(ctx, ref.Name)
		if err != nil {
			return nil, err
		}
		ds = src.Dataset
	}

	table, err := operation.Apply(ctx, e.operations, ds.Flatten(), ref.Operations)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", ref.Name, err)
	}
	return table, nil
}

// trainTestSplit shuffles with SplitSeed and puts the first ceil(ratio × n)
// rows in the test split. Both splits must end up non-empty.
func trainTestSplit(t *dataset.Table, ratio float64) (*dataset.Splits, error) {
	shuffled := t.Shuffle(SplitSeed)
	n := shuffled.NumRows()
	nTest := min(int(math.Ceil(ratio*float64(n))), n)
	if nTest == 0 || nTest == n {
		return nil, fmt.Errorf("test_split_ratio %v over %d rows leaves %d test and %d train rows; both splits need at least one row",
			ratio, n, nTest, n-nTest)
	}

	splits := dataset.NewSplits()
	splits.Add(dataset.SplitTrain, shuffled.Slice(nTest, n))
	splits.Add(dataset.SplitTest, shuffled.Slice(0, nTest))
	return splits, nil
}

func splitNames(ds dataset.Dataset) []string {
	if s, ok := ds.(*dataset.Splits); ok {
		return s.Names()
	}
	return nil
}

// record stores a build in the current run, if history is enabled.
func (e *Engine) record(report *recipe.BuildReport) {
	if e.run == nil {
		return
	}
	err := e.store.RecordBuild(&core.RecipeBuild{
		RunID:     e.run.ID,
		Recipe:    report.Recipe,
		Reused:    report.Reused,
		Rows:      int64(report.Rows),
		ElapsedMS: report.Elapsed.Milliseconds(),
	})
	if err != nil {
		e.logger.Warn("failed to record build", "recipe", report.Recipe, "error", err)
	}
}
