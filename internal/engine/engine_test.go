package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmix/internal/artifact"
	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/internal/operations"
	"github.com/leapstack-labs/leapmix/internal/recipe"
	"github.com/leapstack-labs/leapmix/internal/testutil"
	"github.com/leapstack-labs/leapmix/pkg/core"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

type fixture struct {
	dir    string
	ops    *operation.Registry
	counts map[string]int
}

// newFixture creates a project with private operations: the built-ins plus
// "count", which counts calls per "key" argument, and "fail".
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"sources", "recipes"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}

	f := &fixture{dir: dir, ops: operation.NewRegistry(), counts: make(map[string]int)}
	operations.Register(f.ops)
	f.ops.MustRegister("count", func() operation.Operation {
		return operation.Func(func(_ context.Context, table *dataset.Table, args operation.Args) (*dataset.Table, error) {
			f.counts[fmt.Sprint(args["key"])]++
			return table, nil
		})
	})
	f.ops.MustRegister("fail", func() operation.Operation {
		return operation.Func(func(context.Context, *dataset.Table, operation.Args) (*dataset.Table, error) {
			return nil, errors.New("boom")
		})
	})
	return f
}

// source defines a disk source of n rows with columns text and id.
func (f *fixture) source(t *testing.T, name string, n int) {
	t.Helper()
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{fmt.Sprintf("%s-%d", name, i), int64(i)}
	}
	store := artifact.NewStore(filepath.Join(f.dir, "data"))
	require.NoError(t, store.Save(name, dataset.MustTable([]string{"text", "id"}, rows)))

	def := fmt.Sprintf(`{"source_type": "disk", "source_path": "../data/%s"}`, name)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "sources", name+".json"), []byte(def), 0o600))
}

// recipe writes a recipe definition dated an hour ago, so a fresh artifact
// is always newer.
func (f *fixture) recipe(t *testing.T, name, body string) {
	t.Helper()
	testutil.WriteFileAt(t, filepath.Join(f.dir, "recipes", name+".json"), body, testutil.HourAgo())
}

// touch marks a recipe definition as edited after any existing artifact.
func (f *fixture) touch(t *testing.T, name string) {
	t.Helper()
	testutil.Touch(t, filepath.Join(f.dir, "recipes", name+".json"), time.Now().Add(time.Hour))
}

func (f *fixture) engine(t *testing.T, statePath string) *Engine {
	t.Helper()
	e, err := New(Config{
		SourcesDir: filepath.Join(f.dir, "sources"),
		RecipesDir: filepath.Join(f.dir, "recipes"),
		OutputDir:  filepath.Join(f.dir, "output"),
		CacheDir:   filepath.Join(f.dir, "cache"),
		StatePath:  statePath,
		Operations: f.ops,
		Workers:    2,
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func (f *fixture) artifactPath(name string, file string) string {
	return filepath.Join(f.dir, "output", name, file)
}

func TestBuild_SingleSource(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 4)
	f.recipe(t, "clean", `{
  "sources": {"news": {"operations": [{"name": "remap", "args": {"columns": {"text": "content"}}}]}},
  "final_operations": [{"name": "limit", "args": {"count": 3}}]
}`)

	r, err := f.engine(t, "").Build(context.Background(), "clean")
	require.NoError(t, err)

	assert.Equal(t, recipe.StateBuilt, r.State)
	assert.True(t, r.Modified)
	require.NotNil(t, r.LastBuild)
	assert.False(t, r.LastBuild.Reused)
	assert.Equal(t, 3, r.LastBuild.Rows)

	tbl := r.Dataset.Flatten()
	assert.Equal(t, []string{"content", "id"}, tbl.Columns())
	assert.Equal(t, []any{"news-0", int64(0)}, tbl.Row(0))
	assert.FileExists(t, f.artifactPath("clean", artifact.InfoFile))
}

func TestBuild_RebuildWithoutChangesReusesArtifact(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 5)
	f.recipe(t, "clean", `{"sources": ["news"], "final_operations": [{"name": "count", "args": {"key": "clean"}}]}`)
	ctx := context.Background()

	first, err := f.engine(t, "").Build(ctx, "clean")
	require.NoError(t, err)
	before, err := os.Stat(f.artifactPath("clean", artifact.InfoFile))
	require.NoError(t, err)

	second, err := f.engine(t, "").Build(ctx, "clean")
	require.NoError(t, err)

	assert.Equal(t, 1, f.counts["clean"], "pipeline must not run again")
	assert.False(t, second.Modified)
	assert.True(t, second.LastBuild.Reused)
	assert.Equal(t, first.Dataset.Flatten().Rows(), second.Dataset.Flatten().Rows())

	after, err := os.Stat(f.artifactPath("clean", artifact.InfoFile))
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "artifact must not be rewritten")
}

func TestBuild_SharedDependencyBuildsOnce(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 6)
	f.recipe(t, "base", `{"sources": ["news"], "final_operations": [{"name": "count", "args": {"key": "base"}}]}`)
	f.recipe(t, "left", `{"sources": {"base": {"type": "recipe"}}}`)
	f.recipe(t, "right", `{"sources": {"base": {"type": "recipe"}}}`)
	f.recipe(t, "top", `{"sources": {"left": {"type": "recipe"}, "right": {"type": "recipe"}}}`)

	e := f.engine(t, "")
	r, err := e.Build(context.Background(), "top")
	require.NoError(t, err)

	assert.Equal(t, 1, f.counts["base"])
	assert.Equal(t, 12, r.LastBuild.Rows, "round-robin over two equal inputs")

	// building again in the same session is a no-op
	_, err = e.Build(context.Background(), "left")
	require.NoError(t, err)
	assert.Equal(t, 1, f.counts["base"])
}

func TestBuild_SelfReference(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 2)
	f.recipe(t, "loop", `{"sources": {"news": {}, "loop": {"type": "recipe"}}}`)

	_, err := f.engine(t, "").Build(context.Background(), "loop")

	var selfRef *core.SelfReferenceError
	require.ErrorAs(t, err, &selfRef)
	assert.Equal(t, "loop", selfRef.Recipe)
	assert.NoDirExists(t, filepath.Join(f.dir, "output", "loop"))
}

func TestBuild_CyclicDependency(t *testing.T) {
	f := newFixture(t)
	f.recipe(t, "a", `{"sources": {"b": {"type": "recipe"}}}`)
	f.recipe(t, "b", `{"sources": {"a": {"type": "recipe"}}}`)

	e := f.engine(t, "")
	_, err := e.Build(context.Background(), "a")

	var cyclic *core.CyclicDependencyError
	require.ErrorAs(t, err, &cyclic)
	assert.Equal(t, []string{"a", "b", "a"}, cyclic.Cycle)

	r, err := e.Recipe("a")
	require.NoError(t, err)
	assert.Equal(t, recipe.StateUnbuilt, r.State)
}

func TestBuild_ChangedDefinitionRebuildsDependents(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 3)
	f.recipe(t, "child", `{"sources": ["news"], "final_operations": [{"name": "count", "args": {"key": "child"}}]}`)
	f.recipe(t, "other", `{"sources": ["news"], "final_operations": [{"name": "count", "args": {"key": "other"}}]}`)
	f.recipe(t, "parent", `{
  "sources": {"child": {"type": "recipe"}, "other": {"type": "recipe"}},
  "final_operations": [{"name": "count", "args": {"key": "parent"}}]
}`)
	ctx := context.Background()

	_, err := f.engine(t, "").Build(ctx, "parent")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"child": 1, "other": 1, "parent": 1}, f.counts)

	f.touch(t, "child")

	e := f.engine(t, "")
	parent, err := e.Build(ctx, "parent")
	require.NoError(t, err)
	assert.True(t, parent.Modified)
	assert.Equal(t, map[string]int{"child": 2, "other": 1, "parent": 2}, f.counts)

	other, err := e.Recipe("other")
	require.NoError(t, err)
	assert.True(t, other.LastBuild.Reused)
}

func TestBuild_MissingArtifactIsStale(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 3)
	f.recipe(t, "clean", `{"sources": ["news"], "final_operations": [{"name": "count", "args": {"key": "clean"}}]}`)
	ctx := context.Background()

	_, err := f.engine(t, "").Build(ctx, "clean")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(f.dir, "output", "clean")))

	r, err := f.engine(t, "").Build(ctx, "clean")
	require.NoError(t, err)
	assert.True(t, r.Modified)
	assert.Equal(t, 2, f.counts["clean"])
}

func TestBuild_TrainTestSplit(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 10)
	f.recipe(t, "split", `{"sources": ["news"], "test_split_ratio": 0.25}`)
	ctx := context.Background()

	r, err := f.engine(t, "").Build(ctx, "split")
	require.NoError(t, err)

	splits, ok := r.Dataset.(*dataset.Splits)
	require.True(t, ok)
	assert.Equal(t, []string{"train", "test"}, splits.Names())
	train, err := splits.Split("train")
	require.NoError(t, err)
	test, err := splits.Split("test")
	require.NoError(t, err)
	assert.Equal(t, 7, train.NumRows())
	assert.Equal(t, 3, test.NumRows())
	assert.Equal(t, []string{"train", "test"}, r.LastBuild.Splits)
	assert.FileExists(t, f.artifactPath("split", artifact.DictFile))

	reloaded, err := f.engine(t, "").Build(ctx, "split")
	require.NoError(t, err)
	assert.True(t, reloaded.LastBuild.Reused)
	assert.Equal(t, r.Dataset.Flatten().Rows(), reloaded.Dataset.Flatten().Rows())
}

func TestBuild_FailureLeavesNoArtifact(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 3)
	f.recipe(t, "broken", `{"sources": ["news"], "final_operations": [{"name": "shuffle"}, {"name": "fail"}]}`)

	e := f.engine(t, "")
	_, err := e.Build(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1 (fail): boom")

	assert.NoDirExists(t, filepath.Join(f.dir, "output", "broken"))
	r, err := e.Recipe("broken")
	require.NoError(t, err)
	assert.Equal(t, recipe.StateUnbuilt, r.State)
	assert.Nil(t, r.Dataset)
}

func TestBuild_UnknownOperation(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 1)
	f.recipe(t, "typo", `{"sources": ["news"], "final_operations": [{"name": "shufle"}]}`)

	_, err := f.engine(t, "").Build(context.Background(), "typo")

	var unknown *core.UnknownOperationError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "shufle", unknown.Name)
	assert.Contains(t, unknown.Available, "shuffle")
}

func TestBuild_UnknownRecipeAndSource(t *testing.T) {
	f := newFixture(t)
	f.recipe(t, "orphan", `{"sources": ["nowhere"]}`)
	e := f.engine(t, "")

	_, err := e.Build(context.Background(), "missing")
	var notFound *core.DefinitionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, core.KindRecipe, notFound.Kind)
	assert.Equal(t, []string{"orphan"}, notFound.Available)

	_, err = e.Build(context.Background(), "orphan")
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, core.KindSource, notFound.Kind)
}

func TestBuild_WeightedInterleaveReportsDistribution(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 200)
	f.source(t, "blogs", 200)
	f.recipe(t, "mix", `{"sources": {"news": {"probability": 0.8}, "blogs": {"probability": 0.2}}}`)

	r, err := f.engine(t, "").Build(context.Background(), "mix")
	require.NoError(t, err)

	dist := r.LastBuild.Distribution
	require.Len(t, dist, 2)
	assert.Equal(t, "news", dist[0].Name)
	assert.Equal(t, "blogs", dist[1].Name)
	assert.Greater(t, dist[0].Rows, dist[1].Rows)
	assert.Positive(t, r.LastBuild.Rows)
}

func TestBuild_ZeroProbabilities(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 2)
	f.source(t, "blogs", 2)
	f.recipe(t, "mix", `{"sources": {"news": {"probability": 0}, "blogs": {"probability": 0}}}`)

	_, err := f.engine(t, "").Build(context.Background(), "mix")

	var invalid *core.ConfigValidationError
	require.ErrorAs(t, err, &invalid)
	assert.NoDirExists(t, filepath.Join(f.dir, "output", "mix"))
}

func TestBuild_RecordsHistory(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 3)
	f.recipe(t, "child", `{"sources": ["news"]}`)
	f.recipe(t, "parent", `{"sources": {"child": {"type": "recipe"}}}`)
	statePath := filepath.Join(f.dir, "state.db")
	ctx := context.Background()

	_, err := f.engine(t, statePath).Build(ctx, "child")
	require.NoError(t, err)

	e := f.engine(t, statePath)
	_, err = e.Build(ctx, "parent")
	require.NoError(t, err)

	history, err := e.History("", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)

	latest := history[0]
	assert.Equal(t, "parent", latest.Run.Recipe)
	assert.Equal(t, core.RunStatusCompleted, latest.Run.Status)
	require.Len(t, latest.Builds, 2)
	assert.Equal(t, "child", latest.Builds[0].Recipe)
	assert.True(t, latest.Builds[0].Reused)
	assert.Equal(t, "parent", latest.Builds[1].Recipe)
	assert.False(t, latest.Builds[1].Reused)
	assert.Equal(t, int64(3), latest.Builds[1].Rows)

	build, err := e.LatestBuild("child")
	require.NoError(t, err)
	require.NotNil(t, build)
	assert.True(t, build.Reused)
}

func TestBuild_RecordsFailedRun(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 1)
	f.recipe(t, "broken", `{"sources": ["news"], "final_operations": [{"name": "fail"}]}`)

	e := f.engine(t, filepath.Join(f.dir, "state.db"))
	_, err := e.Build(context.Background(), "broken")
	require.Error(t, err)

	history, err := e.History("broken", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, core.RunStatusFailed, history[0].Run.Status)
	assert.Contains(t, history[0].Run.Error, "boom")
	assert.Empty(t, history[0].Builds)
}

func TestHistory_Disabled(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine(t, "").History("", 0)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestEngine_ResetRereadsDefinitions(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 4)
	f.recipe(t, "clean", `{"sources": ["news"], "final_operations": [{"name": "limit", "args": {"count": 1}}]}`)
	ctx := context.Background()

	e := f.engine(t, "")
	r, err := e.Build(ctx, "clean")
	require.NoError(t, err)
	assert.Equal(t, 1, r.LastBuild.Rows)

	f.recipe(t, "clean", `{"sources": ["news"], "final_operations": [{"name": "limit", "args": {"count": 2}}]}`)
	f.touch(t, "clean")

	r, err = e.Build(ctx, "clean")
	require.NoError(t, err)
	assert.Equal(t, 1, r.LastBuild.Rows, "session cache still holds the built recipe")

	require.NoError(t, e.Reset())
	r, err = e.Build(ctx, "clean")
	require.NoError(t, err)
	assert.Equal(t, 2, r.LastBuild.Rows)
	assert.False(t, r.LastBuild.Reused)
}

func TestEngine_Graph(t *testing.T) {
	f := newFixture(t)
	f.recipe(t, "base", `{"sources": ["news"]}`)
	f.recipe(t, "left", `{"sources": {"base": {"type": "recipe"}}}`)
	f.recipe(t, "top", `{"sources": {"left": {"type": "recipe"}, "ghost": {"type": "recipe"}}}`)

	e := f.engine(t, "")
	names, err := e.Recipes()
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "left", "top"}, names)

	g, err := e.Graph()
	require.NoError(t, err)
	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "left", "top"}, order)

	base, ok := g.Node("base")
	require.True(t, ok)
	assert.Equal(t, []string{"left"}, base.ReferencedBy)
	assert.Equal(t, []string{"base", "left"}, g.Upstream("top"))
}

func TestBuild_SingleSourceWeights(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 4)
	f.recipe(t, "muted", `{"sources": {"news": {"probability": 0}}}`)
	f.recipe(t, "half", `{"sources": {"news": {"probability": 0.5}}}`)
	e := f.engine(t, "")

	_, err := e.Build(context.Background(), "muted")
	var invalid *core.ConfigValidationError
	require.ErrorAs(t, err, &invalid)
	assert.NoDirExists(t, filepath.Join(f.dir, "output", "muted"))

	r, err := e.Build(context.Background(), "half")
	require.NoError(t, err)
	assert.Equal(t, 4, r.LastBuild.Rows)
	require.Len(t, r.LastBuild.Distribution, 1)
	assert.Equal(t, "news: 4 rows (100.00%)", r.LastBuild.Distribution[0].String())
}

func TestBuild_SameSessionReturnsSameRecipe(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 3)
	f.recipe(t, "clean", `{"sources": ["news"], "final_operations": [{"name": "count", "args": {"key": "clean"}}]}`)
	e := f.engine(t, "")
	ctx := context.Background()

	first, err := e.Build(ctx, "clean")
	require.NoError(t, err)
	second, err := e.Build(ctx, "clean")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first.Dataset, second.Dataset)
	assert.Equal(t, 1, f.counts["clean"])
}

func TestBuild_SplitLeavingTrainEmpty(t *testing.T) {
	f := newFixture(t)
	f.source(t, "news", 1)
	f.recipe(t, "tiny", `{"sources": ["news"], "test_split_ratio": 0.2}`)

	_, err := f.engine(t, "").Build(context.Background(), "tiny")

	var invalid *core.ConfigValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "leaves 1 test and 0 train rows")
	assert.NoDirExists(t, filepath.Join(f.dir, "output", "tiny"))
}

func TestTrainTestSplit(t *testing.T) {
	rows := make([][]any, 10)
	for i := range rows {
		rows[i] = []any{int64(i)}
	}
	splits, err := trainTestSplit(dataset.MustTable([]string{"id"}, rows), 0.25)
	require.NoError(t, err)
	assert.Equal(t, 10, splits.NumRows())

	_, err = trainTestSplit(dataset.MustTable([]string{"id"}, rows[:2]), 0.9)
	assert.ErrorContains(t, err, "leaves 2 test and 0 train rows")

	_, err = trainTestSplit(dataset.Empty("id"), 0.5)
	assert.Error(t, err)
}
