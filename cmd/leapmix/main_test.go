// Package main provides tests for the leapmix CLI.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmix/internal/artifact"
	"github.com/leapstack-labs/leapmix/internal/cli"
	"github.com/leapstack-labs/leapmix/internal/cli/config"
	"github.com/leapstack-labs/leapmix/internal/testutil"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// setupProject creates a project with one disk source "news" and two recipes:
// "clean" reads news, "mix" reads clean.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"sources", "recipes"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}

	rows := make([][]any, 5)
	for i := range rows {
		rows[i] = []any{fmt.Sprintf("doc %d", i)}
	}
	require.NoError(t, artifact.NewStore(filepath.Join(dir, "data")).Save("news", dataset.MustTable([]string{"text"}, rows)))

	files := map[string]string{
		"sources/news.json":  `{"source_type": "disk", "source_path": "../data/news"}`,
		"recipes/clean.yaml": "sources:\n  news:\n    operations:\n      - name: limit\n        args: {count: 4}\n",
		"recipes/mix.yaml":   "sources:\n  clean:\n    type: recipe\n",
	}
	for name, body := range files {
		testutil.WriteFileAt(t, filepath.Join(dir, name), body, testutil.HourAgo())
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapmix v")
}

func TestHelpCommand(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, expected := range []string{"build", "list-recipes", "list-operations", "history", "dag"} {
		assert.Contains(t, out, expected)
	}
}

func TestBuildCommand(t *testing.T) {
	dir := setupProject(t)

	out, err := execute(t, "build", "mix", "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "[OK] Built recipe 'mix' (4 rows")
	assert.FileExists(t, filepath.Join(dir, "output", "mix", artifact.InfoFile))
	assert.FileExists(t, filepath.Join(dir, "output", "clean", artifact.InfoFile))

	out, err = execute(t, "build", "mix", "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "[UP TO DATE] Recipe 'mix' is up to date (4 rows)")
}

func TestBuildCommandJSON(t *testing.T) {
	dir := setupProject(t)

	out, err := execute(t, "build", "clean", "--project-dir", dir, "--output", "json")
	require.NoError(t, err)

	var event map[string]any
	line := out[strings.Index(out, `{"event"`):]
	line = line[:strings.Index(line, "\n")]
	require.NoError(t, json.Unmarshal([]byte(line), &event))
	assert.Equal(t, "recipe_built", event["event"])
	assert.Equal(t, "clean", event["recipe"])
	assert.EqualValues(t, 4, event["rows"])
}

func TestBuildCommandInvalidRecipe(t *testing.T) {
	dir := setupProject(t)

	out, err := execute(t, "build", "nope", "--project-dir", dir)
	require.NoError(t, err, "an unknown recipe is reported without failing the process")
	assert.Contains(t, out, "[FAILED] Invalid recipe 'nope'")
	assert.Contains(t, out, "Available recipes:")
	assert.Contains(t, out, "  - clean")
	assert.Contains(t, out, "  - mix")
}

func TestBuildCommandFailure(t *testing.T) {
	dir := setupProject(t)
	body := "sources:\n  news:\n    operations:\n      - name: no_such_op\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipes", "broken.yaml"), []byte(body), 0o600))

	_, err := execute(t, "build", "broken", "--project-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
	assert.Contains(t, err.Error(), "no_such_op")
}

func TestListRecipesCommand(t *testing.T) {
	dir := setupProject(t)

	out, err := execute(t, "list-recipes", "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Recipes (2)")
	assert.Contains(t, out, "clean")
	assert.Contains(t, out, "mix")
}

func TestListOperationsCommand(t *testing.T) {
	dir := setupProject(t)

	out, err := execute(t, "list-operations", "--project-dir", dir)
	require.NoError(t, err)
	for _, op := range []string{"remap", "limit", "shuffle"} {
		assert.Contains(t, out, op)
	}
}

func TestDAGCommand(t *testing.T) {
	dir := setupProject(t)

	out, err := execute(t, "dag", "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1. clean")
	assert.Contains(t, out, "2. mix <- clean")
}

func TestDAGCommandCycle(t *testing.T) {
	dir := setupProject(t)
	body := "sources:\n  mix:\n    type: recipe\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recipes", "clean.yaml"), []byte(body), 0o600))

	_, err := execute(t, "dag", "--project-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular recipe dependency")
}

func TestHistoryCommand(t *testing.T) {
	dir := setupProject(t)

	_, err := execute(t, "build", "mix", "--project-dir", dir)
	require.NoError(t, err)

	out, err := execute(t, "history", "--project-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Runs (1)")
	assert.Contains(t, out, "completed")
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			_, err := execute(t, "completion", shell)
			assert.NoError(t, err)
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "unknown-command")
	assert.Error(t, err)
}
