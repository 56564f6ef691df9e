// Package testutil holds fixtures and output assertions for CLI tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmix/internal/artifact"
	"github.com/leapstack-labs/leapmix/internal/cli/output"
	intutil "github.com/leapstack-labs/leapmix/internal/testutil"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// SetupTestProject creates a temporary project with a disk source "news"
// of five rows and a recipe "clean" that keeps four of them. Definitions are
// dated an hour ago so a fresh build is always up to date afterwards.
func SetupTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"sources", "recipes"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}

	rows := make([][]any, 5)
	for i := range rows {
		rows[i] = []any{fmt.Sprintf("doc %d", i)}
	}
	news := dataset.MustTable([]string{"text"}, rows)
	require.NoError(t, artifact.NewStore(filepath.Join(dir, "data")).Save("news", news))

	intutil.WriteFileAt(t, filepath.Join(dir, "sources", "news.json"),
		`{"source_type": "disk", "source_path": "../data/news"}`, intutil.HourAgo())
	intutil.WriteFileAt(t, filepath.Join(dir, "recipes", "clean.yaml"),
		"sources:\n  news:\n    operations:\n      - name: limit\n        args: {count: 4}\n", intutil.HourAgo())
	return dir
}

// TestRenderer is a Renderer writing into buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a TestRenderer with the given mode and TTY state.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererMarkdown creates a piped markdown renderer.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a piped JSON renderer.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns what was written to stdout.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// Reset clears both buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI fails if s contains ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	assert.False(t, ansiPattern.MatchString(s), "unexpected ANSI escape codes in %q", s)
}

// AssertContains fails if s does not contain expected.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	assert.Contains(t, s, expected)
}

// AssertValidMarkdown checks code fences are balanced and no header is empty.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()
	assert.Zero(t, strings.Count(md, "```")%2, "unbalanced code fences")
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			assert.NotEmpty(t, strings.TrimLeft(trimmed, "# "), "empty header at line %d", i+1)
		}
	}
}

// AssertOutputMode checks what a piped renderer in mode may emit: markdown and
// JSON never carry ANSI codes, and JSON output is one object per line.
func AssertOutputMode(t *testing.T, tr *TestRenderer, mode output.OutputMode) {
	t.Helper()
	combined := tr.Out.String() + tr.ErrOut.String()
	switch mode {
	case output.ModeMarkdown:
		AssertNoANSI(t, combined)
	case output.ModeJSON:
		AssertNoANSI(t, combined)
		for _, line := range strings.Split(strings.TrimSpace(tr.Out.String()), "\n") {
			if line != "" {
				assert.True(t, json.Valid([]byte(line)), "not a JSON line: %q", line)
			}
		}
	}
}
