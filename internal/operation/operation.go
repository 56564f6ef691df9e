// Package operation defines the transform capability that recipe pipelines are
// built from, the name-keyed registry of operation constructors, and the
// pipeline applier.
package operation

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// Args are the raw, operation-specific arguments of one invocation.
// Each operation validates its own arguments.
type Args map[string]any

// Operation transforms a table. Implementations may have side effects
// (network calls, model loading) that are opaque to the engine.
type Operation interface {
	Apply(ctx context.Context, table *dataset.Table, args Args) (*dataset.Table, error)
}

// Describer is implemented by operations that provide a one-line description
// for listings.
type Describer interface {
	Description() string
}

// Constructor creates a fresh Operation instance.
type Constructor func() Operation

// Func adapts a plain function to the Operation interface.
type Func func(ctx context.Context, table *dataset.Table, args Args) (*dataset.Table, error)

// Apply calls f.
func (f Func) Apply(ctx context.Context, table *dataset.Table, args Args) (*dataset.Table, error) {
	return f(ctx, table, args)
}

// Invocation is one pipeline step as written in a recipe definition.
type Invocation struct {
	Name string `yaml:"name" json:"name"`
	Args Args   `yaml:"args" json:"args"`
}

type loggerKey struct{}

// WithLogger returns a context carrying the logger operations should trace to.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger stored in ctx, or a discard logger.
func Logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// MaxWorkers caps the goroutines a row-wise operation may use.
const MaxWorkers = 8

type workersKey struct{}

// WithWorkers returns a context carrying the worker count for row-wise operations.
func WithWorkers(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, workersKey{}, n)
}

// Workers returns the worker count stored in ctx, clamped to [1, MaxWorkers].
// Without one it is min(NumCPU, MaxWorkers).
func Workers(ctx context.Context) int {
	n, ok := ctx.Value(workersKey{}).(int)
	if !ok || n <= 0 {
		n = runtime.NumCPU()
	}
	return max(1, min(n, MaxWorkers))
}
