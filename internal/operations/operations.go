// Package operations provides the built-in dataset operations. Importing it
// registers every operation in operation.Default.
package operations

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/pkg/core"
)

func init() {
	Register(operation.Default)
}

// Register adds the built-in operations to reg.
func Register(reg *operation.Registry) {
	reg.MustRegister("remap", func() operation.Operation { return &Remap{} })
	reg.MustRegister("filter", func() operation.Operation { return &Filter{} })
	reg.MustRegister("map", func() operation.Operation { return &Map{} })
	reg.MustRegister("normalize_text", func() operation.Operation { return &NormalizeText{} })
	reg.MustRegister("html_to_markdown", func() operation.Operation { return &HTMLToMarkdown{} })
	reg.MustRegister("shuffle", func() operation.Operation { return &Shuffle{} })
	reg.MustRegister("limit", func() operation.Operation { return &Limit{} })
	reg.MustRegister("dedupe", func() operation.Operation { return &Dedupe{} })
}

// decodeArgs decodes args into out. Unknown keys are rejected.
func decodeArgs(op string, args operation.Args, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(args)); err != nil {
		return &core.ConfigValidationError{Subject: "operation " + op, Reason: err.Error()}
	}
	return nil
}

func invalid(op, format string, a ...any) error {
	return &core.ConfigValidationError{Subject: "operation " + op, Reason: fmt.Sprintf(format, a...)}
}

// forEachRow calls fn for every row index on a bounded pool of goroutines.
// fn must only write to its own index of any shared output slice.
func forEachRow(ctx context.Context, n int, fn func(i int) error) error {
	workers := min(operation.Workers(ctx), max(n, 1))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start, end := w*chunk, min((w+1)*chunk, n)
		if start >= end {
			break
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
