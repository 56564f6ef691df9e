package operation

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// Apply runs the invocations in order, feeding each operation the output of
// the previous one. An empty pipeline returns table unchanged. The first
// failing step aborts the pipeline.
func Apply(ctx context.Context, reg *Registry, table *dataset.Table, steps []Invocation) (*dataset.Table, error) {
	if reg == nil {
		reg = Default
	}
	logger := Logger(ctx)

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		op, err := reg.Create(step.Name)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		args := step.Args
		if args == nil {
			args = Args{}
		}

		start := time.Now()
		before := table.Columns()
		out, err := op.Apply(ctx, table, args)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Name, err)
		}
		if out == nil {
			return nil, fmt.Errorf("step %d (%s): operation returned no data", i, step.Name)
		}

		logger.Debug("applied operation",
			"operation", step.Name,
			"rows_in", table.NumRows(),
			"rows_out", out.NumRows(),
			"columns_before", before,
			"columns_after", out.Columns(),
			"duration_ms", time.Since(start).Milliseconds())
		table = out
	}

	return table, nil
}
