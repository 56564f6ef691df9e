package operations

import (
	"context"

	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/internal/starlark"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
	sl "go.starlark.net/starlark"
)

// Filter keeps the rows for which a Starlark expression over row is truthy.
type Filter struct{}

type filterArgs struct {
	Expr string `mapstructure:"expr"`
}

func (*Filter) Description() string {
	return "keep rows where the Starlark expression `expr` over `row` is true"
}

func (*Filter) Apply(ctx context.Context, table *dataset.Table, args operation.Args) (*dataset.Table, error) {
	var a filterArgs
	if err := decodeArgs("filter", args, &a); err != nil {
		return nil, err
	}
	if a.Expr == "" {
		return nil, invalid("filter", "expr is required")
	}
	expr, err := starlark.Compile("filter", a.Expr)
	if err != nil {
		return nil, invalid("filter", "%v", err)
	}

	columns := table.Columns()
	keep := make([]bool, table.NumRows())
	pool := starlark.NewThreadPool(operation.Workers(ctx))
	err = forEachRow(ctx, table.NumRows(), func(i int) error {
		return pool.Do("filter", func(thread *sl.Thread) error {
			ok, err := expr.EvalBool(thread, columns, table.Row(i))
			keep[i] = ok
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	var indices []int
	for i, k := range keep {
		if k {
			indices = append(indices, i)
		}
	}
	operation.Logger(ctx).Debug("filtered rows", "expr", a.Expr, "kept", len(indices), "dropped", table.NumRows()-len(indices))
	return table.Select(indices), nil
}
