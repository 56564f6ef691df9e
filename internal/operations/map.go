package operations

import (
	"context"
	"slices"

	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/internal/starlark"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
	sl "go.starlark.net/starlark"
)

// Map computes columns from Starlark expressions over row. Every expression
// sees the input row, so new columns cannot refer to each other.
type Map struct{}

type mapArgs struct {
	Columns map[string]string `mapstructure:"columns"`
	Remove  []string          `mapstructure:"remove"`
}

func (*Map) Description() string {
	return "set columns from Starlark expressions over `row`, then drop the `remove` columns"
}

func (*Map) Apply(ctx context.Context, table *dataset.Table, args operation.Args) (*dataset.Table, error) {
	var a mapArgs
	if err := decodeArgs("map", args, &a); err != nil {
		return nil, err
	}
	if len(a.Columns) == 0 && len(a.Remove) == 0 {
		return nil, invalid("map", "columns or remove is required")
	}

	names := make([]string, 0, len(a.Columns))
	for name := range a.Columns {
		names = append(names, name)
	}
	slices.Sort(names)

	exprs := make([]*starlark.Expr, len(names))
	for i, name := range names {
		expr, err := starlark.Compile("map."+name, a.Columns[name])
		if err != nil {
			return nil, invalid("map", "%v", err)
		}
		exprs[i] = expr
	}

	columns := table.Columns()
	values := make([][]any, len(names))
	for i := range values {
		values[i] = make([]any, table.NumRows())
	}
	pool := starlark.NewThreadPool(operation.Workers(ctx))
	err := forEachRow(ctx, table.NumRows(), func(r int) error {
		return pool.Do("map", func(thread *sl.Thread) error {
			for i, expr := range exprs {
				v, err := expr.EvalGo(thread, columns, table.Row(r))
				if err != nil {
					return err
				}
				values[i][r] = v
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	out := table
	for i, name := range names {
		if out, err = out.WithColumn(name, values[i]); err != nil {
			return nil, err
		}
	}
	return out.RemoveColumns(a.Remove...), nil
}
