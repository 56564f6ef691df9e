package operations

import (
	"context"

	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// Remap renames, drops and selects columns.
//
// Columns mapped to "" are removed. With remove_others, every column not named
// in the mapping is removed too. Remaining mappings rename columns.
type Remap struct{}

type remapArgs struct {
	Columns      map[string]string `mapstructure:"columns"`
	RemoveOthers bool              `mapstructure:"remove_others"`
}

func (*Remap) Description() string {
	return "rename columns; map a column to \"\" to drop it, remove_others drops unmentioned ones"
}

func (*Remap) Apply(_ context.Context, table *dataset.Table, args operation.Args) (*dataset.Table, error) {
	var a remapArgs
	if err := decodeArgs("remap", args, &a); err != nil {
		return nil, err
	}

	var drop []string
	rename := make(map[string]string, len(a.Columns))
	for from, to := range a.Columns {
		if !table.HasColumn(from) {
			return nil, invalid("remap", "column %q not found (have %v)", from, table.Columns())
		}
		if to == "" {
			drop = append(drop, from)
			continue
		}
		rename[from] = to
	}
	if a.RemoveOthers {
		for _, c := range table.Columns() {
			if _, mentioned := a.Columns[c]; !mentioned {
				drop = append(drop, c)
			}
		}
	}

	out := table.RemoveColumns(drop...)
	if len(rename) == 0 {
		return out, nil
	}
	return out.RenameColumns(rename)
}
