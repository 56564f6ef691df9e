package operations

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapmix/internal/interleave"
	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// Shuffle reorders rows deterministically.
type Shuffle struct{}

type shuffleArgs struct {
	Seed *uint64 `mapstructure:"seed"`
}

func (*Shuffle) Description() string {
	return "shuffle rows deterministically with `seed` (default 42)"
}

func (*Shuffle) Apply(_ context.Context, table *dataset.Table, args operation.Args) (*dataset.Table, error) {
	var a shuffleArgs
	if err := decodeArgs("shuffle", args, &a); err != nil {
		return nil, err
	}
	seed := interleave.DefaultSeed
	if a.Seed != nil {
		seed = *a.Seed
	}
	return table.Shuffle(seed), nil
}

// Limit keeps the first count rows.
type Limit struct{}

type limitArgs struct {
	Count *int `mapstructure:"count"`
}

func (*Limit) Description() string {
	return "keep the first `count` rows"
}

func (*Limit) Apply(_ context.Context, table *dataset.Table, args operation.Args) (*dataset.Table, error) {
	var a limitArgs
	if err := decodeArgs("limit", args, &a); err != nil {
		return nil, err
	}
	if a.Count == nil || *a.Count < 0 {
		return nil, invalid("limit", "count must be a non-negative integer")
	}
	return table.Slice(0, min(*a.Count, table.NumRows())), nil
}

// Dedupe drops rows whose key repeats an earlier row. All columns form the
// key when none are given.
type Dedupe struct{}

type dedupeArgs struct {
	Columns []string `mapstructure:"columns"`
}

func (*Dedupe) Description() string {
	return "drop rows whose `columns` (default: all) repeat an earlier row"
}

func (*Dedupe) Apply(ctx context.Context, table *dataset.Table, args operation.Args) (*dataset.Table, error) {
	var a dedupeArgs
	if err := decodeArgs("dedupe", args, &a); err != nil {
		return nil, err
	}
	keyTable := table
	if len(a.Columns) > 0 {
		var err error
		if keyTable, err = table.SelectColumns(a.Columns...); err != nil {
			return nil, invalid("dedupe", "%v", err)
		}
	}

	seen := make(map[string]bool, table.NumRows())
	var indices []int
	for i, row := range keyTable.Rows() {
		key := fmt.Sprintf("%#v", row)
		if seen[key] {
			continue
		}
		seen[key] = true
		indices = append(indices, i)
	}
	operation.Logger(ctx).Debug("deduplicated rows", "kept", len(indices), "dropped", table.NumRows()-len(indices))
	return table.Select(indices), nil
}
