// Package starlark evaluates user-supplied Starlark expressions against table
// rows. The filter and map operations use it.
package starlark

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// GoToStarlark converts a Go value to a Starlark value. Values are first
// normalized into the dataset value domain.
func GoToStarlark(v any) (starlark.Value, error) {
	switch val := dataset.Normalize(v).(type) {
	case nil:
		return starlark.None, nil

	case string:
		return starlark.String(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case float64:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts a Starlark value back to a Go value in the dataset value
// domain: string, int64, float64, bool, []any, map[string]any or nil.
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case starlark.Indexable:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", string(key), err)
			}
			result[string(key)] = gv
		}
		return result, nil

	default:
		return val.String(), nil
	}
}

// RowToStarlark builds the frozen "row" dict for one table row.
func RowToStarlark(columns []string, row []any) (*starlark.Dict, error) {
	dict := starlark.NewDict(len(columns))
	for i, c := range columns {
		sv, err := GoToStarlark(row[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c, err)
		}
		if err := dict.SetKey(starlark.String(c), sv); err != nil {
			return nil, err
		}
	}
	dict.Freeze()
	return dict, nil
}
