package dataset

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// Normalize converts a value coming from a driver or decoder into the canonical
// value domain: nil, bool, int64, float64, string, []any or map[string]any.
// Persisting and reloading a normalized value yields the same value.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, int64, float64, string:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val) //nolint:gosec // values beyond int64 are not produced by the loaders
	case uint:
		return int64(val) //nolint:gosec // see above
	case float32:
		return float64(val)
	case *big.Int:
		if val.IsInt64() {
			return val.Int64()
		}
		return val.String()
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
