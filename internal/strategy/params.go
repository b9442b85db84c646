package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Float reads a numeric parameter, falling back to def when absent.
func Float(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("param %s: %w", key, err)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("param %s: %q is not a number", key, x)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("param %s: unsupported type %T", key, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("param %s: must be finite", key)
	}
	return f, nil
}

// Int reads a whole-number parameter. Fractional values are truncated since
// JSON clients send every number as a float.
func Int(params map[string]any, key string, def int) (int, error) {
	f, err := Float(params, key, float64(def))
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Period reads an integer parameter that must be at least min.
func Period(params map[string]any, key string, def, min int) (int, error) {
	n, err := Int(params, key, def)
	if err != nil {
		return 0, err
	}
	if n < min {
		return 0, fmt.Errorf("param %s: must be >= %d, got %d", key, min, n)
	}
	return n, nil
}

// String reads a string parameter.
func String(params map[string]any, key, def string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %s: expected string, got %T", key, v)
	}
	return s, nil
}

// Map reads a nested parameter object.
func Map(params map[string]any, key string) (map[string]any, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("param %s: expected object, got %T", key, v)
	}
	return m, nil
}

// Merge overlays overrides on base without mutating either.
func Merge(base, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
