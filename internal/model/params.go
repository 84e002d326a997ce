package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Hyperparameters maps parameter keys to values for one model. Values are
// passed to the model adapter as-is; the typed getters only coerce on read.
type Hyperparameters map[string]any

// Clone returns a shallow copy.
func (h Hyperparameters) Clone() Hyperparameters {
	out := make(Hyperparameters, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Merge returns a new map with the entries of over layered on top of h.
// Neither input is modified.
func (h Hyperparameters) Merge(over Hyperparameters) Hyperparameters {
	out := h.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Keys returns the keys in sorted order.
func (h Hyperparameters) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Int reads key as an int, returning def when absent or not numeric.
func (h Hyperparameters) Int(key string, def int) int {
	switch v := h[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Float reads key as a float64, returning def when absent or not numeric.
func (h Hyperparameters) Float(key string, def float64) float64 {
	switch v := h[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// String reads key as a string, returning def when absent.
func (h Hyperparameters) String(key, def string) string {
	switch v := h[key].(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// Bool reads key as a bool, returning def when absent or unparseable.
func (h Hyperparameters) Bool(key string, def bool) bool {
	switch v := h[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Format renders the parameters as "k=v, k=v" in key order.
func (h Hyperparameters) Format() string {
	parts := make([]string, 0, len(h))
	for _, k := range h.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, h[k]))
	}
	return strings.Join(parts, ", ")
}

// ParseParam parses a "key=value" assignment. The value becomes an int,
// float64 or bool when it parses as one, otherwise a string.
func ParseParam(s string) (string, any, error) {
	k, v, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return "", nil, fmt.Errorf("invalid parameter %q: expected key=value", s)
	}
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return k, n, nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return k, f, nil
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return k, b, nil
	}
	return k, v, nil
}
