package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clone deep-copies a metadata value. Maps and slices are copied; scalars
// are returned as-is.
func Clone(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, item := range vv {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = Clone(item)
		}
		return out
	case []string:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = item
		}
		return out
	default:
		return v
	}
}

// CloneMetadata deep-copies a metadata block.
func CloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return Clone(m).(map[string]any)
}

// Strings flattens a metadata value into its string leaves: a string yields
// itself, an array yields each string element. Other shapes yield nothing.
func Strings(v any) []string {
	switch vv := v.(type) {
	case string:
		if strings.TrimSpace(vv) == "" {
			return nil
		}
		return []string{vv}
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ToNumber converts numeric metadata values (and numeric strings) to float64.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Stringify renders a metadata value for display and comparison.
// Arrays are joined with ", "; times use an ISO-like layout.
func Stringify(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case time.Time:
		if vv.Hour() == 0 && vv.Minute() == 0 && vv.Second() == 0 {
			return vv.Format("2006-01-02")
		}
		return vv.Format("2006-01-02T15:04")
	case []any:
		parts := make([]string, 0, len(vv))
		for _, item := range vv {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(vv, ", ")
	default:
		return fmt.Sprint(vv)
	}
}
