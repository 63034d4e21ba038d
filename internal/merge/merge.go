// Package merge adds and removes link references inside a note's metadata
// block. It is the single place where a property is promoted from absent or
// scalar to array, used by both the creation flow and the attribute flow.
//
// Every function mutates the map it is given and performs no I/O; callers
// persist the result through the store's per-file atomic write.
package merge

import (
	"sort"
	"strings"

	"github.com/marcopeg/mondo-sub000/internal/model"
)

// normalize is the membership key: trimmed, case preserved.
func normalize(s string) string {
	return strings.TrimSpace(s)
}

func equalValues(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	switch {
	case aok && bok:
		return normalize(as) == normalize(bs)
	case aok || bok:
		return false
	}
	if an, ok := model.ToNumber(a); ok {
		if bn, ok := model.ToNumber(b); ok {
			return an == bn
		}
	}
	return model.Stringify(a) == model.Stringify(b)
}

func contains(items []any, v any) bool {
	for _, item := range items {
		if equalValues(item, v) {
			return true
		}
	}
	return false
}

// isEmpty reports whether an existing property value counts as absent.
func isEmpty(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(vv) == ""
	}
	return false
}

// asArray returns an existing array value as []any.
func asArray(v any) ([]any, bool) {
	switch vv := v.(type) {
	case []any:
		return vv, true
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// AddLink adds link to metadata[key] and reports whether the map changed.
//
//   - absent or empty: set to a one-element array
//   - scalar: becomes [scalar, link] unless they normalize equal
//   - array: link is appended when no element normalizes equal
//
// Applying AddLink twice with the same link leaves the same array.
func AddLink(metadata map[string]any, key, link string) bool {
	if metadata == nil || normalize(link) == "" {
		return false
	}
	return addValue(metadata, key, link)
}

func addValue(metadata map[string]any, key string, v any) bool {
	existing, present := metadata[key]
	if !present || isEmpty(existing) {
		metadata[key] = []any{v}
		return true
	}
	if arr, ok := asArray(existing); ok {
		if contains(arr, v) {
			return false
		}
		next := make([]any, 0, len(arr)+1)
		metadata[key] = append(append(next, arr...), v)
		return true
	}
	if _, isMap := existing.(map[string]any); isMap {
		// Nested objects are not link containers; replace them.
		metadata[key] = []any{v}
		return true
	}
	if equalValues(existing, v) {
		return false
	}
	metadata[key] = []any{existing, v}
	return true
}

// RemoveLink removes every occurrence of link from metadata[key] and
// reports whether the map changed. A scalar equal to link, or an array left
// empty, deletes the property.
func RemoveLink(metadata map[string]any, key, link string) bool {
	if metadata == nil {
		return false
	}
	existing, present := metadata[key]
	if !present {
		return false
	}
	if arr, ok := asArray(existing); ok {
		kept := make([]any, 0, len(arr))
		for _, item := range arr {
			if !equalValues(item, link) {
				kept = append(kept, item)
			}
		}
		if len(kept) == len(arr) {
			return false
		}
		if len(kept) == 0 {
			delete(metadata, key)
		} else {
			metadata[key] = kept
		}
		return true
	}
	if equalValues(existing, link) {
		delete(metadata, key)
		return true
	}
	return false
}

// SetLink replaces metadata[key] with link, the single-valued form.
func SetLink(metadata map[string]any, key, link string) bool {
	if metadata == nil || normalize(link) == "" {
		return false
	}
	if s, ok := metadata[key].(string); ok && normalize(s) == normalize(link) {
		return false
	}
	metadata[key] = link
	return true
}

// MergeValue merges a rendered template value into metadata[key].
//
// Arrays are merged element by element with AddLink's membership rule, so
// repeated merges never duplicate. Scalars follow AddLink's upgrade rule
// when the property already holds a different value. Maps replace.
func MergeValue(metadata map[string]any, key string, value any) bool {
	if metadata == nil || value == nil {
		return false
	}
	switch vv := value.(type) {
	case []any:
		changed := false
		if _, present := metadata[key]; !present && len(vv) == 0 {
			metadata[key] = []any{}
			return true
		}
		for _, item := range vv {
			if s, ok := item.(string); ok && normalize(s) == "" {
				continue
			}
			if addValue(metadata, key, item) {
				changed = true
			}
		}
		return changed
	case []string:
		return MergeValue(metadata, key, model.Clone(vv))
	case map[string]any:
		metadata[key] = model.Clone(vv)
		return true
	case string:
		if normalize(vv) == "" {
			return false
		}
	}

	existing, present := metadata[key]
	if !present || isEmpty(existing) {
		metadata[key] = value
		return true
	}
	return addValue(metadata, key, value)
}

// MergeAttributes merges every attribute into metadata, skipping the
// reserved identity keys. It returns the keys that changed.
func MergeAttributes(metadata map[string]any, attrs map[string]any) []string {
	var changed []string
	for _, key := range sortedKeys(attrs) {
		if IsReserved(key) {
			continue
		}
		if MergeValue(metadata, key, attrs[key]) {
			changed = append(changed, key)
		}
	}
	return changed
}

// IsReserved reports whether key carries entity identity and must never be
// written by a template merge.
func IsReserved(key string) bool {
	return key == model.TypeKey || key == model.LegacyTypeKey
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
