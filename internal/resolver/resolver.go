// Package resolver resolves link targets to note IDs relative to the note
// that contains the link.
package resolver

import (
	"path"
	"sort"
	"strings"
)

// Resolver resolves link targets against a fixed set of note IDs.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	ext      string
	ids      map[string]struct{} // Set of all known note IDs
	lowerIDs map[string]string   // Lowercased ID -> original ID
	baseMap  map[string][]string // Lowercased base name (no extension) -> IDs
}

// New creates a Resolver over the given note IDs.
// ext is the document extension (e.g. ".md") that link targets may omit.
func New(ids []string, ext string) *Resolver {
	r := &Resolver{
		ext:      ext,
		ids:      make(map[string]struct{}, len(ids)),
		lowerIDs: make(map[string]string, len(ids)),
		baseMap:  make(map[string][]string),
	}

	for _, id := range ids {
		r.ids[id] = struct{}{}
		r.lowerIDs[strings.ToLower(id)] = id

		base := strings.ToLower(baseName(id, ext))
		r.baseMap[base] = append(r.baseMap[base], id)
	}

	return r
}

// ResolveResult represents the result of a target resolution.
type ResolveResult struct {
	// TargetID is the resolved note ID (empty if unresolved).
	TargetID string

	// Ambiguous is true if the short name matched several notes and the
	// tie was broken by proximity to the source.
	Ambiguous bool

	// Matches contains all candidate IDs when ambiguous.
	Matches []string
}

// Exists reports whether id is a known note ID.
func (r *Resolver) Exists(id string) bool {
	_, ok := r.ids[id]
	return ok
}

// ResolveRelative resolves a cleaned link target as seen from sourceID.
//
// Order:
//  1. exact ID, then ID + extension (case-insensitive fallback for both)
//  2. a target containing "/" matches IDs ending in "/<target>"
//  3. a bare name matches notes with that base name; a note in the same
//     folder as the source wins, then the shortest path, then lexical order
func (r *Resolver) ResolveRelative(target, sourceID string) ResolveResult {
	target = strings.TrimPrefix(strings.TrimSpace(target), "/")
	if target == "" {
		return ResolveResult{}
	}

	for _, candidate := range r.directCandidates(target, sourceID) {
		if _, ok := r.ids[candidate]; ok {
			return ResolveResult{TargetID: candidate}
		}
		if id, ok := r.lowerIDs[strings.ToLower(candidate)]; ok {
			return ResolveResult{TargetID: id}
		}
	}

	var matches []string
	if strings.Contains(target, "/") {
		suffix := "/" + strings.ToLower(strings.TrimSuffix(target, r.ext))
		for lower, id := range r.lowerIDs {
			if strings.HasSuffix(strings.TrimSuffix(lower, strings.ToLower(r.ext)), suffix) {
				matches = append(matches, id)
			}
		}
	} else {
		matches = append(matches, r.baseMap[strings.ToLower(strings.TrimSuffix(target, r.ext))]...)
	}

	switch len(matches) {
	case 0:
		return ResolveResult{}
	case 1:
		return ResolveResult{TargetID: matches[0]}
	default:
		sort.Strings(matches)
		best := closest(matches, sourceID)
		return ResolveResult{TargetID: best, Ambiguous: true, Matches: matches}
	}
}

// directCandidates lists the literal interpretations of a target, with the
// source-relative form first for "./" and "../" targets.
func (r *Resolver) directCandidates(target, sourceID string) []string {
	var out []string
	if strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../") {
		rel := path.Join(path.Dir(sourceID), target)
		out = append(out, rel, rel+r.ext)
	}
	out = append(out, target)
	if !strings.HasSuffix(target, r.ext) {
		out = append(out, target+r.ext)
	}
	return out
}

// closest picks the candidate nearest to the source: same folder first,
// then fewest path segments, then lexical order.
func closest(matches []string, sourceID string) string {
	sorted := append([]string(nil), matches...)
	sourceDir := path.Dir(sourceID)
	sort.SliceStable(sorted, func(i, j int) bool {
		si := path.Dir(sorted[i]) == sourceDir
		sj := path.Dir(sorted[j]) == sourceDir
		if si != sj {
			return si
		}
		di := strings.Count(sorted[i], "/")
		dj := strings.Count(sorted[j], "/")
		if di != dj {
			return di < dj
		}
		return sorted[i] < sorted[j]
	})
	return sorted[0]
}

// baseName extracts the file name without extension:
// "people/freya.md" -> "freya".
func baseName(id, ext string) string {
	return strings.TrimSuffix(path.Base(id), ext)
}

// Collision is a set of note IDs sharing the same base name.
type Collision struct {
	BaseName string
	IDs      []string
}

// FindCollisions lists base names shared by more than one note, sorted by
// base name. Bare links to these names resolve by proximity.
func (r *Resolver) FindCollisions() []Collision {
	var out []Collision
	for base, ids := range r.baseMap {
		if len(ids) > 1 {
			sorted := append([]string(nil), ids...)
			sort.Strings(sorted)
			out = append(out, Collision{BaseName: base, IDs: sorted})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseName < out[j].BaseName })
	return out
}
