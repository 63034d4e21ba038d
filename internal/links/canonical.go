// Package links turns raw link references into canonical identities, the
// dedup key used by every part of the relationship engine.
package links

import (
	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/wikilink"
)

// Lookup is the subset of the corpus the canonicalizer needs.
type Lookup interface {
	Exists(id string) bool
	ResolveLinkRelative(target, sourceID string) (string, bool)
}

// Canonicalizer resolves raw references against a corpus snapshot.
// It holds no mutable state and is safe for concurrent use.
type Canonicalizer struct {
	lookup Lookup
	ext    string
}

// New returns a Canonicalizer over lookup using the default note extension.
func New(lookup Lookup) *Canonicalizer {
	return &Canonicalizer{lookup: lookup, ext: model.DefaultExtension}
}

// WithExtension returns a copy that appends ext in the extension step.
func (c *Canonicalizer) WithExtension(ext string) *Canonicalizer {
	cp := *c
	cp.ext = ext
	return &cp
}

// Canonicalize resolves raw as written in the note sourceID.
//
// The reference is cleaned (wrapper, alias and anchor removed) and resolved,
// first match wins:
//  1. the host's relative resolution
//  2. an exact note ID
//  3. the ID with the default extension appended
//  4. the cleaned target itself
//
// It always returns a string. An empty or whitespace reference yields "".
func (c *Canonicalizer) Canonicalize(raw, sourceID string) string {
	target := wikilink.Clean(raw)
	if target == "" || c == nil || c.lookup == nil {
		return target
	}

	if id, ok := c.lookup.ResolveLinkRelative(target, sourceID); ok && id != "" {
		return id
	}
	if c.lookup.Exists(target) {
		return target
	}
	if c.ext != "" && c.lookup.Exists(target+c.ext) {
		return target + c.ext
	}
	return target
}

// Resolved canonicalizes raw and reports whether it names an existing note.
func (c *Canonicalizer) Resolved(raw, sourceID string) (string, bool) {
	id := c.Canonicalize(raw, sourceID)
	if id == "" || c == nil || c.lookup == nil {
		return id, false
	}
	return id, c.lookup.Exists(id)
}

// References canonicalizes every link string held by a metadata value
// (a single string or an array of strings), skipping empty results.
func (c *Canonicalizer) References(value any, sourceID string) []string {
	raws := model.Strings(value)
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		if id := c.Canonicalize(raw, sourceID); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Refers reports whether any reference in value canonicalizes to targetID.
func (c *Canonicalizer) Refers(value any, sourceID, targetID string) bool {
	for _, raw := range model.Strings(value) {
		if c.Canonicalize(raw, sourceID) == targetID {
			return true
		}
	}
	return false
}

// RefersOnly reports whether value holds exactly one reference and it
// canonicalizes to targetID.
func (c *Canonicalizer) RefersOnly(value any, sourceID, targetID string) bool {
	refs := c.References(value, sourceID)
	return len(refs) == 1 && refs[0] == targetID
}

// RawReferences returns the references in value, as written, that
// canonicalize to targetID.
func (c *Canonicalizer) RawReferences(value any, sourceID, targetID string) []string {
	var out []string
	for _, raw := range model.Strings(value) {
		if c.Canonicalize(raw, sourceID) == targetID {
			out = append(out, raw)
		}
	}
	return out
}

// Link formats the canonical wikilink for a note ID, the form written into
// metadata: "[[people/alice]]".
func Link(id string) string {
	return wikilink.Format(model.LinkText(id))
}
