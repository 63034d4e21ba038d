// Package corpus defines the point-in-time, read-only view of the note
// collection that relationship evaluation runs against.
package corpus

import (
	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/resolver"
)

// Corpus is a read-only snapshot of every note in a vault.
// Implementations must be safe for concurrent readers.
type Corpus interface {
	// Notes returns every note in enumeration order.
	Notes() []model.Note
	// ByType returns the notes whose normalized type is one of types, in
	// enumeration order. No types means every note.
	ByType(types ...string) []model.Note
	// Lookup returns the note with the given ID.
	Lookup(id string) (model.Note, bool)
	// Exists reports whether a note with the given ID exists.
	Exists(id string) bool
	// ResolveLinkRelative resolves a cleaned link target as seen from the
	// note sourceID. ok is false when nothing matches.
	ResolveLinkRelative(target, sourceID string) (id string, ok bool)
}

// Memory is an immutable in-memory Corpus.
type Memory struct {
	notes    []model.Note
	byID     map[string]int
	resolver *resolver.Resolver
}

// NewMemory builds a snapshot over notes, keeping their order. When two
// notes share an ID the first one wins.
func NewMemory(notes []model.Note) *Memory {
	m := &Memory{
		notes: make([]model.Note, 0, len(notes)),
		byID:  make(map[string]int, len(notes)),
	}
	ids := make([]string, 0, len(notes))
	for _, n := range notes {
		if _, dup := m.byID[n.ID]; dup {
			continue
		}
		m.byID[n.ID] = len(m.notes)
		m.notes = append(m.notes, n)
		ids = append(ids, n.ID)
	}
	m.resolver = resolver.New(ids, model.DefaultExtension)
	return m
}

// Notes implements Corpus.
func (m *Memory) Notes() []model.Note {
	return m.notes
}

// ByType implements Corpus.
func (m *Memory) ByType(types ...string) []model.Note {
	if len(types) == 0 {
		return m.notes
	}
	var out []model.Note
	for _, n := range m.notes {
		if n.HasType(types) {
			out = append(out, n)
		}
	}
	return out
}

// Lookup implements Corpus.
func (m *Memory) Lookup(id string) (model.Note, bool) {
	i, ok := m.byID[id]
	if !ok {
		return model.Note{}, false
	}
	return m.notes[i], true
}

// Exists implements Corpus.
func (m *Memory) Exists(id string) bool {
	_, ok := m.byID[id]
	return ok
}

// ResolveLinkRelative implements Corpus.
func (m *Memory) ResolveLinkRelative(target, sourceID string) (string, bool) {
	res := m.Resolve(target, sourceID)
	return res.TargetID, res.TargetID != ""
}

// Resolve is ResolveLinkRelative with the ambiguity detail kept.
func (m *Memory) Resolve(target, sourceID string) resolver.ResolveResult {
	return m.resolver.ResolveRelative(target, sourceID)
}

// Collisions lists base names shared by several notes.
func (m *Memory) Collisions() []resolver.Collision {
	return m.resolver.FindCollisions()
}

// Len returns the number of notes in the snapshot.
func (m *Memory) Len() int {
	return len(m.notes)
}
