// Package model defines the note types shared by every layer of mondo:
// the vault store, the index, the relationship engine, and the CLI.
package model

import (
	"strings"
	"time"
)

// DefaultExtension is the file extension of note documents.
const DefaultExtension = ".md"

// Reserved metadata keys that carry a note's entity identity.
const (
	TypeKey       = "type"
	LegacyTypeKey = "mondoType"
	ShowKey       = "show"
)

// Note is a typed document in the vault.
type Note struct {
	// ID is the vault-relative path of the note, including its extension,
	// e.g. "people/alice.md".
	ID string `json:"id"`

	// Type is the entity type read from the "type" property (or the legacy
	// "mondoType" property).
	Type string `json:"type"`

	// Metadata is the parsed frontmatter block.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Created is the file creation time when the store knows it.
	Created time.Time `json:"created,omitempty"`

	// Body is the markdown content after the frontmatter.
	Body string `json:"-"`
}

// New builds a Note from an ID and a metadata block, deriving the type.
func New(id string, metadata map[string]any) Note {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Note{
		ID:       id,
		Type:     TypeOf(metadata),
		Metadata: metadata,
	}
}

// TypeOf reads the entity type from a metadata block.
func TypeOf(metadata map[string]any) string {
	for _, key := range []string{TypeKey, LegacyTypeKey} {
		if s, ok := metadata[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// NormalizeType trims and lowercases a type name for comparison.
func NormalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// NormalizedType returns the note's type in comparison form.
func (n Note) NormalizedType() string {
	return NormalizeType(n.Type)
}

// HasType reports whether the note's type is one of types.
// An empty types list matches any note.
func (n Note) HasType(types []string) bool {
	if len(types) == 0 {
		return true
	}
	nt := n.NormalizedType()
	for _, t := range types {
		if NormalizeType(t) == nt {
			return true
		}
	}
	return false
}

// LinkText returns the ID without the default extension, the form used
// inside a wikilink.
func (n Note) LinkText() string {
	return LinkText(n.ID)
}

// LinkText strips the default extension from a note ID.
func LinkText(id string) string {
	return strings.TrimSuffix(id, DefaultExtension)
}

// Title returns the display title: the "show" property, falling back to
// the note ID without its extension.
func (n Note) Title() string {
	if s, ok := n.Metadata[ShowKey].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return n.LinkText()
}

// Get returns the raw metadata value for key.
func (n Note) Get(key string) (any, bool) {
	if n.Metadata == nil {
		return nil, false
	}
	v, ok := n.Metadata[key]
	return v, ok
}
