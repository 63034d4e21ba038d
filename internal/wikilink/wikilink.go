// Package wikilink parses the link references stored in note metadata.
//
// Reference grammar:
//
//	[[target]]
//	[[target|alias]]
//	[[target#anchor]]
//	[[target#anchor|alias]]
//	target            (bare path or name)
//
// The target is trimmed of surrounding whitespace. Anchors and aliases are
// kept on the parsed Link but never take part in identity.
package wikilink

import "strings"

// Link is a parsed link reference.
type Link struct {
	Target  string
	Anchor  string
	Alias   string
	Wrapped bool // written as [[...]]
}

// Parse parses a single reference. ok is false when no target remains.
func Parse(raw string) (Link, bool) {
	s := strings.TrimSpace(raw)
	var l Link
	if strings.HasPrefix(s, "[[") && strings.HasSuffix(s, "]]") && len(s) >= 4 {
		s = s[2 : len(s)-2]
		l.Wrapped = true
	}

	if i := strings.Index(s, "|"); i >= 0 {
		l.Alias = strings.TrimSpace(s[i+1:])
		s = s[:i]
	}
	if i := strings.Index(s, "#"); i >= 0 {
		l.Anchor = strings.TrimSpace(s[i+1:])
		s = s[:i]
	}
	l.Target = strings.TrimSpace(s)
	return l, l.Target != ""
}

// Clean returns the bare target of a reference: wrapper, alias and anchor
// removed, whitespace trimmed. It may return "".
func Clean(raw string) string {
	l, _ := Parse(raw)
	return l.Target
}

// Format renders a wikilink to target.
func Format(target string) string {
	return "[[" + target + "]]"
}
