// Package parser reads and writes note documents: a YAML frontmatter block
// between "---" fences followed by a markdown body.
package parser

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marcopeg/mondo-sub000/internal/dates"
	"github.com/marcopeg/mondo-sub000/internal/model"
)

// Document is a parsed note file.
type Document struct {
	// Metadata is the decoded frontmatter. Never nil.
	Metadata map[string]any

	// Body is everything after the closing fence.
	Body string

	// HasFrontmatter reports whether the file had a closed frontmatter block.
	HasFrontmatter bool

	// keyOrder is the order keys appeared in the frontmatter.
	keyOrder []string
}

// FrontmatterBounds returns the opening and closing frontmatter line indices.
// It only detects frontmatter when the first line is '---'.
// If frontmatter is present but unclosed, endLine is -1.
func FrontmatterBounds(lines []string) (startLine int, endLine int, ok bool) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return 0, -1, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return 0, i, true
		}
	}
	return 0, -1, true
}

// Parse splits content into frontmatter and body. Content without a closed
// frontmatter block is all body.
func Parse(content string) (*Document, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	lines := strings.Split(content, "\n")

	_, endLine, ok := FrontmatterBounds(lines)
	if !ok || endLine == -1 {
		return &Document{Metadata: map[string]any{}, Body: content}, nil
	}

	raw := strings.Join(lines[1:endLine], "\n")
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter as YAML: %w", err)
	}

	metadata := map[string]any{}
	var order []string
	if len(root.Content) > 0 {
		mapping := root.Content[0]
		if mapping.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("frontmatter must be a mapping")
		}
		if err := mapping.Decode(&metadata); err != nil {
			return nil, fmt.Errorf("failed to decode frontmatter: %w", err)
		}
		for i := 0; i+1 < len(mapping.Content); i += 2 {
			order = append(order, mapping.Content[i].Value)
		}
	}

	body := ""
	if endLine+1 < len(lines) {
		body = strings.Join(lines[endLine+1:], "\n")
	}
	return &Document{
		Metadata:       metadata,
		Body:           body,
		HasFrontmatter: true,
		keyOrder:       order,
	}, nil
}

// Render writes a document: the frontmatter block in key order (existing
// keys keep their position, "type" and "show" lead new documents, other new
// keys follow sorted) and then the body.
func (d *Document) Render() (string, error) {
	node, err := mappingNode(d.Metadata, orderedKeys(d.Metadata, d.keyOrder))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	if len(d.Metadata) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(node); err != nil {
			return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
		}
	}
	buf.WriteString("---")
	if d.Body != "" {
		buf.WriteString("\n")
		buf.WriteString(d.Body)
	} else {
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

// RenderNote renders a new note document.
func RenderNote(metadata map[string]any, body string) (string, error) {
	return (&Document{Metadata: metadata, Body: body}).Render()
}

// Update parses content, applies mutate to a copy of its metadata and
// renders the result. changed is false when mutate left the metadata equal,
// in which case the original content is returned untouched.
func Update(content string, mutate func(map[string]any) error) (updated string, changed bool, err error) {
	doc, err := Parse(content)
	if err != nil {
		return "", false, err
	}
	before, err := RenderNote(doc.Metadata, "")
	if err != nil {
		return "", false, err
	}

	next := model.CloneMetadata(doc.Metadata)
	if err := mutate(next); err != nil {
		return "", false, err
	}

	after, err := RenderNote(next, "")
	if err != nil {
		return "", false, err
	}
	if doc.HasFrontmatter && after == before {
		return content, false, nil
	}

	doc.Metadata = next
	if !doc.HasFrontmatter {
		doc.Body = strings.TrimPrefix(doc.Body, "\n")
	}
	out, err := doc.Render()
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

func orderedKeys(metadata map[string]any, existing []string) []string {
	out := make([]string, 0, len(metadata))
	seen := map[string]bool{}
	add := func(k string) {
		if _, ok := metadata[k]; ok && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range existing {
		add(k)
	}
	if len(existing) == 0 {
		add(model.TypeKey)
		add(model.ShowKey)
	}
	rest := make([]string, 0, len(metadata))
	for k := range metadata {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func mappingNode(m map[string]any, keys []string) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		value, err := valueNode(m[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			value)
	}
	return node, nil
}

// valueNode encodes a metadata value. Dates are written back unquoted, in
// the short form they are usually typed in.
func valueNode(v any) (*yaml.Node, error) {
	switch vv := v.(type) {
	case time.Time:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: formatTimestamp(vv)}, nil
	case string:
		if dates.IsValidDate(vv) {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: vv}, nil
		}
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return mappingNode(vv, keys)
	case []any:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range vv {
			n, err := valueNode(item)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	case []string:
		return valueNode(model.Clone(vv))
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}

func formatTimestamp(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
