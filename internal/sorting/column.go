package sorting

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcopeg/mondo-sub000/internal/model"
)

// Column is a panel column. The set of implementations is closed:
// TitleColumn, PropertyColumn, DateColumn, TypeColumn and InvalidColumn.
type Column interface {
	columnNode()
	// Name is the key a sort spec uses to address the column.
	Name() string
	// Header is the display label.
	Header() string
}

// TitleColumn shows the note's display title.
type TitleColumn struct {
	Label string
}

// PropertyColumn shows a metadata property.
type PropertyColumn struct {
	Key   string
	Label string
}

// DateColumn shows the note's effective date.
type DateColumn struct {
	Label string
}

// TypeColumn shows the note's entity type.
type TypeColumn struct {
	Label string
}

// InvalidColumn is a malformed column definition. It renders empty.
type InvalidColumn struct {
	Reason string
}

func (TitleColumn) columnNode()    {}
func (PropertyColumn) columnNode() {}
func (DateColumn) columnNode()     {}
func (TypeColumn) columnNode()     {}
func (InvalidColumn) columnNode()  {}

func (TitleColumn) Name() string      { return "title" }
func (c PropertyColumn) Name() string { return c.Key }
func (DateColumn) Name() string       { return "date" }
func (TypeColumn) Name() string       { return "type" }
func (InvalidColumn) Name() string    { return "" }

func (c TitleColumn) Header() string    { return orDefault(c.Label, "Title") }
func (c PropertyColumn) Header() string { return orDefault(c.Label, c.Key) }
func (c DateColumn) Header() string     { return orDefault(c.Label, "Date") }
func (c TypeColumn) Header() string     { return orDefault(c.Label, "Type") }
func (InvalidColumn) Header() string    { return "" }

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Value resolves a column for a note. Dates resolve to time.Time.
func Value(n model.Note, col Column) any {
	switch c := col.(type) {
	case TitleColumn:
		return n.Title()
	case PropertyColumn:
		v, _ := n.Get(c.Key)
		return v
	case DateColumn:
		if t, ok := EffectiveDate(n); ok {
			return t
		}
		return nil
	case TypeColumn:
		return n.Type
	case InvalidColumn:
		return nil
	}
	return nil
}

// Text resolves a column to its display and comparison string.
func Text(n model.Note, col Column) string {
	return model.Stringify(Value(n, col))
}

// Lookup finds the column a sort spec names. Names that match no declared
// column address the title, type or date columns, or else a property.
func Lookup(columns []Column, name string) Column {
	name = strings.TrimSpace(name)
	for _, c := range columns {
		if c.Name() == name {
			return c
		}
	}
	switch name {
	case "title", model.ShowKey:
		return TitleColumn{}
	case "type":
		return TypeColumn{}
	case "date":
		return DateColumn{}
	}
	return PropertyColumn{Key: name}
}

// ColumnNode wraps a Column for decoding from entity configuration:
//
//	{type: title}  {type: show}
//	{type: property, key: status, label: Status}
//	{type: date}   {type: type}
//
// A bare string is a property key. Malformed shapes decode to
// InvalidColumn.
type ColumnNode struct {
	Column Column
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *ColumnNode) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		n.Column = InvalidColumn{Reason: err.Error()}
		return nil
	}
	n.Column = DecodeColumn(raw)
	return nil
}

// DecodeColumn builds a Column from a generic decoded value.
func DecodeColumn(raw any) Column {
	if s, ok := raw.(string); ok {
		if strings.TrimSpace(s) == "" {
			return InvalidColumn{Reason: "empty column"}
		}
		return Lookup(nil, s)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return InvalidColumn{Reason: fmt.Sprintf("expected a mapping, got %T", raw)}
	}
	label, _ := m["label"].(string)
	kind, _ := m["type"].(string)
	key, _ := m["key"].(string)

	switch strings.TrimSpace(kind) {
	case "title", "show":
		return TitleColumn{Label: label}
	case "date":
		return DateColumn{Label: label}
	case "type":
		return TypeColumn{Label: label}
	case "property", "attribute", "":
		if strings.TrimSpace(key) == "" {
			return InvalidColumn{Reason: "property column without key"}
		}
		return PropertyColumn{Key: strings.TrimSpace(key), Label: label}
	}
	return InvalidColumn{Reason: fmt.Sprintf("unknown column type %q", kind)}
}
