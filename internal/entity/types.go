// Package entity holds the entity-type configuration that drives related
// panels and pick-or-create flows, and the process-wide registry for it.
package entity

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcopeg/mondo-sub000/internal/filter"
	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/query"
	"github.com/marcopeg/mondo-sub000/internal/sorting"
)

// Config is the complete entity configuration loaded from entities.yaml.
type Config struct {
	Entities map[string]*Entity `yaml:"entities" json:"entities"`
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{Entities: map[string]*Entity{}}
}

// Entity configures one entity type (person, project, task…).
type Entity struct {
	// Type is the map key the entity was declared under.
	Type string `yaml:"-" json:"type"`

	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Singular string `yaml:"singular,omitempty" json:"singular,omitempty"`
	Icon     string `yaml:"icon,omitempty" json:"icon,omitempty"`

	// Folder is where new notes of this type are written. Defaults to the
	// type name.
	Folder string `yaml:"folder,omitempty" json:"folder,omitempty"`

	Frontmatter   map[string]*FrontmatterField `yaml:"frontmatter,omitempty" json:"frontmatter,omitempty"`
	CreateRelated []*CreateRelated             `yaml:"createRelated,omitempty" json:"createRelated,omitempty"`
	Links         []*Link                      `yaml:"links,omitempty" json:"links,omitempty"`
}

// FrontmatterField declares a link-valued property picked from other
// entities.
type FrontmatterField struct {
	Type     string      `yaml:"type" json:"type"`
	Filter   filter.Node `yaml:"filter,omitempty" json:"-"`
	Multiple bool        `yaml:"multiple,omitempty" json:"multiple,omitempty"`

	// TargetType is the type created from the picker. Defaults to the
	// first type named by Filter.
	TargetType string  `yaml:"targetType,omitempty" json:"targetType,omitempty"`
	Create     *Recipe `yaml:"create,omitempty" json:"create,omitempty"`
}

// CreateRelated is a "new related note" action on a host entity.
type CreateRelated struct {
	Key        string `yaml:"key" json:"key"`
	Label      string `yaml:"label,omitempty" json:"label,omitempty"`
	TargetType string `yaml:"targetType" json:"targetType"`
	Create     Recipe `yaml:"create,omitempty" json:"create"`
}

// Recipe describes how to title and populate a newly created note.
type Recipe struct {
	Title           string         `yaml:"title,omitempty" json:"title,omitempty"`
	Attributes      map[string]any `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	LinkProperties  StringList     `yaml:"linkProperties,omitempty" json:"linkProperties,omitempty"`
	OpenAfterCreate bool           `yaml:"openAfterCreate,omitempty" json:"openAfterCreate,omitempty"`
}

// LinkTypeBacklinks is the only supported panel type.
const LinkTypeBacklinks = "backlinks"

// Link is a related-items panel.
type Link struct {
	Type   string     `yaml:"type" json:"type"`
	Key    string     `yaml:"key" json:"key"`
	Title  string     `yaml:"title,omitempty" json:"title,omitempty"`
	Config LinkConfig `yaml:"config" json:"config"`
}

// LinkConfig declares either a simple backlink (TargetType, Properties) or
// a full query (Find), plus the optional filter, sort, columns and create
// policy.
type LinkConfig struct {
	TargetType   string               `yaml:"targetType,omitempty" json:"targetType,omitempty"`
	Properties   StringList           `yaml:"properties,omitempty" json:"properties,omitempty"`
	Find         *Find                `yaml:"find,omitempty" json:"find,omitempty"`
	Filter       *filter.Node         `yaml:"filter,omitempty" json:"-"`
	Sort         *sorting.Spec        `yaml:"sort,omitempty" json:"sort,omitempty"`
	Columns      []sorting.ColumnNode `yaml:"columns,omitempty" json:"-"`
	CreateEntity *CreateEntity        `yaml:"createEntity,omitempty" json:"createEntity,omitempty"`
}

// Find is the full query form of a panel.
type Find struct {
	Query   []query.ClauseNode `yaml:"query" json:"-"`
	Combine string             `yaml:"combine,omitempty" json:"combine,omitempty"`
}

// CreateEntity is a panel's "create new" policy.
type CreateEntity struct {
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// ReferenceCreate makes the host reference the new note through the
	// panel's first property, instead of the new note pointing back.
	ReferenceCreate bool           `yaml:"referenceCreate,omitempty" json:"referenceCreate,omitempty"`
	Title           string         `yaml:"title,omitempty" json:"title,omitempty"`
	Attributes      map[string]any `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// StringList decodes from a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var one string
		if err := value.Decode(&one); err != nil {
			return err
		}
		*s = nil
		if strings.TrimSpace(one) != "" {
			*s = StringList{strings.TrimSpace(one)}
		}
		return nil
	}
	var many []string
	if err := value.Decode(&many); err != nil {
		return err
	}
	out := make(StringList, 0, len(many))
	for _, item := range many {
		if strings.TrimSpace(item) != "" {
			out = append(out, strings.TrimSpace(item))
		}
	}
	*s = out
	return nil
}

// Entity returns the configuration for a note type.
func (c *Config) Entity(typ string) (*Entity, bool) {
	if c == nil {
		return nil, false
	}
	if e, ok := c.Entities[typ]; ok {
		return e, true
	}
	norm := model.NormalizeType(typ)
	for key, e := range c.Entities {
		if model.NormalizeType(key) == norm {
			return e, true
		}
	}
	return nil, false
}

// Types lists the configured entity types, sorted.
func (c *Config) Types() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Entities))
	for typ := range c.Entities {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Label is the singular display name of the entity.
func (e *Entity) Label() string {
	switch {
	case e.Singular != "":
		return e.Singular
	case e.Name != "":
		return e.Name
	}
	return e.Type
}

// NoteFolder is the vault folder new notes of this type go to.
func (e *Entity) NoteFolder() string {
	if f := strings.Trim(strings.TrimSpace(e.Folder), "/"); f != "" {
		return f
	}
	return e.Type
}

// Link returns the panel with the given key.
func (e *Entity) Link(key string) (*Link, bool) {
	for _, l := range e.Links {
		if l.Key == key {
			return l, true
		}
	}
	return nil, false
}

// CreateRelatedAction returns the create-related action with the given key.
func (e *Entity) CreateRelatedAction(key string) (*CreateRelated, bool) {
	for _, c := range e.CreateRelated {
		if c.Key == key {
			return c, true
		}
	}
	return nil, false
}

// Field returns the frontmatter field declaration for a property.
func (e *Entity) Field(key string) (*FrontmatterField, bool) {
	f, ok := e.Frontmatter[key]
	return f, ok && f != nil
}

// Clauses returns the panel's query. The simple-backlink form becomes a
// single In step over Properties, typed by TargetType.
func (c LinkConfig) Clauses() []query.Clause {
	if c.Find != nil && len(c.Find.Query) > 0 {
		out := make([]query.Clause, 0, len(c.Find.Query))
		for _, node := range c.Find.Query {
			out = append(out, node.Clause())
		}
		return out
	}
	step := query.In{Properties: []string(c.Properties)}
	if strings.TrimSpace(c.TargetType) != "" {
		step.Types = []string{strings.TrimSpace(c.TargetType)}
	}
	return []query.Clause{{Steps: []query.Step{step}}}
}

// FilterExpr returns the panel's filter, or nil.
func (c LinkConfig) FilterExpr() filter.Expr {
	if c.Filter == nil {
		return nil
	}
	return c.Filter.Expr
}

// SortSpec returns the panel's sort, defaulting to manual.
func (c LinkConfig) SortSpec() sorting.Spec {
	if c.Sort == nil || c.Sort.Strategy == "" {
		return sorting.Spec{Strategy: sorting.Manual}
	}
	return *c.Sort
}

// ColumnDefs returns the declared columns, defaulting to the title.
func (c LinkConfig) ColumnDefs() []sorting.Column {
	if len(c.Columns) == 0 {
		return []sorting.Column{sorting.TitleColumn{}}
	}
	out := make([]sorting.Column, 0, len(c.Columns))
	for _, node := range c.Columns {
		out = append(out, node.Column)
	}
	return out
}

// CanCreate reports whether the panel offers creation.
func (c LinkConfig) CanCreate() bool {
	return c.CreateEntity != nil && (c.CreateEntity.Enabled == nil || *c.CreateEntity.Enabled)
}

// TargetTypeFor returns the type a frontmatter picker creates.
func (f *FrontmatterField) TargetTypeFor() string {
	if f.TargetType != "" {
		return f.TargetType
	}
	switch x := f.Filter.Expr.(type) {
	case filter.TypeEq:
		return x.Type
	case filter.TypeIn:
		if len(x.Types) > 0 {
			return x.Types[0]
		}
	case filter.All:
		for _, child := range x.Children {
			sub := FrontmatterField{Filter: filter.Node{Expr: child}}
			if t := sub.TargetTypeFor(); t != "" {
				return t
			}
		}
	}
	return ""
}
