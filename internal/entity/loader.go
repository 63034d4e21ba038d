package entity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/marcopeg/mondo-sub000/internal/query"
	"github.com/marcopeg/mondo-sub000/internal/sorting"
)

// DefaultFile is the entity configuration path relative to the vault root.
var DefaultFile = filepath.Join(".mondo", "entities.yaml")

// LoadVault loads the vault's entities file. A missing file yields an
// empty configuration.
func LoadVault(vaultPath string) (*Config, error) {
	cfg, err := Load(filepath.Join(vaultPath, DefaultFile))
	if errors.Is(err, os.ErrNotExist) {
		return NewConfig(), nil
	}
	return cfg, err
}

// Load reads, decodes and validates an entities file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entities file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("entities file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates entity configuration. Malformed query steps,
// filters and columns are kept as their Invalid variants; structural
// mistakes such as a panel without a key are errors.
func Parse(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	if cfg.Entities == nil {
		cfg.Entities = map[string]*Entity{}
	}
	for typ, e := range cfg.Entities {
		if e == nil {
			e = &Entity{}
			cfg.Entities[typ] = e
		}
		e.Type = typ
		for _, l := range e.Links {
			if l != nil && l.Type == "" {
				l.Type = LinkTypeBacklinks
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every entity declaration.
func (c *Config) Validate() error {
	for _, typ := range c.Types() {
		if err := c.Entities[typ].Validate(); err != nil {
			return fmt.Errorf("entities.%s: %w", typ, err)
		}
	}
	return nil
}

// Validate checks the entity's panels, actions and fields.
func (e *Entity) Validate() error {
	for i, l := range e.Links {
		if l == nil {
			return fmt.Errorf("links[%d]: empty panel", i)
		}
		if err := l.Validate(); err != nil {
			return fmt.Errorf("links[%d]: %w", i, err)
		}
	}
	seen := map[string]bool{}
	for i, c := range e.CreateRelated {
		if c == nil {
			return fmt.Errorf("createRelated[%d]: empty action", i)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("createRelated[%d]: %w", i, err)
		}
		if seen[c.Key] {
			return fmt.Errorf("createRelated[%d]: duplicate key %q", i, c.Key)
		}
		seen[c.Key] = true
	}
	for key, f := range e.Frontmatter {
		if f == nil {
			continue
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("frontmatter.%s: %w", key, err)
		}
	}
	return nil
}

// Validate checks a panel declaration.
func (l *Link) Validate() error {
	if err := validation.ValidateStruct(l,
		validation.Field(&l.Key, validation.Required),
		validation.Field(&l.Type, validation.Required, validation.In(LinkTypeBacklinks)),
	); err != nil {
		return err
	}
	return l.Config.Validate()
}

// Validate checks a panel's query, sort and create policy.
func (c *LinkConfig) Validate() error {
	if c.Find != nil {
		if err := validation.ValidateStruct(c.Find,
			validation.Field(&c.Find.Combine, validation.In(query.CombineUnion)),
		); err != nil {
			return fmt.Errorf("find: %w", err)
		}
	}
	if c.Sort != nil {
		s := c.Sort
		if err := validation.ValidateStruct(s,
			validation.Field(&s.Strategy, validation.In(sorting.Manual, sorting.ByColumn, sorting.ByDate)),
			validation.Field(&s.Direction, validation.In(sorting.Asc, sorting.Desc)),
			validation.Field(&s.Column, validation.When(s.Strategy == sorting.ByColumn, validation.Required)),
		); err != nil {
			return fmt.Errorf("sort: %w", err)
		}
	}
	return nil
}

// Validate checks a create-related action.
func (c *CreateRelated) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Key, validation.Required),
		validation.Field(&c.TargetType, validation.Required),
	)
}

// Validate checks a frontmatter field declaration.
func (f *FrontmatterField) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Type, validation.Required, validation.In("entity")),
	)
}
