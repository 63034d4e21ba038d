package entity

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcopeg/mondo-sub000/internal/filter"
	"github.com/marcopeg/mondo-sub000/internal/query"
	"github.com/marcopeg/mondo-sub000/internal/sorting"
)

const sampleConfig = `
entities:
  company:
    name: Companies
    singular: Company
    icon: building
    folder: crm/companies
    frontmatter:
      owner:
        type: entity
        filter: {type: person}
    createRelated:
      - key: task
        label: New task
        targetType: task
        create:
          title: "New Task for {@this.show}"
          attributes:
            company: ["{@this}"]
          linkProperties: company
          openAfterCreate: true
    links:
      - key: people
        config:
          targetType: person
          properties: [company]
          sort: {strategy: column, column: title}
          createEntity: {referenceCreate: false}
      - type: backlinks
        key: teammates
        config:
          find:
            query:
              - steps:
                  - out: {property: team, type: team}
                  - in: {property: team, type: person}
                  - not: host
                  - unique: true
            combine: union
          filter: {participants.length: {gt: 1}}
          columns:
            - {type: show}
            - {type: property, key: status}
  person: {}
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, []string{"company", "person"}, cfg.Types())

	company, ok := cfg.Entity(" Company ")
	require.True(t, ok)
	assert.Equal(t, "company", company.Type)
	assert.Equal(t, "Company", company.Label())
	assert.Equal(t, "crm/companies", company.NoteFolder())

	person, ok := cfg.Entity("person")
	require.True(t, ok)
	assert.Equal(t, "person", person.NoteFolder())
	assert.Equal(t, "person", person.Label())

	owner, ok := company.Field("owner")
	require.True(t, ok)
	assert.Equal(t, "person", owner.TargetTypeFor())
	assert.Equal(t, filter.TypeEq{Type: "person"}, owner.Filter.Expr)

	action, ok := company.CreateRelatedAction("task")
	require.True(t, ok)
	assert.Equal(t, StringList{"company"}, action.Create.LinkProperties)
	assert.Equal(t, []any{"{@this}"}, action.Create.Attributes["company"])
	assert.True(t, action.Create.OpenAfterCreate)

	people, ok := company.Link("people")
	require.True(t, ok)
	assert.Equal(t, LinkTypeBacklinks, people.Type)
	assert.Equal(t, []query.Clause{{Steps: []query.Step{
		query.In{Properties: []string{"company"}, Types: []string{"person"}},
	}}}, people.Config.Clauses())
	assert.Equal(t, sorting.Spec{Strategy: sorting.ByColumn, Column: "title"}, people.Config.SortSpec())
	assert.True(t, people.Config.CanCreate())
	assert.Nil(t, people.Config.FilterExpr())
	assert.Equal(t, []sorting.Column{sorting.TitleColumn{}}, people.Config.ColumnDefs())

	teammates, ok := company.Link("teammates")
	require.True(t, ok)
	clauses := teammates.Config.Clauses()
	require.Len(t, clauses, 1)
	assert.Len(t, clauses[0].Steps, 4)
	assert.Equal(t, query.Not{Marker: query.MarkerHost}, clauses[0].Steps[2])
	assert.Equal(t, filter.PathCompare{Path: "participants.length", Op: filter.OpGt, Value: 1}, teammates.Config.FilterExpr())
	assert.Equal(t, sorting.Spec{Strategy: sorting.Manual}, teammates.Config.SortSpec())
	assert.Equal(t, []sorting.Column{sorting.TitleColumn{}, sorting.PropertyColumn{Key: "status"}}, teammates.Config.ColumnDefs())
	assert.False(t, teammates.Config.CanCreate())
}

func TestParseKeepsMalformedStepsAsInvalid(t *testing.T) {
	cfg, err := Parse([]byte(`
entities:
  company:
    links:
      - key: odd
        config:
          find:
            query:
              - steps: [{sideways: {property: x}}, unique]
          filter: {score: {between: [1, 2]}}
`))
	require.NoError(t, err)
	link, _ := cfg.Entities["company"].Link("odd")
	steps := link.Config.Clauses()[0].Steps
	assert.IsType(t, query.Invalid{}, steps[0])
	assert.Equal(t, query.Unique{}, steps[1])
	assert.IsType(t, filter.Invalid{}, link.Config.FilterExpr())
}

func TestParseRejectsStructuralMistakes(t *testing.T) {
	cases := map[string]string{
		"panel without key":     "entities: {a: {links: [{config: {}}]}}",
		"unknown panel type":    "entities: {a: {links: [{key: k, type: graph}]}}",
		"action without target": "entities: {a: {createRelated: [{key: k}]}}",
		"duplicate action":      "entities: {a: {createRelated: [{key: k, targetType: t}, {key: k, targetType: t}]}}",
		"bad combine":           "entities: {a: {links: [{key: k, config: {find: {query: [], combine: intersect}}}]}}",
		"bad sort":              "entities: {a: {links: [{key: k, config: {sort: {strategy: random}}}]}}",
		"column sort no column": "entities: {a: {links: [{key: k, config: {sort: {strategy: column}}}]}}",
		"bad field type":        "entities: {a: {frontmatter: {x: {type: text}}}}",
		"not yaml":              "entities: [",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadVault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadVault(dir)
	require.NoError(t, err)
	assert.Empty(t, cfg.Types())

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".mondo"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(sampleConfig), 0o644))
	cfg, err = LoadVault(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"company", "person"}, cfg.Types())

	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("entities: ["), 0o644))
	_, err = LoadVault(dir)
	assert.Error(t, err)
}

func TestRegistrySetAndSubscribe(t *testing.T) {
	r := NewRegistry(nil)
	assert.NotNil(t, r.Current())

	var got []*Config
	unsubscribe := r.Subscribe(func(c *Config) { got = append(got, c) })

	first := NewConfig()
	r.Set(first)
	assert.Same(t, first, r.Current())
	require.Len(t, got, 1)
	assert.Same(t, first, got[0])

	unsubscribe()
	unsubscribe()
	r.Set(NewConfig())
	assert.Len(t, got, 1)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := r.Subscribe(func(*Config) {})
			r.Set(NewConfig())
			unsub()
		}()
		go func() {
			defer wg.Done()
			_ = r.Current().Types()
		}()
	}
	wg.Wait()
}
