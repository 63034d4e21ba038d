// Package relations wires the query, filter, sort, template and merge
// packages into the two things a user sees: related-items panels and the
// pick-or-create flow that links notes together.
package relations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marcopeg/mondo-sub000/internal/corpus"
	"github.com/marcopeg/mondo-sub000/internal/entity"
	"github.com/marcopeg/mondo-sub000/internal/filter"
	"github.com/marcopeg/mondo-sub000/internal/links"
	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/query"
	"github.com/marcopeg/mondo-sub000/internal/sorting"
)

// Store is the write side of the note store the creation flow mutates.
// Writes are atomic within one file only.
type Store interface {
	CreateNote(ctx context.Context, path, content string) (model.Note, error)
	WriteMetadataAtomic(ctx context.Context, id string, mutate func(map[string]any) error) error
	ReadMetadata(ctx context.Context, id string) (map[string]any, error)
}

var (
	ErrUnknownEntity = errors.New("unknown entity type")
	ErrUnknownLink   = errors.New("unknown panel")
	ErrUnknownField  = errors.New("unknown frontmatter field")
	ErrUnknownAction = errors.New("unknown createRelated action")
)

// Resolver evaluates panels against one corpus snapshot.
type Resolver struct {
	corpus  corpus.Corpus
	queries *query.Evaluator
	filters *filter.Evaluator
	log     *zap.Logger
}

// NewResolver returns a Resolver over c. A nil logger discards output.
func NewResolver(c corpus.Corpus, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		corpus:  c,
		queries: query.NewEvaluator(c, log.Named("query")),
		filters: filter.New(log.Named("filter")),
		log:     log,
	}
}

// Related runs a panel's query for host, then its filter, then its sort.
func (r *Resolver) Related(host model.Note, cfg entity.LinkConfig) []model.Note {
	found := r.queries.Evaluate(host, cfg.Clauses())
	if expr := cfg.FilterExpr(); expr != nil {
		kept := found[:0:0]
		for _, n := range found {
			if r.filters.Matches(n, expr) {
				kept = append(kept, n)
			}
		}
		found = kept
	}
	return sorting.Sort(found, cfg.SortSpec(), cfg.ColumnDefs())
}

// Panel is a rendered related-items panel.
type Panel struct {
	Key       string   `json:"key"`
	Title     string   `json:"title"`
	Headers   []string `json:"headers"`
	Rows      []Row    `json:"rows"`
	CanCreate bool     `json:"can_create"`
}

// Row is one related note with its column cells.
type Row struct {
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	Cells []string `json:"cells"`
}

// Panel evaluates link for host and renders its columns.
func (r *Resolver) Panel(host model.Note, link *entity.Link) Panel {
	columns := link.Config.ColumnDefs()
	p := Panel{
		Key:       link.Key,
		Title:     link.Title,
		Headers:   make([]string, 0, len(columns)),
		CanCreate: link.Config.CanCreate(),
	}
	if p.Title == "" {
		p.Title = link.Key
	}
	for _, c := range columns {
		p.Headers = append(p.Headers, c.Header())
	}
	for _, n := range r.Related(host, link.Config) {
		row := Row{ID: n.ID, Type: n.Type, Cells: make([]string, 0, len(columns))}
		for _, c := range columns {
			row.Cells = append(row.Cells, sorting.Text(n, c))
		}
		p.Rows = append(p.Rows, row)
	}
	return p
}

// Candidates lists the notes a picker may choose from: every note matching
// expr except the host, in corpus order.
func (r *Resolver) Candidates(host model.Note, expr filter.Expr) []model.Note {
	var out []model.Note
	for _, n := range r.corpus.Notes() {
		if n.ID == host.ID {
			continue
		}
		if r.filters.Matches(n, expr) {
			out = append(out, n)
		}
	}
	return out
}

// Plan is everything a Session needs to pick or create a note for a host.
type Plan struct {
	Host model.Note

	// Property is the host property that receives the chosen note's link.
	// Empty when the chosen note links back instead.
	Property string
	Multiple bool

	TargetType string
	Label      string
	Folder     string

	// Title and Attributes are templates rendered against Host.
	Title      string
	Attributes map[string]any

	// LinkProperties are properties on the chosen note that receive a link
	// back to Host.
	LinkProperties  []string
	OpenAfterCreate bool

	Candidates []model.Note

	canon *links.Canonicalizer
}

// PlanForField plans a frontmatter picker for one of host's properties.
func (r *Resolver) PlanForField(cfg *entity.Config, host model.Note, property string) (Plan, error) {
	ent, ok := cfg.Entity(host.Type)
	if !ok {
		return Plan{}, fmt.Errorf("%q: %w", host.Type, ErrUnknownEntity)
	}
	field, ok := ent.Field(property)
	if !ok {
		return Plan{}, fmt.Errorf("%s.%s: %w", ent.Type, property, ErrUnknownField)
	}

	p := r.basePlan(cfg, host, field.TargetTypeFor())
	p.Property = property
	p.Multiple = field.Multiple
	p.Candidates = r.Candidates(host, field.Filter.Expr)
	if field.Create != nil {
		p.applyRecipe(*field.Create)
	}
	return p, nil
}

// PlanForAction plans one of the host entity's createRelated actions.
func (r *Resolver) PlanForAction(cfg *entity.Config, host model.Note, key string) (Plan, error) {
	ent, ok := cfg.Entity(host.Type)
	if !ok {
		return Plan{}, fmt.Errorf("%q: %w", host.Type, ErrUnknownEntity)
	}
	action, ok := ent.CreateRelatedAction(key)
	if !ok {
		return Plan{}, fmt.Errorf("%s.%s: %w", ent.Type, key, ErrUnknownAction)
	}

	p := r.basePlan(cfg, host, action.TargetType)
	if action.Label != "" {
		p.Label = action.Label
	}
	p.Candidates = r.Candidates(host, filter.TypeEq{Type: action.TargetType})
	p.applyRecipe(action.Create)
	return p, nil
}

// PlanForPanel plans the "create new" action of a related panel. With
// referenceCreate the host links to the new note through the panel's
// first property; otherwise the new note links back through every panel
// property.
func (r *Resolver) PlanForPanel(cfg *entity.Config, host model.Note, key string) (Plan, error) {
	ent, ok := cfg.Entity(host.Type)
	if !ok {
		return Plan{}, fmt.Errorf("%q: %w", host.Type, ErrUnknownEntity)
	}
	link, ok := ent.Link(key)
	if !ok {
		return Plan{}, fmt.Errorf("%s.%s: %w", ent.Type, key, ErrUnknownLink)
	}

	lc := link.Config
	p := r.basePlan(cfg, host, lc.TargetType)
	if lc.TargetType != "" {
		p.Candidates = r.Candidates(host, filter.TypeEq{Type: lc.TargetType})
	} else {
		p.Candidates = r.Candidates(host, nil)
	}

	if ce := lc.CreateEntity; ce != nil {
		p.Title = ce.Title
		p.Attributes = ce.Attributes
		if ce.ReferenceCreate && len(lc.Properties) > 0 {
			p.Property = lc.Properties[0]
			p.Multiple = true
			return p, nil
		}
	}
	p.LinkProperties = append([]string(nil), lc.Properties...)
	return p, nil
}

func (r *Resolver) basePlan(cfg *entity.Config, host model.Note, targetType string) Plan {
	targetType = strings.TrimSpace(targetType)
	p := Plan{
		Host:       host,
		TargetType: targetType,
		Label:      targetType,
		Folder:     targetType,
		canon:      links.New(r.corpus),
	}
	if target, ok := cfg.Entity(targetType); ok {
		p.TargetType = target.Type
		p.Label = target.Label()
		p.Folder = target.NoteFolder()
	}
	return p
}

func (p *Plan) applyRecipe(rec entity.Recipe) {
	p.Title = rec.Title
	p.Attributes = rec.Attributes
	p.LinkProperties = append([]string(nil), rec.LinkProperties...)
	p.OpenAfterCreate = rec.OpenAfterCreate
}
