package query

import (
	"sort"

	"go.uber.org/zap"

	"github.com/marcopeg/mondo-sub000/internal/corpus"
	"github.com/marcopeg/mondo-sub000/internal/links"
	"github.com/marcopeg/mondo-sub000/internal/model"
)

// Evaluator runs clauses against one corpus snapshot. It never mutates the
// corpus and is safe for concurrent use.
type Evaluator struct {
	corpus corpus.Corpus
	canon  *links.Canonicalizer
	log    *zap.Logger
}

// NewEvaluator returns an Evaluator over c. A nil logger discards output.
func NewEvaluator(c corpus.Corpus, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{corpus: c, canon: links.New(c), log: log}
}

// Evaluate runs every clause for host and unions the results in clause
// order. No note appears twice.
func (e *Evaluator) Evaluate(host model.Note, clauses []Clause) []model.Note {
	run := e.newRun(host)
	out := newNoteSet()
	for _, clause := range clauses {
		for _, n := range run.clause(clause) {
			out.add(n)
		}
	}
	return out.notes
}

// EvaluateClause runs a single clause for host.
func (e *Evaluator) EvaluateClause(host model.Note, clause Clause) []model.Note {
	return e.newRun(host).clause(clause)
}

// run is the state of one evaluation: the host and the lazily built
// backlink indexes, keyed by property then by canonical target.
type run struct {
	e         *Evaluator
	host      model.Note
	notes     []model.Note
	backlinks map[string]map[string][]int
}

func (e *Evaluator) newRun(host model.Note) *run {
	return &run{
		e:         e,
		host:      host,
		notes:     e.corpus.Notes(),
		backlinks: map[string]map[string][]int{},
	}
}

func (r *run) clause(c Clause) []model.Note {
	var working []model.Note
	discovered := false

	for _, step := range c.Steps {
		anchors := working
		if !discovered {
			anchors = []model.Note{r.host}
		}

		switch s := step.(type) {
		case In:
			working = r.each(anchors, func(a model.Note) []model.Note {
				return r.referencing(a, s.Properties, func(n model.Note) bool {
					return len(s.Types) == 0 || n.HasType(s.Types)
				})
			})
			discovered = true
		case Out:
			working = r.each(anchors, func(a model.Note) []model.Note {
				return r.referenced(a, s.Properties, func(n model.Note) bool {
					return len(s.Types) == 0 || n.HasType(s.Types)
				})
			})
			discovered = true
		case NotIn:
			keep := func(n model.Note) bool {
				return len(s.Types) == 0 || !n.HasType(s.Types)
			}
			working = r.each(anchors, func(a model.Note) []model.Note {
				found := r.referencing(a, s.Properties, keep)
				return append(found, r.referenced(a, s.Properties, keep)...)
			})
			discovered = true
		case Unique:
			working = dedupe(working)
		case Not:
			working = r.withoutHost(working)
		case Invalid:
			r.e.log.Warn("ignoring invalid query step",
				zap.String("step", s.Reason),
				zap.String("host", r.host.ID))
		default:
			r.e.log.Warn("ignoring unknown query step",
				zap.String("step", String(step)),
				zap.String("host", r.host.ID))
		}
	}
	return dedupe(working)
}

// each applies discover to every anchor and unions the results.
func (r *run) each(anchors []model.Note, discover func(model.Note) []model.Note) []model.Note {
	out := newNoteSet()
	for _, a := range anchors {
		for _, n := range discover(a) {
			out.add(n)
		}
	}
	return out.notes
}

// referencing returns, in corpus order, the notes whose properties hold a
// reference canonicalizing to anchor.
func (r *run) referencing(anchor model.Note, props []string, keep func(model.Note) bool) []model.Note {
	if len(props) == 0 {
		props = []string{anyProperty}
	}
	var idx []int
	for _, prop := range props {
		idx = append(idx, r.backlinkIndex(prop)[anchor.ID]...)
	}
	sort.Ints(idx)

	var out []model.Note
	last := -1
	for _, i := range idx {
		if i == last {
			continue
		}
		last = i
		if n := r.notes[i]; keep(n) {
			out = append(out, n)
		}
	}
	return out
}

// referenced returns the existing notes that anchor's properties point at,
// in the order they are written.
func (r *run) referenced(anchor model.Note, props []string, keep func(model.Note) bool) []model.Note {
	var out []model.Note
	for _, v := range propertyValues(anchor, props) {
		for _, id := range r.e.canon.References(v, anchor.ID) {
			n, found := r.e.corpus.Lookup(id)
			if found && keep(n) {
				out = append(out, n)
			}
		}
	}
	return out
}

func (r *run) backlinkIndex(prop string) map[string][]int {
	if idx, ok := r.backlinks[prop]; ok {
		return idx
	}
	idx := map[string][]int{}
	props := []string{prop}
	if prop == anyProperty {
		props = nil
	}
	for i, n := range r.notes {
		for _, v := range propertyValues(n, props) {
			for _, target := range r.e.canon.References(v, n.ID) {
				idx[target] = append(idx[target], i)
			}
		}
	}
	r.backlinks[prop] = idx
	return idx
}

// anyProperty keys the index built over every property of every note.
const anyProperty = ""

// propertyValues returns the values of props on n, or of every property in
// key order when props is empty. The identity keys are never link sources.
func propertyValues(n model.Note, props []string) []any {
	if len(props) == 0 {
		keys := make([]string, 0, len(n.Metadata))
		for k := range n.Metadata {
			if k != model.TypeKey && k != model.LegacyTypeKey {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		props = keys
	}
	out := make([]any, 0, len(props))
	for _, prop := range props {
		if v, ok := n.Get(prop); ok {
			out = append(out, v)
		}
	}
	return out
}

func (r *run) withoutHost(notes []model.Note) []model.Note {
	out := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.ID != r.host.ID {
			out = append(out, n)
		}
	}
	return out
}

func dedupe(notes []model.Note) []model.Note {
	set := newNoteSet()
	for _, n := range notes {
		set.add(n)
	}
	return set.notes
}

// noteSet is an insertion-ordered set of notes keyed by ID.
type noteSet struct {
	seen  map[string]struct{}
	notes []model.Note
}

func newNoteSet() *noteSet {
	return &noteSet{seen: map[string]struct{}{}, notes: []model.Note{}}
}

func (s *noteSet) add(n model.Note) {
	if _, dup := s.seen[n.ID]; dup {
		return
	}
	s.seen[n.ID] = struct{}{}
	s.notes = append(s.notes, n)
}
