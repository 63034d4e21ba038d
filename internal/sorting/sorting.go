// Package sorting orders related notes by a panel's declared strategy.
package sorting

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/marcopeg/mondo-sub000/internal/dates"
	"github.com/marcopeg/mondo-sub000/internal/model"
)

// Strategy selects how notes are ordered.
type Strategy string

const (
	Manual   Strategy = "manual"
	ByColumn Strategy = "column"
	ByDate   Strategy = "date"
)

// Direction is ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Spec is a panel's sort declaration.
type Spec struct {
	Strategy  Strategy  `yaml:"strategy" json:"strategy"`
	Column    string    `yaml:"column,omitempty" json:"column,omitempty"`
	Direction Direction `yaml:"direction,omitempty" json:"direction,omitempty"`
}

// descending applies the strategy's default when no direction is set:
// newest first for dates, ascending otherwise.
func (s Spec) descending() bool {
	switch Direction(strings.ToLower(string(s.Direction))) {
	case Desc:
		return true
	case Asc:
		return false
	}
	return s.Strategy == ByDate
}

// Metadata keys read by the date strategy.
const (
	DateKey     = "date"
	TimeKey     = "time"
	DatetimeKey = "datetime"
)

// EffectiveDate resolves the date a note sorts by: the date property
// (combined with time when present), then the legacy datetime property,
// then the creation time.
func EffectiveDate(n model.Note) (time.Time, bool) {
	if d, ok := n.Get(DateKey); ok {
		clock, _ := n.Get(TimeKey)
		if t, ok := dates.Combine(d, clock); ok {
			return t, true
		}
	}
	if dt, ok := n.Get(DatetimeKey); ok {
		if t, ok := dates.FromValue(dt); ok {
			return t, true
		}
	}
	if !n.Created.IsZero() {
		return n.Created, true
	}
	return time.Time{}, false
}

// Sort returns notes ordered by spec. The input is never modified. Manual
// and unknown strategies keep the input order; every other ordering is
// stable.
func Sort(notes []model.Note, spec Spec, columns []Column) []model.Note {
	out := append([]model.Note(nil), notes...)
	switch Strategy(strings.ToLower(string(spec.Strategy))) {
	case ByColumn:
		sortByColumn(out, Lookup(columns, spec.Column), spec.descending())
	case ByDate:
		sortByDate(out, spec.descending())
	}
	return out
}

func sortByColumn(notes []model.Note, col Column, desc bool) {
	keys := make([]string, len(notes))
	for i, n := range notes {
		keys[i] = Text(n, col)
	}
	order := indexes(len(notes))
	c := collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
	sort.SliceStable(order, func(i, j int) bool {
		cmp := c.CompareString(keys[order[i]], keys[order[j]])
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
	permute(notes, order)
}

func sortByDate(notes []model.Note, desc bool) {
	type key struct {
		t  time.Time
		ok bool
	}
	keys := make([]key, len(notes))
	for i, n := range notes {
		t, ok := EffectiveDate(n)
		keys[i] = key{t, ok}
	}
	order := indexes(len(notes))
	sort.SliceStable(order, func(i, j int) bool {
		a, b := keys[order[i]], keys[order[j]]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false
		}
		if desc {
			return a.t.After(b.t)
		}
		return a.t.Before(b.t)
	})
	permute(notes, order)
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func permute(notes []model.Note, order []int) {
	sorted := make([]model.Note, len(notes))
	for i, idx := range order {
		sorted[i] = notes[idx]
	}
	copy(notes, sorted)
}
