package sorting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/marcopeg/mondo-sub000/internal/model"
)

func ids(notes []model.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestManualNeverReorders(t *testing.T) {
	notes := []model.Note{
		model.New("c.md", map[string]any{"show": "A"}),
		model.New("a.md", map[string]any{"show": "C"}),
		model.New("b.md", map[string]any{"show": "B"}),
	}
	got := Sort(notes, Spec{Strategy: Manual, Column: "title", Direction: Desc}, nil)
	assert.Equal(t, []string{"c.md", "a.md", "b.md"}, ids(got))

	got = Sort(notes, Spec{}, nil)
	assert.Equal(t, []string{"c.md", "a.md", "b.md"}, ids(got))
}

func TestColumnNaturalCaseInsensitive(t *testing.T) {
	notes := []model.Note{
		model.New("1.md", map[string]any{"show": "item 10"}),
		model.New("2.md", map[string]any{"show": "Item 2"}),
		model.New("3.md", map[string]any{"show": "apple"}),
		model.New("4.md", map[string]any{"show": "item 1"}),
	}
	got := Sort(notes, Spec{Strategy: ByColumn, Column: "title"}, nil)
	assert.Equal(t, []string{"3.md", "4.md", "2.md", "1.md"}, ids(got))

	got = Sort(notes, Spec{Strategy: ByColumn, Column: "title", Direction: Desc}, nil)
	assert.Equal(t, []string{"1.md", "2.md", "4.md", "3.md"}, ids(got))

	assert.Equal(t, "1.md", notes[0].ID, "input must not be modified")
}

func TestColumnIsStableAndJoinsArrays(t *testing.T) {
	notes := []model.Note{
		model.New("x.md", map[string]any{"tags": []any{"b", "a"}}),
		model.New("y.md", map[string]any{"tags": "a"}),
		model.New("z.md", map[string]any{"tags": []any{"b", "a"}}),
		model.New("w.md", map[string]any{}),
	}
	got := Sort(notes, Spec{Strategy: ByColumn, Column: "tags"}, nil)
	assert.Equal(t, []string{"w.md", "y.md", "x.md", "z.md"}, ids(got))
	assert.Equal(t, "b, a", Text(notes[0], PropertyColumn{Key: "tags"}))
}

func TestColumnUsesDeclaredColumns(t *testing.T) {
	notes := []model.Note{
		model.New("b.md", map[string]any{"date": "2025-02-01"}),
		model.New("a.md", map[string]any{"date": "2025-01-01"}),
	}
	cols := []Column{DateColumn{Label: "When"}}
	got := Sort(notes, Spec{Strategy: ByColumn, Column: "date"}, cols)
	assert.Equal(t, []string{"a.md", "b.md"}, ids(got))
}

func TestDateFallbackChainAndUndatedLast(t *testing.T) {
	created := model.New("created.md", nil)
	created.Created = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	notes := []model.Note{
		model.New("undated.md", nil),
		model.New("date.md", map[string]any{"date": "2025-01-10"}),
		model.New("datetime.md", map[string]any{"datetime": "2025-01-10T09:00"}),
		model.New("withtime.md", map[string]any{"date": "2025-01-10", "time": "18:30"}),
		created,
		model.New("bogus.md", map[string]any{"date": "someday"}),
	}

	desc := Sort(notes, Spec{Strategy: ByDate}, nil)
	assert.Equal(t, []string{"created.md", "withtime.md", "datetime.md", "date.md", "undated.md", "bogus.md"}, ids(desc))

	asc := Sort(notes, Spec{Strategy: ByDate, Direction: Asc}, nil)
	assert.Equal(t, []string{"date.md", "datetime.md", "withtime.md", "created.md", "undated.md", "bogus.md"}, ids(asc))
}

func TestEffectiveDateAcceptsDecodedTimestamps(t *testing.T) {
	ts := time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC)
	got, ok := EffectiveDate(model.New("n.md", map[string]any{"date": ts, "time": "07:15"}))
	require.True(t, ok)
	assert.Equal(t, ts.Add(7*time.Hour+15*time.Minute), got)
}

func TestDecodeColumn(t *testing.T) {
	src := `
- {type: show, label: Name}
- {type: property, key: status}
- {type: attribute, key: owner, label: Owner}
- {type: date}
- {type: type}
- priority
- {type: sparkline}
- {type: property}
`
	var nodes []ColumnNode
	require.NoError(t, yaml.Unmarshal([]byte(src), &nodes))
	require.Len(t, nodes, 8)

	assert.Equal(t, TitleColumn{Label: "Name"}, nodes[0].Column)
	assert.Equal(t, PropertyColumn{Key: "status"}, nodes[1].Column)
	assert.Equal(t, "Owner", nodes[2].Column.Header())
	assert.Equal(t, DateColumn{}, nodes[3].Column)
	assert.Equal(t, TypeColumn{}, nodes[4].Column)
	assert.Equal(t, PropertyColumn{Key: "priority"}, nodes[5].Column)
	assert.IsType(t, InvalidColumn{}, nodes[6].Column)
	assert.IsType(t, InvalidColumn{}, nodes[7].Column)

	assert.Equal(t, "status", nodes[1].Column.Header())
}
