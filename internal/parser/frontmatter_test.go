package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcopeg/mondo-sub000/internal/merge"
)

func TestParse(t *testing.T) {
	doc, err := Parse("---\ntype: person\ncompany: \"[[acme]]\"\ntags: [a, b]\nborn: 1990-04-01\n---\n# Alice\n\nBody text.\n")
	require.NoError(t, err)

	assert.True(t, doc.HasFrontmatter)
	assert.Equal(t, "person", doc.Metadata["type"])
	assert.Equal(t, "[[acme]]", doc.Metadata["company"])
	assert.Equal(t, []any{"a", "b"}, doc.Metadata["tags"])
	assert.Equal(t, "1990-04-01", doc.Metadata["born"])
	assert.Equal(t, "# Alice\n\nBody text.\n", doc.Body)
}

func TestParseWithoutFrontmatter(t *testing.T) {
	for _, content := range []string{"# Just a body\n", "---\nunclosed: true\n", ""} {
		doc, err := Parse(content)
		require.NoError(t, err)
		assert.False(t, doc.HasFrontmatter)
		assert.Empty(t, doc.Metadata)
		assert.Equal(t, content, doc.Body)
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("---\nkey: [unclosed\n---\n")
	assert.Error(t, err)

	_, err = Parse("---\n- a\n- b\n---\n")
	assert.Error(t, err)
}

func TestRenderNoteLeadsWithIdentity(t *testing.T) {
	out, err := RenderNote(map[string]any{
		"company": []any{"[[H]]"},
		"show":    "New Task for Acme",
		"type":    "task",
		"due":     "2026-02-01",
	}, "# New Task for Acme\n")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "---\ntype: task\nshow: New Task for Acme\n"), out)
	assert.Contains(t, out, "due: 2026-02-01\n")
	assert.True(t, strings.HasSuffix(out, "---\n# New Task for Acme\n"), out)
	assert.Less(t, strings.Index(out, "company:"), strings.Index(out, "due:"))

	doc, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, []any{"[[H]]"}, doc.Metadata["company"])
	assert.Equal(t, "2026-02-01", doc.Metadata["due"])
	assert.Equal(t, "# New Task for Acme\n", doc.Body)
}

func TestUpdatePreservesKeyOrderAndBody(t *testing.T) {
	content := "---\nzeta: 1\ntype: task\nalpha: x\n---\nBody\n"
	out, changed, err := Update(content, func(m map[string]any) error {
		merge.AddLink(m, "company", "[[H]]")
		m["alpha"] = "y"
		return nil
	})
	require.NoError(t, err)
	assert.True(t, changed)

	iz, it, ia, ic := strings.Index(out, "zeta:"), strings.Index(out, "type:"), strings.Index(out, "alpha:"), strings.Index(out, "company:")
	assert.True(t, iz < it && it < ia && ia < ic, out)
	assert.True(t, strings.HasSuffix(out, "---\nBody\n"), out)

	doc, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, []any{"[[H]]"}, doc.Metadata["company"])
	assert.Equal(t, "y", doc.Metadata["alpha"])
}

func TestUpdateNoChangeReturnsOriginal(t *testing.T) {
	content := "---\ncompany:   [\"[[H]]\"]   # keep my formatting\n---\nBody"
	out, changed, err := Update(content, func(m map[string]any) error {
		merge.AddLink(m, "company", "[[H]]")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, content, out)
}

func TestUpdateAddsFrontmatterWhenMissing(t *testing.T) {
	out, changed, err := Update("# Title\n", func(m map[string]any) error {
		m["type"] = "note"
		return nil
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "---\ntype: note\n---\n# Title\n", out)
}

func TestUpdatePropagatesMutatorError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := Update("---\na: 1\n---\n", func(map[string]any) error { return boom })
	assert.ErrorIs(t, err, boom)
}
