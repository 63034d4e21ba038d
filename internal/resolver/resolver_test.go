package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRelative(t *testing.T) {
	ids := []string{
		"people/freya.md",
		"people/thor.md",
		"projects/bifrost.md",
		"clients/acme/freya.md",
		"Acme.md",
	}

	r := New(ids, ".md")

	t.Run("full path without extension", func(t *testing.T) {
		assert.Equal(t, "people/freya.md", r.ResolveRelative("people/freya", "Acme.md").TargetID)
	})

	t.Run("full path with extension", func(t *testing.T) {
		assert.Equal(t, "projects/bifrost.md", r.ResolveRelative("projects/bifrost.md", "Acme.md").TargetID)
	})

	t.Run("short name", func(t *testing.T) {
		assert.Equal(t, "projects/bifrost.md", r.ResolveRelative("bifrost", "people/thor.md").TargetID)
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t, "Acme.md", r.ResolveRelative("acme", "people/thor.md").TargetID)
	})

	t.Run("partial path suffix", func(t *testing.T) {
		assert.Equal(t, "clients/acme/freya.md", r.ResolveRelative("acme/freya", "people/thor.md").TargetID)
	})

	t.Run("relative to source folder", func(t *testing.T) {
		assert.Equal(t, "people/thor.md", r.ResolveRelative("./thor", "people/freya.md").TargetID)
	})

	t.Run("not found", func(t *testing.T) {
		res := r.ResolveRelative("nonexistent", "Acme.md")
		assert.Empty(t, res.TargetID)
	})

	t.Run("empty target", func(t *testing.T) {
		assert.Empty(t, r.ResolveRelative("  ", "Acme.md").TargetID)
	})
}

func TestResolveRelativeAmbiguousPrefersSourceFolder(t *testing.T) {
	r := New([]string{"people/freya.md", "clients/acme/freya.md"}, ".md")

	res := r.ResolveRelative("freya", "clients/acme/meeting.md")
	require.True(t, res.Ambiguous)
	assert.Len(t, res.Matches, 2)
	assert.Equal(t, "clients/acme/freya.md", res.TargetID)

	res = r.ResolveRelative("freya", "daily/2025-01-01.md")
	assert.Equal(t, "people/freya.md", res.TargetID, "shortest path wins outside both folders")
}

func TestFindCollisions(t *testing.T) {
	r := New([]string{"a/x.md", "b/x.md", "c/y.md"}, ".md")
	collisions := r.FindCollisions()
	require.Len(t, collisions, 1)
	assert.Equal(t, "x", collisions[0].BaseName)
	assert.Equal(t, []string{"a/x.md", "b/x.md"}, collisions[0].IDs)
}
