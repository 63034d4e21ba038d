package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInClause(t *testing.T) {
	ph, args := InClause([]string{"a.md", "b.md", "c.md"})
	assert.Equal(t, "?, ?, ?", ph)
	assert.Equal(t, []any{"a.md", "b.md", "c.md"}, args)

	ph, args = InClause[string](nil)
	assert.Equal(t, "NULL", ph)
	assert.Empty(t, args)
}

func TestChunks(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Chunks(items, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, Chunks(items, 0))
	assert.Empty(t, Chunks([]int{}, 3))
}
