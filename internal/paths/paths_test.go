package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRelPath(t *testing.T) {
	assert.Equal(t, "people/alice.md", NormalizeRelPath("./people//alice.md"))
	assert.Equal(t, "a/b", NormalizeRelPath("/a/b"))
	assert.Equal(t, "", NormalizeRelPath("  "))
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"New Task for Acme": "new-task-for-acme",
		"Café Meeting":      "cafe-meeting",
		"notes.md":          "notes",
		"a/b":               "a-b",
		"   ":               "untitled",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in, ".md"), in)
	}
}

func TestNoteID(t *testing.T) {
	assert.Equal(t, "task/new-task-for-acme.md", NoteID("task", "New Task for Acme", ".md"))
	assert.Equal(t, "crm/companies/acme.md", NoteID("/crm/companies/", "Acme", ".md"))
	assert.Equal(t, "acme.md", NoteID("", "Acme", ".md"))
}

func TestWithSuffix(t *testing.T) {
	assert.Equal(t, "tasks/call-2.md", WithSuffix("tasks/call.md", 2))
	assert.Equal(t, "call-1", WithSuffix("call", 1))
}

func TestToFileRejectsEscapes(t *testing.T) {
	vault := t.TempDir()

	full, err := ToFile(vault, "people/alice.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(vault, "people", "alice.md"), full)

	_, err = ToFile(vault, "../outside.md")
	assert.True(t, errors.Is(err, ErrPathOutsideVault))

	_, err = ToFile(vault, "a/../../outside.md")
	assert.True(t, errors.Is(err, ErrPathOutsideVault))

	_, err = ToFile(vault, "")
	assert.Error(t, err)
}

func TestToID(t *testing.T) {
	vault := t.TempDir()
	id, err := ToID(vault, filepath.Join(vault, "people", "alice.md"))
	require.NoError(t, err)
	assert.Equal(t, "people/alice.md", id)
}
