// Package testutil provides reusable test utilities for mondo vault tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marcopeg/mondo-sub000/internal/parser"
)

// EntitiesFile is the vault-relative entity configuration path.
const EntitiesFile = ".mondo/entities.yaml"

// TestVault represents a temporary vault for testing.
type TestVault struct {
	Path     string
	t        *testing.T
	entities string
	files    map[string]string
}

// NewTestVault creates a new test vault builder.
// Call Build() to create the actual vault directory.
func NewTestVault(t *testing.T) *TestVault {
	t.Helper()
	return &TestVault{
		t:     t,
		files: make(map[string]string),
	}
}

// WithEntities sets the .mondo/entities.yaml content for the vault.
func (v *TestVault) WithEntities(yaml string) *TestVault {
	v.entities = yaml
	return v
}

// WithFile adds a file to the vault.
// The path is relative to the vault root.
func (v *TestVault) WithFile(path, content string) *TestVault {
	v.files[path] = content
	return v
}

// WithNote adds a note rendered from a frontmatter map and a body.
func (v *TestVault) WithNote(id string, metadata map[string]any, body string) *TestVault {
	v.t.Helper()
	content, err := parser.RenderNote(metadata, body)
	if err != nil {
		v.t.Fatalf("failed to render note %s: %v", id, err)
	}
	v.files[id] = content
	return v
}

// Build creates the vault directory and all configured files.
// Returns the TestVault for method chaining.
func (v *TestVault) Build() *TestVault {
	v.t.Helper()

	v.Path = v.t.TempDir()

	if v.entities != "" {
		v.writeFile(EntitiesFile, v.entities)
	}
	for path, content := range v.files {
		v.writeFile(path, content)
	}
	return v
}

// writeFile writes a file to the vault, creating directories as needed.
func (v *TestVault) writeFile(relPath, content string) {
	v.t.Helper()
	fullPath := filepath.Join(v.Path, relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		v.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}
}

// ReadFile reads a file from the vault.
// Returns the content as a string.
func (v *TestVault) ReadFile(relPath string) string {
	v.t.Helper()
	fullPath := filepath.Join(v.Path, relPath)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		v.t.Fatalf("failed to read file %s: %v", fullPath, err)
	}
	return string(content)
}

// Metadata parses a note's frontmatter.
func (v *TestVault) Metadata(relPath string) map[string]any {
	v.t.Helper()
	doc, err := parser.Parse(v.ReadFile(relPath))
	if err != nil {
		v.t.Fatalf("failed to parse %s: %v", relPath, err)
	}
	return doc.Metadata
}

// FileExists checks if a file exists in the vault.
func (v *TestVault) FileExists(relPath string) bool {
	v.t.Helper()
	fullPath := filepath.Join(v.Path, relPath)
	_, err := os.Stat(fullPath)
	return err == nil
}

// CompanyPeopleEntities returns an entity configuration with a company
// type whose panels list people and tasks.
func CompanyPeopleEntities() string {
	return `entities:
  company:
    singular: Company
    folder: companies
    links:
      - key: people
        title: People
        config:
          targetType: person
          properties: [company]
          sort: {strategy: column, column: title}
          createEntity: {}
    createRelated:
      - key: task
        targetType: task
        create:
          title: "New Task for {@this.show}"
          attributes:
            company: ["{@this}"]
  person:
    singular: Person
    folder: people
  task:
    singular: Task
    folder: tasks
    frontmatter:
      owner:
        type: entity
        filter: {type: person}
`
}
