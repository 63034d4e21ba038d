// Package paths converts between vault-relative note IDs, file-system paths
// and the slugged file names new notes are written under.
package paths

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	goslug "github.com/gosimple/slug"
)

// ErrPathOutsideVault is returned when a path resolves outside the vault.
var ErrPathOutsideVault = errors.New("path is outside the vault")

// NormalizeRelPath normalizes a vault-relative path-like value:
// OS separators become '/', leading "./" and "/" are trimmed and repeated
// '/' collapse.
func NormalizeRelPath(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// ValidateWithinVault returns ErrPathOutsideVault when target does not lie
// inside vaultPath.
func ValidateWithinVault(vaultPath, target string) error {
	absVault, err := filepath.Abs(vaultPath)
	if err != nil {
		return fmt.Errorf("failed to resolve vault path: %w", err)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	rel, err := filepath.Rel(absVault, absTarget)
	if err != nil {
		return ErrPathOutsideVault
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrPathOutsideVault
	}
	return nil
}

// Slug converts a title to a file-name component.
func Slug(title, ext string) string {
	title = strings.TrimSuffix(strings.TrimSpace(title), ext)
	slugged := goslug.Make(title)
	if slugged == "" {
		slugged = strings.ToLower(strings.ReplaceAll(title, " ", "-"))
	}
	slugged = strings.Trim(strings.ReplaceAll(slugged, "/", "-"), ".")
	if slugged == "" {
		slugged = "untitled"
	}
	return slugged
}

// NoteID builds the ID of a new note: <folder>/<slug(title)><ext>.
func NoteID(folder, title, ext string) string {
	name := Slug(title, ext) + ext
	folder = strings.Trim(NormalizeRelPath(folder), "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// WithSuffix returns id with "-n" inserted before the extension:
// "tasks/call.md", 2 -> "tasks/call-2.md".
func WithSuffix(id string, n int) string {
	ext := path.Ext(id)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(id, ext), n, ext)
}

// HasExtension reports whether name ends with ext.
func HasExtension(name, ext string) bool {
	return ext != "" && strings.HasSuffix(name, ext)
}

// ToFile converts a note ID to an absolute file path under vaultPath and
// rejects IDs that escape the vault.
func ToFile(vaultPath, id string) (string, error) {
	rel := NormalizeRelPath(id)
	if rel == "" {
		return "", fmt.Errorf("empty note id")
	}
	full := filepath.Join(vaultPath, filepath.FromSlash(rel))
	if err := ValidateWithinVault(vaultPath, full); err != nil {
		return "", fmt.Errorf("%s: %w", id, err)
	}
	return full, nil
}

// ToID converts a file path under vaultPath to a note ID.
func ToID(vaultPath, file string) (string, error) {
	rel, err := filepath.Rel(vaultPath, file)
	if err != nil {
		return "", err
	}
	return NormalizeRelPath(rel), nil
}
