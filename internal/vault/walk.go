package vault

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marcopeg/mondo-sub000/internal/paths"
)

// StateDir is the vault directory holding mondo's own files.
const StateDir = ".mondo"

// File is a note file found by Walk.
type File struct {
	// ID is the vault-relative slash path, e.g. "people/alice.md".
	ID string
	// Path is the absolute file path.
	Path    string
	Mtime   time.Time
	Created time.Time
}

// Walk calls fn for every note file in lexical path order. It skips the
// state and trash directories and every hidden directory.
func (s *Store) Walk(ctx context.Context, fn func(File) error) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == s.root {
				return err
			}
			s.log.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != s.root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), s.ext) {
			return nil
		}
		if err := paths.ValidateWithinVault(s.root, path); err != nil {
			if errors.Is(err, paths.ErrPathOutsideVault) {
				return nil
			}
			return err
		}

		info, err := d.Info()
		if err != nil {
			s.log.Warn("skipping unreadable note", zap.String("path", path), zap.Error(err))
			return nil
		}
		id, err := paths.ToID(s.root, path)
		if err != nil {
			return err
		}
		return fn(fileFromInfo(id, path, info))
	})
}

// SkipDir reports whether a directory name is never searched for notes.
func SkipDir(name string) bool {
	return name == StateDir || name == ".trash" || strings.HasPrefix(name, ".")
}

// fileFromInfo builds a File. Creation time is not portable across
// platforms, so the modification time stands in for it.
func fileFromInfo(id, path string, info os.FileInfo) File {
	return File{
		ID:      id,
		Path:    path,
		Mtime:   info.ModTime(),
		Created: info.ModTime(),
	}
}
