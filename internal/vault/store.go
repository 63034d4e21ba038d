// Package vault is the filesystem note store: a directory of markdown files
// with YAML frontmatter. It provides the corpus snapshot the relationship
// engine reads and the per-file atomic writes it mutates through.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/marcopeg/mondo-sub000/internal/corpus"
	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/parser"
	"github.com/marcopeg/mondo-sub000/internal/paths"
)

var (
	// ErrNoteNotFound is returned when a note ID names no file.
	ErrNoteNotFound = errors.New("note not found")

	// ErrNoteExists is returned when every candidate name for a new note is
	// taken.
	ErrNoteExists = errors.New("note already exists")
)

// maxNameAttempts bounds the "-1", "-2", … suffixes tried for a new note.
const maxNameAttempts = 1000

// Options configures a Store.
type Options struct {
	// Extension is the note file extension. Defaults to ".md".
	Extension string

	// Logger receives debug output for writes. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Store reads and writes notes under a vault root.
type Store struct {
	root  string
	ext   string
	log   *zap.Logger
	locks *keyedMutex
}

// Open returns a Store rooted at root, which must be an existing directory.
func Open(root string, opts Options) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault %s is not a directory", root)
	}
	if opts.Extension == "" {
		opts.Extension = model.DefaultExtension
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		root:  abs,
		ext:   opts.Extension,
		log:   opts.Logger.Named("vault"),
		locks: newKeyedMutex(),
	}, nil
}

// Root returns the absolute vault path.
func (s *Store) Root() string { return s.root }

// Extension returns the note file extension.
func (s *Store) Extension() string { return s.ext }

// Snapshot reads every note into an immutable corpus. Files that fail to
// parse are logged and skipped.
func (s *Store) Snapshot(ctx context.Context) (*corpus.Memory, error) {
	var notes []model.Note
	err := s.Walk(ctx, func(f File) error {
		n, err := s.readFile(f)
		if err != nil {
			s.log.Warn("skipping unreadable note", zap.String("id", f.ID), zap.Error(err))
			return nil
		}
		notes = append(notes, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return corpus.NewMemory(notes), nil
}

// ReadNote reads and parses a single note.
func (s *Store) ReadNote(ctx context.Context, id string) (model.Note, error) {
	if err := ctx.Err(); err != nil {
		return model.Note{}, err
	}
	f, err := s.stat(id)
	if err != nil {
		return model.Note{}, err
	}
	return s.readFile(f)
}

// ListNotesByType returns the notes of the given type in path order.
func (s *Store) ListNotesByType(ctx context.Context, typ string) ([]model.Note, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ByType(typ), nil
}

// ReadMetadata returns a note's frontmatter.
func (s *Store) ReadMetadata(ctx context.Context, id string) (map[string]any, error) {
	n, err := s.ReadNote(ctx, id)
	if err != nil {
		return nil, err
	}
	return n.Metadata, nil
}

// WriteMetadataAtomic applies mutate to a note's frontmatter and writes the
// file back through a temp file and rename. Writers to the same note are
// serialised; nothing is written when mutate leaves the metadata unchanged.
func (s *Store) WriteMetadataAtomic(ctx context.Context, id string, mutate func(map[string]any) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.file(id)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(full)
	defer unlock()

	content, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", id, ErrNoteNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", id, err)
	}
	updated, changed, err := parser.Update(string(content), mutate)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", id, err)
	}
	if !changed {
		s.log.Debug("metadata unchanged", zap.String("id", id))
		return nil
	}
	if err := writeFileAtomic(full, []byte(updated), 0); err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}
	s.log.Debug("metadata written", zap.String("id", id))
	return nil
}

// CreateNote writes a new note. It never overwrites: when id is taken, "-1",
// "-2", … are appended to the file name. The returned note carries the ID
// actually used.
func (s *Store) CreateNote(ctx context.Context, id, content string) (model.Note, error) {
	if err := ctx.Err(); err != nil {
		return model.Note{}, err
	}
	id = paths.NormalizeRelPath(id)
	if !paths.HasExtension(id, s.ext) {
		id += s.ext
	}
	full, err := s.file(id)
	if err != nil {
		return model.Note{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return model.Note{}, fmt.Errorf("failed to create directory: %w", err)
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		candidate := id
		if attempt > 0 {
			candidate = paths.WithSuffix(id, attempt)
		}
		candidateFile, err := s.file(candidate)
		if err != nil {
			return model.Note{}, err
		}
		err = createExclusive(candidateFile, []byte(content))
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return model.Note{}, fmt.Errorf("failed to create %s: %w", candidate, err)
		}
		s.log.Debug("note created", zap.String("id", candidate))
		return s.ReadNote(ctx, candidate)
	}
	return model.Note{}, fmt.Errorf("%s: %w", id, ErrNoteExists)
}

// Exists reports whether a note file exists.
func (s *Store) Exists(id string) bool {
	_, err := s.stat(id)
	return err == nil
}

func (s *Store) file(id string) (string, error) {
	return paths.ToFile(s.root, id)
}

func (s *Store) stat(id string) (File, error) {
	full, err := s.file(id)
	if err != nil {
		return File{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, fmt.Errorf("%s: %w", id, ErrNoteNotFound)
		}
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s: %w", id, ErrNoteNotFound)
	}
	return fileFromInfo(paths.NormalizeRelPath(id), full, info), nil
}

func (s *Store) readFile(f File) (model.Note, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return model.Note{}, err
	}
	doc, err := parser.Parse(string(content))
	if err != nil {
		return model.Note{}, err
	}
	n := model.New(f.ID, doc.Metadata)
	n.Body = doc.Body
	n.Created = f.Created
	return n, nil
}

// IDs lists every note ID in path order.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.Walk(ctx, func(f File) error {
		ids = append(ids, f.ID)
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

// IsNoteFile reports whether a vault-relative path is a note the store
// would read.
func (s *Store) IsNoteFile(rel string) bool {
	rel = paths.NormalizeRelPath(rel)
	if !paths.HasExtension(rel, s.ext) {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if SkipDir(part) {
			return false
		}
	}
	return true
}
