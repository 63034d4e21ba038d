package index

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/vault"
)

// Source is the note store an index is built from.
type Source interface {
	Root() string
	Walk(ctx context.Context, fn func(vault.File) error) error
	ReadNote(ctx context.Context, id string) (model.Note, error)
}

// SyncResult reports what a Sync or Rebuild changed.
type SyncResult struct {
	Indexed int      `json:"indexed"`
	Removed int      `json:"removed"`
	Skipped []string `json:"skipped,omitempty"`
}

// Sync reindexes files whose mtime changed since they were indexed and
// removes notes whose files are gone.
func (d *Database) Sync(ctx context.Context, src Source) (SyncResult, error) {
	indexed, err := d.Mtimes(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	return d.refresh(ctx, src, func(f vault.File) bool {
		mtime, ok := indexed[f.ID]
		return !ok || mtime != f.Mtime.UnixNano()
	}, indexed)
}

// Rebuild reparses every file. It holds the cross-process index lock and
// fails with ErrIndexLocked when another rebuild is running.
func (d *Database) Rebuild(ctx context.Context, src Source) (SyncResult, error) {
	lock, err := acquireRebuildLock(src.Root())
	if err != nil {
		return SyncResult{}, err
	}
	defer lock.Release()

	indexed, err := d.Mtimes(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	return d.refresh(ctx, src, func(vault.File) bool { return true }, indexed)
}

func (d *Database) refresh(ctx context.Context, src Source, stale func(vault.File) bool, indexed map[string]int64) (SyncResult, error) {
	var changed []vault.File
	seen := map[string]bool{}
	err := src.Walk(ctx, func(f vault.File) error {
		seen[f.ID] = true
		if stale(f) {
			changed = append(changed, f)
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}

	entries, skipped, err := readConcurrently(ctx, src, changed, d.log)
	if err != nil {
		return SyncResult{}, err
	}

	var removed []string
	for id := range indexed {
		if !seen[id] {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return SyncResult{}, err
	}
	defer tx.Rollback()
	if err := upsertEntries(ctx, tx, entries); err != nil {
		return SyncResult{}, err
	}
	if err := deleteIDs(ctx, tx, append(removed, skipped...)); err != nil {
		return SyncResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return SyncResult{}, err
	}

	d.log.Debug("index refreshed",
		zap.Int("indexed", len(entries)),
		zap.Int("removed", len(removed)),
		zap.Int("skipped", len(skipped)))
	return SyncResult{Indexed: len(entries), Removed: len(removed), Skipped: skipped}, nil
}

// readConcurrently parses files with a bounded worker group. Files that
// fail to parse are skipped and reported, not fatal.
func readConcurrently(ctx context.Context, src Source, files []vault.File, log *zap.Logger) ([]Entry, []string, error) {
	entries := make([]Entry, len(files))
	ok := make([]bool, len(files))
	var (
		mu      sync.Mutex
		skipped []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		g.Go(func() error {
			n, err := src.ReadNote(gctx, f.ID)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn("skipping unreadable note", zap.String("id", f.ID), zap.Error(err))
				mu.Lock()
				skipped = append(skipped, f.ID)
				mu.Unlock()
				return nil
			}
			entries[i] = Entry{Note: n, Mtime: f.Mtime}
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := entries[:0]
	for i, e := range entries {
		if ok[i] {
			out = append(out, e)
		}
	}
	sort.Strings(skipped)
	return out, skipped, nil
}
