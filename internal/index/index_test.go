package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/testutil"
	"github.com/marcopeg/mondo-sub000/internal/vault"
)

func buildVault(t *testing.T) (*testutil.TestVault, *vault.Store, *Database) {
	t.Helper()
	v := testutil.NewTestVault(t).
		WithNote("H.md", map[string]any{"type": "company", "show": "Acme"}, "").
		WithNote("people/bob.md", map[string]any{"type": "person", "company": "[[H]]", "date": "2024-03-01"}, "").
		WithNote("people/alice.md", map[string]any{"type": "person", "company": []any{"[[H]]"}}, "").
		Build()

	store, err := vault.Open(v.Path, vault.Options{})
	require.NoError(t, err)
	db, err := Open(v.Path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return v, store, db
}

func TestRebuildAndSnapshot(t *testing.T) {
	v, store, db := buildVault(t)
	ctx := context.Background()

	res, err := db.Rebuild(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Indexed)
	assert.FileExists(t, filepath.Join(v.Path, ".mondo", "index.db"))

	snap, err := db.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, snap.Len())
	assert.Equal(t, "H.md", snap.Notes()[0].ID)

	bob, ok := snap.Lookup("people/bob.md")
	require.True(t, ok)
	assert.Equal(t, "person", bob.Type)
	assert.Equal(t, "[[H]]", bob.Metadata["company"])
	assert.Equal(t, "2024-03-01", bob.Metadata["date"])
	assert.False(t, bob.Created.IsZero())

	alice, ok := snap.Lookup("people/alice.md")
	require.True(t, ok)
	assert.Equal(t, []any{"[[H]]"}, alice.Metadata["company"])
}

func TestSyncPicksUpChangesAndDeletions(t *testing.T) {
	v, store, db := buildVault(t)
	ctx := context.Background()

	_, err := db.Sync(ctx, store)
	require.NoError(t, err)

	res, err := db.Sync(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, res.Indexed, "unchanged files are not reparsed")

	later := time.Now().Add(time.Minute)
	bob := filepath.Join(v.Path, "people", "bob.md")
	require.NoError(t, os.WriteFile(bob, []byte("---\ntype: person\nshow: Robert\n---\n"), 0o644))
	require.NoError(t, os.Chtimes(bob, later, later))
	require.NoError(t, os.Remove(filepath.Join(v.Path, "people", "alice.md")))

	res, err = db.Sync(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, 1, res.Removed)

	n, ok, err := db.Get(ctx, "people/bob.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Robert", n.Title())

	_, ok, err = db.Get(ctx, "people/alice.md")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncSkipsUnparseableFiles(t *testing.T) {
	v, store, db := buildVault(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(v.Path, "broken.md"), []byte("---\nkey: [unclosed\n---\n"), 0o644))

	res, err := db.Sync(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Indexed)
	assert.Equal(t, []string{"broken.md"}, res.Skipped)

	count, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestUpsertAndDelete(t *testing.T) {
	db, err := OpenInMemory(nil)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	n := model.New("a.md", map[string]any{"type": "task", "tags": []any{"x", "y"}})
	n.Created = created
	require.NoError(t, db.Upsert(ctx, Entry{Note: n, Mtime: created}))

	n.Metadata["show"] = "A"
	require.NoError(t, db.Upsert(ctx, Entry{Note: n, Mtime: created}))

	got, ok, err := db.Get(ctx, "a.md")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", got.Title())
	assert.Equal(t, []any{"x", "y"}, got.Metadata["tags"])
	assert.True(t, created.Equal(got.Created))

	mtimes, err := db.Mtimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a.md": created.UnixNano()}, mtimes)

	require.NoError(t, db.Delete(ctx, "a.md", "missing.md"))
	count, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRebuildFailsWhileLocked(t *testing.T) {
	v, store, db := buildVault(t)

	lock, err := acquireRebuildLock(v.Path)
	require.NoError(t, err)
	defer lock.Release()

	_, err = db.Rebuild(context.Background(), store)
	assert.ErrorIs(t, err, ErrIndexLocked)
}
