package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcopeg/mondo-sub000/internal/index"
	"github.com/marcopeg/mondo-sub000/internal/testutil"
	"github.com/marcopeg/mondo-sub000/internal/vault"
)

type recorder struct {
	mu       sync.Mutex
	batches  [][]string
	entities int
}

func (r *recorder) onChange(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, ids)
}

func (r *recorder) onEntities() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities++
}

func (r *recorder) snapshot() ([][]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...), r.entities
}

func newTestWatcher(t *testing.T) (*testutil.TestVault, *Watcher, *index.Database, *recorder) {
	t.Helper()
	v := testutil.NewTestVault(t).
		WithEntities(testutil.CompanyPeopleEntities()).
		WithNote("H.md", map[string]any{"type": "company"}, "").
		Build()
	store, err := vault.Open(v.Path, vault.Options{})
	require.NoError(t, err)
	db, err := index.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rec := &recorder{}
	w, err := New(Config{
		Store:            store,
		Database:         db,
		EntitiesFile:     filepath.Join(v.Path, testutil.EntitiesFile),
		DebounceDelay:    10 * time.Millisecond,
		OnChange:         rec.onChange,
		OnEntitiesChange: rec.onEntities,
	})
	require.NoError(t, err)
	return v, w, db, rec
}

func TestNewRequiresStoreAndDatabase(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestProcessPendingDebounces(t *testing.T) {
	_, w, db, rec := newTestWatcher(t)
	ctx := context.Background()

	w.schedule("H.md", false)
	w.processPending(ctx, time.Now())
	batches, _ := rec.snapshot()
	assert.Empty(t, batches, "not yet past the debounce delay")

	w.processPending(ctx, time.Now().Add(time.Second))
	batches, _ = rec.snapshot()
	assert.Equal(t, [][]string{{"H.md"}}, batches)

	_, ok, err := db.Get(ctx, "H.md")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProcessPendingRemovesDeletedNotes(t *testing.T) {
	v, w, db, rec := newTestWatcher(t)
	ctx := context.Background()

	require.NoError(t, w.ReindexFile(ctx, "H.md"))
	require.NoError(t, os.Remove(filepath.Join(v.Path, "H.md")))

	// A write event for a file that is already gone still removes it.
	w.schedule("H.md", false)
	w.processPending(ctx, time.Now().Add(time.Second))

	_, ok, err := db.Get(ctx, "H.md")
	require.NoError(t, err)
	assert.False(t, ok)
	batches, _ := rec.snapshot()
	assert.Equal(t, [][]string{{"H.md"}}, batches)
}

func TestEntitiesFileChangeNotifies(t *testing.T) {
	_, w, _, rec := newTestWatcher(t)

	w.schedule(w.entitiesFile, false)
	w.processPending(context.Background(), time.Now().Add(time.Second))

	batches, entities := rec.snapshot()
	assert.Empty(t, batches)
	assert.Equal(t, 1, entities)
}

func TestStartReindexesWrittenNotes(t *testing.T) {
	v, w, db, rec := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.MkdirAll(filepath.Join(v.Path, "people"), 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(v.Path, "people", "bob.md"), []byte("---\ntype: person\n---\n"), 0o644))

	assert.Eventually(t, func() bool {
		_, ok, err := db.Get(context.Background(), "people/bob.md")
		return err == nil && ok
	}, 5*time.Second, 20*time.Millisecond)

	batches, _ := rec.snapshot()
	assert.NotEmpty(t, batches)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
