package cli

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
	"github.com/marcopeg/mondo-sub000/internal/entity"
	"github.com/marcopeg/mondo-sub000/internal/index"
	"github.com/marcopeg/mondo-sub000/internal/links"
	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/relations"
	"github.com/marcopeg/mondo-sub000/internal/vault"
	"github.com/marcopeg/mondo-sub000/internal/wikilink"
)

// workspace is an opened vault: its store, the metadata index, the entity
// registry and the current corpus snapshot.
type workspace struct {
	store    *vault.Store
	db       *index.Database // nil when the index could not be opened
	registry *entity.Registry
	corpus   *corpus.Memory
	log      *zap.Logger

	entitiesPath string
	skipped      []string
}

// openWorkspace opens the resolved vault, loads its entity configuration
// and takes a snapshot, syncing the index first.
func openWorkspace(ctx context.Context) (*workspace, error) {
	c := getConfig()
	store, err := vault.Open(getVaultPath(), vault.Options{
		Extension: c.NoteExtension(),
		Logger:    logger.Named("vault"),
	})
	if err != nil {
		return nil, fail(ErrVaultNotFound, err, "")
	}

	ws := &workspace{
		store:        store,
		registry:     entity.Default(),
		log:          logger,
		entitiesPath: entitiesPath(store.Root(), c.EntitiesFile),
	}
	if err := ws.loadEntities(); err != nil {
		return nil, err
	}

	db, err := index.Open(store.Root(), logger.Named("index"))
	if err != nil {
		ws.log.Warn("index unavailable, reading the vault directly", zap.Error(err))
	} else {
		ws.db = db
	}
	if err := ws.refresh(ctx); err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

// entitiesPath resolves the entity configuration file: --entities, then
// entities_file from config, then the vault default. Relative paths are
// taken from the vault root.
func entitiesPath(root, configured string) string {
	path := entity.DefaultFile
	switch {
	case entitiesFlag != "":
		path = entitiesFlag
	case configured != "":
		path = configured
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// loadEntities reads the entity configuration into the registry. A missing
// file yields an empty configuration.
func (w *workspace) loadEntities() error {
	cfg, err := entity.Load(w.entitiesPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = entity.NewConfig(), nil
	}
	if err != nil {
		return fail(ErrEntitiesInvalid, err, "Fix the entities file and try again")
	}
	w.registry.Set(cfg)
	return nil
}

// refresh takes a new corpus snapshot, from the index when it is open.
func (w *workspace) refresh(ctx context.Context) error {
	if w.db == nil {
		snap, err := w.store.Snapshot(ctx)
		if err != nil {
			return fail(ErrInternal, err, "")
		}
		w.corpus = snap
		return nil
	}

	res, err := w.db.Sync(ctx, w.store)
	if err != nil {
		return fail(ErrDatabaseError, err, "Run 'mondo reindex' to rebuild the index")
	}
	w.skipped = res.Skipped
	snap, err := w.db.Snapshot(ctx)
	if err != nil {
		return fail(ErrDatabaseError, err, "Run 'mondo reindex' to rebuild the index")
	}
	w.corpus = snap
	return nil
}

// Close releases the index.
func (w *workspace) Close() {
	if w.db != nil {
		_ = w.db.Close()
	}
}

func (w *workspace) entities() *entity.Config {
	return w.registry.Current()
}

func (w *workspace) resolver() *relations.Resolver {
	return relations.NewResolver(w.corpus, w.log.Named("relations"))
}

// note resolves a reference as typed by the user ("alice", "people/alice",
// "[[people/alice]]") to a note in the snapshot.
func (w *workspace) note(ref string) (model.Note, error) {
	id, ok := links.New(w.corpus).WithExtension(w.store.Extension()).Resolved(ref, "")
	if !ok {
		return model.Note{}, fmt.Errorf("%s: %w", ref, vault.ErrNoteNotFound)
	}
	n, _ := w.corpus.Lookup(id)
	return n, nil
}

// warnings reports notes the last refresh could not parse.
func (w *workspace) warnings() []Warning {
	out := make([]Warning, 0, len(w.skipped))
	for _, id := range w.skipped {
		out = append(out, Warning{Code: "NOTE_SKIPPED", Message: "note could not be parsed", Ref: id})
	}
	return out
}

// ambiguousLinks reports the wikilinks in n's metadata whose short name
// matches several notes and was settled by proximity to n.
func (w *workspace) ambiguousLinks(n model.Note) []Warning {
	keys := make([]string, 0, len(n.Metadata))
	for k := range n.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Warning
	for _, key := range keys {
		for _, raw := range model.Strings(n.Metadata[key]) {
			l, ok := wikilink.Parse(raw)
			if !ok || !l.Wrapped {
				continue
			}
			res := w.corpus.Resolve(l.Target, n.ID)
			if !res.Ambiguous {
				continue
			}
			out = append(out, Warning{
				Code: "AMBIGUOUS_LINK",
				Message: fmt.Sprintf("%s: %s matches %s; using %s",
					key, raw, strings.Join(res.Matches, ", "), res.TargetID),
				Ref: n.ID,
			})
		}
	}
	return out
}

// collisionWarnings lists short names shared by several notes in c.
func collisionWarnings(c *corpus.Memory) []Warning {
	var out []Warning
	for _, col := range c.Collisions() {
		out = append(out, Warning{
			Code:    "NAME_COLLISION",
			Message: fmt.Sprintf("%d notes are named %q; short links to it resolve by proximity", len(col.IDs), col.BaseName),
			Ref:     strings.Join(col.IDs, ", "),
		})
	}
	return out
}
