package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcopeg/mondo-sub000/internal/corpus"
	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/sqlutil"
)

// Entry is one indexed note with the file mtime it was read at.
type Entry struct {
	Note  model.Note
	Mtime time.Time
}

// Upsert writes or replaces entries in one transaction.
func (d *Database) Upsert(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertEntries(ctx, tx, entries); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertEntries(ctx context.Context, tx *sql.Tx, entries []Entry) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notes (id, type, metadata, created, mtime) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			metadata = excluded.metadata,
			created = excluded.created,
			mtime = excluded.mtime`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		metadata, err := json.Marshal(e.Note.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", e.Note.ID, err)
		}
		_, err = stmt.ExecContext(ctx, e.Note.ID, e.Note.Type, string(metadata),
			e.Note.Created.UnixNano(), e.Mtime.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", e.Note.ID, err)
		}
	}
	return nil
}

// Delete removes notes from the index.
func (d *Database) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteIDs(ctx, tx, ids); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteIDs(ctx context.Context, tx *sql.Tx, ids []string) error {
	for _, chunk := range sqlutil.Chunks(ids, sqlutil.MaxVariables) {
		placeholders, args := sqlutil.InClause(chunk)
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("failed to remove notes: %w", err)
		}
	}
	return nil
}

// Get returns one indexed note.
func (d *Database) Get(ctx context.Context, id string) (model.Note, bool, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, metadata, created FROM notes WHERE id = ?`, id)
	if err != nil {
		return model.Note{}, false, err
	}
	notes, err := sqlutil.ScanAll(rows, scanNote)
	if err != nil || len(notes) == 0 {
		return model.Note{}, false, err
	}
	return notes[0], true, nil
}

// Snapshot loads every indexed note, ordered by ID, into a corpus.
func (d *Database) Snapshot(ctx context.Context) (*corpus.Memory, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, metadata, created FROM notes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	notes, err := sqlutil.ScanAll(rows, scanNote)
	if err != nil {
		return nil, err
	}
	return corpus.NewMemory(notes), nil
}

// Mtimes returns the indexed file mtime of every note.
func (d *Database) Mtimes(ctx context.Context) (map[string]int64, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, mtime FROM notes`)
	if err != nil {
		return nil, err
	}
	type pair struct {
		id    string
		mtime int64
	}
	pairs, err := sqlutil.ScanAll(rows, func(rows *sql.Rows) (pair, error) {
		var p pair
		err := rows.Scan(&p.id, &p.mtime)
		return p, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(pairs))
	for _, p := range pairs {
		out[p.id] = p.mtime
	}
	return out, nil
}

// Count returns the number of indexed notes.
func (d *Database) Count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n)
	return n, err
}

func scanNote(rows *sql.Rows) (model.Note, error) {
	var id, raw string
	var created int64
	if err := rows.Scan(&id, &raw, &created); err != nil {
		return model.Note{}, err
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return model.Note{}, fmt.Errorf("corrupt metadata for %s: %w", id, err)
	}
	n := model.New(id, metadata)
	if created != 0 {
		n.Created = time.Unix(0, created)
	}
	return n, nil
}
