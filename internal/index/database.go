// Package index caches note metadata in SQLite so a corpus snapshot can be
// loaded without reparsing every file.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Database is the SQLite database handle.
type Database struct {
	db  *sql.DB
	log *zap.Logger
}

// ErrIndexLocked indicates another process is rebuilding the index.
var ErrIndexLocked = errors.New("index is locked for rebuild")

// StateDir is the vault directory the database lives in.
const StateDir = ".mondo"

// CurrentDBVersion is the current database schema version.
const CurrentDBVersion = 1

// DB returns the underlying sql.DB for advanced queries.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Open opens or creates the database at <vault>/.mondo/index.db. A nil
// logger discards output.
func Open(vaultPath string, log *zap.Logger) (*Database, error) {
	dbDir := filepath.Join(vaultPath, StateDir)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", StateDir, err)
	}
	return open(filepath.Join(dbDir, "index.db"), log)
}

// OpenInMemory opens an in-memory database (for testing).
func OpenInMemory(log *zap.Logger) (*Database, error) {
	return open(":memory:", log)
}

func open(dsn string, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	d := &Database{db: db, log: log.Named("index")}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}

// initialize creates the database schema, dropping tables written by an
// incompatible version.
func (d *Database) initialize() error {
	if _, err := d.db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}
	var version string
	err := d.db.QueryRow(`SELECT value FROM meta WHERE key = 'version'`).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read database version: %w", err)
	}
	if version != "" && version != fmt.Sprint(CurrentDBVersion) {
		d.log.Info("dropping index written by another version", zap.String("version", version))
		if _, err := d.db.Exec(`DROP TABLE IF EXISTS notes`); err != nil {
			return fmt.Errorf("failed to reset index: %w", err)
		}
	}

	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;

		CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created INTEGER NOT NULL,   -- Unix nanoseconds
			mtime INTEGER NOT NULL      -- File modification time, Unix nanoseconds
		);

		CREATE INDEX IF NOT EXISTS idx_notes_type ON notes(type);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	_, err = d.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`,
		fmt.Sprint(CurrentDBVersion))
	if err != nil {
		return fmt.Errorf("failed to set database version: %w", err)
	}
	return nil
}
