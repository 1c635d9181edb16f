package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

const (
	// CurrentSchemaVersion is the version of the database schema
	CurrentSchemaVersion = 1
)

// DB manages the SQLite database connection and schema migrations
type DB struct {
	sqlDB *sql.DB
	path  string
}

// Open opens or creates a database at the given path
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode=WAL&_pragma=synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		sqlDB: sqlDB,
		path:  path,
	}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// SQLDB returns the underlying *sql.DB for direct queries
func (db *DB) SQLDB() *sql.DB {
	return db.sqlDB
}

// BeginTx starts a new transaction
func (db *DB) BeginTx() (*sql.Tx, error) {
	return db.sqlDB.Begin()
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error. Per-file replace operations for chunks, facts and the
// ingestion ledger run through one WithTx call so a reader never observes
// a half-updated file.
func (db *DB) WithTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// migrate runs schema migrations
func (db *DB) migrate() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version >= CurrentSchemaVersion {
		return nil
	}

	tx, err := db.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if version == 0 {
		// Fresh install - apply full schema
		schema, err := schemaFS.ReadFile("schema.sql")
		if err != nil {
			return fmt.Errorf("failed to read schema: %w", err)
		}

		if _, err := tx.Exec(string(schema)); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
			CurrentSchemaVersion,
			time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	} else {
		return fmt.Errorf("incremental migrations not yet implemented (current version: %d, target: %d)", version, CurrentSchemaVersion)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var exists int
	if err := db.sqlDB.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	if exists == 0 {
		return 0, nil
	}

	var version int
	if err := db.sqlDB.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}

	return version, nil
}

// Clear removes all data from the database (useful for full re-ingestion)
func (db *DB) Clear() error {
	tx, err := db.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []string{
		"embeddings",
		"chunks",
		"facts",
		"source_files",
	}

	for _, table := range tables {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	return nil
}

// Stats returns database statistics
func (db *DB) Stats() (*DBStats, error) {
	stats := &DBStats{}

	if err := db.sqlDB.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&stats.ChunkCount); err != nil {
		return nil, fmt.Errorf("failed to get chunk count: %w", err)
	}

	if err := db.sqlDB.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&stats.VectorCount); err != nil {
		return nil, fmt.Errorf("failed to get vector count: %w", err)
	}

	if err := db.sqlDB.QueryRow("SELECT COUNT(*) FROM facts").Scan(&stats.FactCount); err != nil {
		return nil, fmt.Errorf("failed to get fact count: %w", err)
	}

	if err := db.sqlDB.QueryRow("SELECT COUNT(*) FROM source_files").Scan(&stats.FileCount); err != nil {
		return nil, fmt.Errorf("failed to get file count: %w", err)
	}

	if info, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = info.Size()
	}

	return stats, nil
}

// DBStats represents database statistics
type DBStats struct {
	ChunkCount  int64
	VectorCount int64
	FactCount   int64
	FileCount   int64
	SizeBytes   int64
}
