package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SourceFile is one row of the ingestion ledger.
type SourceFile struct {
	File           string
	SourceID       string
	ContentHash    string
	EmbeddingModel string
	ChunkCount     int
	FactCount      int
	IngestedAt     string
}

// SourceStore tracks which files have been ingested, with what content
// hash and embedding model.
type SourceStore struct {
	db *DB
}

// NewSourceStore creates a new source ledger store
func NewSourceStore(db *DB) *SourceStore {
	return &SourceStore{db: db}
}

// Get returns the ledger entry for a file of one source, or nil when that
// source has never ingested the file. Entries are keyed by (source_id,
// file): the same relative path under two sources has two independent
// ledger rows.
func (s *SourceStore) Get(sourceID, file string) (*SourceFile, error) {
	var sf SourceFile
	err := s.db.sqlDB.QueryRow(`
		SELECT file, source_id, content_hash, embedding_model, chunk_count, fact_count, ingested_at
		FROM source_files WHERE source_id = ? AND file = ?
	`, sourceID, file).Scan(&sf.File, &sf.SourceID, &sf.ContentHash, &sf.EmbeddingModel, &sf.ChunkCount, &sf.FactCount, &sf.IngestedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get source file: %w", err)
	}
	return &sf, nil
}

// Record writes the ledger entry for a file inside the given transaction.
// Called only after the chunk and fact replaces for the file succeeded, so
// a partially-ingested file is never marked done.
func (s *SourceStore) Record(tx *sql.Tx, sf SourceFile) error {
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO source_files
			(file, source_id, content_hash, embedding_model, chunk_count, fact_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sf.File, sf.SourceID, sf.ContentHash, sf.EmbeddingModel, sf.ChunkCount, sf.FactCount,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record source file: %w", err)
	}
	return nil
}

// List returns all ledger entries, ordered by source then file.
func (s *SourceStore) List() ([]SourceFile, error) {
	rows, err := s.db.sqlDB.Query(`
		SELECT file, source_id, content_hash, embedding_model, chunk_count, fact_count, ingested_at
		FROM source_files ORDER BY source_id, file
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list source files: %w", err)
	}
	defer rows.Close()

	var out []SourceFile
	for rows.Next() {
		var sf SourceFile
		if err := rows.Scan(&sf.File, &sf.SourceID, &sf.ContentHash, &sf.EmbeddingModel, &sf.ChunkCount, &sf.FactCount, &sf.IngestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source file: %w", err)
		}
		out = append(out, sf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source files: %w", err)
	}

	return out, nil
}
