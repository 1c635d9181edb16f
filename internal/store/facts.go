package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/drdoc/drdoc/internal/facts"
)

// FactStore persists extracted facts and answers exact and partial-tuple
// queries over them.
type FactStore struct {
	db *DB
}

// NewFactStore creates a new fact store
func NewFactStore(db *DB) *FactStore {
	return &FactStore{db: db}
}

// ReplaceFile replaces all facts for a file of one source inside the given
// transaction. The delete is scoped to (source_id, file) so another source
// with the same relative path keeps its facts.
func (s *FactStore) ReplaceFile(tx *sql.Tx, sourceID, file string, factList []facts.Fact) error {
	if _, err := tx.Exec("DELETE FROM facts WHERE source_id = ? AND file = ?", sourceID, file); err != nil {
		return fmt.Errorf("failed to delete old facts: %w", err)
	}

	if len(factList) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO facts (predicate, subject, object, detail, file, source_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare fact insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)

	for _, f := range factList {
		if _, err := stmt.Exec(f.Predicate, f.Subject, f.Object, f.Detail, file, sourceID, now); err != nil {
			return fmt.Errorf("failed to insert fact %s: %w", f.String(), err)
		}
	}

	return nil
}

// Query performs exact or partial-tuple matching. Empty arguments act as
// wildcards; an empty predicate matches every predicate. Results are
// ordered by file then tuple for reproducible output. An unknown predicate
// yields an empty list, not an error.
func (s *FactStore) Query(predicate, subject, object string) ([]facts.Fact, error) {
	query := "SELECT predicate, subject, object, detail, file FROM facts WHERE 1=1"
	var args []any

	if predicate != "" {
		query += " AND predicate = ?"
		args = append(args, predicate)
	}
	if subject != "" {
		query += " AND subject = ?"
		args = append(args, subject)
	}
	if object != "" {
		query += " AND object = ?"
		args = append(args, object)
	}
	query += " ORDER BY file, predicate, subject, object, detail"

	rows, err := s.db.sqlDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	var out []facts.Fact
	for rows.Next() {
		var f facts.Fact
		if err := rows.Scan(&f.Predicate, &f.Subject, &f.Object, &f.Detail, &f.File); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facts: %w", err)
	}

	return out, nil
}

// SubjectsContaining returns facts whose subject contains the given
// substring, case-insensitive. Lets a question mentioning "/swap" find
// facts for that endpoint without exact tokenization.
func (s *FactStore) SubjectsContaining(predicate, fragment string) ([]facts.Fact, error) {
	if fragment == "" {
		return nil, nil
	}

	query := `
		SELECT predicate, subject, object, detail, file FROM facts
		WHERE subject LIKE ? COLLATE NOCASE
	`
	args := []any{"%" + fragment + "%"}
	if predicate != "" {
		query += " AND predicate = ?"
		args = append(args, predicate)
	}
	query += " ORDER BY file, predicate, subject, object, detail"

	rows, err := s.db.sqlDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	var out []facts.Fact
	for rows.Next() {
		var f facts.Fact
		if err := rows.Scan(&f.Predicate, &f.Subject, &f.Object, &f.Detail, &f.File); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facts: %w", err)
	}

	return out, nil
}

// Count returns the number of facts stored
func (s *FactStore) Count() (int, error) {
	var count int
	if err := s.db.sqlDB.QueryRow("SELECT COUNT(*) FROM facts").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count facts: %w", err)
	}
	return count, nil
}
