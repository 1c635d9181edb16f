package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/drdoc/drdoc/internal/chunker"
	"github.com/drdoc/drdoc/internal/embedding"
)

// ChunkStore persists chunks and their vectors and answers nearest-neighbor
// queries by cosine similarity.
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new chunk store
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// ScoredChunk is a chunk with its similarity to a query vector.
type ScoredChunk struct {
	Chunk chunker.Chunk
	Score float32
}

// ReplaceFile replaces all chunks and vectors for a file of one source
// inside the given transaction. Scoping the delete to (source_id, file)
// keeps two sources sharing a relative path from clobbering each other.
// Passing the transaction in lets the ingestion coordinator combine the
// chunk replace, fact replace and ledger update into one atomic unit per
// file.
func (s *ChunkStore) ReplaceFile(tx *sql.Tx, sourceID, file string, chunks []chunker.Chunk, vectors [][]float32, model string) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	if _, err := tx.Exec(
		"DELETE FROM embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE source_id = ? AND file = ?)", sourceID, file,
	); err != nil {
		return fmt.Errorf("failed to delete old vectors: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM chunks WHERE source_id = ? AND file = ?", sourceID, file); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	if len(chunks) == 0 {
		return nil
	}

	chunkStmt, err := tx.Prepare(`
		INSERT INTO chunks (id, source_id, file, title, text, line_start, line_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer chunkStmt.Close()

	vecStmt, err := tx.Prepare(`
		INSERT INTO embeddings (chunk_id, vector, dimension, model, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare vector insert: %w", err)
	}
	defer vecStmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)

	for i, c := range chunks {
		if _, err := chunkStmt.Exec(c.ID, c.SourceID, c.File, c.Title, c.Text, c.LineStart, c.LineEnd, now); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}

		vector := vectors[i]
		if len(vector) == 0 {
			continue
		}
		blob := vectorToBlob(vector)
		if _, err := vecStmt.Exec(c.ID, blob, len(vector), model, now); err != nil {
			return fmt.Errorf("failed to insert vector for %s: %w", c.ID, err)
		}
	}

	return nil
}

// Search returns the topK chunks nearest to the query vector, ordered by
// descending cosine similarity with ties broken by chunk id. Chunks below
// minScore are dropped. An empty store yields an empty result, not an error.
func (s *ChunkStore) Search(queryVector []float32, topK int, minScore float32) ([]ScoredChunk, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}

	// Full scan over stored vectors. Corpora here are documentation sets,
	// small enough that ANN indexing is not worth the complexity.
	rows, err := s.db.sqlDB.Query(`
		SELECT c.id, c.source_id, c.file, c.title, c.text, c.line_start, c.line_end, e.vector
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	results := make([]ScoredChunk, 0, topK)

	for rows.Next() {
		var c chunker.Chunk
		var blob []byte

		if err := rows.Scan(&c.ID, &c.SourceID, &c.File, &c.Title, &c.Text, &c.LineStart, &c.LineEnd, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		vector, err := blobToVector(blob)
		if err != nil {
			continue // skip malformed vectors
		}
		if len(vector) != len(queryVector) {
			continue
		}

		score := embedding.Similarity(queryVector, vector)
		if score < minScore {
			continue
		}

		results = append(results, ScoredChunk{Chunk: c, Score: score})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// GetByIDs loads chunks by id, skipping ids that no longer exist. Used to
// hydrate keyword-index hits.
func (s *ChunkStore) GetByIDs(ids []string) ([]chunker.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.sqlDB.Query(fmt.Sprintf(`
		SELECT id, source_id, file, title, text, line_start, line_end
		FROM chunks WHERE id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]chunker.Chunk, len(ids))
	for rows.Next() {
		var c chunker.Chunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.File, &c.Title, &c.Text, &c.LineStart, &c.LineEnd); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	// Preserve the caller's id order.
	out := make([]chunker.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ChunkIDsForFile returns all chunk ids stored for a file of one source.
// The keyword index uses this to drop stale entries before reindexing.
func (s *ChunkStore) ChunkIDsForFile(sourceID, file string) ([]string, error) {
	rows, err := s.db.sqlDB.Query("SELECT id FROM chunks WHERE source_id = ? AND file = ?", sourceID, file)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk ids: %w", err)
	}
	return ids, nil
}

// Count returns the number of chunks stored
func (s *ChunkStore) Count() (int, error) {
	var count int
	if err := s.db.sqlDB.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Helper functions for vector serialization

// vectorToBlob converts a float32 slice to a little-endian binary blob
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], bits)
	}
	return blob
}

// blobToVector converts a binary blob to a float32 slice
func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}

	vector := make([]float32, len(blob)/4)
	for i := 0; i < len(vector); i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		vector[i] = math.Float32frombits(bits)
	}

	return vector, nil
}
