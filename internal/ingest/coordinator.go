package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/drdoc/drdoc/internal/chunker"
	"github.com/drdoc/drdoc/internal/config"
	"github.com/drdoc/drdoc/internal/facts"
	"github.com/drdoc/drdoc/internal/store"
	"github.com/drdoc/drdoc/internal/textindex"
)

// Embedder is the slice of the embedding service the coordinator needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelVersion() string
}

// Report summarizes one ingestion run.
type Report struct {
	ID            string        `json:"id"`
	SourceID      string        `json:"source_id"`
	Root          string        `json:"root"`
	FilesSeen     int           `json:"files_seen"`
	FilesSkipped  int           `json:"files_skipped"`
	FilesFailed   int           `json:"files_failed"`
	ChunksWritten int           `json:"chunks_written"`
	FactsWritten  int           `json:"facts_written"`
	Duration      time.Duration `json:"duration"`
}

// Coordinator drives ingestion: walk the source, skip unchanged files, and
// for each changed file chunk, embed, extract facts and replace all stored
// state for that file atomically.
type Coordinator struct {
	cfg       *config.Config
	db        *store.DB
	chunks    *store.ChunkStore
	factStore *store.FactStore
	sources   *store.SourceStore
	text      *textindex.Index // optional keyword index
	embedder  Embedder
	reporter  ProgressReporter

	// SQLite allows a single writer; embedding runs in parallel but store
	// and keyword-index writes are serialized.
	writeMu sync.Mutex
}

// New creates an ingestion coordinator. text and reporter may be nil.
func New(cfg *config.Config, db *store.DB, text *textindex.Index, embedder Embedder, reporter ProgressReporter) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		db:        db,
		chunks:    store.NewChunkStore(db),
		factStore: store.NewFactStore(db),
		sources:   store.NewSourceStore(db),
		text:      text,
		embedder:  embedder,
		reporter:  reporter,
	}
}

// IngestDir ingests every matching file under root as source sourceID.
// A root pointing at a single file ingests just that file.
func (c *Coordinator) IngestDir(ctx context.Context, sourceID, root string) (*Report, error) {
	start := time.Now()

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source root: %w", err)
	}

	var files []string
	if info.IsDir() {
		files, err = c.listFiles(root)
		if err != nil {
			return nil, fmt.Errorf("failed to list source files: %w", err)
		}
	} else {
		files = []string{filepath.Base(root)}
		root = filepath.Dir(root)
	}

	report := &Report{
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		Root:      root,
		FilesSeen: len(files),
	}

	if c.reporter != nil {
		c.reporter.Start(len(files))
		defer c.reporter.Finish()
	}

	workers := c.cfg.Ingest.MaxWorkers
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var reportMu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range jobs {
				chunksWritten, factsWritten, skipped, err := c.ingestFile(ctx, sourceID, root, rel)

				reportMu.Lock()
				switch {
				case err != nil:
					report.FilesFailed++
					log.Printf("ingest: %s: %v", rel, err)
				case skipped:
					report.FilesSkipped++
				default:
					report.ChunksWritten += chunksWritten
					report.FactsWritten += factsWritten
				}
				reportMu.Unlock()

				if c.reporter != nil {
					c.reporter.Increment()
				}
			}
		}()
	}

	for _, rel := range files {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- rel:
		}
	}
	close(jobs)
	wg.Wait()

	report.Duration = time.Since(start)
	return report, nil
}

// ingestFile processes one file. Returns skipped=true when the ledger shows
// the same content hash and embedding model as last time.
func (c *Coordinator) ingestFile(ctx context.Context, sourceID, root, rel string) (chunksWritten, factsWritten int, skipped bool, err error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	content, err := os.ReadFile(abs)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to read file: %w", err)
	}

	hash := contentHash(content)
	model := c.embedder.ModelVersion()

	prev, err := c.sources.Get(sourceID, rel)
	if err != nil {
		return 0, 0, false, err
	}
	if prev != nil && prev.ContentHash == hash && prev.EmbeddingModel == model {
		return 0, 0, true, nil
	}

	opts := chunker.Options{MaxChars: c.cfg.Ingest.ChunkChars, Overlap: c.cfg.Ingest.Overlap}
	chunks := chunker.Split(sourceID, rel, string(content), opts)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, 0, false, fmt.Errorf("failed to embed chunks: %w", err)
		}
	}

	factList := facts.Extract(rel, string(content))

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	oldIDs, err := c.chunks.ChunkIDsForFile(sourceID, rel)
	if err != nil {
		return 0, 0, false, err
	}

	err = c.db.WithTx(func(tx *sql.Tx) error {
		if err := c.chunks.ReplaceFile(tx, sourceID, rel, chunks, vectors, model); err != nil {
			return err
		}
		if err := c.factStore.ReplaceFile(tx, sourceID, rel, factList); err != nil {
			return err
		}
		return c.sources.Record(tx, store.SourceFile{
			File:           rel,
			SourceID:       sourceID,
			ContentHash:    hash,
			EmbeddingModel: model,
			ChunkCount:     len(chunks),
			FactCount:      len(factList),
		})
	})
	if err != nil {
		return 0, 0, false, err
	}

	if c.text != nil {
		// The keyword index is a derived structure outside the SQLite
		// transaction; a failed update degrades keyword recall for this
		// file but does not invalidate the stores.
		if err := c.text.ReplaceChunks(oldIDs, chunks); err != nil {
			log.Printf("ingest: keyword index update failed for %s: %v", rel, err)
		}
	}

	return len(chunks), len(factList), false, nil
}

// listFiles walks root and returns relative slash paths matching the
// configured include globs minus the exclude globs, sorted by the walk
// order (lexical).
func (c *Coordinator) listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if c.shouldIngest(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Coordinator) shouldIngest(rel string) bool {
	included := false
	for _, pattern := range c.cfg.Ingest.Include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for _, pattern := range c.cfg.Ingest.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return false
		}
		if matched, _ := doublestar.Match(pattern, filepath.Base(rel)); matched {
			return false
		}
	}
	return true
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
