package textindex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/drdoc/drdoc/internal/chunker"
)

// Index is a keyword index over chunk text. It complements vector search
// with exact-term recall: identifiers like "/swap" or "429" that embeddings
// blur are findable here.
type Index struct {
	idx bleve.Index
}

// chunkDoc is the indexed representation of a chunk.
type chunkDoc struct {
	Content string `json:"content"`
	File    string `json:"file"`
	Title   string `json:"title"`
}

// Hit is one keyword search result.
type Hit struct {
	ChunkID string
	File    string
	Score   float64
}

// Open opens the index at dir, creating it if it does not exist.
func Open(dir string) (*Index, error) {
	idx, err := bleve.Open(dir)
	if err == bleve.ErrorIndexPathDoesNotExist {
		if mkErr := os.MkdirAll(filepath.Dir(dir), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create text index dir: %w", mkErr)
		}
		idx, err = bleve.New(dir, buildIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open text index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Close closes the index
func (i *Index) Close() error {
	return i.idx.Close()
}

// ReplaceChunks deletes the old chunk ids for a file and indexes the new
// chunks, in one batch.
func (i *Index) ReplaceChunks(oldIDs []string, chunks []chunker.Chunk) error {
	batch := i.idx.NewBatch()
	for _, id := range oldIDs {
		batch.Delete(id)
	}
	for _, c := range chunks {
		doc := chunkDoc{Content: c.Text, File: c.File, Title: c.Title}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := i.idx.Batch(batch); err != nil {
		return fmt.Errorf("apply index batch: %w", err)
	}
	return nil
}

// Search runs a match query over content, title and file, title boosted
// above body text.
func (i *Index) Search(queryText string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	contentQuery := bleve.NewMatchQuery(queryText)
	contentQuery.SetField("content")
	contentQuery.SetBoost(1.0)
	titleQuery := bleve.NewMatchQuery(queryText)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)
	fileQuery := bleve.NewMatchQuery(queryText)
	fileQuery.SetField("file")
	fileQuery.SetBoost(1.5)

	disjunction := bleve.NewDisjunctionQuery([]blevequery.Query{contentQuery, titleQuery, fileQuery}...)

	req := bleve.NewSearchRequestOptions(disjunction, topK, 0, false)
	req.Fields = []string{"file"}

	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search text index: %w", err)
	}

	var hits []Hit
	for _, hit := range res.Hits {
		file, _ := hit.Fields["file"].(string)
		hits = append(hits, Hit{
			ChunkID: hit.ID,
			File:    file,
			Score:   hit.Score,
		})
	}
	return hits, nil
}

// Count returns the number of indexed chunks
func (i *Index) Count() (uint64, error) {
	return i.idx.DocCount()
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	fileField := bleve.NewTextFieldMapping()
	fileField.Store = true
	fileField.Index = true
	docMapping.AddFieldMappingsAt("file", fileField)

	titleField := bleve.NewTextFieldMapping()
	titleField.Store = true
	titleField.Index = true
	docMapping.AddFieldMappingsAt("title", titleField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
