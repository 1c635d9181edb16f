package answer

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/drdoc/drdoc/internal/chunker"
	"github.com/drdoc/drdoc/internal/config"
	"github.com/drdoc/drdoc/internal/facts"
	"github.com/drdoc/drdoc/internal/store"
	"github.com/drdoc/drdoc/internal/textindex"
)

// QueryEmbedder embeds the question with the same model used at ingestion.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher is the vector-store surface the retriever needs.
type ChunkSearcher interface {
	Search(queryVector []float32, topK int, minScore float32) ([]store.ScoredChunk, error)
	GetByIDs(ids []string) ([]chunker.Chunk, error)
}

// FactSearcher is the symbolic-store surface the retriever needs.
type FactSearcher interface {
	Query(predicate, subject, object string) ([]facts.Fact, error)
	SubjectsContaining(predicate, fragment string) ([]facts.Fact, error)
}

// KeywordSearcher is the optional keyword-recall leg.
type KeywordSearcher interface {
	Search(queryText string, topK int) ([]textindex.Hit, error)
}

// Degradation records which branches failed during retrieval. The merger
// caps confidence when the symbolic branch was unavailable, since
// cross-source corroboration is impossible.
type Degradation struct {
	Vector   bool
	Symbolic bool
}

// Keyword-only hits rank as weak vector evidence: exact-term recall worth
// keeping, but never outranking a strong similarity match.
const keywordWeight = 0.5

// Retriever executes vector search and/or symbolic queries per the
// classifier's decision.
type Retriever struct {
	cfg      config.RetrievalConfig
	embedder QueryEmbedder
	chunks   ChunkSearcher
	facts    FactSearcher
	keyword  KeywordSearcher // may be nil
}

// NewRetriever creates a retriever. keyword may be nil to disable the
// keyword-recall leg.
func NewRetriever(cfg config.RetrievalConfig, embedder QueryEmbedder, chunks ChunkSearcher, factSearcher FactSearcher, keyword KeywordSearcher) *Retriever {
	return &Retriever{
		cfg:      cfg,
		embedder: embedder,
		chunks:   chunks,
		facts:    factSearcher,
		keyword:  keyword,
	}
}

// Retrieve gathers evidence for the question per mode. A failing branch
// yields zero items and is flagged in Degradation; only when every
// consulted branch fails does Retrieve return a degraded-service error.
func (r *Retriever) Retrieve(ctx context.Context, question string, mode RetrievalMode) ([]EvidenceItem, Degradation, error) {
	var items []EvidenceItem
	var degraded Degradation
	var branchErr error

	if mode == ModeVector || mode == ModeHybrid {
		vecItems, err := r.retrieveVector(ctx, question)
		if err != nil {
			degraded.Vector = true
			branchErr = err
			log.Printf("answer: vector retrieval failed: %v", err)
		} else {
			items = append(items, vecItems...)
		}
	}

	if mode == ModeSymbolic || mode == ModeHybrid {
		symItems, err := r.retrieveSymbolic(question)
		if err != nil {
			degraded.Symbolic = true
			branchErr = err
			log.Printf("answer: symbolic retrieval failed: %v", err)
		} else {
			items = append(items, symItems...)
		}
	}

	if len(items) == 0 && branchErr != nil {
		return nil, degraded, fmt.Errorf("%w: %v", ErrServiceDegraded, branchErr)
	}

	return items, degraded, nil
}

func (r *Retriever) retrieveVector(ctx context.Context, question string) ([]EvidenceItem, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	scored, err := r.chunks.Search(vec, r.cfg.TopK, r.cfg.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	items := make([]EvidenceItem, 0, len(scored))
	seen := make(map[string]struct{}, len(scored))
	for _, sc := range scored {
		c := sc.Chunk
		items = append(items, EvidenceItem{Origin: OriginVector, Chunk: &c, Score: sc.Score})
		seen[c.ID] = struct{}{}
	}

	if r.keyword != nil {
		keywordItems := r.keywordRecall(question, seen)
		items = append(items, keywordItems...)
	}

	return items, nil
}

// keywordRecall adds chunks the keyword index found that vector search
// missed. Keyword scores are unbounded tf-idf values, so they are
// normalized against the best hit and damped before mixing with cosine
// similarities.
func (r *Retriever) keywordRecall(question string, seen map[string]struct{}) []EvidenceItem {
	hits, err := r.keyword.Search(question, r.cfg.TopK)
	if err != nil {
		// Keyword recall is best-effort; vector evidence stands alone.
		log.Printf("answer: keyword search failed: %v", err)
		return nil
	}
	if len(hits) == 0 {
		return nil
	}

	maxScore := hits[0].Score
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore <= 0 {
		return nil
	}

	var missing []string
	scoreByID := make(map[string]float32, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.ChunkID]; ok {
			continue
		}
		missing = append(missing, h.ChunkID)
		scoreByID[h.ChunkID] = float32(h.Score/maxScore) * keywordWeight
	}
	if len(missing) == 0 {
		return nil
	}

	chunks, err := r.chunks.GetByIDs(missing)
	if err != nil {
		log.Printf("answer: failed to load keyword hits: %v", err)
		return nil
	}

	items := make([]EvidenceItem, 0, len(chunks))
	for i := range chunks {
		c := chunks[i]
		items = append(items, EvidenceItem{Origin: OriginVector, Chunk: &c, Score: scoreByID[c.ID]})
	}
	return items
}

// predicatesFor maps question keywords to the fact predicates worth
// querying. Mirrors the indicator list the classifier uses.
var predicatesFor = []struct {
	keywords   []string
	predicates []string
}{
	{[]string{"error", "status code"}, []string{facts.PredErrorCode}},
	{[]string{"rate limit", "how many requests"}, []string{facts.PredRateLimit, facts.PredTierRateLimit}},
	{[]string{"endpoint"}, []string{facts.PredEndpoint, facts.PredMethod}},
	{[]string{"parameter", "slippage", "gas", "fee"}, []string{facts.PredParam}},
	{[]string{"tier"}, []string{facts.PredTier, facts.PredTierRateLimit}},
	{[]string{"oauth", "security"}, []string{facts.PredSecurityFlow}},
	{[]string{"authentication", "authorization", "api key", "bearer", "jwt"}, []string{facts.PredAuthMethod}},
	{[]string{"performance", "caching", "optimization"}, []string{facts.PredPerformancePattern}},
	{[]string{"monitoring", "logging", "metrics", "observability"}, []string{facts.PredMonitoringConcept}},
}

var pathTokenRe = regexp.MustCompile(`/[a-zA-Z0-9_\-/{}]+`)

func (r *Retriever) retrieveSymbolic(question string) ([]EvidenceItem, error) {
	q := strings.ToLower(question)

	// An endpoint path mentioned in the question narrows every query.
	var fragment string
	if tok := pathTokenRe.FindString(question); tok != "" {
		fragment = strings.TrimRight(tok, "/.,?!")
	}

	var matched []facts.Fact

	if fragment != "" {
		found, err := r.facts.SubjectsContaining("", fragment)
		if err != nil {
			return nil, fmt.Errorf("symbolic query failed: %w", err)
		}
		matched = append(matched, found...)
	}

	for _, group := range predicatesFor {
		hit := false
		for _, kw := range group.keywords {
			if strings.Contains(q, kw) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		for _, pred := range group.predicates {
			var found []facts.Fact
			var err error
			if fragment != "" {
				found, err = r.facts.SubjectsContaining(pred, fragment)
			} else {
				found, err = r.facts.Query(pred, "", "")
			}
			if err != nil {
				return nil, fmt.Errorf("symbolic query failed: %w", err)
			}
			matched = append(matched, found...)
		}
	}

	// Symbolic matches are binary: no thresholding, dedup by tuple+file.
	seen := make(map[string]struct{}, len(matched))
	items := make([]EvidenceItem, 0, len(matched))
	for i := range matched {
		f := matched[i]
		key := f.Key() + "\x00" + f.File
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, EvidenceItem{Origin: OriginSymbolic, Fact: &f, Score: 1})
	}

	return items, nil
}
