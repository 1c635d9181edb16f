package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/drdoc/drdoc/internal/chunker"
	"github.com/drdoc/drdoc/internal/config"
	"github.com/drdoc/drdoc/internal/facts"
	"github.com/drdoc/drdoc/internal/store"
	"github.com/drdoc/drdoc/internal/textindex"
)

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		TopK:          5,
		MinSimilarity: 0.25,
		LowConfidence: 0.45,
		MaxEvidence:   10,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		question string
		hint     RetrievalMode
		want     RetrievalMode
	}{
		{"What OAuth flows are supported?", "", ModeHybrid},
		{"Explain how retries work", "", ModeVector},
		{"What error codes can POST /swap return?", "", ModeHybrid},
		{"What is the rate limit for the free tier?", "", ModeHybrid},
		{"Summarize the architecture", "", ModeVector},
		{"What OAuth flows are supported?", ModeVector, ModeVector},
		{"anything", ModeSymbolic, ModeSymbolic},
	}
	for _, tt := range tests {
		if got := Classify(tt.question, tt.hint); got != tt.want {
			t.Errorf("Classify(%q, %q) = %q, want %q", tt.question, tt.hint, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"", "vector", "symbolic", "hybrid"} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q) unexpected error: %v", s, err)
		}
	}
	if _, err := ParseMode("graph"); err == nil {
		t.Error("ParseMode(\"graph\") expected error")
	}
}

func chunkItem(id, file, text string, score float32) EvidenceItem {
	return EvidenceItem{
		Origin: OriginVector,
		Chunk:  &chunker.Chunk{ID: id, File: file, Text: text},
		Score:  score,
	}
}

func factItem(pred, subject, object, file string) EvidenceItem {
	return EvidenceItem{
		Origin: OriginSymbolic,
		Fact:   &facts.Fact{Predicate: pred, Subject: subject, Object: object, File: file},
		Score:  1,
	}
}

func TestMerge_SymbolicOutranksVector(t *testing.T) {
	items := []EvidenceItem{
		chunkItem("chk:a", "a.md", "swap returns 400 on bad input", 0.95),
		factItem(facts.PredErrorCode, "/swap", "400", "b.md"),
	}

	merged, _, _ := Merge(items, Degradation{}, testRetrievalConfig())
	if len(merged) != 2 {
		t.Fatalf("expected 2 items, got %d", len(merged))
	}
	if merged[0].Origin != OriginSymbolic {
		t.Errorf("expected symbolic item first, got %v", merged[0].Origin)
	}
}

func TestMerge_Deterministic(t *testing.T) {
	a := chunkItem("chk:a", "a.md", "alpha", 0.5)
	b := chunkItem("chk:b", "b.md", "beta", 0.5)
	f := factItem(facts.PredEndpoint, "/swap", "", "c.md")

	m1, c1, _ := Merge([]EvidenceItem{a, b, f}, Degradation{}, testRetrievalConfig())
	m2, c2, _ := Merge([]EvidenceItem{f, b, a}, Degradation{}, testRetrievalConfig())

	if c1 != c2 {
		t.Errorf("confidence differs across input orders: %v vs %v", c1, c2)
	}
	if len(m1) != len(m2) {
		t.Fatalf("length differs: %d vs %d", len(m1), len(m2))
	}
	for i := range m1 {
		if m1[i].ID() != m2[i].ID() {
			t.Errorf("item %d differs: %q vs %q", i, m1[i].ID(), m2[i].ID())
		}
	}
	if m1[1].Chunk.File != "a.md" || m1[2].Chunk.File != "b.md" {
		t.Errorf("equal-score chunks not ordered by file: %q, %q", m1[1].Chunk.File, m1[2].Chunk.File)
	}
}

func TestMerge_TruncatesToMaxEvidence(t *testing.T) {
	cfg := testRetrievalConfig()
	cfg.MaxEvidence = 3

	var items []EvidenceItem
	for i := 0; i < 10; i++ {
		items = append(items, chunkItem(fmt.Sprintf("chk:%d", i), "a.md", "text", 0.9))
	}

	merged, _, _ := Merge(items, Degradation{}, cfg)
	if len(merged) != 3 {
		t.Errorf("expected 3 items after truncation, got %d", len(merged))
	}
}

func TestMerge_ConfidenceTiers(t *testing.T) {
	cfg := testRetrievalConfig()

	tests := []struct {
		name     string
		items    []EvidenceItem
		degraded Degradation
		want     float32
	}{
		{
			name:  "no evidence",
			items: nil,
			want:  ConfidenceNone,
		},
		{
			name: "corroborated by shared file",
			items: []EvidenceItem{
				factItem(facts.PredErrorCode, "/swap", "400", "api.md"),
				chunkItem("chk:1", "api.md", "the swap endpoint", 0.8),
			},
			want: ConfidenceHigh,
		},
		{
			name: "corroborated by subject mention",
			items: []EvidenceItem{
				factItem(facts.PredErrorCode, "/swap", "400", "facts.md"),
				chunkItem("chk:1", "guide.md", "POST /swap rejects malformed bodies", 0.8),
			},
			want: ConfidenceHigh,
		},
		{
			name: "both sources without corroboration",
			items: []EvidenceItem{
				factItem(facts.PredRateLimit, "/users", "100", "limits.md"),
				chunkItem("chk:1", "intro.md", "welcome to the api", 0.8),
			},
			want: ConfidenceMedium,
		},
		{
			name: "symbolic only",
			items: []EvidenceItem{
				factItem(facts.PredErrorCode, "/swap", "400", "api.md"),
			},
			want: ConfidenceMedium,
		},
		{
			name: "strong vector only",
			items: []EvidenceItem{
				chunkItem("chk:1", "a.md", "text", 0.7),
			},
			want: ConfidenceMedium,
		},
		{
			name: "weak vector only",
			items: []EvidenceItem{
				chunkItem("chk:1", "a.md", "text", 0.3),
				chunkItem("chk:2", "b.md", "text", 0.28),
			},
			want: ConfidenceLow,
		},
		{
			name: "degraded symbolic caps at medium",
			items: []EvidenceItem{
				chunkItem("chk:1", "a.md", "text", 0.9),
			},
			degraded: Degradation{Symbolic: true},
			want:     ConfidenceMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got, _ := Merge(tt.items, tt.degraded, cfg)
			if got != tt.want {
				t.Errorf("confidence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMerge_CorroborationNeverLowersConfidence(t *testing.T) {
	cfg := testRetrievalConfig()
	base := []EvidenceItem{factItem(facts.PredErrorCode, "/swap", "400", "api.md")}

	_, before, _ := Merge(base, Degradation{}, cfg)

	withCorroboration := append(base, chunkItem("chk:1", "api.md", "the swap endpoint", 0.8))
	_, after, _ := Merge(withCorroboration, Degradation{}, cfg)

	if after < before {
		t.Errorf("confidence dropped after corroborating match: %v -> %v", before, after)
	}
}

type fakeCompletion struct {
	calls int
	text  string
	err   error
	sys   string
	user  string
}

func (f *fakeCompletion) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.sys = system
	f.user = user
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func TestCompose_NoEvidenceSkipsCompletion(t *testing.T) {
	fc := &fakeCompletion{text: "should not be used"}
	composer := NewComposer(fc)

	ans, err := composer.Compose(context.Background(), "anything?", nil, ConfidenceNone, ModeHybrid, "no evidence")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if fc.calls != 0 {
		t.Errorf("completion called %d times, want 0", fc.calls)
	}
	if ans.Text != insufficientInfoAnswer {
		t.Errorf("unexpected answer text: %q", ans.Text)
	}
	if ans.Confidence != ConfidenceNone {
		t.Errorf("confidence = %v, want 0", ans.Confidence)
	}
	if len(ans.Citations) != 0 {
		t.Errorf("expected no citations, got %v", ans.Citations)
	}
}

func TestCompose_CitationsAndGrounding(t *testing.T) {
	fc := &fakeCompletion{text: "POST /swap returns 400 Bad Request."}
	composer := NewComposer(fc)

	evidence := []EvidenceItem{
		factItem(facts.PredErrorCode, "/swap", "400", "api.md"),
		chunkItem("chk:1", "api.md", "POST /swap validates the body", 0.8),
		chunkItem("chk:2", "guide.md", "see the swap guide", 0.5),
	}

	ans, err := composer.Compose(context.Background(), "What error codes can POST /swap return?", evidence, ConfidenceHigh, ModeHybrid, "corroborated")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if fc.calls != 1 {
		t.Fatalf("completion called %d times, want 1", fc.calls)
	}
	if !strings.Contains(fc.user, "(error-code /swap 400)") {
		t.Errorf("prompt missing fact evidence:\n%s", fc.user)
	}
	if !strings.Contains(fc.user, "POST /swap validates the body") {
		t.Errorf("prompt missing passage evidence:\n%s", fc.user)
	}

	want := []string{"api.md", "guide.md"}
	if len(ans.Citations) != len(want) {
		t.Fatalf("citations = %v, want %v", ans.Citations, want)
	}
	for i := range want {
		if ans.Citations[i] != want[i] {
			t.Errorf("citation %d = %q, want %q", i, ans.Citations[i], want[i])
		}
	}
}

func TestCompose_CompletionFailureIsDegraded(t *testing.T) {
	fc := &fakeCompletion{err: errors.New("upstream timeout")}
	composer := NewComposer(fc)

	evidence := []EvidenceItem{chunkItem("chk:1", "a.md", "text", 0.8)}
	_, err := composer.Compose(context.Background(), "question?", evidence, ConfidenceMedium, ModeVector, "")
	if !errors.Is(err, ErrServiceDegraded) {
		t.Errorf("expected ErrServiceDegraded, got %v", err)
	}
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeChunkSearcher struct {
	scored []store.ScoredChunk
	byID   map[string]chunker.Chunk
	err    error
}

func (f *fakeChunkSearcher) Search(queryVector []float32, topK int, minScore float32) ([]store.ScoredChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scored, nil
}

func (f *fakeChunkSearcher) GetByIDs(ids []string) ([]chunker.Chunk, error) {
	var out []chunker.Chunk
	for _, id := range ids {
		if c, ok := f.byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeFactSearcher struct {
	byPredicate map[string][]facts.Fact
	err         error

	queried []string
}

func (f *fakeFactSearcher) Query(predicate, subject, object string) ([]facts.Fact, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queried = append(f.queried, predicate)
	return f.byPredicate[predicate], nil
}

func (f *fakeFactSearcher) SubjectsContaining(predicate, fragment string) ([]facts.Fact, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queried = append(f.queried, predicate)
	var out []facts.Fact
	for pred, list := range f.byPredicate {
		if predicate != "" && pred != predicate {
			continue
		}
		for _, fact := range list {
			if strings.Contains(strings.ToLower(fact.Subject), strings.ToLower(fragment)) {
				out = append(out, fact)
			}
		}
	}
	return out, nil
}

type fakeKeyword struct {
	hits []textindex.Hit
	err  error
}

func (f *fakeKeyword) Search(queryText string, topK int) ([]textindex.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func swapChunk() chunker.Chunk {
	return chunker.Chunk{ID: "chk:api.md:1", File: "api.md", Text: "POST /swap validates the request body"}
}

func TestRetrieve_VectorModeEmbedFailureIsDegraded(t *testing.T) {
	r := NewRetriever(testRetrievalConfig(),
		&fakeEmbedder{err: errors.New("embed service down")},
		&fakeChunkSearcher{},
		&fakeFactSearcher{},
		nil)

	_, _, err := r.Retrieve(context.Background(), "Explain how retries work", ModeVector)
	if !errors.Is(err, ErrServiceDegraded) {
		t.Errorf("expected ErrServiceDegraded, got %v", err)
	}
}

func TestRetrieve_HybridSurvivesSymbolicFailure(t *testing.T) {
	chunks := &fakeChunkSearcher{
		scored: []store.ScoredChunk{{Chunk: swapChunk(), Score: 0.8}},
	}
	r := NewRetriever(testRetrievalConfig(),
		&fakeEmbedder{vec: []float32{1, 0}},
		chunks,
		&fakeFactSearcher{err: errors.New("facts table locked")},
		nil)

	items, degraded, err := r.Retrieve(context.Background(), "What error codes can POST /swap return?", ModeHybrid)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !degraded.Symbolic {
		t.Error("expected symbolic branch flagged as degraded")
	}
	if len(items) != 1 || items[0].Origin != OriginVector {
		t.Fatalf("expected one vector item, got %v", items)
	}
}

func TestRetrieve_HybridAllBranchesFailedIsDegraded(t *testing.T) {
	r := NewRetriever(testRetrievalConfig(),
		&fakeEmbedder{err: errors.New("embed down")},
		&fakeChunkSearcher{},
		&fakeFactSearcher{err: errors.New("facts down")},
		nil)

	_, _, err := r.Retrieve(context.Background(), "What error codes exist?", ModeHybrid)
	if !errors.Is(err, ErrServiceDegraded) {
		t.Errorf("expected ErrServiceDegraded, got %v", err)
	}
}

func TestRetrieve_SymbolicMapsKeywordsToPredicates(t *testing.T) {
	factSearcher := &fakeFactSearcher{
		byPredicate: map[string][]facts.Fact{
			facts.PredErrorCode: {
				{Predicate: facts.PredErrorCode, Subject: "/swap", Object: "400", Detail: "Bad Request", File: "api.md"},
			},
		},
	}
	r := NewRetriever(testRetrievalConfig(), &fakeEmbedder{vec: []float32{1}}, &fakeChunkSearcher{}, factSearcher, nil)

	items, _, err := r.Retrieve(context.Background(), "What error codes can POST /swap return?", ModeSymbolic)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(items))
	}
	if items[0].Fact.Object != "400" {
		t.Errorf("unexpected fact: %+v", items[0].Fact)
	}

	sawErrorCode := false
	for _, pred := range factSearcher.queried {
		if pred == facts.PredErrorCode {
			sawErrorCode = true
		}
	}
	if !sawErrorCode {
		t.Errorf("error-code predicate never queried: %v", factSearcher.queried)
	}
}

func TestRetrieve_EverySymbolicIndicatorQueriesFacts(t *testing.T) {
	// Each keyword that routes a question to the symbolic store must map
	// to at least one predicate, or its symbolic leg is always empty.
	for _, indicator := range symbolicIndicators {
		factSearcher := &fakeFactSearcher{}
		r := NewRetriever(testRetrievalConfig(), &fakeEmbedder{vec: []float32{1}}, &fakeChunkSearcher{}, factSearcher, nil)

		question := "What about the " + indicator + " here?"
		if _, _, err := r.Retrieve(context.Background(), question, ModeSymbolic); err != nil {
			t.Fatalf("Retrieve(%q) failed: %v", indicator, err)
		}
		if len(factSearcher.queried) == 0 {
			t.Errorf("indicator %q never queried the fact store", indicator)
		}
	}
}

func TestRetrieve_SymbolicDeduplicatesFacts(t *testing.T) {
	dup := facts.Fact{Predicate: facts.PredRateLimit, Subject: "/users", Object: "100", Detail: "minute", File: "limits.md"}
	factSearcher := &fakeFactSearcher{
		byPredicate: map[string][]facts.Fact{
			facts.PredRateLimit:     {dup},
			facts.PredTierRateLimit: {dup},
		},
	}
	r := NewRetriever(testRetrievalConfig(), &fakeEmbedder{vec: []float32{1}}, &fakeChunkSearcher{}, factSearcher, nil)

	items, _, err := r.Retrieve(context.Background(), "What is the rate limit?", ModeSymbolic)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected deduplicated single fact, got %d", len(items))
	}
}

func TestRetrieve_KeywordRecallAddsMissingChunks(t *testing.T) {
	vecHit := swapChunk()
	kwChunk := chunker.Chunk{ID: "chk:guide.md:1", File: "guide.md", Text: "retry with backoff"}

	chunks := &fakeChunkSearcher{
		scored: []store.ScoredChunk{{Chunk: vecHit, Score: 0.8}},
		byID:   map[string]chunker.Chunk{kwChunk.ID: kwChunk},
	}
	keyword := &fakeKeyword{hits: []textindex.Hit{
		{ChunkID: vecHit.ID, File: vecHit.File, Score: 10},
		{ChunkID: kwChunk.ID, File: kwChunk.File, Score: 5},
	}}

	r := NewRetriever(testRetrievalConfig(), &fakeEmbedder{vec: []float32{1}}, chunks, &fakeFactSearcher{}, keyword)

	items, _, err := r.Retrieve(context.Background(), "Explain how retries work", ModeVector)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected vector hit plus keyword hit, got %d items", len(items))
	}

	var kw *EvidenceItem
	for i := range items {
		if items[i].Chunk.ID == kwChunk.ID {
			kw = &items[i]
		}
	}
	if kw == nil {
		t.Fatal("keyword-only chunk missing from results")
	}
	if kw.Score >= items[0].Score {
		t.Errorf("keyword hit score %v should stay below vector hit %v", kw.Score, items[0].Score)
	}
}

func TestEngine_EmptyQuestion(t *testing.T) {
	engine := newTestEngine(&fakeChunkSearcher{}, &fakeFactSearcher{}, &fakeCompletion{})
	if _, err := engine.Ask(context.Background(), "   ", ""); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestEngine_EmptyStoresReturnTerminalAnswer(t *testing.T) {
	fc := &fakeCompletion{text: "should not run"}
	engine := newTestEngine(&fakeChunkSearcher{}, &fakeFactSearcher{byPredicate: nil}, fc)

	ans, err := engine.Ask(context.Background(), "What error codes can POST /swap return?", "")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if ans.Confidence != ConfidenceNone {
		t.Errorf("confidence = %v, want 0", ans.Confidence)
	}
	if ans.Text != insufficientInfoAnswer {
		t.Errorf("unexpected answer text: %q", ans.Text)
	}
	if fc.calls != 0 {
		t.Errorf("completion called %d times, want 0", fc.calls)
	}
}

func TestEngine_HybridAnswerEndToEnd(t *testing.T) {
	chunks := &fakeChunkSearcher{
		scored: []store.ScoredChunk{{Chunk: swapChunk(), Score: 0.8}},
	}
	factSearcher := &fakeFactSearcher{
		byPredicate: map[string][]facts.Fact{
			facts.PredErrorCode: {
				{Predicate: facts.PredErrorCode, Subject: "/swap", Object: "400", Detail: "Bad Request", File: "api.md"},
			},
		},
	}
	fc := &fakeCompletion{text: "POST /swap returns 400 Bad Request on malformed input."}
	engine := newTestEngine(chunks, factSearcher, fc)

	ans, err := engine.Ask(context.Background(), "What error codes can POST /swap return?", "")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if ans.Mode != ModeHybrid {
		t.Errorf("mode = %q, want hybrid", ans.Mode)
	}
	if ans.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %v, want %v", ans.Confidence, ConfidenceHigh)
	}
	if len(ans.Citations) == 0 || ans.Citations[0] != "api.md" {
		t.Errorf("unexpected citations: %v", ans.Citations)
	}
	if ans.Text == "" || ans.Text == insufficientInfoAnswer {
		t.Errorf("unexpected answer text: %q", ans.Text)
	}
}

func newTestEngine(chunks ChunkSearcher, factSearcher FactSearcher, completion CompletionClient) *Engine {
	cfg := testRetrievalConfig()
	retriever := NewRetriever(cfg, &fakeEmbedder{vec: []float32{1, 0}}, chunks, factSearcher, nil)
	return NewEngine(cfg, retriever, NewComposer(completion))
}
