package answer

import (
	"context"
	"strings"

	"github.com/drdoc/drdoc/internal/config"
)

// Engine is the question-answering pipeline: classify, retrieve, merge,
// compose. Engines are read-only over the stores and safe for concurrent
// questions.
type Engine struct {
	cfg       config.RetrievalConfig
	retriever *Retriever
	composer  *Composer
}

// NewEngine wires a retriever and composer into an answering pipeline.
func NewEngine(cfg config.RetrievalConfig, retriever *Retriever, composer *Composer) *Engine {
	return &Engine{cfg: cfg, retriever: retriever, composer: composer}
}

// Ask answers a natural-language question over the ingested corpus.
// modeHint may be empty to let the classifier decide. Returns
// ErrEmptyQuestion for blank input and ErrServiceDegraded when every
// consulted retrieval source or the completion service failed after
// retries.
func (e *Engine) Ask(ctx context.Context, question string, modeHint RetrievalMode) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	mode := Classify(question, modeHint)

	items, degraded, err := e.retriever.Retrieve(ctx, question, mode)
	if err != nil {
		return nil, err
	}

	merged, confidence, reasoning := Merge(items, degraded, e.cfg)

	return e.composer.Compose(ctx, question, merged, confidence, mode, reasoning)
}
