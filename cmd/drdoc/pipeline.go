package main

import (
	"fmt"

	"github.com/drdoc/drdoc/internal/answer"
	"github.com/drdoc/drdoc/internal/config"
	"github.com/drdoc/drdoc/internal/embedding"
	"github.com/drdoc/drdoc/internal/ingest"
	"github.com/drdoc/drdoc/internal/store"
	"github.com/drdoc/drdoc/internal/textindex"
)

// stores bundles the persistent state shared by the subcommands.
type stores struct {
	db     *store.DB
	chunks *store.ChunkStore
	facts  *store.FactStore
	text   *textindex.Index
}

func openStores(cfg *config.Config) (*stores, error) {
	dbPath, err := cfg.ResolveDatabasePath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	textDir, err := cfg.ResolveTextIndexDir()
	if err != nil {
		db.Close()
		return nil, err
	}
	text, err := textindex.Open(textDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}

	return &stores{
		db:     db,
		chunks: store.NewChunkStore(db),
		facts:  store.NewFactStore(db),
		text:   text,
	}, nil
}

func (s *stores) Close() {
	if s.text != nil {
		s.text.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func buildCoordinator(cfg *config.Config, s *stores, progress ingest.ProgressReporter) (*ingest.Coordinator, error) {
	embedder, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		return nil, err
	}
	return ingest.New(cfg, s.db, s.text, embedder, progress), nil
}

func buildEngine(cfg *config.Config, s *stores) (*answer.Engine, error) {
	embedder, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		return nil, err
	}
	completion, err := answer.NewChatCompletionClient(cfg.Completion)
	if err != nil {
		return nil, err
	}

	retriever := answer.NewRetriever(cfg.Retrieval, embedder, s.chunks, s.facts, s.text)
	composer := answer.NewComposer(completion)
	return answer.NewEngine(cfg.Retrieval, retriever, composer), nil
}
