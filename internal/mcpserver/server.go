package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/drdoc/drdoc/internal/answer"
	"github.com/drdoc/drdoc/internal/ingest"
	"github.com/drdoc/drdoc/internal/store"
)

// Asker answers questions over the ingested corpus.
type Asker interface {
	Ask(ctx context.Context, question string, mode answer.RetrievalMode) (*answer.Answer, error)
}

// Ingester runs document ingestion for a source directory or file.
type Ingester interface {
	IngestDir(ctx context.Context, sourceID, root string) (*ingest.Report, error)
}

// StatsProvider reports store contents.
type StatsProvider interface {
	Stats() (*store.DBStats, error)
}

// Server exposes the answering pipeline over MCP stdio.
type Server struct {
	engine   Asker
	ingester Ingester
	stats    StatsProvider
	version  string
}

// New creates an MCP server wrapper around the pipeline components.
func New(engine Asker, ingester Ingester, stats StatsProvider, version string) *Server {
	return &Server{
		engine:   engine,
		ingester: ingester,
		stats:    stats,
		version:  version,
	}
}

// Run starts the MCP stdio server.
func (s *Server) Run(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "drdoc",
		Title:   "Dr.Doc",
		Version: s.version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "drdoc_ask",
		Description: `Answer a question about ingested technical documentation.

Combines vector-similarity retrieval over passages with exact fact lookup
(endpoints, error codes, rate limits, parameters, auth methods). Returns the
answer text, cited source files and a calibrated confidence score in [0,1].
A confidence of 0 means no supporting evidence was found.`,
	}, s.askTool)

	mcp.AddTool(server, &mcp.Tool{
		Name: "drdoc_ingest",
		Description: `Ingest a directory or file of markdown documentation.

Chunks and embeds each document and extracts structured facts. Re-ingestion
is incremental: files whose content and embedding model are unchanged are
skipped.`,
	}, s.ingestTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "drdoc_status",
		Description: "Report how many chunks, vectors, facts and files are stored.",
	}, s.statusTool)

	return server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) askTool(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	mode, err := answer.ParseMode(input.Mode)
	if err != nil {
		return nil, AskOutput{}, err
	}

	ans, err := s.engine.Ask(ctx, input.Question, mode)
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:     ans.Text,
		Citations:  ans.Citations,
		Confidence: ans.Confidence,
		Mode:       string(ans.Mode),
		Reasoning:  ans.Reasoning,
	}, nil
}

func (s *Server) ingestTool(ctx context.Context, _ *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, IngestOutput, error) {
	if input.Path == "" {
		return nil, IngestOutput{}, fmt.Errorf("path is required")
	}
	sourceID := input.SourceID
	if sourceID == "" {
		sourceID = input.Path
	}

	report, err := s.ingester.IngestDir(ctx, sourceID, input.Path)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	return nil, IngestOutput{
		SourceID:      report.SourceID,
		FilesSeen:     report.FilesSeen,
		FilesSkipped:  report.FilesSkipped,
		FilesFailed:   report.FilesFailed,
		ChunksWritten: report.ChunksWritten,
		FactsWritten:  report.FactsWritten,
		Duration:      report.Duration.String(),
	}, nil
}

func (s *Server) statusTool(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	stats, err := s.stats.Stats()
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{
		Chunks:  stats.ChunkCount,
		Vectors: stats.VectorCount,
		Facts:   stats.FactCount,
		Files:   stats.FileCount,
		Bytes:   stats.SizeBytes,
	}, nil
}
