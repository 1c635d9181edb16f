package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/drdoc/drdoc/internal/config"
	"github.com/drdoc/drdoc/internal/ingest"
)

// handleIngest implements the ingest subcommand
func handleIngest(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	var sourceID string
	var noProgress bool
	fs.StringVar(&sourceID, "source", "", "Logical source identifier (default: the path)")
	fs.BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    drdoc ingest [options] <path>

DESCRIPTION:
    Chunk, embed and extract facts from the documentation under <path>.
    Re-ingestion is incremental: unchanged files are skipped.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Ingest a docs directory
    drdoc ingest ./docs

    # Ingest under a stable source id
    drdoc ingest -source api-docs ./docs/api
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	path := fs.Arg(0)
	if sourceID == "" {
		sourceID = path
	}

	st, err := openStores(cfg)
	if err != nil {
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer st.Close()

	progress := ingest.NewProgress(!noProgress && ingest.DefaultProgressEnabled())
	coordinator, err := buildCoordinator(cfg, st, progress)
	if err != nil {
		log.Fatalf("Failed to build ingestion pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := coordinator.IngestDir(ctx, sourceID, path)
	if err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}

	fmt.Printf("Ingested %s (source %s)\n", path, report.SourceID)
	fmt.Printf("  files:    %d seen, %d skipped, %d failed\n", report.FilesSeen, report.FilesSkipped, report.FilesFailed)
	fmt.Printf("  chunks:   %d written\n", report.ChunksWritten)
	fmt.Printf("  facts:    %d written\n", report.FactsWritten)
	fmt.Printf("  duration: %s\n", report.Duration)
}
