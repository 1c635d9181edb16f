package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/drdoc/drdoc/cmd/drdoc/internal"
	"github.com/drdoc/drdoc/internal/config"
	"github.com/drdoc/drdoc/internal/mcpserver"
)

// handleMCP implements the mcp subcommand
func handleMCP(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    drdoc mcp

DESCRIPTION:
    Run an MCP server over stdio exposing the tools drdoc_ask,
    drdoc_ingest and drdoc_status.
`)
	}
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	st, err := openStores(cfg)
	if err != nil {
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer st.Close()

	engine, err := buildEngine(cfg, st)
	if err != nil {
		log.Fatalf("Failed to build answering pipeline: %v", err)
	}
	coordinator, err := buildCoordinator(cfg, st, nil)
	if err != nil {
		log.Fatalf("Failed to build ingestion pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(engine, coordinator, st.db, internal.Version)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("MCP server exited: %v", err)
	}
}
