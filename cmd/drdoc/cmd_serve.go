package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/drdoc/drdoc/internal/config"
	"github.com/drdoc/drdoc/internal/server"
)

// handleServe implements the serve subcommand
func handleServe(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var addr string
	fs.StringVar(&addr, "addr", "", "Listen address (default: config server.addr or :8080)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    drdoc serve [options]

DESCRIPTION:
    Run the HTTP API server.

    Endpoints:
      POST /api/ask     {"question": "...", "mode": "hybrid"?}
      POST /api/ingest  {"path": "...", "source_id": "..."?}
      GET  /api/health

OPTIONS:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if addr == "" {
		addr = cfg.Server.Addr
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

	srv := server.New(engine, coordinator, st.db)
	if err := srv.Run(addr); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
