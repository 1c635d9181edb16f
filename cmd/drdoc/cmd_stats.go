package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/drdoc/drdoc/internal/config"
)

// handleStats implements the stats subcommand
func handleStats(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var jsonOutput bool
	fs.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    drdoc stats [options]

DESCRIPTION:
    Show statistics about the stored chunks, embeddings and facts.

OPTIONS:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	st, err := openStores(cfg)
	if err != nil {
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer st.Close()

	stats, err := st.db.Stats()
	if err != nil {
		log.Fatalf("Failed to read statistics: %v", err)
	}
	indexed, err := st.text.Count()
	if err != nil {
		log.Fatalf("Failed to read keyword index: %v", err)
	}

	if jsonOutput {
		out := map[string]interface{}{
			"chunks":       stats.ChunkCount,
			"embeddings":   stats.VectorCount,
			"facts":        stats.FactCount,
			"files":        stats.FileCount,
			"keyword_docs": indexed,
			"size_bytes":   stats.SizeBytes,
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Println("Store Statistics")
	fmt.Println()
	fmt.Printf("  chunks:       %d\n", stats.ChunkCount)
	fmt.Printf("  embeddings:   %d\n", stats.VectorCount)
	fmt.Printf("  facts:        %d\n", stats.FactCount)
	fmt.Printf("  files:        %d\n", stats.FileCount)
	fmt.Printf("  keyword docs: %d\n", indexed)
	fmt.Printf("  size:         %.1f KiB\n", float64(stats.SizeBytes)/1024)
}
