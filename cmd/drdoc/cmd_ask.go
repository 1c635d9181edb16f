package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/drdoc/drdoc/internal/answer"
	"github.com/drdoc/drdoc/internal/config"
)

// handleAsk implements the ask subcommand
func handleAsk(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	var modeFlag string
	var jsonOutput bool
	fs.StringVar(&modeFlag, "mode", "", "Retrieval mode: vector, symbolic or hybrid (default: automatic)")
	fs.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    drdoc ask [options] <question>

DESCRIPTION:
    Answer a natural-language question over the ingested documentation,
    with cited source files and a confidence score.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    drdoc ask "What error codes can POST /swap return?"

    # Force semantic retrieval only
    drdoc ask -mode vector "Explain how retries work"

    # Machine-readable output
    drdoc ask -json "What is the rate limit for the free tier?"
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}
	question := strings.Join(fs.Args(), " ")

	mode, err := answer.ParseMode(modeFlag)
	if err != nil {
		log.Fatalf("%v", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ans, err := engine.Ask(ctx, question, mode)
	if err != nil {
		log.Fatalf("Failed to answer: %v", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(ans, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal answer: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	fmt.Println(ans.Text)
	fmt.Println()
	fmt.Printf("confidence: %.2f (%s mode)\n", ans.Confidence, ans.Mode)
	if ans.Reasoning != "" {
		fmt.Printf("reasoning:  %s\n", ans.Reasoning)
	}
	if len(ans.Citations) > 0 {
		fmt.Printf("sources:    %s\n", strings.Join(ans.Citations, ", "))
	}
}
