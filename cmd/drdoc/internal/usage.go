package internal

import (
	"fmt"
	"os"
)

const Version = "0.3.1"

// PrintUsage prints top-level usage to stderr.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `drdoc - Documentation Q&A with Hybrid Retrieval

Version: %s

USAGE:
    drdoc [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.drdoc/config/drdoc.yaml)

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    init
        Create a default config file

    ingest <path>
        Ingest a directory or file of documentation

    ask <question>
        Answer a question over the ingested documentation

    serve
        Run the HTTP API server

    mcp
        Run MCP stdio server (tools: drdoc_ask, drdoc_ingest, drdoc_status)

    stats
        Show store statistics

EXAMPLES:
    # Create a config template, then fill in the API key
    drdoc init

    # Ingest a docs directory
    drdoc ingest ./docs

    # Ask a question
    drdoc ask "What error codes can POST /swap return?"

    # Force a retrieval mode
    drdoc ask -mode vector "Explain how retries work"

    # Run the HTTP server
    drdoc serve -addr :8080

    # Run MCP server over stdio
    drdoc mcp

For detailed help on each command, use:
    drdoc <command> -help
`, Version)
}

// PrintConfigExample prints a YAML configuration example to stderr.
func PrintConfigExample() {
	homeDir, _ := os.UserHomeDir()
	configPath := fmt.Sprintf("%s/.drdoc/config/drdoc.yaml", homeDir)

	fmt.Fprintf(os.Stderr, `Create a configuration file at %s:

# Embedding service configuration (required)
embedding:
  # Provider: "openai" | "volcengine"
  provider: openai
  api_key: your-api-key
  model: text-embedding-3-small
  dimensions: 1536
  batch_size: 32

# Completion service for answer phrasing
# Defaults to the embedding provider and API key when omitted.
completion:
  model: gpt-4o-mini

# Data is stored under ~/.drdoc/data/ unless overridden:
# database:
#   path: /some/where/drdoc.db
#   text_index_dir: /some/where/textindex

Usage:
  1. Create the config file (or run drdoc init)
  2. Ingest documentation: drdoc ingest ./docs
  3. Ask: drdoc ask "your question"
`, configPath)
}
