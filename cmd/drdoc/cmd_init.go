package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/drdoc/drdoc/cmd/drdoc/internal"
	"github.com/drdoc/drdoc/internal/config"
)

// handleInit implements the init subcommand
func handleInit(configPath string, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    drdoc init

DESCRIPTION:
    Create a default config file at ~/.drdoc/config/drdoc.yaml
    (or at the path given with the global -config flag).
`)
	}
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	path := configPath
	if path == "" {
		var err error
		path, err = internal.DefaultConfigPath()
		if err != nil {
			log.Fatalf("Failed to determine config path: %v", err)
		}
	}

	created, err := config.WriteDefaultTemplate(path)
	if err != nil {
		log.Fatalf("Failed to create config file: %v", err)
	}
	if created {
		fmt.Printf("Created config file at %s\n", path)
		fmt.Println("Edit it and set embedding.api_key before running `drdoc ingest`.")
	} else {
		fmt.Printf("Config file already exists at %s\n", path)
	}
}
