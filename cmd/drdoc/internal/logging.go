package internal

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// SetupLogging mirrors log output to a per-invocation file under
// ~/.drdoc/logs in addition to stderr.
func SetupLogging(subcommand string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	logDir := filepath.Join(homeDir, ".drdoc", "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("drdoc-%s-%s.log", subcommand, timestamp)
	logPath := filepath.Join(logDir, filename)

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	log.Printf("Log file: %s", logPath)
	return nil
}
