package main

import (
	"fmt"
	"os"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/segyhp/loan-ledger/internal/logger"
)

func main() {
	if err := logger.Setup(logger.LogConfig{Level: os.Getenv("LOG_LEVEL"), Format: "console", Output: os.Stderr}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd().Execute(); err != nil {
		log := logger.WithComponent("loanctl")
		log.Error().Err(err).Msg("Command execution failed")
		os.Exit(1)
	}
}
