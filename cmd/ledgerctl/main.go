package main

import (
	"context"
	"fmt"
	"os"

	"github.com/leeglobal/lee_ledger/internal/config"
	"github.com/leeglobal/lee_ledger/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, "ledgerctl")

	if err := newRootCmd(cfg, logger).ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
