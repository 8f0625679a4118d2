// riskengine - inline fraud risk scoring for financial transactions.
//
// Run with DATABASE_URL pointing at a migrated PostgreSQL database, or
// without it for an in-memory demo instance:
//
//	go run ./cmd/migrate up
//	go run ./cmd/server
package main

import (
	"os"

	"github.com/sentrapay/riskengine/internal/config"
	"github.com/sentrapay/riskengine/internal/logging"
	"github.com/sentrapay/riskengine/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting riskengine",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"port", cfg.Port,
		"evaluation_timeout", cfg.EvaluationTimeout,
	)

	srv, err := server.New(cfg, server.WithLogger(logging.New(cfg.LogLevel, "json")))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
