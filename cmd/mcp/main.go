package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	mcpadapter "github.com/kirillkom/ingest-sentinel/internal/adapters/mcp"
	"github.com/kirillkom/ingest-sentinel/internal/bootstrap"
	"github.com/kirillkom/ingest-sentinel/internal/config"
	"github.com/kirillkom/ingest-sentinel/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	// stdout belongs to the MCP stream, so .env diagnostics and logs both go
	// to stderr.
	log.SetOutput(os.Stderr)
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLoggerTo(os.Stderr, cfg.ServiceName, cfg.LogLevel)

	executionDate := cfg.ExecutionDate
	if executionDate == "" {
		executionDate = time.Now().UTC().Format("2006-01-02")
	}

	app := bootstrap.NewQueryApp(cfg, logger)
	defer app.Close()

	query, err := app.ConsolidateQuery(context.Background(), executionDate)
	if err != nil {
		logger.Error("consolidate dataset", "execution_date", executionDate, "error", err)
		os.Exit(1)
	}

	server := mcpadapter.NewServer(query, version, logger)
	if err := server.ServeStdio(); err != nil {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
