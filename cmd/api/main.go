package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/kirillkom/ingest-sentinel/internal/adapters/http"
	"github.com/kirillkom/ingest-sentinel/internal/bootstrap"
	"github.com/kirillkom/ingest-sentinel/internal/config"
	"github.com/kirillkom/ingest-sentinel/internal/observability/logging"
	"github.com/kirillkom/ingest-sentinel/internal/observability/metrics"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	executionDate := cfg.ExecutionDate
	if executionDate == "" {
		executionDate = time.Now().UTC().Format("2006-01-02")
	}

	app := bootstrap.NewQueryApp(cfg, logger)
	defer app.Close()

	// The dataset is consolidated once at startup; every request afterwards
	// is a pure in-memory read.
	query, err := app.ConsolidateQuery(ctx, executionDate)
	if err != nil {
		logger.Error("consolidate dataset", "execution_date", executionDate, "error", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(cfg.ServiceName)
	handler, err := httpadapter.NewRouter(cfg, query, httpMetrics, logger).Handler()
	if err != nil {
		logger.Error("build http handler", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("query api listening", "port", cfg.APIPort, "execution_date", executionDate)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
