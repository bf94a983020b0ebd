package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/kirillkom/ingest-sentinel/internal/bootstrap"
	"github.com/kirillkom/ingest-sentinel/internal/config"
	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
	"github.com/kirillkom/ingest-sentinel/internal/observability/logging"
	"github.com/kirillkom/ingest-sentinel/internal/observability/metrics"
)

func main() {
	dateFlag := flag.String("date", "", "execution date (YYYY-MM-DD); defaults to EXECUTION_DATE, then today UTC")
	daemonFlag := flag.Bool("daemon", false, "keep running and trigger a report per the REPORT_CRON schedule")
	flag.Parse()

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

	app, err := bootstrap.NewReportApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	pipeline := metrics.NewPipelineMetrics(cfg.ServiceName)

	if *daemonFlag {
		runDaemon(ctx, app, pipeline, logger)
		return
	}

	executionDate := *dateFlag
	if executionDate == "" {
		executionDate = cfg.ExecutionDate
	}
	if executionDate == "" {
		executionDate = time.Now().UTC().Format("2006-01-02")
	}

	if err := runOnce(ctx, app, pipeline, logger, executionDate); err != nil {
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, app *bootstrap.App, pipeline *metrics.PipelineMetrics, logger *slog.Logger, executionDate string) error {
	started := time.Now()
	pipeline.StartRun()

	report, err := app.RunUC.Run(ctx, executionDate)
	pipeline.FinishRun(app.Config.ServiceName, time.Since(started), err)

	if report != nil {
		pipeline.RecordReport(app.Config.ServiceName, report)
		if writeErr := writeReport(app.Config.ReportOutputDir, report); writeErr != nil {
			logger.Error("write report file", "run_id", report.RunID, "error", writeErr)
		}
		fmt.Println(report.Markdown)
		logger.Info("report run finished",
			"run_id", report.RunID,
			"execution_date", report.ExecutionDate,
			"sources", len(report.Assessments),
			"urgent", report.SeverityCount(domain.SeverityUrgent),
			"needs_attention", report.SeverityCount(domain.SeverityNeedsAttention),
			"all_good", report.SeverityCount(domain.SeverityAllGood),
			"fallback", report.Fallback,
			"judge_fallbacks", report.JudgeFallbacks,
			"duration", time.Since(started).String(),
		)
	}
	if err != nil {
		logger.Error("report run failed", "execution_date", executionDate, "error", err)
	}
	return err
}

// runDaemon schedules one report per cron tick for that day's UTC date and
// serves the pipeline metrics while waiting.
func runDaemon(ctx context.Context, app *bootstrap.App, pipeline *metrics.PipelineMetrics, logger *slog.Logger) {
	metricsServer := &http.Server{
		Addr:    ":" + app.Config.MetricsPort,
		Handler: pipeline.Handler(),
	}
	go func() {
		logger.Info("pipeline metrics listening", "port", app.Config.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	scheduler := cron.New()
	_, err := scheduler.AddFunc(app.Config.ReportCron, func() {
		executionDate := time.Now().UTC().Format("2006-01-02")
		_ = runOnce(ctx, app, pipeline, logger, executionDate)
	})
	if err != nil {
		logger.Error("invalid report cron expression", "cron", app.Config.ReportCron, "error", err)
		os.Exit(1)
	}

	logger.Info("report daemon started", "cron", app.Config.ReportCron)
	scheduler.Start()

	<-ctx.Done()
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

func writeReport(dir string, report *domain.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("report_%s.md", report.ExecutionDate))
	if err := os.WriteFile(path, []byte(report.Markdown), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
