package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/ingest-sentinel/internal/config"
	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
	"github.com/kirillkom/ingest-sentinel/internal/core/ports"
	"github.com/kirillkom/ingest-sentinel/internal/core/usecase"
	"github.com/kirillkom/ingest-sentinel/internal/infrastructure/catalog/localfs"
	"github.com/kirillkom/ingest-sentinel/internal/infrastructure/export/xlsx"
	pdfextractor "github.com/kirillkom/ingest-sentinel/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/ingest-sentinel/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/ingest-sentinel/internal/infrastructure/judgment/rules"
	"github.com/kirillkom/ingest-sentinel/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/ingest-sentinel/internal/infrastructure/queue/nats"
	"github.com/kirillkom/ingest-sentinel/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/ingest-sentinel/internal/infrastructure/resilience"
)

// App holds the wired dependencies for one binary. NewQueryApp builds the
// read-only shape (catalog and consolidator only); NewReportApp adds the
// judge, narrator and delivery sinks the report run needs.
type App struct {
	Config config.Config
	Log    *slog.Logger

	Catalog ports.SourceCatalog
	Builder ports.DatasetBuilder
	RunUC   ports.ReportRunner

	closeFn func()
}

// NewQueryApp wires the consolidation path without any external service:
// the query binaries read the local catalog and hold the dataset in memory.
func NewQueryApp(cfg config.Config, log *slog.Logger) *App {
	catalog := newCatalog(cfg)
	return &App{
		Config:  cfg,
		Log:     log,
		Catalog: catalog,
		Builder: usecase.NewConsolidateUseCase(catalog),
	}
}

// NewReportApp wires the full report pipeline. Postgres, NATS, the LLM judge
// and the workbook export are each optional per config; the rules judge and
// the deterministic renderer are always available as fallbacks.
func NewReportApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	catalog := newCatalog(cfg)
	builder := usecase.NewConsolidateUseCase(catalog)
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	var sinks usecase.ReportSinks
	var closers []func()

	if cfg.ArchiveEnabled {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		archive := postgres.NewReportRepository(db)
		if err := archive.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		sinks.Archive = archive
		closers = append(closers, func() { _ = db.Close() })
	}

	if cfg.EventsEnabled {
		publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		sinks.Events = publisher
		closers = append(closers, publisher.Close)
	}

	if cfg.ExportEnabled {
		sinks.Exporter = xlsx.NewExporter(cfg.ExportDir)
	}

	rulesJudge := rules.NewJudge()

	var judge ports.Judge
	var narrator ports.Narrator
	model := "rules"

	if cfg.LLMJudgeEnabled || cfg.NarratorEnabled {
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
			Timeout:            time.Duration(cfg.OllamaTimeoutSeconds) * time.Second,
			ResilienceExecutor: executor,
		})
		model = client.Model()
		if cfg.LLMJudgeEnabled {
			judge = ollama.NewJudge(client)
		}
		if cfg.NarratorEnabled {
			narrator = usecase.NewNarrateUseCase(ollama.NewPlanner(client), domain.NarrateLimits{
				MaxSteps:    cfg.AgentMaxIterations,
				Timeout:     time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
				StepTimeout: time.Duration(cfg.AgentStepTimeoutSecs) * time.Second,
			})
		}
	}

	runUC := usecase.NewReportUseCase(catalog, builder, judge, rulesJudge, narrator, sinks, log, model)

	return &App{
		Config:  cfg,
		Log:     log,
		Catalog: catalog,
		Builder: builder,
		RunUC:   runUC,
		closeFn: func() { closeAll(closers) },
	}, nil
}

// ConsolidateQuery builds the dataset for one execution date and returns the
// read-only query surface over it. Used by the binaries that serve queries
// instead of running reports.
func (a *App) ConsolidateQuery(ctx context.Context, executionDate string) (ports.DatasetQuery, error) {
	ids, err := a.Catalog.ListSourceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source ids: %w", err)
	}
	dataset, err := a.Builder.BuildDataset(ctx, ids, executionDate)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	return usecase.NewDatasetQueryUseCase(dataset), nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newCatalog(cfg config.Config) *localfs.Catalog {
	return localfs.NewCatalog(
		cfg.CVPath,
		cfg.DailyDataPath,
		cfg.FeedbackPath,
		cfg.FeedbackFile,
		plaintext.NewExtractor(),
		pdfextractor.NewExtractor(),
	)
}

func closeAll(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
