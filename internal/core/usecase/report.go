package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
	"github.com/kirillkom/ingest-sentinel/internal/core/ports"
)

// ReportSinks groups the optional destinations a finished run is delivered
// to. Nil sinks are skipped.
type ReportSinks struct {
	Archive  ports.ReportArchive
	Events   ports.EventPublisher
	Exporter ports.WorkbookExporter
}

// ReportUseCase orchestrates one report run: consolidate the dataset, judge
// every source, let the narrator write the prose and deliver the result to
// the configured sinks. Judge and narrator failures degrade to deterministic
// fallbacks instead of failing the run; sink failures are collected and
// returned alongside the finished report.
type ReportUseCase struct {
	catalog  ports.SourceCatalog
	builder  ports.DatasetBuilder
	judge    ports.Judge
	rules    ports.Judge
	narrator ports.Narrator
	sinks    ReportSinks
	log      *slog.Logger
	model    string
}

func NewReportUseCase(
	catalog ports.SourceCatalog,
	builder ports.DatasetBuilder,
	judge ports.Judge,
	rules ports.Judge,
	narrator ports.Narrator,
	sinks ReportSinks,
	log *slog.Logger,
	model string,
) *ReportUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ReportUseCase{
		catalog:  catalog,
		builder:  builder,
		judge:    judge,
		rules:    rules,
		narrator: narrator,
		sinks:    sinks,
		log:      log,
		model:    model,
	}
}

func (uc *ReportUseCase) Run(ctx context.Context, executionDate string) (*domain.Report, error) {
	startedAt := time.Now().UTC()

	weekday, _, err := WeekdayLabels(executionDate)
	if err != nil {
		return nil, err
	}

	ids, err := uc.catalog.ListSourceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source ids: %w", err)
	}

	dataset, err := uc.builder.BuildDataset(ctx, ids, executionDate)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}

	assessments, judgeFallbacks, err := uc.classifyAll(ctx, dataset)
	if err != nil {
		return nil, err
	}

	query := NewDatasetQueryUseCase(dataset)
	markdown, fallback, fallbackReason := uc.narrate(ctx, query, assessments)

	report := &domain.Report{
		RunID:          uuid.NewString(),
		ExecutionDate:  executionDate,
		Weekday:        weekday,
		Assessments:    assessments,
		Markdown:       markdown,
		Model:          uc.model,
		Fallback:       fallback,
		FallbackReason: fallbackReason,
		JudgeFallbacks: judgeFallbacks,
		StartedAt:      startedAt,
		FinishedAt:     time.Now().UTC(),
	}

	return report, uc.deliver(ctx, report, dataset)
}

func (uc *ReportUseCase) classifyAll(ctx context.Context, dataset *domain.Dataset) ([]domain.SeverityAssessment, int, error) {
	assessments := make([]domain.SeverityAssessment, 0, len(dataset.Sources))
	fallbacks := 0

	for _, id := range dataset.SourceIDs() {
		input := buildJudgeInput(dataset.Sources[id], dataset.ExecutionDate)

		judge := uc.judge
		if judge == nil {
			judge = uc.rules
		}

		assessment, err := judge.Classify(ctx, input)
		if err != nil && judge != uc.rules {
			uc.log.Warn("severity judge failed, using rules fallback",
				"source_id", id,
				"error", err,
			)
			fallbacks++
			assessment, err = uc.rules.Classify(ctx, input)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("classify %s: %w", id, err)
		}
		assessments = append(assessments, assessment)
	}

	return assessments, fallbacks, nil
}

func (uc *ReportUseCase) narrate(ctx context.Context, query ports.DatasetQuery, assessments []domain.SeverityAssessment) (markdown string, fallback bool, reason string) {
	if uc.narrator == nil {
		return RenderReport(assessments, time.Now().UTC()), true, "narrator_disabled"
	}

	markdown, err := uc.narrator.Narrate(ctx, query)
	if err == nil {
		return markdown, false, ""
	}

	reason = "narrator_error"
	var narrateErr *NarrateError
	if errors.As(err, &narrateErr) {
		reason = narrateErr.Reason
	}
	uc.log.Warn("narrator failed, rendering deterministic report",
		"reason", reason,
		"error", err,
	)
	return RenderReport(assessments, time.Now().UTC()), true, reason
}

// deliver fans the finished report out to the optional sinks. Sink failures
// never invalidate the report itself.
func (uc *ReportUseCase) deliver(ctx context.Context, report *domain.Report, dataset *domain.Dataset) error {
	var errs []error

	if uc.sinks.Archive != nil {
		if err := uc.sinks.Archive.SaveRun(ctx, report); err != nil {
			uc.log.Error("archive report run", "run_id", report.RunID, "error", err)
			errs = append(errs, fmt.Errorf("archive run: %w", err))
		} else if err := uc.sinks.Archive.SaveAssessments(ctx, report.RunID, report.Assessments); err != nil {
			uc.log.Error("archive assessments", "run_id", report.RunID, "error", err)
			errs = append(errs, fmt.Errorf("archive assessments: %w", err))
		}
	}

	if uc.sinks.Exporter != nil {
		feedback, err := uc.catalog.LoadFeedback(ctx)
		if err != nil {
			uc.log.Warn("feedback unavailable, exporting without it", "error", err)
			feedback = &domain.Feedback{}
		}
		path, err := uc.sinks.Exporter.Export(ctx, report, dataset, feedback)
		if err != nil {
			uc.log.Error("export workbook", "run_id", report.RunID, "error", err)
			errs = append(errs, fmt.Errorf("export workbook: %w", err))
		} else {
			uc.log.Info("workbook exported", "run_id", report.RunID, "path", path)
		}
	}

	if uc.sinks.Events != nil {
		event := domain.ReportReadyEvent{
			RunID:          report.RunID,
			ExecutionDate:  report.ExecutionDate,
			Urgent:         report.SeverityCount(domain.SeverityUrgent),
			NeedsAttention: report.SeverityCount(domain.SeverityNeedsAttention),
			AllGood:        report.SeverityCount(domain.SeverityAllGood),
			Fallback:       report.Fallback,
			GeneratedAt:    report.FinishedAt,
		}
		if err := uc.sinks.Events.PublishReportReady(ctx, event); err != nil {
			uc.log.Error("publish report ready", "run_id", report.RunID, "error", err)
			errs = append(errs, fmt.Errorf("publish event: %w", err))
		}
	}

	return errors.Join(errs...)
}

func buildJudgeInput(record *domain.SourceRecord, executionDate string) domain.JudgeInput {
	input := domain.JudgeInput{
		SourceID:      record.SourceID,
		DisplayName:   displayName(record.ContractText, record.SourceID),
		ExecutionDate: executionDate,
		FilesToday:    len(record.DailyFiles),
		FilesLastWeek: len(record.LastWeekFiles),
		RowsToday:     sumRows(record.DailyFiles),
		RowsLastWeek:  sumRows(record.LastWeekFiles),
		UploadWindow:  UploadWindow(record.ContractText),
		Evidence:      record.Evidence,
	}
	if expected, ok := ExpectedFiles(record.ContractText, executionDate); ok {
		input.ExpectedFiles = &expected
	}
	return input
}
