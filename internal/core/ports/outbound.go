package ports

import (
	"context"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

// SourceCatalog discovers sources and loads their contracts and activity.
type SourceCatalog interface {
	ListSourceIDs(ctx context.Context) ([]string, error)
	ReadContract(ctx context.Context, sourceID string) (string, error)
	LoadActivity(ctx context.Context, executionDate string) (*domain.Activity, error)
	LoadFeedback(ctx context.Context) (*domain.Feedback, error)
}

// Judge assigns a severity to one source's consolidated evidence.
type Judge interface {
	Classify(ctx context.Context, input domain.JudgeInput) (domain.SeverityAssessment, error)
}

// ReportPlanner drives the narrator's agent loop one JSON step at a time.
type ReportPlanner interface {
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
}

// ReportArchive persists report runs and their per-source assessments.
type ReportArchive interface {
	SaveRun(ctx context.Context, report *domain.Report) error
	SaveAssessments(ctx context.Context, runID string, assessments []domain.SeverityAssessment) error
	LatestRun(ctx context.Context, executionDate string) (*domain.Report, error)
}

// EventPublisher announces finished report runs.
type EventPublisher interface {
	PublishReportReady(ctx context.Context, event domain.ReportReadyEvent) error
	Close()
}

// WorkbookExporter writes the evidence workbook for one run.
type WorkbookExporter interface {
	Export(ctx context.Context, report *domain.Report, dataset *domain.Dataset, feedback *domain.Feedback) (string, error)
}
