package ports

import (
	"context"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

// DatasetBuilder is the inbound contract for consolidating one execution date.
type DatasetBuilder interface {
	BuildDataset(ctx context.Context, sourceIDs []string, executionDate string) (*domain.Dataset, error)
}

// DatasetQuery is the read-only tool surface over a consolidated dataset.
// All methods are pure in-memory reads: idempotent, side-effect free and safe
// for concurrent callers, so they take no context.
type DatasetQuery interface {
	ListSources() domain.SourceList
	SourceDetail(sourceID string) (*domain.SourceDetail, error)
	ExecutionDateInfo() (domain.ExecutionDateInfo, error)
}

// Narrator writes the report prose by interrogating the query surface.
type Narrator interface {
	Narrate(ctx context.Context, query DatasetQuery) (string, error)
}

// ReportRunner is the inbound contract for one full report run.
type ReportRunner interface {
	Run(ctx context.Context, executionDate string) (*domain.Report, error)
}
