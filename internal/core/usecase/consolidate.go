package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
	"github.com/kirillkom/ingest-sentinel/internal/core/ports"
)

// ConsolidateUseCase builds the unified per-source dataset for one execution
// date. A missing contract or activity payload fails the whole run: without
// them no meaningful evidence exists for the day.
type ConsolidateUseCase struct {
	catalog ports.SourceCatalog
}

func NewConsolidateUseCase(catalog ports.SourceCatalog) *ConsolidateUseCase {
	return &ConsolidateUseCase{catalog: catalog}
}

func (uc *ConsolidateUseCase) BuildDataset(ctx context.Context, sourceIDs []string, executionDate string) (*domain.Dataset, error) {
	activity, err := uc.catalog.LoadActivity(ctx, executionDate)
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}

	ids := append([]string(nil), sourceIDs...)
	sort.Strings(ids)

	dataset := &domain.Dataset{
		ExecutionDate: executionDate,
		Sources:       make(map[string]*domain.SourceRecord, len(ids)),
	}

	for _, sourceID := range ids {
		cvText, err := uc.catalog.ReadContract(ctx, sourceID)
		if err != nil {
			return nil, fmt.Errorf("read contract %s: %w", sourceID, err)
		}

		daily := FilterByUploadDate(activity.Daily[sourceID], executionDate)
		lastWeek := activity.LastWeekday[sourceID]
		if lastWeek == nil {
			lastWeek = []domain.FileRecord{}
		}

		evidence, err := DetectSignals(cvText, daily, lastWeek, executionDate)
		if err != nil {
			return nil, fmt.Errorf("detect signals %s: %w", sourceID, err)
		}

		dataset.Sources[sourceID] = &domain.SourceRecord{
			SourceID:      sourceID,
			ContractText:  cvText,
			DailyFiles:    daily,
			LastWeekFiles: lastWeek,
			Evidence:      evidence,
		}
	}

	return dataset, nil
}

// FilterByUploadDate keeps records whose upload timestamp falls on the
// execution date, as written (no zone conversion). Records without a
// parseable timestamp are dropped: a file that cannot prove it belongs to
// the day is not part of the day's view.
func FilterByUploadDate(files []domain.FileRecord, executionDate string) []domain.FileRecord {
	if len(files) == 0 {
		return []domain.FileRecord{}
	}
	if _, err := time.Parse("2006-01-02", executionDate); err != nil {
		return files
	}

	filtered := make([]domain.FileRecord, 0, len(files))
	for _, item := range files {
		if item.UploadedAt == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, item.UploadedAt)
		if err != nil {
			continue
		}
		if ts.Format("2006-01-02") == executionDate {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
