package usecase

import (
	"fmt"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

// DatasetQueryUseCase answers the three read-only tools the reasoning agent
// is given. It never mutates the dataset, so concurrent callers need no
// coordination.
type DatasetQueryUseCase struct {
	dataset *domain.Dataset
}

func NewDatasetQueryUseCase(dataset *domain.Dataset) *DatasetQueryUseCase {
	return &DatasetQueryUseCase{dataset: dataset}
}

func (uc *DatasetQueryUseCase) ListSources() domain.SourceList {
	sources := make([]domain.SourceOverview, 0, len(uc.dataset.Sources))
	for _, id := range uc.dataset.SourceIDs() {
		record := uc.dataset.Sources[id]
		overview := domain.SourceOverview{
			SourceID:         id,
			DisplayName:      displayName(record.ContractText, id),
			FilesToday:       len(record.DailyFiles),
			FilesLastWeekday: len(record.LastWeekFiles),
			HasCV:            record.ContractText != "",
			FirstUploadUTC:   firstUpload(record.DailyFiles),
			LastUploadUTC:    lastUpload(record.DailyFiles),
		}
		if expected, ok := ExpectedFiles(record.ContractText, uc.dataset.ExecutionDate); ok {
			overview.ExpectedFiles = &expected
		}
		sources = append(sources, overview)
	}
	return domain.SourceList{
		ExecutionDate: uc.dataset.ExecutionDate,
		Sources:       sources,
	}
}

func (uc *DatasetQueryUseCase) SourceDetail(sourceID string) (*domain.SourceDetail, error) {
	record, ok := uc.dataset.Sources[sourceID]
	if !ok {
		return nil, domain.WrapError(domain.ErrSourceNotFound, "source detail", fmt.Errorf("unknown source %q", sourceID))
	}

	return &domain.SourceDetail{
		SourceID:      sourceID,
		ExecutionDate: uc.dataset.ExecutionDate,
		ContractText:  record.ContractText,
		DailyFiles:    record.DailyFiles,
		LastWeekFiles: record.LastWeekFiles,
		Evidence:      record.Evidence,
		AnalysisContext: domain.AnalysisContext{
			TotalDailyFiles:       len(record.DailyFiles),
			TotalDailyRecords:     sumRows(record.DailyFiles),
			TotalLastWeekFiles:    len(record.LastWeekFiles),
			TotalLastWeekRecords:  sumRows(record.LastWeekFiles),
			CVLength:              len(record.ContractText),
			IncidentTypesDetected: record.Evidence.Kinds(),
		},
	}, nil
}

func (uc *DatasetQueryUseCase) ExecutionDateInfo() (domain.ExecutionDateInfo, error) {
	weekday, abbr, err := WeekdayLabels(uc.dataset.ExecutionDate)
	if err != nil {
		return domain.ExecutionDateInfo{}, err
	}
	return domain.ExecutionDateInfo{
		ExecutionDate: uc.dataset.ExecutionDate,
		Weekday:       weekday,
		WeekdayAbbr:   abbr,
		TableHint:     fmt.Sprintf("read the %q row in \"File Processing Statistics by Day\" tables; do not assume other weekdays", abbr),
	}, nil
}

func displayName(cvText, sourceID string) string {
	if title := ContractTitle(cvText); title != "" {
		return title
	}
	return sourceID
}

func firstUpload(files []domain.FileRecord) *string {
	var first string
	for _, f := range files {
		if f.UploadedAt == "" {
			continue
		}
		if first == "" || f.UploadedAt < first {
			first = f.UploadedAt
		}
	}
	if first == "" {
		return nil
	}
	return &first
}

func lastUpload(files []domain.FileRecord) *string {
	var last string
	for _, f := range files {
		if f.UploadedAt == "" {
			continue
		}
		if f.UploadedAt > last {
			last = f.UploadedAt
		}
	}
	if last == "" {
		return nil
	}
	return &last
}
