package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

// Exporter writes one evidence workbook per report run: a summary sheet, one
// sheet per evidence kind with the raw facts, and the operator feedback rows
// passed through verbatim.
type Exporter struct {
	dir string
}

func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

func (e *Exporter) Export(_ context.Context, report *domain.Report, dataset *domain.Dataset, feedback *domain.Feedback) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return "", fmt.Errorf("rename summary sheet: %w", err)
	}
	if err := writeSummary(f, report, dataset); err != nil {
		return "", err
	}
	if err := writeEvidenceSheets(f, dataset); err != nil {
		return "", err
	}
	if err := writeFeedback(f, feedback); err != nil {
		return "", err
	}

	path := filepath.Join(e.dir, fmt.Sprintf("evidence_%s.xlsx", report.ExecutionDate))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

var evidenceKindOrder = []string{"missing", "duplicated", "empty", "volume_variation", "schedule", "historical"}

func writeSummary(f *excelize.File, report *domain.Report, dataset *domain.Dataset) error {
	header := []any{
		"source_id", "display_name", "severity", "headline", "action",
		"files_today", "files_last_week", "rows_today", "rows_last_week",
	}
	for _, kind := range evidenceKindOrder {
		header = append(header, kind)
	}
	if err := setRow(f, "Summary", 1, header); err != nil {
		return err
	}

	for i, assessment := range report.Assessments {
		var filesToday, filesLastWeek, rowsToday, rowsLastWeek int
		if record, ok := dataset.Sources[assessment.SourceID]; ok {
			filesToday = len(record.DailyFiles)
			filesLastWeek = len(record.LastWeekFiles)
			rowsToday = sumRows(record.DailyFiles)
			rowsLastWeek = sumRows(record.LastWeekFiles)
		}

		row := []any{
			assessment.SourceID, assessment.DisplayName, string(assessment.Severity), assessment.Headline, assessment.Action,
			filesToday, filesLastWeek, rowsToday, rowsLastWeek,
		}
		for _, kind := range evidenceKindOrder {
			row = append(row, assessment.EvidenceCounts[kind])
		}
		if err := setRow(f, "Summary", i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeEvidenceSheets(f *excelize.File, dataset *domain.Dataset) error {
	sheets := map[string][]any{
		"Missing":    {"source_id", "scope", "filename", "uploaded_at", "coverage_date", "rows", "entity", "status"},
		"Duplicated": {"source_id", "filename", "note"},
		"Empty":      {"source_id", "filename", "date", "cv_mentions_empty", "note"},
		"Volume":     {"source_id", "current_rows", "last_week_rows", "upper_bound", "change_ratio", "context", "note"},
		"Schedule":   {"source_id", "filename", "window", "date", "note"},
		"Historical": {"source_id", "filename", "note"},
	}
	rowCursor := map[string]int{}
	for _, name := range []string{"Missing", "Duplicated", "Empty", "Volume", "Schedule", "Historical"} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := setRow(f, name, 1, sheets[name]); err != nil {
			return err
		}
		rowCursor[name] = 2
	}

	appendRow := func(sheet string, values []any) error {
		if err := setRow(f, sheet, rowCursor[sheet], values); err != nil {
			return err
		}
		rowCursor[sheet]++
		return nil
	}

	for _, id := range dataset.SourceIDs() {
		evidence := dataset.Sources[id].Evidence

		for _, ev := range evidence.Missing {
			for _, file := range ev.DailySummary {
				if err := appendRow("Missing", []any{id, "today", file.Filename, file.UploadedAt, file.CoverageDate, file.Rows, file.Entity, file.Status}); err != nil {
					return err
				}
			}
			for _, file := range ev.LastWeekSummary {
				if err := appendRow("Missing", []any{id, "last_week", file.Filename, file.UploadedAt, file.CoverageDate, file.Rows, file.Entity, file.Status}); err != nil {
					return err
				}
			}
		}
		for _, ev := range evidence.Duplicated {
			for _, filename := range ev.Files {
				if err := appendRow("Duplicated", []any{id, filename, ev.Note}); err != nil {
					return err
				}
			}
		}
		for _, ev := range evidence.Empty {
			for _, filename := range ev.Files {
				if err := appendRow("Empty", []any{id, filename, ev.Date, strconv.FormatBool(ev.CVMentionsEmpty), ev.Note}); err != nil {
					return err
				}
			}
		}
		for _, ev := range evidence.Volume {
			row := []any{id, ev.CurrentRows, intCell(ev.LastWeekRows), intCell(ev.UpperBound), floatCell(ev.ChangeRatio), ev.Context, ev.Note}
			if err := appendRow("Volume", row); err != nil {
				return err
			}
		}
		for _, ev := range evidence.Schedule {
			for _, filename := range ev.Files {
				if err := appendRow("Schedule", []any{id, filename, ev.Window, ev.Date, ev.Note}); err != nil {
					return err
				}
			}
		}
		for _, ev := range evidence.Historical {
			for _, filename := range ev.Files {
				if err := appendRow("Historical", []any{id, filename, ev.Note}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeFeedback(f *excelize.File, feedback *domain.Feedback) error {
	if _, err := f.NewSheet("Feedback"); err != nil {
		return fmt.Errorf("create sheet Feedback: %w", err)
	}
	if feedback == nil || len(feedback.Headers) == 0 {
		return nil
	}

	header := make([]any, 0, len(feedback.Headers))
	for _, h := range feedback.Headers {
		header = append(header, h)
	}
	if err := setRow(f, "Feedback", 1, header); err != nil {
		return err
	}

	for i, row := range feedback.Rows {
		values := make([]any, 0, len(feedback.Headers))
		for _, h := range feedback.Headers {
			values = append(values, row[h])
		}
		if err := setRow(f, "Feedback", i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func sumRows(files []domain.FileRecord) int {
	total := 0
	for _, file := range files {
		total += file.Rows
	}
	return total
}

func intCell(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func floatCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
