package rules

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

func intp(v int) *int {
	return &v
}

func floatp(v float64) *float64 {
	return &v
}

func TestClassifyAllGood(t *testing.T) {
	input := domain.JudgeInput{
		SourceID:      "220504",
		DisplayName:   "Acme Payments Settlement",
		ExecutionDate: "2025-09-08",
		FilesToday:    2,
		RowsToday:     1800,
		Evidence: domain.EvidenceBundle{
			Missing: []domain.ComparisonEvidence{{
				Type:          "file_comparison_data",
				ExecutionDate: "2025-09-08",
			}},
		},
	}

	assessment, err := NewJudge().Classify(context.Background(), input)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if assessment.Severity != domain.SeverityAllGood {
		t.Fatalf("expected all_good, got %q", assessment.Severity)
	}
	if assessment.Headline != "2025-09-08: `[ 1800 ] records`" {
		t.Fatalf("unexpected headline %q", assessment.Headline)
	}
	if assessment.Action != "" {
		t.Fatalf("all good entries carry no action, got %q", assessment.Action)
	}
	if assessment.EvidenceCounts["missing"] != 1 {
		t.Fatalf("unexpected evidence counts %+v", assessment.EvidenceCounts)
	}
}

func TestClassifyUrgentOnShortfall(t *testing.T) {
	input := domain.JudgeInput{
		SourceID:      "220504",
		DisplayName:   "Acme Payments Settlement",
		ExecutionDate: "2025-09-08",
		ExpectedFiles: intp(16),
		FilesToday:    2,
		UploadWindow:  "08:08:00–08:18:00",
		Evidence: domain.EvidenceBundle{
			Missing: []domain.ComparisonEvidence{{
				Type: "file_comparison_data",
				DailySummary: []domain.FileSummary{
					{Filename: "a1__Shop_2025_09_08.csv", Entity: "Shop"},
				},
				LastWeekSummary: []domain.FileSummary{
					{Filename: "zz__Shop_2025_09_01.csv", Entity: "Shop"},
					{Filename: "yy__Billing_2025_09_01.csv", Entity: "Billing"},
				},
			}},
		},
	}

	assessment, err := NewJudge().Classify(context.Background(), input)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if assessment.Severity != domain.SeverityUrgent {
		t.Fatalf("expected urgent, got %q", assessment.Severity)
	}
	want := "2025-09-08: 14 files missing past 08:08–08:18 UTC — entities: Billing — expected: *Billing_2025_09_01.csv"
	if assessment.Headline != want {
		t.Fatalf("unexpected headline:\n got %q\nwant %q", assessment.Headline, want)
	}
	if !strings.Contains(assessment.Action, "Notify provider") {
		t.Fatalf("expected the missing-files action, got %q", assessment.Action)
	}
}

func TestClassifyUrgentOnThreeSignals(t *testing.T) {
	input := domain.JudgeInput{
		SourceID:      "195385",
		DisplayName:   "Settlement Layout",
		ExecutionDate: "2025-09-08",
		Evidence: domain.EvidenceBundle{
			Volume: []domain.VolumeEvidence{{
				Type:         "volume_variation_data",
				CurrentRows:  3200,
				LastWeekRows: intp(1000),
				ChangeRatio:  floatp(3.2),
				Context:      "week_comparison_increase",
			}},
			Schedule: []domain.ScheduleEvidence{{
				Type:   "schedule_anomaly_data",
				Files:  []string{"h1__late.csv"},
				Window: "08:08:00–08:18:00",
			}},
			Historical: []domain.FileListEvidence{{
				Type:  "historical_upload_data",
				Files: []string{"h2__old_2025_08_01.csv"},
			}},
		},
	}

	assessment, err := NewJudge().Classify(context.Background(), input)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if assessment.Severity != domain.SeverityUrgent {
		t.Fatalf("expected urgent with three signals, got %q", assessment.Severity)
	}
	want := "Rows 3200 vs 1000 last week (ratio 3.20) — " +
		"Files outside upload window 08:08:00–08:18:00: *late.csv — " +
		"Historical upload detected: *old_2025_08_01.csv"
	if assessment.Headline != want {
		t.Fatalf("unexpected headline:\n got %q\nwant %q", assessment.Headline, want)
	}
	if !strings.Contains(assessment.Action, "historical upload") {
		t.Fatalf("action should follow the last signal, got %q", assessment.Action)
	}
}

func TestClassifyNeedsAttention(t *testing.T) {
	input := domain.JudgeInput{
		SourceID:      "330101",
		DisplayName:   "Refund Feed",
		ExecutionDate: "2025-09-08",
		Evidence: domain.EvidenceBundle{
			Duplicated: []domain.FileListEvidence{{
				Type:  "duplicated_or_failed_data",
				Files: []string{"d1__dup.csv", "plain.csv"},
			}},
		},
	}

	assessment, err := NewJudge().Classify(context.Background(), input)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if assessment.Severity != domain.SeverityNeedsAttention {
		t.Fatalf("expected needs_attention, got %q", assessment.Severity)
	}
	if assessment.Headline != "Duplicated/failed files: *dup.csv, plain.csv" {
		t.Fatalf("unexpected headline %q", assessment.Headline)
	}
	if !strings.Contains(assessment.Action, "duplicated files") {
		t.Fatalf("unexpected action %q", assessment.Action)
	}
}

func TestClassifyTwoSignalsStayNeedsAttention(t *testing.T) {
	input := domain.JudgeInput{
		SourceID:      "330101",
		DisplayName:   "Refund Feed",
		ExecutionDate: "2025-09-08",
		Evidence: domain.EvidenceBundle{
			Volume: []domain.VolumeEvidence{{
				Type:        "volume_variation_data",
				CurrentRows: 2501,
				UpperBound:  intp(2500),
				Context:     "95pct",
			}},
			Empty: []domain.EmptyFilesEvidence{{
				Type:  "empty_files_data",
				Files: []string{"e1__empty.csv"},
			}},
		},
	}

	assessment, err := NewJudge().Classify(context.Background(), input)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if assessment.Severity != domain.SeverityNeedsAttention {
		t.Fatalf("two signals must stay needs_attention, got %q", assessment.Severity)
	}
	want := "Rows 2501 above expected bound 2500 (95pct) — Unexpected empty files: *empty.csv"
	if assessment.Headline != want {
		t.Fatalf("unexpected headline %q", assessment.Headline)
	}
	if !strings.Contains(assessment.Action, "empty files") {
		t.Fatalf("action should follow the last signal, got %q", assessment.Action)
	}
}

func TestMissingHeadlineTruncatesLongExpectedList(t *testing.T) {
	lastWeek := []domain.FileSummary{
		{Filename: "a1__alpha_2025_09_01.csv"},
		{Filename: "b2__bravo_2025_09_01.csv"},
		{Filename: "c3__charlie_2025_09_01.csv"},
		{Filename: "d4__delta_2025_09_01.csv"},
		{Filename: "e5__echo_2025_09_01.csv"},
	}
	input := domain.JudgeInput{
		SourceID:      "220504",
		DisplayName:   "Acme Payments Settlement",
		ExecutionDate: "2025-09-08",
		ExpectedFiles: intp(5),
		FilesToday:    0,
		Evidence: domain.EvidenceBundle{
			Missing: []domain.ComparisonEvidence{{LastWeekSummary: lastWeek}},
		},
	}

	assessment := Compose(input, domain.SeverityUrgent)
	if !strings.Contains(assessment.Headline, "… (5 total)") {
		t.Fatalf("expected truncated list, got %q", assessment.Headline)
	}
	if !strings.Contains(assessment.Headline, "expected: *alpha_2025_09_01.csv, *bravo_2025_09_01.csv") {
		t.Fatalf("expected first two names, got %q", assessment.Headline)
	}
}

func TestCombineWindowLabel(t *testing.T) {
	tests := []struct {
		window string
		want   string
	}{
		{"08:08:00–08:18:00", "08:08–08:18 UTC"},
		{"08:09", "08:09 UTC"},
		{"daily before noon", "daily before noon"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := combineWindowLabel(tt.window); got != tt.want {
			t.Fatalf("combineWindowLabel(%q) = %q, want %q", tt.window, got, tt.want)
		}
	}
}
