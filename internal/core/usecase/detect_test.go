package usecase

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

func activityFile(name, uploadedAt string, rows int) domain.FileRecord {
	return domain.FileRecord{Filename: name, UploadedAt: uploadedAt, Rows: rows}
}

func TestDetectSignalsHealthyDay(t *testing.T) {
	daily := []domain.FileRecord{
		activityFile("a1b2__BR_Shop_settlement_detail_report_20250908.csv", "2025-09-08T08:10:00Z", 1800),
	}
	lastWeek := []domain.FileRecord{
		activityFile("zz91__BR_Shop_settlement_detail_report_20250901.csv", "2025-09-01T08:11:00Z", 1750),
	}

	bundle, err := DetectSignals(contractFixture, daily, lastWeek, "2025-09-08")
	if err != nil {
		t.Fatalf("DetectSignals() error = %v", err)
	}

	if got := bundle.Kinds(); !reflect.DeepEqual(got, []string{"missing"}) {
		t.Fatalf("healthy day should only carry the comparison evidence, got %v", got)
	}
	if bundle.Count() != 1 {
		t.Fatalf("expected a single evidence entry, got %d", bundle.Count())
	}
	if bundle.Missing[0].Type != "file_comparison_data" {
		t.Fatalf("unexpected comparison type %q", bundle.Missing[0].Type)
	}
}

func TestDetectSignalsMondayWithNoUploads(t *testing.T) {
	lastWeek := []domain.FileRecord{
		activityFile("a1b2__BR_Shop_settlement_detail_report_2025_09_01.csv", "2025-09-01T08:10:00Z", 900),
		activityFile("c3d4__BR_Card_settlement_detail_report_2025_09_01.csv", "2025-09-01T08:12:00Z", 900),
	}

	bundle, err := DetectSignals(contractFixture, nil, lastWeek, "2025-09-08")
	if err != nil {
		t.Fatalf("DetectSignals() error = %v", err)
	}

	if len(bundle.Missing) != 1 {
		t.Fatalf("expected one comparison entry, got %d", len(bundle.Missing))
	}
	comparison := bundle.Missing[0]
	if comparison.DailySummary == nil || len(comparison.DailySummary) != 0 {
		t.Fatalf("daily summary should be an empty list, got %#v", comparison.DailySummary)
	}
	if len(comparison.LastWeekSummary) != 2 {
		t.Fatalf("expected two last-week summaries, got %d", len(comparison.LastWeekSummary))
	}
	if comparison.LastWeekSummary[0].Entity != "BR_Shop" {
		t.Fatalf("unexpected entity %q", comparison.LastWeekSummary[0].Entity)
	}
	if comparison.LastWeekSummary[0].CoverageDate != "2025-09-01" {
		t.Fatalf("unexpected coverage date %q", comparison.LastWeekSummary[0].CoverageDate)
	}

	if len(bundle.Volume) != 1 {
		t.Fatalf("expected one volume entry, got %#v", bundle.Volume)
	}
	vol := bundle.Volume[0]
	if vol.Context != "week_comparison_decrease" {
		t.Fatalf("unexpected volume context %q", vol.Context)
	}
	if vol.ChangeRatio == nil || *vol.ChangeRatio != 0 {
		t.Fatalf("expected change ratio 0, got %v", vol.ChangeRatio)
	}

	if len(bundle.Duplicated)+len(bundle.Empty)+len(bundle.Schedule)+len(bundle.Historical) != 0 {
		t.Fatalf("no other evidence expected, got kinds %v", bundle.Kinds())
	}

	raw, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	if strings.Contains(string(raw), `"daily_files_summary":null`) {
		t.Fatalf("empty daily summary must marshal as [], got %s", raw)
	}
}

func TestDetectSignalsMalformedThresholdFails(t *testing.T) {
	_, err := DetectSignals("Normal (95%) interval: 0 - 2,500\n", nil, nil, "2025-09-08")
	if err == nil {
		t.Fatalf("expected error for malformed threshold")
	}
	if !domain.IsKind(err, domain.ErrMalformedContract) {
		t.Fatalf("expected ErrMalformedContract, got %v", err)
	}
}

func TestDetectVolumeVariationRatioBoundaries(t *testing.T) {
	tests := []struct {
		name        string
		currentRows int
		wantContext string
	}{
		{name: "exactly half stays quiet", currentRows: 500, wantContext: ""},
		{name: "just below half fires decrease", currentRows: 499, wantContext: "week_comparison_decrease"},
		{name: "exactly one and a half stays quiet", currentRows: 1500, wantContext: ""},
		{name: "just above one and a half fires increase", currentRows: 1501, wantContext: "week_comparison_increase"},
	}
	lastWeek := []domain.FileRecord{activityFile("w1__feed_20250901.csv", "2025-09-01T08:00:00Z", 1000)}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			daily := []domain.FileRecord{activityFile("t1__feed_20250908.csv", "2025-09-08T08:00:00Z", tt.currentRows)}
			evidence, err := detectVolumeVariation("", daily, lastWeek, "2025-09-08")
			if err != nil {
				t.Fatalf("detectVolumeVariation() error = %v", err)
			}
			if tt.wantContext == "" {
				if len(evidence) != 0 {
					t.Fatalf("expected no volume evidence, got %#v", evidence)
				}
				return
			}
			if len(evidence) != 1 || evidence[0].Context != tt.wantContext {
				t.Fatalf("expected context %q, got %#v", tt.wantContext, evidence)
			}
			if evidence[0].LastWeekRows == nil || *evidence[0].LastWeekRows != 1000 {
				t.Fatalf("expected last week rows 1000, got %v", evidence[0].LastWeekRows)
			}
		})
	}
}

func TestDetectVolumeVariationZeroLastWeekStaysQuiet(t *testing.T) {
	daily := []domain.FileRecord{activityFile("t1__feed_20250908.csv", "", 5000)}
	evidence, err := detectVolumeVariation("", daily, nil, "2025-09-08")
	if err != nil {
		t.Fatalf("detectVolumeVariation() error = %v", err)
	}
	if len(evidence) != 0 {
		t.Fatalf("no last-week rows means no ratio check, got %#v", evidence)
	}
}

func TestDetectVolumeVariationContractBound(t *testing.T) {
	cv := "Normal (95%) interval: 0 - 2500\n"

	atBound := []domain.FileRecord{activityFile("a.csv", "", 2500)}
	evidence, err := detectVolumeVariation(cv, atBound, nil, "2025-09-08")
	if err != nil {
		t.Fatalf("detectVolumeVariation() error = %v", err)
	}
	if len(evidence) != 0 {
		t.Fatalf("rows exactly at the bound stay quiet, got %#v", evidence)
	}

	overBound := []domain.FileRecord{activityFile("a.csv", "", 2501)}
	evidence, err = detectVolumeVariation(cv, overBound, nil, "2025-09-08")
	if err != nil {
		t.Fatalf("detectVolumeVariation() error = %v", err)
	}
	if len(evidence) != 1 || evidence[0].Context != "95pct" {
		t.Fatalf("expected 95pct bound evidence, got %#v", evidence)
	}
	if evidence[0].UpperBound == nil || *evidence[0].UpperBound != 2500 {
		t.Fatalf("expected upper bound 2500, got %v", evidence[0].UpperBound)
	}
	if evidence[0].CurrentRows != 2501 {
		t.Fatalf("expected current rows 2501, got %d", evidence[0].CurrentRows)
	}
}

func TestDetectVolumeVariationFallsBackToWeekdayMax(t *testing.T) {
	cv := "### Day-of-Week Summary\n| Monday | Max: 2,500 |\n\nNormal (95%) interval: 0 - 0\n"
	daily := []domain.FileRecord{activityFile("a.csv", "", 2600)}

	evidence, err := detectVolumeVariation(cv, daily, nil, "2025-09-08")
	if err != nil {
		t.Fatalf("detectVolumeVariation() error = %v", err)
	}
	if len(evidence) != 1 || evidence[0].Context != "day_max" {
		t.Fatalf("expected day_max bound evidence, got %#v", evidence)
	}
	if evidence[0].UpperBound == nil || *evidence[0].UpperBound != 2500 {
		t.Fatalf("expected weekday max 2500, got %v", evidence[0].UpperBound)
	}
}

func TestDetectScheduleAnomaly(t *testing.T) {
	daily := []domain.FileRecord{
		activityFile("on_time.csv", "2025-09-08T08:10:00Z", 10),
		activityFile("late_at_margin.csv", "2025-09-08T12:18:00Z", 10),
		activityFile("late_past_margin.csv", "2025-09-08T12:18:01Z", 10),
		activityFile("early_at_margin.csv", "2025-09-08T04:08:00Z", 10),
		activityFile("early_past_margin.csv", "2025-09-08T04:07:59Z", 10),
		activityFile("no_timestamp.csv", "", 10),
		activityFile("bad_timestamp.csv", "yesterday", 10),
	}

	evidence := detectScheduleAnomaly(contractFixture, daily, "2025-09-08")
	if len(evidence) != 1 {
		t.Fatalf("expected one schedule entry, got %#v", evidence)
	}
	want := []string{"late_past_margin.csv", "early_past_margin.csv"}
	if !reflect.DeepEqual(evidence[0].Files, want) {
		t.Fatalf("expected files %v, got %v", want, evidence[0].Files)
	}
	if evidence[0].Window != "08:08:00–08:18:00" {
		t.Fatalf("unexpected window %q", evidence[0].Window)
	}
}

func TestDetectScheduleAnomalyEarlyMarginBeforeMidnight(t *testing.T) {
	cv := "Upload Time Window Expected | 03:00:00–06:00:00\n"
	daily := []domain.FileRecord{
		activityFile("after_midnight.csv", "2025-09-08T00:00:00Z", 1),
		activityFile("late_evening.csv", "2025-09-08T23:30:00Z", 1),
	}

	// The early margin lands on the previous day, so the early side cannot
	// fire; the evening upload reads as late on the same-day clock.
	evidence := detectScheduleAnomaly(cv, daily, "2025-09-08")
	if len(evidence) != 1 {
		t.Fatalf("expected one schedule entry, got %#v", evidence)
	}
	if !reflect.DeepEqual(evidence[0].Files, []string{"late_evening.csv"}) {
		t.Fatalf("unexpected files %v", evidence[0].Files)
	}
}

func TestDetectScheduleAnomalyWithoutUsableWindow(t *testing.T) {
	daily := []domain.FileRecord{activityFile("f.csv", "2025-09-08T23:00:00Z", 1)}

	if got := detectScheduleAnomaly("# No window\n", daily, "2025-09-08"); len(got) != 0 {
		t.Fatalf("missing window should disable the check, got %#v", got)
	}
	if got := detectScheduleAnomaly("Upload Time Window Expected | daily\n", daily, "2025-09-08"); len(got) != 0 {
		t.Fatalf("non-range window should disable the check, got %#v", got)
	}
}

func TestDetectDuplicates(t *testing.T) {
	daily := []domain.FileRecord{
		{Filename: "dup_flag.csv", IsDuplicated: true, Rows: 5},
		{Filename: "stopped.csv", Status: "STOPPED", Rows: 5},
		{Filename: "repeated.csv", Rows: 5},
		{Filename: "repeated.csv", Rows: 7},
		{Filename: "healthy.csv", Status: "processed", Rows: 5},
		{Filename: "", IsDuplicated: true},
	}

	evidence := detectDuplicates(daily)
	if len(evidence) != 1 {
		t.Fatalf("expected one duplicated entry, got %#v", evidence)
	}
	want := []string{"dup_flag.csv", "repeated.csv", "stopped.csv"}
	if !reflect.DeepEqual(evidence[0].Files, want) {
		t.Fatalf("expected files %v, got %v", want, evidence[0].Files)
	}
}

func TestDetectDuplicatesQuietWhenClean(t *testing.T) {
	daily := []domain.FileRecord{{Filename: "a.csv", Status: "processed", Rows: 3}}
	if got := detectDuplicates(daily); len(got) != 0 {
		t.Fatalf("expected no duplicated evidence, got %#v", got)
	}
}

func TestDetectUnexpectedEmpty(t *testing.T) {
	daily := []domain.FileRecord{
		{Filename: "empty.csv", Rows: 0},
		{Filename: "full.csv", Rows: 10},
	}

	evidence := detectUnexpectedEmpty(contractFixture, daily, "2025-09-08")
	if len(evidence) != 1 {
		t.Fatalf("expected one empty-files entry, got %#v", evidence)
	}
	if !reflect.DeepEqual(evidence[0].Files, []string{"empty.csv"}) {
		t.Fatalf("unexpected files %v", evidence[0].Files)
	}
	if !evidence[0].CVMentionsEmpty {
		t.Fatalf("contract mentions allowed empty files, flag should be true")
	}
	if evidence[0].Date != "2025-09-08" {
		t.Fatalf("unexpected date %q", evidence[0].Date)
	}

	evidence = detectUnexpectedEmpty("# Strict contract\n", daily, "2025-09-08")
	if evidence[0].CVMentionsEmpty {
		t.Fatalf("contract without the clause should leave the flag false")
	}

	if got := detectUnexpectedEmpty(contractFixture, []domain.FileRecord{{Filename: "full.csv", Rows: 1}}, "2025-09-08"); len(got) != 0 {
		t.Fatalf("expected no empty-files evidence, got %#v", got)
	}
}

func TestDetectHistoricalUploads(t *testing.T) {
	daily := []domain.FileRecord{
		activityFile("a1__report_20250908.csv", "", 1),
		activityFile("b2__report_20250901.csv", "", 1),
		activityFile("c3__report.csv", "", 1),
		// underscore dates never match the compact token, so the file reads
		// as dateless and gets flagged for the consumer to assess
		activityFile("d4__report_2025_09_08.csv", "", 1),
		activityFile("archive/20250908_nested.csv", "", 1),
	}

	evidence := detectHistoricalUploads(daily, "2025-09-08")
	if len(evidence) != 1 {
		t.Fatalf("expected one historical entry, got %#v", evidence)
	}
	want := []string{"b2__report_20250901.csv", "c3__report.csv", "d4__report_2025_09_08.csv"}
	if !reflect.DeepEqual(evidence[0].Files, want) {
		t.Fatalf("expected files %v, got %v", want, evidence[0].Files)
	}
}

func TestDetectHistoricalUploadsQuietForToday(t *testing.T) {
	daily := []domain.FileRecord{activityFile("a1__report_20250908.csv", "", 1)}
	if got := detectHistoricalUploads(daily, "2025-09-08"); len(got) != 0 {
		t.Fatalf("expected no historical evidence, got %#v", got)
	}
}
