package usecase

import (
	"testing"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

const contractFixture = `# Acme Payments Settlement

## Operational Details
- **Source ID** | 220504
- **Upload Time Window Expected** | 08:08:00–08:18:00

## Data Volume
### Day-of-Week Summary
| Day | Rows |
|-----|------|
| Monday | Min: 1,200 Max: 2,500 Mean: 1,800 Median: 1,750 |
| Sunday | Min: 0 Max: 0 Mean: 0 Median: 0 |

Normal (95%) interval: 0 - 2500

## File Processing Statistics by Day
| Day | Mean Files | Median Files | Mode Files |
|-----|------------|--------------|------------|
| Mon | 16 | 16 | 16 |
| Tue | 2 | 2 | 2 |
| Sun | 0 | 0 | 0 |

## Notes
Provider contract may allow empty files on Sunday.
`

func TestDayStats(t *testing.T) {
	stats := DayStats(contractFixture)

	mon, ok := stats["mon"]
	if !ok {
		t.Fatalf("expected monday stats, got %v", stats)
	}
	if mon["min"] != 1200 || mon["max"] != 2500 || mon["mean"] != 1800 || mon["median"] != 1750 {
		t.Fatalf("unexpected monday stats: %v", mon)
	}

	sun, ok := stats["sun"]
	if !ok {
		t.Fatalf("expected sunday stats, got %v", stats)
	}
	if sun["max"] != 0 {
		t.Fatalf("unexpected sunday max: %v", sun)
	}

	if _, ok := stats["tue"]; ok {
		t.Fatalf("tuesday has no row in the summary table, got %v", stats)
	}
}

func TestDayStatsStopsAtFirstBlankLine(t *testing.T) {
	text := "### Day-of-Week Summary\n\n| Monday | Min: 10 Max: 20 |\n"
	if stats := DayStats(text); len(stats) != 0 {
		t.Fatalf("blank line right after the heading should end the scan, got %v", stats)
	}
}

func TestDayStatsSkipsUnparsableNumbers(t *testing.T) {
	text := "### Day-of-Week Summary\n| Monday | Min: 1.5 Max: 2,500 |\n"
	stats := DayStats(text)
	mon := stats["mon"]
	if _, ok := mon["min"]; ok {
		t.Fatalf("fractional min should be skipped, got %v", mon)
	}
	if mon["max"] != 2500 {
		t.Fatalf("expected comma-stripped max 2500, got %v", mon)
	}
}

func TestExpectedFiles(t *testing.T) {
	tests := []struct {
		name          string
		executionDate string
		want          int
		wantOK        bool
	}{
		{name: "monday row", executionDate: "2025-09-08", want: 16, wantOK: true},
		{name: "tuesday row", executionDate: "2025-09-09", want: 2, wantOK: true},
		{name: "sunday row asserts zero", executionDate: "2025-09-14", want: 0, wantOK: true},
		{name: "weekday without a row", executionDate: "2025-09-10", want: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExpectedFiles(contractFixture, tt.executionDate)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("ExpectedFiles(%q) = (%d, %v), want (%d, %v)", tt.executionDate, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExpectedFilesWithoutContract(t *testing.T) {
	if _, ok := ExpectedFiles("", "2025-09-08"); ok {
		t.Fatalf("empty contract must not assert an expectation")
	}
	if _, ok := ExpectedFiles(contractFixture, "not-a-date"); ok {
		t.Fatalf("unparseable execution date must not assert an expectation")
	}
}

func TestUploadWindow(t *testing.T) {
	if got := UploadWindow(contractFixture); got != "08:08:00–08:18:00" {
		t.Fatalf("unexpected window %q", got)
	}
	if got := UploadWindow("# No window here\n"); got != "" {
		t.Fatalf("expected empty window, got %q", got)
	}
}

func TestVolumeThreshold(t *testing.T) {
	n, ok, err := VolumeThreshold(contractFixture)
	if err != nil {
		t.Fatalf("VolumeThreshold() error = %v", err)
	}
	if !ok || n != 2500 {
		t.Fatalf("expected threshold 2500, got (%d, %v)", n, ok)
	}
}

func TestVolumeThresholdAbsent(t *testing.T) {
	_, ok, err := VolumeThreshold("# Contract without interval\n")
	if err != nil {
		t.Fatalf("VolumeThreshold() error = %v", err)
	}
	if ok {
		t.Fatalf("expected no threshold")
	}
}

func TestVolumeThresholdMalformed(t *testing.T) {
	_, _, err := VolumeThreshold("Normal (95%) interval: 0 - 2,500\n")
	if err == nil {
		t.Fatalf("expected malformed contract error")
	}
	if !domain.IsKind(err, domain.ErrMalformedContract) {
		t.Fatalf("expected ErrMalformedContract, got %v", err)
	}
}

func TestContractTitle(t *testing.T) {
	if got := ContractTitle(contractFixture); got != "Acme Payments Settlement" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := ContractTitle("no heading at all"); got != "" {
		t.Fatalf("expected empty title, got %q", got)
	}
}

func TestWeekdayLabels(t *testing.T) {
	weekday, abbr, err := WeekdayLabels("2025-09-08")
	if err != nil {
		t.Fatalf("WeekdayLabels() error = %v", err)
	}
	if weekday != "Monday" || abbr != "Mon" {
		t.Fatalf("expected Monday/Mon, got %q/%q", weekday, abbr)
	}

	if _, _, err := WeekdayLabels("09/08/2025"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
