package usecase

import (
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

// Signal detectors report observed facts only; severity judgment belongs to
// the downstream reasoning agent and every evidence note says so. The one
// interpretation rule detectors do NOT apply — a volume decrease that is
// fully explained by missing files — is likewise left to the consumer.

const (
	evidenceTypeComparison = "file_comparison_data"
	evidenceTypeDuplicated = "duplicated_or_failed_data"
	evidenceTypeEmpty      = "empty_files_data"
	evidenceTypeVolume     = "volume_variation_data"
	evidenceTypeSchedule   = "schedule_anomaly_data"
	evidenceTypeHistorical = "historical_upload_data"
)

// DetectSignals computes the six evidence categories for one source. The
// daily slice must already be filtered to the execution date. Only a
// malformed contract threshold can fail the call; every other oddity
// degrades to "no evidence".
func DetectSignals(cvText string, daily, lastWeek []domain.FileRecord, executionDate string) (domain.EvidenceBundle, error) {
	volume, err := detectVolumeVariation(cvText, daily, lastWeek, executionDate)
	if err != nil {
		return domain.EvidenceBundle{}, err
	}

	return domain.EvidenceBundle{
		Missing:    detectMissingComparison(daily, lastWeek, executionDate),
		Duplicated: detectDuplicates(daily),
		Empty:      detectUnexpectedEmpty(cvText, daily, executionDate),
		Volume:     volume,
		Schedule:   detectScheduleAnomaly(cvText, daily, executionDate),
		Historical: detectHistoricalUploads(daily, executionDate),
	}, nil
}

// detectMissingComparison never decides what is missing: it lays today's
// files next to last week's and lets the consumer subtract.
func detectMissingComparison(daily, lastWeek []domain.FileRecord, executionDate string) []domain.ComparisonEvidence {
	return []domain.ComparisonEvidence{{
		Type:            evidenceTypeComparison,
		ExecutionDate:   executionDate,
		DailySummary:    summarizeFiles(daily),
		LastWeekSummary: summarizeFiles(lastWeek),
		Note:            "LLM should analyze CV patterns and decide what files are expected vs actually missing based on day of week, lag rules, etc.",
	}}
}

func summarizeFiles(files []domain.FileRecord) []domain.FileSummary {
	summaries := make([]domain.FileSummary, 0, len(files))
	for _, f := range files {
		meta := ParsePatternMeta(f.Filename)
		summaries = append(summaries, domain.FileSummary{
			Filename:     f.Filename,
			UploadedAt:   f.UploadedAt,
			CoverageDate: meta.CoverageDate,
			Rows:         f.Rows,
			Entity:       meta.Entity,
			Status:       f.Status,
		})
	}
	return summaries
}

func detectDuplicates(daily []domain.FileRecord) []domain.FileListEvidence {
	var flagged []string
	seen := map[string]int{}

	for _, item := range daily {
		if item.Filename == "" {
			continue
		}
		if item.IsDuplicated || strings.ToLower(item.Status) == "stopped" {
			flagged = append(flagged, item.Filename)
		}
		seen[item.Filename]++
	}

	var repeated []string
	for name, count := range seen {
		if count > 1 {
			repeated = append(repeated, name)
		}
	}

	if len(flagged) == 0 && len(repeated) == 0 {
		return []domain.FileListEvidence{}
	}

	return []domain.FileListEvidence{{
		Type:  evidenceTypeDuplicated,
		Files: dedupeSorted(append(flagged, repeated...)),
		Note:  "LLM should evaluate if duplicates/failures are critical based on CV and business rules",
	}}
}

func dedupeSorted(names []string) []string {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func detectUnexpectedEmpty(cvText string, daily []domain.FileRecord, executionDate string) []domain.EmptyFilesEvidence {
	var empty []string
	for _, item := range daily {
		if item.Rows == 0 {
			empty = append(empty, item.Filename)
		}
	}
	if len(empty) == 0 {
		return []domain.EmptyFilesEvidence{}
	}

	return []domain.EmptyFilesEvidence{{
		Type:            evidenceTypeEmpty,
		Files:           empty,
		Date:            executionDate,
		CVMentionsEmpty: strings.Contains(strings.ToLower(cvText), "allow empty"),
		Note:            "LLM should evaluate if empty files are normal based on CV rules and day patterns",
	}}
}

// detectVolumeVariation checks today's total row count against the contract
// bound (or the weekday max when no bound exists) and against the same
// weekday one week earlier. The two checks are independent entries and may
// both fire.
func detectVolumeVariation(cvText string, daily, lastWeek []domain.FileRecord, executionDate string) ([]domain.VolumeEvidence, error) {
	currentRows := sumRows(daily)
	lastWeekRows := sumRows(lastWeek)

	threshold, hasThreshold, err := VolumeThreshold(cvText)
	if err != nil {
		return nil, err
	}

	dayKey := ""
	if t, perr := time.Parse("2006-01-02", executionDate); perr == nil {
		dayKey = strings.ToLower(t.Format("Mon"))
	}
	dayInfo := DayStats(cvText)[dayKey]

	volume := []domain.VolumeEvidence{}

	upperBound := 0
	boundContext := ""
	if hasThreshold && threshold != 0 {
		upperBound = threshold
		boundContext = "95pct"
	} else if dayMax, ok := dayInfo["max"]; ok && dayMax != 0 {
		upperBound = dayMax
		boundContext = "day_max"
	}
	if upperBound != 0 && currentRows > upperBound {
		bound := upperBound
		volume = append(volume, domain.VolumeEvidence{
			Type:        evidenceTypeVolume,
			CurrentRows: currentRows,
			UpperBound:  &bound,
			Context:     boundContext,
			Note:        "LLM should evaluate if this volume spike is concerning based on CV patterns",
		})
	}

	if lastWeekRows > 0 {
		ratio := float64(currentRows) / float64(lastWeekRows)
		if ratio > 1.5 {
			lw, r := lastWeekRows, ratio
			volume = append(volume, domain.VolumeEvidence{
				Type:         evidenceTypeVolume,
				CurrentRows:  currentRows,
				LastWeekRows: &lw,
				ChangeRatio:  &r,
				Context:      "week_comparison_increase",
				Note:         "LLM should evaluate if this volume increase is normal based on CV and business context",
			})
		} else if ratio < 0.5 {
			lw, r := lastWeekRows, ratio
			volume = append(volume, domain.VolumeEvidence{
				Type:         evidenceTypeVolume,
				CurrentRows:  currentRows,
				LastWeekRows: &lw,
				ChangeRatio:  &r,
				Context:      "week_comparison_decrease",
				Note:         "LLM should evaluate if this volume decrease is normal based on CV and business context",
			})
		}
	}

	return volume, nil
}

// detectScheduleAnomaly flags uploads landing more than four hours outside
// the contract window. Margins are computed on a shared reference date, so a
// margin that would cross midnight effectively disables that side's check.
func detectScheduleAnomaly(cvText string, daily []domain.FileRecord, executionDate string) []domain.ScheduleEvidence {
	window := UploadWindow(cvText)
	if window == "" {
		return []domain.ScheduleEvidence{}
	}

	segments := strings.Split(window, "–")
	if len(segments) != 2 {
		return []domain.ScheduleEvidence{}
	}
	start, err := time.Parse("15:04:05", strings.TrimSpace(segments[0]))
	if err != nil {
		return []domain.ScheduleEvidence{}
	}
	end, err := time.Parse("15:04:05", strings.TrimSpace(segments[1]))
	if err != nil {
		return []domain.ScheduleEvidence{}
	}

	lateMargin := clockOnRef(end).Add(4 * time.Hour)
	earlyMargin := clockOnRef(start).Add(-4 * time.Hour)

	var anomalies []string
	for _, item := range daily {
		if item.UploadedAt == "" {
			continue
		}
		ts, perr := time.Parse(time.RFC3339, item.UploadedAt)
		if perr != nil {
			continue
		}
		uploadDt := clockOnRef(ts)
		if uploadDt.After(lateMargin) || uploadDt.Before(earlyMargin) {
			anomalies = append(anomalies, item.Filename)
		}
	}

	if len(anomalies) == 0 {
		return []domain.ScheduleEvidence{}
	}

	return []domain.ScheduleEvidence{{
		Type:   evidenceTypeSchedule,
		Files:  anomalies,
		Window: window,
		Date:   executionDate,
		Note:   "LLM should evaluate if timing anomalies are concerning based on CV patterns and business context",
	}}
}

var scheduleRefDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// clockOnRef projects a timestamp's wall-clock time onto the shared
// reference date, preserving sub-second precision.
func clockOnRef(t time.Time) time.Time {
	h, m, s := t.Clock()
	return scheduleRefDate.
		Add(time.Duration(h) * time.Hour).
		Add(time.Duration(m) * time.Minute).
		Add(time.Duration(s) * time.Second).
		Add(time.Duration(t.Nanosecond()))
}

// detectHistoricalUploads flags files whose embedded dates all disagree with
// the execution date, or that carry no recognizable date at all.
func detectHistoricalUploads(daily []domain.FileRecord, executionDate string) []domain.FileListEvidence {
	dateToken := strings.ReplaceAll(executionDate, "-", "")

	var historical []string
	for _, item := range daily {
		filename := item.Filename
		if strings.Contains(filename, dateToken) {
			continue
		}

		matches := digitRunRe.FindAllString(baseName(filename), -1)
		if len(matches) == 0 {
			historical = append(historical, filename)
			continue
		}
		for _, m := range matches {
			if m != dateToken {
				historical = append(historical, filename)
				break
			}
		}
	}

	if len(historical) == 0 {
		return []domain.FileListEvidence{}
	}

	return []domain.FileListEvidence{{
		Type:  evidenceTypeHistorical,
		Files: historical,
		Note:  "LLM should evaluate if historical uploads are concerning or normal maintenance based on CV and business context",
	}}
}

func sumRows(files []domain.FileRecord) int {
	total := 0
	for _, f := range files {
		total += f.Rows
	}
	return total
}
