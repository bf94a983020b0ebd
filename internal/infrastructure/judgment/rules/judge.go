package rules

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
	"github.com/kirillkom/ingest-sentinel/internal/core/usecase"
)

var windowTimeRe = regexp.MustCompile(`\d{2}:\d{2}`)

// Judge classifies one source deterministically: a file shortfall against the
// contract table is urgent, three or more secondary signals are urgent, any
// secondary signal needs attention, everything else is good. It never errors,
// which makes it the terminal fallback behind the LLM judge.
type Judge struct{}

func NewJudge() *Judge {
	return &Judge{}
}

func (j *Judge) Classify(_ context.Context, input domain.JudgeInput) (domain.SeverityAssessment, error) {
	return Compose(input, severityFor(input)), nil
}

func severityFor(input domain.JudgeInput) domain.Severity {
	needs := needsAttentionCount(input.Evidence)
	if missingShortfall(input) >= 1 || needs >= 3 {
		return domain.SeverityUrgent
	}
	if needs >= 1 {
		return domain.SeverityNeedsAttention
	}
	return domain.SeverityAllGood
}

func missingShortfall(input domain.JudgeInput) int {
	if input.ExpectedFiles == nil {
		return 0
	}
	if shortfall := *input.ExpectedFiles - input.FilesToday; shortfall > 0 {
		return shortfall
	}
	return 0
}

// needsAttentionCount counts the secondary signals. The comparison evidence
// is a data payload present on every source, so it never counts here.
func needsAttentionCount(bundle domain.EvidenceBundle) int {
	return len(bundle.Volume) + len(bundle.Schedule) + len(bundle.Historical) +
		len(bundle.Duplicated) + len(bundle.Empty)
}

// Compose builds the assessment text for an already decided severity. The
// LLM judge reuses it so both classifiers produce identical report bullets.
func Compose(input domain.JudgeInput, severity domain.Severity) domain.SeverityAssessment {
	assessment := domain.SeverityAssessment{
		SourceID:       input.SourceID,
		DisplayName:    input.DisplayName,
		Severity:       severity,
		EvidenceCounts: input.Evidence.CountByKind(),
	}

	switch severity {
	case domain.SeverityUrgent:
		if missingShortfall(input) >= 1 {
			assessment.Headline = missingHeadline(input)
			assessment.Action = usecase.ActionForKind("missing")
			return assessment
		}
		assessment.Headline, assessment.Action = signalDetail(input.Evidence)
	case domain.SeverityNeedsAttention:
		assessment.Headline, assessment.Action = signalDetail(input.Evidence)
	default:
		assessment.Headline = fmt.Sprintf("%s: `[ %d ] records`", input.ExecutionDate, input.RowsToday)
	}

	return assessment
}

func missingHeadline(input domain.JudgeInput) string {
	headline := fmt.Sprintf("%s: %d files missing", input.ExecutionDate, missingShortfall(input))
	if window := combineWindowLabel(input.UploadWindow); window != "" {
		headline += " past " + window
	}

	missing := missingLastWeekFiles(input.Evidence)
	parts := []string{headline}
	if entities := entitiesLabel(missing); entities != "" {
		parts = append(parts, "entities: "+entities)
	}
	if expected := expectedLabel(missing); expected != "" {
		parts = append(parts, "expected: "+expected)
	}
	return strings.Join(parts, " — ")
}

// signalDetail renders every secondary signal into one detail string. The
// action follows the last signal kind, matching the report conventions.
func signalDetail(bundle domain.EvidenceBundle) (string, string) {
	var descriptions []string
	action := usecase.ActionForKind("")

	for _, entry := range bundle.Volume {
		descriptions = append(descriptions, volumeDescription(entry))
		action = usecase.ActionForKind("volume_variation")
	}
	for _, entry := range bundle.Schedule {
		descriptions = append(descriptions, fmt.Sprintf("Files outside upload window %s: %s", entry.Window, prettyList(entry.Files)))
		action = usecase.ActionForKind("schedule")
	}
	for _, entry := range bundle.Historical {
		descriptions = append(descriptions, "Historical upload detected: "+prettyList(entry.Files))
		action = usecase.ActionForKind("historical")
	}
	for _, entry := range bundle.Duplicated {
		descriptions = append(descriptions, "Duplicated/failed files: "+prettyList(entry.Files))
		action = usecase.ActionForKind("duplicated")
	}
	for _, entry := range bundle.Empty {
		descriptions = append(descriptions, "Unexpected empty files: "+prettyList(entry.Files))
		action = usecase.ActionForKind("empty")
	}

	if len(descriptions) == 0 {
		return "Incident requires investigation.", usecase.ActionForKind("")
	}
	return strings.Join(descriptions, " — "), action
}

func volumeDescription(entry domain.VolumeEvidence) string {
	if entry.UpperBound != nil {
		return fmt.Sprintf("Rows %d above expected bound %d (%s)", entry.CurrentRows, *entry.UpperBound, entry.Context)
	}
	if entry.LastWeekRows != nil && entry.ChangeRatio != nil {
		return fmt.Sprintf("Rows %d vs %d last week (ratio %.2f)", entry.CurrentRows, *entry.LastWeekRows, *entry.ChangeRatio)
	}
	return fmt.Sprintf("Rows %d (%s)", entry.CurrentRows, entry.Context)
}

// missingLastWeekFiles returns the last-week files whose normalized pattern
// never showed up today: the concrete names behind the shortfall.
func missingLastWeekFiles(bundle domain.EvidenceBundle) []domain.FileSummary {
	if len(bundle.Missing) == 0 {
		return nil
	}
	comparison := bundle.Missing[0]

	todayPatterns := map[string]struct{}{}
	for _, file := range comparison.DailySummary {
		todayPatterns[usecase.NormalizePattern(file.Filename)] = struct{}{}
	}

	var missing []domain.FileSummary
	for _, file := range comparison.LastWeekSummary {
		if _, ok := todayPatterns[usecase.NormalizePattern(file.Filename)]; !ok {
			missing = append(missing, file)
		}
	}
	return missing
}

func entitiesLabel(files []domain.FileSummary) string {
	seen := map[string]struct{}{}
	for _, file := range files {
		if file.Entity != "" {
			seen[file.Entity] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return ""
	}

	entities := make([]string, 0, len(seen))
	for entity := range seen {
		entities = append(entities, entity)
	}
	sort.Strings(entities)
	return strings.Join(entities, ", ")
}

func expectedLabel(files []domain.FileSummary) string {
	seen := map[string]struct{}{}
	for _, file := range files {
		if file.Filename != "" {
			seen[file.Filename] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return ""
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	pretty := make([]string, 0, len(names))
	for _, name := range names {
		pretty = append(pretty, usecase.PrettyFilename(name))
	}

	switch {
	case len(pretty) == 1:
		return pretty[0]
	case len(pretty) <= 4:
		return strings.Join(pretty, "; ")
	default:
		return fmt.Sprintf("%s, %s, … (%d total)", pretty[0], pretty[1], len(pretty))
	}
}

// combineWindowLabel condenses a contract window like "08:08:00–08:18:00"
// into the report form "08:08–08:18 UTC". Windows without recognizable times
// pass through untouched.
func combineWindowLabel(window string) string {
	if window == "" {
		return ""
	}
	times := windowTimeRe.FindAllString(window, -1)
	if len(times) == 0 {
		return window
	}
	sort.Strings(times)
	if len(times) == 1 {
		return times[0] + " UTC"
	}
	return times[0] + "–" + times[len(times)-1] + " UTC"
}

func prettyList(files []string) string {
	pretty := make([]string, 0, len(files))
	for _, name := range files {
		pretty = append(pretty, usecase.PrettyFilename(name))
	}
	return strings.Join(pretty, ", ")
}
