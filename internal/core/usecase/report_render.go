package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

var evidenceActions = map[string]string{
	"missing":          "Notify provider to generate/re-send; re-run ingestion and verify completeness.",
	"volume_variation": "Confirm coverage/window; monitor next run. Validate downstream completed.",
	"schedule":         "Confirm schedule change; adjust downstream triggers if needed.",
	"historical":       "Identify if this is an intentional historical upload or a system anomaly.",
	"duplicated":       "Investigate the root cause of duplicated files. Check data pipeline for errors.",
	"empty":            "Investigate the root cause of unexpected empty files. Confirm data integrity.",
}

const defaultAction = "Investigate root cause and take corrective actions as needed."

// ActionForKind returns the recommended operator action for an evidence kind.
func ActionForKind(kind string) string {
	if action, ok := evidenceActions[kind]; ok {
		return action
	}
	return defaultAction
}

// RenderReport builds the report markdown deterministically from classified
// assessments. It is the fallback used whenever the narrator model is
// disabled or fails, so it follows the same template the narrator is told to
// follow.
func RenderReport(assessments []domain.SeverityAssessment, generatedAt time.Time) string {
	grouped := map[domain.Severity][]domain.SeverityAssessment{}
	for _, assessment := range assessments {
		grouped[assessment.Severity] = append(grouped[assessment.Severity], assessment)
	}
	for _, entries := range grouped {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].DisplayName < entries[j].DisplayName
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Report generated at UTC HOUR*: %s UTC\n", generatedAt.UTC().Format("15:04"))
	writeReportSection(&b, "*  Urgent Action Required*", grouped[domain.SeverityUrgent], true)
	b.WriteString("\n")
	writeReportSection(&b, "*  Needs Attention*", grouped[domain.SeverityNeedsAttention], true)
	b.WriteString("\n")
	writeReportSection(&b, "*  All Good*", grouped[domain.SeverityAllGood], false)
	return b.String()
}

func writeReportSection(b *strings.Builder, title string, entries []domain.SeverityAssessment, withAction bool) {
	b.WriteString(title)
	b.WriteString("\n")
	for _, entry := range entries {
		if withAction {
			action := entry.Action
			if action == "" {
				action = defaultAction
			}
			fmt.Fprintf(b, "• * %s (id: %s)* – %s → *Action:* %s\n", entry.DisplayName, entry.SourceID, entry.Headline, action)
			continue
		}
		fmt.Fprintf(b, "• * %s (id: %s)* – %s\n", entry.DisplayName, entry.SourceID, entry.Headline)
	}
}

// PrettyFilename trims the provider hash prefix from uploaded filenames for
// report bullets. Filenames without the double-underscore separator are kept
// as is.
func PrettyFilename(filename string) string {
	if idx := strings.Index(filename, "__"); idx >= 0 {
		return "*" + filename[idx+2:]
	}
	return filename
}
