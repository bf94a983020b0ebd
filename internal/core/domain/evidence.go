package domain

// Evidence carries observed facts only. Severity judgment is deferred to the
// downstream reasoning agent; every entry says so in its note.

// FileSummary is the compact per-file view embedded in comparison evidence.
// CoverageDate and Entity are derived from the filename, not from the payload.
type FileSummary struct {
	Filename     string `json:"filename"`
	UploadedAt   string `json:"uploaded_at,omitempty"`
	CoverageDate string `json:"coverage_date,omitempty"`
	Rows         int    `json:"rows"`
	Entity       string `json:"entity,omitempty"`
	Status       string `json:"status,omitempty"`
}

// ComparisonEvidence lays today's files next to last week's so the consumer
// can decide what is actually missing for the weekday.
type ComparisonEvidence struct {
	Type            string        `json:"type"`
	ExecutionDate   string        `json:"execution_date"`
	DailySummary    []FileSummary `json:"daily_files_summary"`
	LastWeekSummary []FileSummary `json:"last_week_files_summary"`
	Note            string        `json:"note"`
}

// FileListEvidence names the files behind a duplicated or historical signal.
type FileListEvidence struct {
	Type  string   `json:"type"`
	Files []string `json:"files"`
	Note  string   `json:"note"`
}

type EmptyFilesEvidence struct {
	Type            string   `json:"type"`
	Files           []string `json:"files"`
	Date            string   `json:"date"`
	CVMentionsEmpty bool     `json:"cv_mentions_empty"`
	Note            string   `json:"note"`
}

// VolumeEvidence reports row-count deviations. The optional fields depend on
// which check fired: the contract bound check carries UpperBound, the
// week-over-week check carries LastWeekRows and ChangeRatio.
type VolumeEvidence struct {
	Type         string   `json:"type"`
	CurrentRows  int      `json:"current_rows"`
	LastWeekRows *int     `json:"last_week_rows,omitempty"`
	UpperBound   *int     `json:"upper_bound,omitempty"`
	ChangeRatio  *float64 `json:"change_ratio,omitempty"`
	Context      string   `json:"context"`
	Note         string   `json:"note"`
}

type ScheduleEvidence struct {
	Type   string   `json:"type"`
	Files  []string `json:"files"`
	Window string   `json:"window"`
	Date   string   `json:"date"`
	Note   string   `json:"note"`
}

// EvidenceBundle groups the six signal categories for one source and one
// execution date. Empty categories marshal as empty arrays, not null.
type EvidenceBundle struct {
	Missing    []ComparisonEvidence `json:"missing"`
	Duplicated []FileListEvidence   `json:"duplicated"`
	Empty      []EmptyFilesEvidence `json:"empty"`
	Volume     []VolumeEvidence     `json:"volume_variation"`
	Schedule   []ScheduleEvidence   `json:"schedule"`
	Historical []FileListEvidence   `json:"historical"`
}

// Kinds lists the categories that hold at least one entry, in a fixed order.
func (b EvidenceBundle) Kinds() []string {
	kinds := make([]string, 0, 6)
	if len(b.Missing) > 0 {
		kinds = append(kinds, "missing")
	}
	if len(b.Duplicated) > 0 {
		kinds = append(kinds, "duplicated")
	}
	if len(b.Empty) > 0 {
		kinds = append(kinds, "empty")
	}
	if len(b.Volume) > 0 {
		kinds = append(kinds, "volume_variation")
	}
	if len(b.Schedule) > 0 {
		kinds = append(kinds, "schedule")
	}
	if len(b.Historical) > 0 {
		kinds = append(kinds, "historical")
	}
	return kinds
}

// Count returns the total number of evidence entries across all categories.
func (b EvidenceBundle) Count() int {
	return len(b.Missing) + len(b.Duplicated) + len(b.Empty) +
		len(b.Volume) + len(b.Schedule) + len(b.Historical)
}

// CountByKind maps each category name to its entry count, including zeroes.
func (b EvidenceBundle) CountByKind() map[string]int {
	return map[string]int{
		"missing":          len(b.Missing),
		"duplicated":       len(b.Duplicated),
		"empty":            len(b.Empty),
		"volume_variation": len(b.Volume),
		"schedule":         len(b.Schedule),
		"historical":       len(b.Historical),
	}
}
