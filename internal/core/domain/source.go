package domain

import "sort"

// FileRecord is one file-ingestion event from the activity payload.
type FileRecord struct {
	Filename     string `json:"filename"`
	UploadedAt   string `json:"uploaded_at"`
	Rows         int    `json:"rows"`
	Status       string `json:"status"`
	IsDuplicated bool   `json:"is_duplicated"`
}

// Activity holds the raw per-source file listings for one execution date:
// the day itself and the same weekday one week earlier.
type Activity struct {
	Daily       map[string][]FileRecord `json:"daily"`
	LastWeekday map[string][]FileRecord `json:"last_weekday"`
}

// SourceRecord is the consolidated view of one source for one execution date.
type SourceRecord struct {
	SourceID      string         `json:"source_id"`
	ContractText  string         `json:"cv_text"`
	DailyFiles    []FileRecord   `json:"daily_files"`
	LastWeekFiles []FileRecord   `json:"last_week_files"`
	Evidence      EvidenceBundle `json:"incidents"`
}

// Dataset is the in-memory result of one consolidation run. It is built once
// and only read afterwards.
type Dataset struct {
	ExecutionDate string
	Sources       map[string]*SourceRecord
}

// SourceIDs returns the dataset keys in sorted order.
func (d *Dataset) SourceIDs() []string {
	ids := make([]string, 0, len(d.Sources))
	for id := range d.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Feedback carries operator feedback rows loaded from CSV. The core never
// interprets them; they are passed through to exports verbatim.
type Feedback struct {
	Headers []string
	Rows    []map[string]string
}
