package domain

// Payload types for the read-only query surface consumed by the reasoning
// agent. Field names are part of the collaborator contract and must stay
// stable across the HTTP, MCP and in-process callers.

// SourceOverview is one row of the list_sources answer. Pointer fields
// serialize as null when the underlying value is unknown.
type SourceOverview struct {
	SourceID         string  `json:"source_id"`
	DisplayName      string  `json:"display_name"`
	FilesToday       int     `json:"files_today"`
	FilesLastWeekday int     `json:"files_last_weekday"`
	ExpectedFiles    *int    `json:"expected_files"`
	HasCV            bool    `json:"has_cv"`
	FirstUploadUTC   *string `json:"first_upload_utc"`
	LastUploadUTC    *string `json:"last_upload_utc"`
}

type SourceList struct {
	ExecutionDate string           `json:"execution_date"`
	Sources       []SourceOverview `json:"sources"`
}

// AnalysisContext gives the agent cheap aggregates so it can budget its own
// reading of the full payload.
type AnalysisContext struct {
	TotalDailyFiles       int      `json:"total_daily_files"`
	TotalDailyRecords     int      `json:"total_daily_records"`
	TotalLastWeekFiles    int      `json:"total_last_week_files"`
	TotalLastWeekRecords  int      `json:"total_last_week_records"`
	CVLength              int      `json:"cv_length"`
	IncidentTypesDetected []string `json:"incident_types_detected"`
}

// SourceDetail is the full get_source_cv_and_data answer for one source.
type SourceDetail struct {
	SourceID        string          `json:"source_id"`
	ExecutionDate   string          `json:"execution_date"`
	ContractText    string          `json:"cv_text"`
	DailyFiles      []FileRecord    `json:"daily_files"`
	LastWeekFiles   []FileRecord    `json:"last_week_files"`
	Evidence        EvidenceBundle  `json:"incidents"`
	AnalysisContext AnalysisContext `json:"analysis_context"`
}

// SourceNotFound is the structured marker returned for unknown source ids.
// It is a payload, not an error: agents are expected to keep going.
type SourceNotFound struct {
	SourceID string `json:"source_id"`
	Error    string `json:"error"`
}

const SourceNotFoundMarker = "SOURCE_NOT_FOUND"

// ExecutionDateInfo resolves the execution date to the weekday labels used
// by contract tables.
type ExecutionDateInfo struct {
	ExecutionDate string `json:"execution_date"`
	Weekday       string `json:"weekday"`
	WeekdayAbbr   string `json:"weekday_abbr"`
	TableHint     string `json:"table_hint"`
}
