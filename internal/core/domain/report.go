package domain

import "time"

type Severity string

const (
	SeverityUrgent         Severity = "urgent"
	SeverityNeedsAttention Severity = "needs_attention"
	SeverityAllGood        Severity = "all_good"
)

// JudgeInput is everything a severity judge may consider for one source.
type JudgeInput struct {
	SourceID      string         `json:"source_id"`
	DisplayName   string         `json:"display_name"`
	ExecutionDate string         `json:"execution_date"`
	ExpectedFiles *int           `json:"expected_files"`
	FilesToday    int            `json:"files_today"`
	FilesLastWeek int            `json:"files_last_week"`
	RowsToday     int            `json:"rows_today"`
	RowsLastWeek  int            `json:"rows_last_week"`
	UploadWindow  string         `json:"upload_window,omitempty"`
	Evidence      EvidenceBundle `json:"evidence"`
}

// SeverityAssessment is one judged source inside a report run.
type SeverityAssessment struct {
	SourceID       string         `json:"source_id"`
	DisplayName    string         `json:"display_name"`
	Severity       Severity       `json:"severity"`
	Headline       string         `json:"headline"`
	Action         string         `json:"action"`
	EvidenceCounts map[string]int `json:"evidence_counts"`
}

// Report is the outcome of one report run.
type Report struct {
	RunID          string               `json:"run_id"`
	ExecutionDate  string               `json:"execution_date"`
	Weekday        string               `json:"weekday"`
	Assessments    []SeverityAssessment `json:"assessments"`
	Markdown       string               `json:"markdown"`
	Model          string               `json:"model"`
	Fallback       bool                 `json:"fallback"`
	FallbackReason string               `json:"fallback_reason,omitempty"`
	JudgeFallbacks int                  `json:"judge_fallbacks"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     time.Time            `json:"finished_at"`
}

// SeverityCount returns how many assessments carry the given severity.
func (r *Report) SeverityCount(severity Severity) int {
	n := 0
	for _, a := range r.Assessments {
		if a.Severity == severity {
			n++
		}
	}
	return n
}

// NarrateLimits bounds the narrator's agent loop.
type NarrateLimits struct {
	MaxSteps    int
	Timeout     time.Duration
	StepTimeout time.Duration
}

// ReportReadyEvent is published after a run completes.
type ReportReadyEvent struct {
	RunID          string    `json:"run_id"`
	ExecutionDate  string    `json:"execution_date"`
	Urgent         int       `json:"urgent"`
	NeedsAttention int       `json:"needs_attention"`
	AllGood        int       `json:"all_good"`
	Fallback       bool      `json:"fallback"`
	GeneratedAt    time.Time `json:"generated_at"`
}
