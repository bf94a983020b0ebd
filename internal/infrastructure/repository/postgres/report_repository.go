package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across report/api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2025090801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS report_runs (
	run_id TEXT PRIMARY KEY,
	execution_date TEXT NOT NULL,
	weekday TEXT NOT NULL,
	markdown TEXT NOT NULL,
	model TEXT NOT NULL,
	fallback BOOLEAN NOT NULL DEFAULT FALSE,
	fallback_reason TEXT,
	judge_fallbacks INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_report_runs_date_finished ON report_runs(execution_date, finished_at DESC);

CREATE TABLE IF NOT EXISTS source_assessments (
	run_id TEXT NOT NULL REFERENCES report_runs(run_id) ON DELETE CASCADE,
	source_id TEXT NOT NULL,
	display_name TEXT NOT NULL,
	severity TEXT NOT NULL,
	headline TEXT NOT NULL,
	action TEXT,
	evidence_counts JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (run_id, source_id)
);

CREATE INDEX IF NOT EXISTS idx_source_assessments_severity ON source_assessments(severity);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) SaveRun(ctx context.Context, report *domain.Report) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO report_runs (
	run_id, execution_date, weekday, markdown, model, fallback, fallback_reason, judge_fallbacks, started_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		report.RunID, report.ExecutionDate, report.Weekday, report.Markdown, report.Model,
		report.Fallback, nullableString(report.FallbackReason), report.JudgeFallbacks, report.StartedAt, report.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report run: %w", err)
	}
	return nil
}

func (r *ReportRepository) SaveAssessments(ctx context.Context, runID string, assessments []domain.SeverityAssessment) error {
	if len(assessments) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assessments tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, assessment := range assessments {
		countsJSON, err := json.Marshal(assessment.EvidenceCounts)
		if err != nil {
			return fmt.Errorf("marshal evidence counts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO source_assessments (run_id, source_id, display_name, severity, headline, action, evidence_counts)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, runID, assessment.SourceID, assessment.DisplayName, string(assessment.Severity), assessment.Headline, nullableString(assessment.Action), countsJSON); err != nil {
			return fmt.Errorf("insert assessment %s: %w", assessment.SourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assessments tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) LatestRun(ctx context.Context, executionDate string) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT run_id, execution_date, weekday, markdown, model, fallback, COALESCE(fallback_reason, ''), judge_fallbacks, started_at, finished_at
FROM report_runs
WHERE execution_date = $1
ORDER BY finished_at DESC
LIMIT 1
`, executionDate)

	var report domain.Report
	if err := row.Scan(
		&report.RunID,
		&report.ExecutionDate,
		&report.Weekday,
		&report.Markdown,
		&report.Model,
		&report.Fallback,
		&report.FallbackReason,
		&report.JudgeFallbacks,
		&report.StartedAt,
		&report.FinishedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRunNotFound, "latest run", err)
		}
		return nil, fmt.Errorf("scan report run: %w", err)
	}

	assessments, err := r.listAssessments(ctx, report.RunID)
	if err != nil {
		return nil, err
	}
	report.Assessments = assessments
	return &report, nil
}

func (r *ReportRepository) listAssessments(ctx context.Context, runID string) ([]domain.SeverityAssessment, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT source_id, display_name, severity, headline, COALESCE(action, ''), evidence_counts
FROM source_assessments
WHERE run_id = $1
ORDER BY display_name ASC, source_id ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SeverityAssessment, 0)
	for rows.Next() {
		var assessment domain.SeverityAssessment
		var severity string
		var countsRaw []byte
		if err := rows.Scan(
			&assessment.SourceID,
			&assessment.DisplayName,
			&severity,
			&assessment.Headline,
			&assessment.Action,
			&countsRaw,
		); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		if err := json.Unmarshal(countsRaw, &assessment.EvidenceCounts); err != nil {
			return nil, fmt.Errorf("unmarshal evidence counts: %w", err)
		}
		assessment.Severity = domain.Severity(severity)
		out = append(out, assessment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return out, nil
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
