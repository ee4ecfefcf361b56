package store

import (
	"context"
	"time"

	"worktime-analytics/internal/model"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusLoading   = "loading"
	StatusQuerying  = "querying"
	StatusExporting = "exporting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// SaveRun stores a new pipeline run
func (s *DB) SaveRun(ctx context.Context, runID string) error {
	now := timestamp(time.Now())
	_, err := s.db.ExecContext(ctx, `INSERT INTO pipeline_runs (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		runID, StatusRunning, now, now)
	return err
}

// UpdateRunStatus updates run status
func (s *DB) UpdateRunStatus(ctx context.Context, runID, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pipeline_runs SET status = ?, updated_at = ? WHERE id = ?`,
		status, timestamp(time.Now()), runID)
	return err
}

// SaveStageProgress records one finished stage step (a table load, a query or an export)
func (s *DB) SaveStageProgress(ctx context.Context, runID, stage, artifact, status string, startedAt, finishedAt time.Time, rowCount int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO pipeline_run_stages
		(run_id, stage, artifact, status, started_at, finished_at, row_count) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, stage, artifact, status, timestamp(startedAt), timestamp(finishedAt), rowCount)
	return err
}

// SaveRunError records an error for a run
func (s *DB) SaveRunError(ctx context.Context, runID, stage string, err error) error {
	if err == nil {
		return nil
	}
	_, e := s.db.ExecContext(ctx, `INSERT INTO pipeline_run_errors (run_id, stage, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, stage, err.Error(), timestamp(time.Now()))
	return e
}

// ListRuns returns the most recent runs first, at most limit of them
func (s *DB) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.status, r.created_at, r.updated_at,
			(SELECT count(*) FROM pipeline_run_errors e WHERE e.run_id = r.id)
		FROM pipeline_runs r
		ORDER BY r.created_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		if err := rows.Scan(&r.ID, &r.Status, &r.CreatedAt, &r.UpdatedAt, &r.Errors); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListStages returns the tracked steps of a run in the order they finished
func (s *DB) ListStages(ctx context.Context, runID string) ([]model.StageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, COALESCE(artifact, ''), status,
			COALESCE(started_at, ''), COALESCE(finished_at, ''), COALESCE(row_count, 0)
		FROM pipeline_run_stages
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []model.StageRecord
	for rows.Next() {
		var st model.StageRecord
		if err := rows.Scan(&st.Stage, &st.Artifact, &st.Status, &st.StartedAt, &st.FinishedAt, &st.Rows); err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}
