package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"worktime-analytics/internal/logging"
	"worktime-analytics/internal/store"
)

// RunStore persists run tracking records
type RunStore interface {
	SaveRun(ctx context.Context, runID string) error
	UpdateRunStatus(ctx context.Context, runID, status string) error
	SaveStageProgress(ctx context.Context, runID, stage, artifact, status string, startedAt, finishedAt time.Time, rowCount int) error
	SaveRunError(ctx context.Context, runID, stage string, err error) error
}

// StageMetrics tracks one step of a stage: a table load, a query or an export
type StageMetrics struct {
	Stage            string        `json:"stage"`
	Artifact         string        `json:"artifact"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Duration         time.Duration `json:"duration"`
	RecordsProcessed int           `json:"records_processed"`
	Status           string        `json:"status"` // "completed", "failed"
}

// PipelineTracker records run progress in the store. Tracking is best effort:
// a failed tracking write is logged and never replaces the pipeline's own error.
type PipelineTracker struct {
	RunID     string
	StartTime time.Time
	Status    string
	Stages    []StageMetrics

	store  RunStore
	logger logging.Logger
}

// NewPipelineTracker registers a new run
func NewPipelineTracker(ctx context.Context, runID string, rs RunStore, logger logging.Logger) *PipelineTracker {
	pt := &PipelineTracker{
		RunID:     runID,
		StartTime: time.Now(),
		Status:    store.StatusRunning,
		store:     rs,
		logger:    logger,
	}
	pt.check(rs.SaveRun(ctx, runID))
	return pt
}

// SetStatus moves the run to a new status
func (pt *PipelineTracker) SetStatus(ctx context.Context, status string) {
	if pt.Status == status {
		return
	}
	pt.Status = status
	pt.check(pt.store.UpdateRunStatus(ctx, pt.RunID, status))
}

// EndStage records a finished step. A non-nil err marks it failed and the run with it.
func (pt *PipelineTracker) EndStage(ctx context.Context, stage, artifact string, start time.Time, records int, err error) {
	end := time.Now()
	m := StageMetrics{
		Stage:            stage,
		Artifact:         artifact,
		StartTime:        start,
		EndTime:          end,
		Duration:         end.Sub(start),
		RecordsProcessed: records,
		Status:           store.StatusCompleted,
	}
	if err != nil {
		m.Status = store.StatusFailed
	}
	pt.Stages = append(pt.Stages, m)
	pt.check(pt.store.SaveStageProgress(ctx, pt.RunID, stage, artifact, m.Status, start, end, records))

	if err != nil {
		pt.check(pt.store.SaveRunError(ctx, pt.RunID, stage, err))
		pt.SetStatus(ctx, store.StatusFailed)
	}
}

// Complete marks the run completed
func (pt *PipelineTracker) Complete(ctx context.Context) {
	pt.SetStatus(ctx, store.StatusCompleted)
}

// Summary renders one line per recorded step
func (pt *PipelineTracker) Summary() string {
	var b strings.Builder
	for _, m := range pt.Stages {
		fmt.Fprintf(&b, "  %-7s %-32s %6d rows  %v  %s\n", m.Stage, m.Artifact, m.RecordsProcessed, m.Duration.Round(time.Millisecond), m.Status)
	}
	return b.String()
}

func (pt *PipelineTracker) check(err error) {
	if err != nil {
		pt.logger.Error("⚠️ run %s: tracking write failed: %v", pt.RunID, err)
	}
}
