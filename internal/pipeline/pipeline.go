package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"worktime-analytics/internal/logging"
	"worktime-analytics/internal/model"
	"worktime-analytics/internal/store"
)

// Stage names used in run tracking
const (
	StageLoad   = "load"
	StageQuery  = "query"
	StageExport = "export"
)

// Options is everything one pipeline run needs
type Options struct {
	DBPath  string
	Sources []model.Source
	Reports []Report
	Params  model.QueryParams
	Export  model.Export
}

// Store is the part of the relational store the pipeline uses
type Store interface {
	Querier
	RunStore
	ReplaceTable(ctx context.Context, t *model.Table) error
}

// Runner executes the stages of one run against a store it does not own
type Runner struct {
	store    Store
	logger   logging.Logger
	opts     Options
	exporter *Exporter
	tracker  *PipelineTracker
}

// NewRunner registers a new run in st and returns its runner
func NewRunner(ctx context.Context, st Store, opts Options, logger logging.Logger) *Runner {
	runID := uuid.New().String()
	return &Runner{
		store:    st,
		logger:   logger,
		opts:     opts,
		exporter: NewExporter(opts.Export),
		tracker:  NewPipelineTracker(ctx, runID, st, logger),
	}
}

// RunID returns the tracked run's ID
func (r *Runner) RunID() string { return r.tracker.RunID }

// Tracker exposes the run's stage metrics
func (r *Runner) Tracker() *PipelineTracker { return r.tracker }

// ------------------- Pipeline Runner -------------------

// Run opens the store, loads every source, runs and exports every report, and
// releases the store exactly once, whether or not a stage failed.
func Run(ctx context.Context, opts Options, logger logging.Logger) (runID string, err error) {
	start := time.Now()

	db, err := store.Open(opts.DBPath)
	if err != nil {
		logger.Error("❌ %v", err)
		return "", err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error("❌ %v", cerr)
			err = errors.Join(err, cerr)
		}
	}()

	r := NewRunner(ctx, db, opts, logger)
	logger.Info("🚀 Starting pipeline run %s (database %s)", r.RunID(), db.Path())

	if err := r.Execute(ctx); err != nil {
		return r.RunID(), err
	}

	logger.Verbose("Run summary:\n%s", r.tracker.Summary())
	logger.Info("🏁 Pipeline run %s completed in %v", r.RunID(), time.Since(start).Round(time.Millisecond))
	return r.RunID(), nil
}

// Execute loads all sources, then runs every report in order.
func (r *Runner) Execute(ctx context.Context) error {
	if err := r.LoadSources(ctx); err != nil {
		return err
	}
	for _, report := range r.opts.Reports {
		if err := r.RunReport(ctx, report); err != nil {
			return err
		}
	}
	r.tracker.Complete(ctx)
	return nil
}

// LoadSources reads and validates every source before writing any table, then
// replaces each table in the store.
func (r *Runner) LoadSources(ctx context.Context) error {
	if len(r.opts.Sources) == 0 {
		return nil
	}
	r.tracker.SetStatus(ctx, store.StatusLoading)

	tables := make([]*model.Table, 0, len(r.opts.Sources))
	for _, source := range r.opts.Sources {
		started := time.Now()
		table, err := LoadSource(source)
		if err != nil {
			r.logger.Error("❌ %v", err)
			r.tracker.EndStage(ctx, StageLoad, source.Path, started, 0, err)
			return err
		}
		r.logger.Info("📄 CSV ingestion done: %d records read from %s", len(table.Rows), source.Path)
		tables = append(tables, table)
	}

	for _, table := range tables {
		started := time.Now()
		err := r.store.ReplaceTable(ctx, table)
		r.tracker.EndStage(ctx, StageLoad, table.Name, started, len(table.Rows), err)
		if err != nil {
			r.logger.Error("❌ %v", err)
			return err
		}
		r.logger.Verbose("table %s replaced (%d columns, %d rows)", table.Name, len(table.Columns), len(table.Rows))
	}
	return nil
}

// RunReport executes one report's query and exports the result.
func (r *Runner) RunReport(ctx context.Context, report Report) error {
	r.tracker.SetStatus(ctx, store.StatusQuerying)
	started := time.Now()
	result, err := ExecuteReport(ctx, r.store, report, r.opts.Params)
	if err != nil {
		r.logger.Error("❌ %v", err)
		r.tracker.EndStage(ctx, StageQuery, report.Name, started, 0, err)
		return err
	}
	r.tracker.EndStage(ctx, StageQuery, report.Name, started, len(result.Rows), nil)
	r.logger.Verbose("query %s returned %d rows", report.Name, len(result.Rows))

	r.tracker.SetStatus(ctx, store.StatusExporting)
	started = time.Now()
	exported, err := r.exporter.Export(result, report.Output)
	r.tracker.EndStage(ctx, StageExport, report.Output, started, exported.RecordCount, err)
	if err != nil {
		r.logger.Error("❌ %v", err)
		return err
	}
	r.logger.Info("💾 Export to file successful: %d records exported to %s (%s)", exported.RecordCount, exported.Path, exported.Type)
	return nil
}
