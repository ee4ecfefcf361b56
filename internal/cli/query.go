package cli

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"worktime-analytics/internal/model"
	"worktime-analytics/internal/pipeline"
	"worktime-analytics/pkg/utils"
)

type queryFlags struct {
	sql  string
	file string
	out  string
}

func newQueryCommand(flags *globalFlags) *cobra.Command {
	qf := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query (--sql TEXT | --file PATH) --out PATH",
		Short: "Run one query against an existing database and export the result",
		Long: `Run a single SQL query against tables loaded by a previous run and write the
result like a report. The output format follows the --out extension: .csv,
.json or .xlsx. The named parameters :hourly_rate and :hours_per_day are bound.`,
		Example: `  worktime query --sql "SELECT * FROM work_hours" --out dump.csv
  worktime query --file reports/overtime.sql --out overtime.xlsx`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, flags, qf)
		},
	}
	cmd.Flags().StringVar(&qf.sql, "sql", "", "SQL text to run")
	cmd.Flags().StringVar(&qf.file, "file", "", "file holding the SQL to run")
	cmd.Flags().StringVarP(&qf.out, "out", "o", "", "output file")
	return cmd
}

func (qf *queryFlags) source() (pipeline.QuerySource, error) {
	switch {
	case qf.sql != "" && qf.file != "":
		return nil, fmt.Errorf("%w: --sql and --file are mutually exclusive", model.ErrUsage)
	case qf.sql != "":
		return pipeline.InlineQuery(qf.sql), nil
	case qf.file != "":
		return pipeline.QueryFile(qf.file), nil
	}
	return nil, fmt.Errorf("%w: one of --sql or --file is required", model.ErrUsage)
}

func runQuery(cmd *cobra.Command, flags *globalFlags, qf *queryFlags) error {
	source, err := qf.source()
	if err != nil {
		return err
	}
	if qf.out == "" {
		return fmt.Errorf("%w: --out is required", model.ErrUsage)
	}

	cfg, logger, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	// querying never loads sources, so the database must already exist
	if !utils.FileExists(cfg.DBPath) {
		return &model.ConnectionError{Path: cfg.DBPath, Op: "open", Err: fs.ErrNotExist}
	}

	report, err := pipeline.NewReport("query", source, qf.out)
	if err != nil {
		return err
	}

	runID, err := pipeline.Run(cmd.Context(), pipeline.Options{
		DBPath:  cfg.DBPath,
		Reports: []pipeline.Report{report},
		Params:  params,
		Export:  cfg.Export,
	}, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), runID)
	return nil
}
