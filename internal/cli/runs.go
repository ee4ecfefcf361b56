package cli

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"worktime-analytics/internal/model"
	"worktime-analytics/internal/store"
	"worktime-analytics/pkg/utils"
)

func newRunsCommand(flags *globalFlags) *cobra.Command {
	var (
		limit  int
		runID  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs recorded in the database",
		Long: `List recent pipeline runs, newest first. With --run, list the steps of one
run instead: every table load, query and export with its status and row count.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if limit <= 0 {
				return fmt.Errorf("%w: --limit must be positive", model.ErrUsage)
			}
			cfg, _, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if !utils.FileExists(cfg.DBPath) {
				return &model.ConnectionError{Path: cfg.DBPath, Op: "open", Err: fs.ErrNotExist}
			}

			db, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := db.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			if runID != "" {
				stages, err := db.ListStages(cmd.Context(), runID)
				if err != nil {
					return &model.QueryExecutionError{Query: "stages", Err: err}
				}
				if asJSON {
					return printJSON(cmd, stages)
				}
				return printStages(cmd, stages)
			}

			runs, err := db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return &model.QueryExecutionError{Query: "runs", Err: err}
			}
			if asJSON {
				return printJSON(cmd, runs)
			}
			return printRuns(cmd, runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "list the steps of this run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []model.RunSummary) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTATUS\tSTARTED\tUPDATED\tERRORS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.Status, r.CreatedAt, r.UpdatedAt, r.Errors)
	}
	return w.Flush()
}

func printStages(cmd *cobra.Command, stages []model.StageRecord) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tARTIFACT\tSTATUS\tROWS\tFINISHED")
	for _, st := range stages {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", st.Stage, st.Artifact, st.Status, st.Rows, st.FinishedAt)
	}
	return w.Flush()
}

// printJSON writes v indented; nil slices print as [].
func printJSON[T any](cmd *cobra.Command, v []T) error {
	if v == nil {
		v = []T{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
