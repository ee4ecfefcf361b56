package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"worktime-analytics/internal/pipeline"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load the CSV sources and export every configured report",
		Long: `Load every configured CSV source into the database, replacing tables of the
same name, then run each report and write its result. The run ID is printed
on success.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, flags)
		},
	}
}

func runPipeline(cmd *cobra.Command, flags *globalFlags) error {
	cfg, logger, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	runID, err := pipeline.Run(cmd.Context(), opts, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), runID)
	return nil
}
