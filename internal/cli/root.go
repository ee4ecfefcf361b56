package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"worktime-analytics/internal/config"
	"worktime-analytics/internal/logging"
	"worktime-analytics/internal/model"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath  string
	dbPath      string
	outputDir   string
	hourlyRate  string
	hoursPerDay int
	verbose     bool
}

// NewRootCommand builds the worktime command tree. Running it without a
// subcommand runs the pipeline.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "worktime",
		Short: "Load work-hours and time-off CSVs into SQLite and export cost and utilization reports",
		Long: `worktime loads csv_sources/time_off.csv and csv_sources/work_hours.csv into
an embedded SQLite database, then runs the accumulated actual cost and project
utilization reports and writes them to output_files/.

Settings are read from defaults, worktime.yaml (or --config), the environment
(WORKTIME_DB_PATH, WORKTIME_OUTPUT_DIR, WORKTIME_HOURLY_RATE,
WORKTIME_HOURS_PER_DAY, also from .env) and flags, later ones winning.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Database could not be opened or closed
  12 - CSV source could not be read or failed validation
  13 - Table could not be written to the database
  14 - Query failed
  15 - Report could not be written`,
		Args:         noArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file (default worktime.yaml if present)")
	pf.StringVar(&flags.dbPath, "db", "", "SQLite database file")
	pf.StringVar(&flags.outputDir, "output-dir", "", "directory for reports given as bare file names")
	pf.StringVar(&flags.hourlyRate, "hourly-rate", "", "cost of one worked hour")
	pf.IntVar(&flags.hoursPerDay, "hours-per-day", 0, "available hours per working day")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose output for all commands")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", model.ErrUsage, err)
	})

	root.AddCommand(newRunCommand(flags), newQueryCommand(flags), newRunsCommand(flags))
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return fmt.Errorf("%w: %v", model.ErrUsage, err)
	}
	return nil
}

// loadConfig resolves the configuration and applies flag overrides on top.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, logging.Logger, error) {
	logger := logging.NewWriterLogger(cmd.ErrOrStderr(), flags.verbose)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, logger, err
	}

	changed := cmd.Flags().Changed
	if changed("db") {
		cfg.DBPath = flags.dbPath
	}
	if changed("output-dir") {
		cfg.OutputDir = flags.outputDir
	}
	if changed("hourly-rate") {
		cfg.HourlyRate = flags.hourlyRate
	}
	if changed("hours-per-day") {
		cfg.HoursPerDay = flags.hoursPerDay
	}

	logger.Verbose("database %s, output dir %s, hourly rate %s, %d hours per day",
		cfg.DBPath, cfg.OutputDir, cfg.HourlyRate, cfg.HoursPerDay)
	return cfg, logger, nil
}
