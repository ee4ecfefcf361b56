package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"worktime-analytics/internal/model"
	"worktime-analytics/internal/pipeline"
	"worktime-analytics/pkg/utils"
)

// ErrConfigNotFound is returned when the config file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// DefaultFileName is read from the working directory when no --config is given.
const DefaultFileName = "worktime.yaml"

// Environment variables that override the file.
const (
	EnvDBPath      = "WORKTIME_DB_PATH"
	EnvOutputDir   = "WORKTIME_OUTPUT_DIR"
	EnvHourlyRate  = "WORKTIME_HOURLY_RATE"
	EnvHoursPerDay = "WORKTIME_HOURS_PER_DAY"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ReportConfig names one query and where its result goes.
// Exactly one of SQL, File and Builtin is set.
type ReportConfig struct {
	Name    string `yaml:"name"`
	SQL     string `yaml:"sql,omitempty"`
	File    string `yaml:"file,omitempty"`
	Builtin string `yaml:"builtin,omitempty"`
	Output  string `yaml:"output"`
}

type Config struct {
	DBPath      string         `yaml:"db_path"`
	OutputDir   string         `yaml:"output_dir"`
	Sources     []model.Source `yaml:"sources"`
	Reports     []ReportConfig `yaml:"reports"`
	HourlyRate  string         `yaml:"hourly_rate"`
	HoursPerDay int            `yaml:"hours_per_day"`
	Export      model.Export   `yaml:"export"`
}

// Default returns the configuration used when nothing overrides it: the two
// CSV sources under csv_sources/ and the two built-in reports.
func Default() *Config {
	return &Config{
		DBPath:    "database/worktime.db",
		OutputDir: "output_files",
		Sources: []model.Source{
			{
				Table: "time_off",
				Path:  "csv_sources/time_off.csv",
				Validation: &model.ValidationRules{
					RequiredColumns: []string{"employee_id", "employee_name", "date_start", "date_end"},
					DateColumns:     []string{"date_start", "date_end"},
				},
			},
			{
				Table: "work_hours",
				Path:  "csv_sources/work_hours.csv",
				Validation: &model.ValidationRules{
					RequiredColumns: []string{"employee_id", "project_id", "date", "worked"},
					OptionalColumns: []string{"employee_name"},
					NumericColumns:  []string{"worked"},
					DateColumns:     []string{"date"},
				},
			},
		},
		Reports: []ReportConfig{
			{Name: "acumulated_actual_costs", Builtin: pipeline.QueryActualCost, Output: "acumulated_actual_costs.csv"},
			{Name: "project_utilization", Builtin: pipeline.QueryProjectUtilization, Output: "project_utilization.csv"},
		},
		HourlyRate:  "100",
		HoursPerDay: 8,
	}
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment (after loading .env, if present). An empty path reads
// DefaultFileName when it exists; a named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	filePath := path
	if filePath == "" {
		filePath = DefaultFileName
	}
	err := cfg.mergeFile(filePath)
	switch {
	case errors.Is(err, ErrConfigNotFound) && path == "":
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %w", model.ErrInvalidConfig, filePath, err)
	}

	_ = godotenv.Load()
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file onto cfg. Keys absent from the file keep
// their current values; lists present in the file replace the current ones.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigNotFound
		}
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvDBPath); v != "" {
		c.DBPath = v
	}
	if v := getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
	if v := getenv(EnvHourlyRate); v != "" {
		c.HourlyRate = v
	}
	if v := getenv(EnvHoursPerDay); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer, got %q", model.ErrInvalidConfig, EnvHoursPerDay, v)
		}
		c.HoursPerDay = n
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{model.ErrInvalidConfig}, args...)...))
	}

	if strings.TrimSpace(c.DBPath) == "" {
		invalid("db_path is required")
	}

	if len(c.Sources) == 0 {
		invalid("at least one source is required")
	}
	tables := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		switch {
		case !identifier.MatchString(src.Table):
			invalid("sources[%d]: table name %q is not a valid identifier", i, src.Table)
		case tables[src.Table]:
			invalid("sources[%d]: duplicate table %q", i, src.Table)
		}
		tables[src.Table] = true
		if strings.TrimSpace(src.Path) == "" {
			invalid("sources[%d]: path is required", i)
		}
	}

	names := make(map[string]bool, len(c.Reports))
	for i, r := range c.Reports {
		if r.Name == "" {
			invalid("reports[%d]: name is required", i)
		} else if names[r.Name] {
			invalid("reports[%d]: duplicate report %q", i, r.Name)
		}
		names[r.Name] = true

		set := 0
		for _, v := range []string{r.SQL, r.File, r.Builtin} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			invalid("reports[%d]: exactly one of sql, file or builtin is required", i)
		}
		if strings.TrimSpace(r.Output) == "" {
			invalid("reports[%d]: output is required", i)
		}
	}

	if rate, err := decimal.NewFromString(strings.TrimSpace(c.HourlyRate)); err != nil {
		invalid("hourly_rate %q is not a number", c.HourlyRate)
	} else if rate.IsNegative() {
		invalid("hourly_rate must not be negative, got %s", rate)
	}

	if c.HoursPerDay <= 0 {
		invalid("hours_per_day must be positive, got %d", c.HoursPerDay)
	}

	if p := c.Export.FloatPrecision; p != nil && (*p < 0 || *p > 15) {
		invalid("export.float_precision must be between 0 and 15, got %d", *p)
	}

	return errors.Join(errs...)
}

// Params returns the named query parameters.
func (c *Config) Params() (model.QueryParams, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.HourlyRate))
	if err != nil {
		return model.QueryParams{}, fmt.Errorf("%w: hourly_rate %q is not a number", model.ErrInvalidConfig, c.HourlyRate)
	}
	return model.QueryParams{HourlyRate: rate.InexactFloat64(), HoursPerDay: c.HoursPerDay}, nil
}

// Source returns where the report's SQL comes from.
func (r ReportConfig) Source() pipeline.QuerySource {
	switch {
	case r.SQL != "":
		return pipeline.InlineQuery(r.SQL)
	case r.File != "":
		return pipeline.QueryFile(r.File)
	default:
		return pipeline.BuiltinQuery(r.Builtin)
	}
}

// ResolveReports resolves every report's query once. Bare output file names are
// placed in OutputDir.
func (c *Config) ResolveReports() ([]pipeline.Report, error) {
	om := utils.NewOutputManager(c.OutputDir)
	reports := make([]pipeline.Report, 0, len(c.Reports))
	for _, rc := range c.Reports {
		report, err := pipeline.NewReport(rc.Name, rc.Source(), om.GetOutputFilePath(rc.Output))
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Options validates the configuration and turns it into pipeline options.
func (c *Config) Options() (pipeline.Options, error) {
	if err := c.Validate(); err != nil {
		return pipeline.Options{}, err
	}
	params, err := c.Params()
	if err != nil {
		return pipeline.Options{}, err
	}
	reports, err := c.ResolveReports()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		DBPath:  c.DBPath,
		Sources: c.Sources,
		Reports: reports,
		Params:  params,
		Export:  c.Export,
	}, nil
}
