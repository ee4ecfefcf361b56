package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worktime-analytics/internal/model"
	"worktime-analytics/internal/pipeline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worktime.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func clearEnv(t *testing.T) {
	for _, key := range []string{EnvDBPath, EnvOutputDir, EnvHourlyRate, EnvHoursPerDay} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	opts, err := cfg.Options()
	require.NoError(t, err)

	assert.Equal(t, "database/worktime.db", opts.DBPath)
	assert.Equal(t, model.QueryParams{HourlyRate: 100, HoursPerDay: 8}, opts.Params)
	require.Len(t, opts.Sources, 2)
	assert.Equal(t, "time_off", opts.Sources[0].Table)
	assert.Equal(t, "csv_sources/work_hours.csv", opts.Sources[1].Path)
	assert.Equal(t, []string{"employee_name"}, opts.Sources[1].Validation.OptionalColumns)

	require.Len(t, opts.Reports, 2)
	assert.Equal(t, filepath.Join("output_files", "acumulated_actual_costs.csv"), opts.Reports[0].Output)
	assert.Equal(t, filepath.Join("output_files", "project_utilization.csv"), opts.Reports[1].Output)
	assert.Contains(t, opts.Reports[0].SQL, "total_accumulated_cost")
	assert.Nil(t, opts.Export.FloatPrecision)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
db_path: /tmp/other.db
hourly_rate: "87.5"
reports:
  - name: everything
    sql: SELECT * FROM work_hours
    output: /tmp/everything.json
export:
  float_precision: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.Equal(t, "87.5", cfg.HourlyRate)
	assert.Equal(t, 8, cfg.HoursPerDay, "keys missing from the file keep their defaults")
	assert.Len(t, cfg.Sources, 2)
	require.Len(t, cfg.Reports, 1)
	assert.Equal(t, pipeline.InlineQuery("SELECT * FROM work_hours"), cfg.Reports[0].Source())
	require.NotNil(t, cfg.Export.FloatPrecision)
	assert.Equal(t, 2, *cfg.Export.FloatPrecision)

	params, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, 87.5, params.HourlyRate)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "db_path: from-file.db\nhours_per_day: 7\n")
	t.Setenv(EnvDBPath, "from-env.db")
	t.Setenv(EnvHourlyRate, "120")
	t.Setenv(EnvOutputDir, "reports")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, "120", cfg.HourlyRate)
	assert.Equal(t, 7, cfg.HoursPerDay)

	reports, err := cfg.ResolveReports()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("reports", "acumulated_actual_costs.csv"), reports[0].Output)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, model.ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	_, err = Load(writeConfig(t, "sources: [unclosed"))
	require.ErrorIs(t, err, model.ErrInvalidConfig)

	t.Setenv(EnvHoursPerDay, "eight")
	_, err = Load(writeConfig(t, ""))
	require.ErrorIs(t, err, model.ErrInvalidConfig)
	assert.Contains(t, err.Error(), EnvHoursPerDay)
}

func TestLoad_MissingDefaultFileIsFine(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "no sources",
			mutate:  func(c *Config) { c.Sources = nil },
			wantErr: []string{"at least one source"},
		},
		{
			name: "bad and duplicate table names",
			mutate: func(c *Config) {
				c.Sources[0].Table = "time off"
				c.Sources = append(c.Sources, model.Source{Table: "work_hours", Path: "x.csv"})
			},
			wantErr: []string{`"time off" is not a valid identifier`, `duplicate table "work_hours"`},
		},
		{
			name: "report query sources",
			mutate: func(c *Config) {
				c.Reports[0].SQL = "SELECT 1"
				c.Reports[1].Builtin = ""
				c.Reports[1].Output = ""
			},
			wantErr: []string{"reports[0]: exactly one", "reports[1]: exactly one", "reports[1]: output is required"},
		},
		{
			name: "parameters",
			mutate: func(c *Config) {
				c.HourlyRate = "-1"
				c.HoursPerDay = 0
			},
			wantErr: []string{"hourly_rate must not be negative", "hours_per_day must be positive"},
		},
		{
			name:    "rate not a number",
			mutate:  func(c *Config) { c.HourlyRate = "lots" },
			wantErr: []string{`hourly_rate "lots" is not a number`},
		},
		{
			name: "precision",
			mutate: func(c *Config) {
				p := -2
				c.Export.FloatPrecision = &p
			},
			wantErr: []string{"float_precision"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, model.ErrInvalidConfig)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
			assert.Equal(t, model.ExitConfigError, model.ExitCodeForError(err))
		})
	}
}

func TestOptions_ResolvesQueryFiles(t *testing.T) {
	dir := t.TempDir()
	sqlPath := filepath.Join(dir, "q.sql")
	require.NoError(t, os.WriteFile(sqlPath, []byte("SELECT 1;\n"), 0644))

	cfg := Default()
	cfg.Reports = []ReportConfig{{Name: "one", File: sqlPath, Output: filepath.Join(dir, "one.csv")}}
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", opts.Reports[0].SQL)
	assert.Equal(t, filepath.Join(dir, "one.csv"), opts.Reports[0].Output)

	cfg.Reports[0].File = filepath.Join(dir, "gone.sql")
	_, err = cfg.Options()
	require.ErrorIs(t, err, model.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "report one")
}

// chdir changes the working directory for the duration of the test,
// like testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
