package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worktime-analytics/internal/config"
	"worktime-analytics/internal/model"
)

// workspace lays out the default CSV sources in a fresh working directory.
func workspace(t *testing.T) string {
	t.Helper()
	for _, key := range []string{config.EnvDBPath, config.EnvOutputDir, config.EnvHourlyRate, config.EnvHoursPerDay} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.MkdirAll("csv_sources", 0755))
	require.NoError(t, os.WriteFile(filepath.Join("csv_sources", "work_hours.csv"), []byte(
		"employee_id,project_id,date,worked\n"+
			"E1,P1,2024-01-01,22000\n"+
			"E1,P1,2024-01-31,22000\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join("csv_sources", "time_off.csv"), []byte(
		"employee_id,employee_name,date_start,date_end\n"+
			"E1,Ana,2024-01-08,2024-01-08\n"), 0644))
	return dir
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRoot_RunsPipelineWithDefaults(t *testing.T) {
	workspace(t)

	stdout, stderr, err := execute(t)
	require.NoError(t, err)

	runID := strings.TrimSpace(stdout)
	assert.Len(t, runID, 36)
	assert.Contains(t, stderr, "🏁 Pipeline run "+runID)
	assert.FileExists(t, filepath.Join("database", "worktime.db"))
	assert.Equal(t,
		"project_id,date,total_accumulated_cost\nP1,2024-01-01,2200.0\nP1,2024-01-31,4400.0\n",
		readOutput(t, filepath.Join("output_files", "acumulated_actual_costs.csv")))
	assert.Equal(t,
		"employee_name,work_month,project_id,project_utilization_percent\nAna,2024-01,P1,25.0\n",
		readOutput(t, filepath.Join("output_files", "project_utilization.csv")))
}

func TestRun_FlagsOverrideConfig(t *testing.T) {
	workspace(t)
	require.NoError(t, os.WriteFile("custom.yaml", []byte("hourly_rate: \"10\"\noutput_dir: from_yaml\n"), 0644))
	t.Setenv(config.EnvHourlyRate, "20")

	_, _, err := execute(t, "run", "--config", "custom.yaml", "--hourly-rate", "50", "--db", "other.db", "-v")
	require.NoError(t, err)

	assert.FileExists(t, "other.db")
	assert.Contains(t,
		readOutput(t, filepath.Join("from_yaml", "acumulated_actual_costs.csv")),
		"P1,2024-01-01,1100.0\n")
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T)
		args     []string
		wantCode int
	}{
		{
			name:     "missing source",
			setup:    func(t *testing.T) { require.NoError(t, os.Remove(filepath.Join("csv_sources", "time_off.csv"))) },
			args:     []string{"run"},
			wantCode: model.ExitDataLoadError,
		},
		{
			name:     "invalid hours per day",
			args:     []string{"run", "--hours-per-day", "0"},
			wantCode: model.ExitConfigError,
		},
		{
			name:     "missing config file",
			args:     []string{"--config", "nope.yaml"},
			wantCode: model.ExitConfigError,
		},
		{
			name:     "unknown flag",
			args:     []string{"run", "--bogus"},
			wantCode: model.ExitUsageError,
		},
		{
			name:     "unexpected argument",
			args:     []string{"run", "extra"},
			wantCode: model.ExitUsageError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace(t)
			if tt.setup != nil {
				tt.setup(t)
			}
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, model.ExitCodeForError(err), err.Error())
		})
	}
}

func TestQuery(t *testing.T) {
	workspace(t)
	_, _, err := execute(t, "run")
	require.NoError(t, err)

	_, _, err = execute(t, "query", "--sql", "SELECT employee_id, SUM(worked) AS worked FROM work_hours GROUP BY employee_id", "--out", "adhoc.json")
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\"employee_id\": \"E1\", \"worked\": 44000}\n]\n", readOutput(t, "adhoc.json"))

	require.NoError(t, os.WriteFile("rate.sql", []byte("SELECT :hourly_rate AS rate;"), 0644))
	_, _, err = execute(t, "query", "--file", "rate.sql", "--out", "rate.csv", "--hourly-rate", "12.5")
	require.NoError(t, err)
	assert.Equal(t, "rate\n12.5\n", readOutput(t, "rate.csv"))
}

func TestQuery_Failures(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"no database", []string{"query", "--sql", "SELECT 1", "--out", "x.csv", "--db", "missing.db"}, model.ExitConnectionError},
		{"no query", []string{"query", "--out", "x.csv"}, model.ExitUsageError},
		{"both queries", []string{"query", "--sql", "SELECT 1", "--file", "q.sql", "--out", "x.csv"}, model.ExitUsageError},
		{"no output", []string{"query", "--sql", "SELECT 1"}, model.ExitUsageError},
		{"missing query file", []string{"query", "--file", "missing.sql", "--out", "x.csv"}, model.ExitConfigError},
		{"bad sql", []string{"query", "--sql", "SELECT FROM", "--out", "x.csv"}, model.ExitQueryError},
		{"several statements", []string{"query", "--sql", "SELECT 1 AS x; SELECT 2 AS y", "--out", "x.csv"}, model.ExitQueryError},
	}

	workspace(t)
	_, _, err := execute(t, "run")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, model.ExitCodeForError(err), err.Error())
			assert.NoFileExists(t, "x.csv")
		})
	}
}

func TestRuns(t *testing.T) {
	workspace(t)

	_, _, err := execute(t, "runs")
	assert.Equal(t, model.ExitConnectionError, model.ExitCodeForError(err))

	stdout, _, err := execute(t, "run")
	require.NoError(t, err)
	runID := strings.TrimSpace(stdout)

	stdout, _, err = execute(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, stdout, "RUN ID")
	assert.Contains(t, stdout, runID)
	assert.Contains(t, stdout, "completed")

	stdout, _, err = execute(t, "runs", "--json", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"id": "`+runID+`"`)

	stdout, _, err = execute(t, "runs", "--run", runID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "STAGE")
	assert.Contains(t, stdout, "work_hours")
	assert.Contains(t, stdout, "project_utilization")
	assert.Equal(t, 7, strings.Count(stdout, "\n"), "header plus two loads, two queries and two exports")

	stdout, _, err = execute(t, "runs", "--run", runID, "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"stage": "export"`)

	stdout, _, err = execute(t, "runs", "--run", "no-such-run", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", stdout)

	_, _, err = execute(t, "runs", "--limit", "0")
	assert.Equal(t, model.ExitUsageError, model.ExitCodeForError(err))
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
