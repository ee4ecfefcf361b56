package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"worktime-analytics/internal/model"
	"worktime-analytics/internal/store"
)

var (
	workHoursRules = &model.ValidationRules{
		RequiredColumns: []string{"employee_id", "project_id", "date", "worked"},
		OptionalColumns: []string{"employee_name"},
		NumericColumns:  []string{"worked"},
		DateColumns:     []string{"date"},
	}
	timeOffRules = &model.ValidationRules{
		RequiredColumns: []string{"employee_id", "employee_name", "date_start", "date_end"},
		DateColumns:     []string{"date_start", "date_end"},
	}
	defaultParams = model.QueryParams{HourlyRate: 100, HoursPerDay: 8}
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func csvLines(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// loadTables writes the two CSVs and loads them into db.
func loadTables(t *testing.T, db *store.DB, workHours, timeOff string) {
	t.Helper()
	dir := t.TempDir()
	sources := []model.Source{
		{Table: "work_hours", Path: writeFile(t, dir, "work_hours.csv", workHours), Validation: workHoursRules},
		{Table: "time_off", Path: writeFile(t, dir, "time_off.csv", timeOff), Validation: timeOffRules},
	}
	for _, src := range sources {
		table, err := LoadSource(src)
		require.NoError(t, err)
		require.NoError(t, db.ReplaceTable(context.Background(), table))
	}
}

func runBuiltin(t *testing.T, db *store.DB, name string) *model.Table {
	t.Helper()
	report, err := NewReport(name, BuiltinQuery(name), "unused.csv")
	require.NoError(t, err)
	result, err := ExecuteReport(context.Background(), db, report, defaultParams)
	require.NoError(t, err)
	return result
}
