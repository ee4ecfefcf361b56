package pipeline

import (
	"fmt"
	"time"

	"worktime-analytics/internal/model"
)

const dateLayout = "2006-01-02"

// ValidateTable applies per-source validation rules to a freshly read table.
// Missing optional columns are appended as all-NULL TEXT columns so queries
// can reference them unconditionally.
func ValidateTable(table *model.Table, rules *model.ValidationRules) error {
	if rules == nil {
		// No validation rules defined → pass through
		return nil
	}

	// Check required columns
	for _, col := range rules.RequiredColumns {
		if table.ColumnIndex(col) < 0 {
			return fmt.Errorf("missing required column: %s", col)
		}
	}

	for _, col := range rules.OptionalColumns {
		if table.ColumnIndex(col) >= 0 {
			continue
		}
		table.Columns = append(table.Columns, model.Column{Name: col, Type: model.ColumnText})
		for i := range table.Rows {
			table.Rows[i] = append(table.Rows[i], nil)
		}
	}

	// Check numeric columns
	for _, col := range rules.NumericColumns {
		idx := table.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		for r, row := range table.Rows {
			switch val := row[idx].(type) {
			case nil, int64, float64:
				// ok
			default:
				return fmt.Errorf("column %s must be numeric, got %q on row %d", col, val, r+1)
			}
		}
	}

	// Check date columns
	for _, col := range rules.DateColumns {
		idx := table.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		for r, row := range table.Rows {
			if row[idx] == nil {
				continue
			}
			s, ok := row[idx].(string)
			if !ok || len(s) != len(dateLayout) {
				return fmt.Errorf("column %s must hold YYYY-MM-DD dates, got %v on row %d", col, row[idx], r+1)
			}
			if _, err := time.Parse(dateLayout, s); err != nil {
				return fmt.Errorf("column %s must hold YYYY-MM-DD dates, got %q on row %d", col, s, r+1)
			}
		}
	}

	return nil
}

// LoadSource reads and validates one source. Errors are *model.DataLoadError.
func LoadSource(source model.Source) (*model.Table, error) {
	table, err := ReadCSV(source)
	if err != nil {
		return nil, err
	}
	if err := ValidateTable(table, source.Validation); err != nil {
		return nil, &model.DataLoadError{Table: source.Table, Path: source.Path, Err: err}
	}
	return table, nil
}
