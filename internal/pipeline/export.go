package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"worktime-analytics/internal/model"
	"worktime-analytics/pkg/utils"
)

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string `json:"type"` // "csv", "json", "excel"
	Path        string `json:"path"`
	RecordCount int    `json:"record_count"`
}

// Exporter writes result tables to files
type Exporter struct {
	// FloatPrecision fixes REAL cells to this many places; negative keeps
	// the shortest round-trip form.
	FloatPrecision int
}

// NewExporter creates an exporter from export settings
func NewExporter(cfg model.Export) *Exporter {
	if cfg.FloatPrecision == nil {
		return &Exporter{FloatPrecision: -1}
	}
	return &Exporter{FloatPrecision: *cfg.FloatPrecision}
}

// Export writes table to path in the format given by the path's extension.
// The file is written next to its destination and renamed into place, so a
// failed export leaves no partial report behind. Errors are *model.ExportError.
func (e *Exporter) Export(table *model.Table, path string) (ExportResult, error) {
	result := ExportResult{Type: utils.FileType(path), Path: path}

	// Create directory if it doesn't exist
	if err := utils.EnsureParentDir(path); err != nil {
		return result, &model.ExportError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return result, &model.ExportError{Path: path, Err: fmt.Errorf("failed to create file: %w", err)}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	buffered := bufio.NewWriter(tmp)
	switch result.Type {
	case "json":
		err = e.writeJSON(buffered, table)
	case "excel":
		err = e.writeXLSX(buffered, table)
	default:
		err = e.writeCSV(buffered, table)
	}
	if err == nil {
		err = buffered.Flush()
	}
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0644)
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		return result, &model.ExportError{Path: path, Err: err}
	}

	result.RecordCount = len(table.Rows)
	return result, nil
}

// writeCSV writes a header row then one line per row, no index column.
func (e *Exporter) writeCSV(w io.Writer, table *model.Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(table.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(table.Columns))
	for i, row := range table.Rows {
		for j, v := range row {
			record[j] = utils.FormatValue(v, e.FloatPrecision)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeJSON writes an array of objects whose keys follow the projection order.
func (e *Exporter) writeJSON(w io.Writer, table *model.Table) error {
	keys := make([][]byte, len(table.Columns))
	for i, c := range table.Columns {
		k, err := json.Marshal(c.Name)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	var b strings.Builder
	b.WriteString("[")
	for r, row := range table.Rows {
		if r > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  {")
		for i, v := range row {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Write(keys[i])
			b.WriteString(": ")
			val, err := e.jsonValue(v)
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", r+1, table.Columns[i].Name, err)
			}
			b.Write(val)
		}
		b.WriteString("}")
	}
	if len(table.Rows) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("]\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func (e *Exporter) jsonValue(v any) ([]byte, error) {
	if f, ok := v.(float64); ok && e.FloatPrecision >= 0 {
		return []byte(utils.FormatValue(f, e.FloatPrecision)), nil
	}
	return json.Marshal(v)
}

// writeXLSX writes a single-sheet workbook named after the table.
func (e *Exporter) writeXLSX(w io.Writer, table *model.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(table.Name)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]interface{}, len(table.Columns))
	for i, name := range table.ColumnNames() {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for r, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = e.xlsxValue(v)
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}

	return f.Write(w)
}

func (e *Exporter) xlsxValue(v any) any {
	f, ok := v.(float64)
	if !ok || e.FloatPrecision < 0 {
		return v
	}
	// keep the cell numeric, rounded like the text formats
	rounded, err := strconv.ParseFloat(utils.FormatValue(f, e.FloatPrecision), 64)
	if err != nil {
		return v
	}
	return rounded
}

// sheetName makes name usable as an Excel sheet name.
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = "report"
	}
	if len([]rune(name)) > 31 {
		name = string([]rune(name)[:31])
	}
	return name
}
