package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"worktime-analytics/internal/model"
	"worktime-analytics/pkg/utils"
)

// ------------------- CSV Ingestion -------------------

// ReadCSV reads a whole CSV file into a table named after the source.
// The header row names the columns; column types are inferred from the cells.
func ReadCSV(source model.Source) (*model.Table, error) {
	file, err := os.Open(source.Path)
	if err != nil {
		return nil, &model.DataLoadError{Table: source.Table, Path: source.Path, Err: err}
	}
	defer file.Close()

	table, err := parseCSV(source.Table, file)
	if err != nil {
		return nil, &model.DataLoadError{Table: source.Table, Path: source.Path, Err: err}
	}
	return table, nil
}

func parseCSV(name string, r io.Reader) (*model.Table, error) {
	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true

	headers, err := csvReader.Read()
	if err == io.EOF {
		return nil, errors.New("file is empty, a header row is required")
	} else if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns, err := cleanHeaders(headers)
	if err != nil {
		return nil, err
	}

	var raw [][]string
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("CSV read error: %w", err)
		}
		raw = append(raw, record)
	}

	table := &model.Table{Name: name, Columns: make([]model.Column, len(columns))}
	for i, col := range columns {
		table.Columns[i] = model.Column{Name: col, Type: inferColumnType(raw, i)}
	}

	table.Rows = make([][]any, len(raw))
	for r, record := range raw {
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = convertCell(cell, table.Columns[i].Type)
		}
		table.Rows[r] = row
	}
	return table, nil
}

// cleanHeaders trims whitespace, quotes and a UTF-8 BOM from header names and
// rejects empty or duplicate names.
func cleanHeaders(headers []string) ([]string, error) {
	seen := make(map[string]bool, len(headers))
	columns := make([]string, len(headers))
	for i, h := range headers {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		cleanHeader := strings.TrimSpace(h)
		cleanHeader = strings.ReplaceAll(cleanHeader, `"`, "") // Remove all quotes
		if cleanHeader == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if seen[cleanHeader] {
			return nil, fmt.Errorf("duplicate header column %q", cleanHeader)
		}
		seen[cleanHeader] = true
		columns[i] = cleanHeader
	}
	return columns, nil
}

// inferColumnType returns INTEGER when every non-empty cell is an integer,
// REAL when every non-empty cell is a number, and TEXT otherwise.
// A column with no values at all is TEXT.
func inferColumnType(raw [][]string, col int) model.ColumnType {
	colType := model.ColumnInteger
	seen := false
	for _, record := range raw {
		cell := record[col]
		if strings.TrimSpace(cell) == "" {
			continue
		}
		seen = true
		switch utils.ParseValue(cell).(type) {
		case int64:
		case float64:
			colType = model.ColumnReal
		default:
			return model.ColumnText
		}
	}
	if !seen {
		return model.ColumnText
	}
	return colType
}

// convertCell stores a cell as its column's type. Surrounding whitespace is
// never part of a value, for text cells as for numbers and headers.
func convertCell(cell string, colType model.ColumnType) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	switch colType {
	case model.ColumnInteger:
		v, _ := strconv.ParseInt(trimmed, 10, 64)
		return v
	case model.ColumnReal:
		v, _ := strconv.ParseFloat(trimmed, 64)
		return v
	}
	return trimmed
}
