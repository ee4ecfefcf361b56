package model

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failing stage. Use with errors.Is().
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDataLoad indicates a CSV source could not be read or failed validation.
	ErrDataLoad = errors.New("data load failed")

	// ErrTableLoad indicates a loaded table could not be written to the store.
	ErrTableLoad = errors.New("table load failed")

	// ErrQueryExecution indicates SQL execution failed.
	ErrQueryExecution = errors.New("query execution failed")

	// ErrExport indicates a result could not be written to its output path.
	ErrExport = errors.New("export failed")

	// ErrConnection indicates the store could not be opened or closed.
	ErrConnection = errors.New("connection failed")

	// ErrUsage indicates invalid command-line arguments or flags.
	ErrUsage = errors.New("usage error")
)

// DataLoadError names the CSV source that failed.
type DataLoadError struct {
	Table string
	Path  string
	Err   error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("error reading file %s for table %s: %v", e.Path, e.Table, e.Err)
}

func (e *DataLoadError) Unwrap() []error { return []error{ErrDataLoad, e.Err} }

// TableLoadError names the table that could not be persisted.
type TableLoadError struct {
	Table string
	Err   error
}

func (e *TableLoadError) Error() string {
	return fmt.Sprintf("error loading data into %s: %v", e.Table, e.Err)
}

func (e *TableLoadError) Unwrap() []error { return []error{ErrTableLoad, e.Err} }

// QueryExecutionError names the query that failed.
type QueryExecutionError struct {
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("error executing query %s: %v", e.Query, e.Err)
}

func (e *QueryExecutionError) Unwrap() []error { return []error{ErrQueryExecution, e.Err} }

// ExportError names the output path that could not be written.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("error writing to %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() []error { return []error{ErrExport, e.Err} }

// ConnectionError names the database and the operation (open or close).
type ConnectionError struct {
	Path string
	Op   string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("error during %s of database %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnection, e.Err} }

// Exit codes for semantic error classification.
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitUsageError      = 2
	ExitPanic           = 3
	ExitConfigError     = 10
	ExitConnectionError = 11
	ExitDataLoadError   = 12
	ExitTableLoadError  = 13
	ExitQueryError      = 14
	ExitExportError     = 15
)

// ExitCodeForError returns the exit code for an error.
// Returns ExitSuccess for nil and ExitGeneralError for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrUsage):
		return ExitUsageError
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrDataLoad):
		return ExitDataLoadError
	case errors.Is(err, ErrTableLoad):
		return ExitTableLoadError
	case errors.Is(err, ErrQueryExecution):
		return ExitQueryError
	case errors.Is(err, ErrExport):
		return ExitExportError
	case errors.Is(err, ErrConnection):
		return ExitConnectionError
	}
	return ExitGeneralError
}
