package pipeline

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"worktime-analytics/internal/model"
	"worktime-analytics/internal/store"
)

//go:embed queries/*.sql
var builtinQueries embed.FS

// Names of the embedded queries.
const (
	QueryActualCost               = "actual_cost"
	QueryProjectUtilization       = "project_utilization"
	QueryProjectUtilizationLegacy = "project_utilization_legacy"
)

// QuerySource is where a report's SQL comes from. It is resolved once, when the
// configuration is built, never while the pipeline runs.
type QuerySource interface {
	Resolve() (string, error)
	String() string
	querySource()
}

// InlineQuery is SQL text given directly.
type InlineQuery string

// QueryFile is the path of a file holding SQL text.
type QueryFile string

// BuiltinQuery names one of the embedded queries.
type BuiltinQuery string

func (InlineQuery) querySource()  {}
func (QueryFile) querySource()    {}
func (BuiltinQuery) querySource() {}

func (q InlineQuery) String() string  { return "inline query" }
func (q QueryFile) String() string    { return "query file " + string(q) }
func (q BuiltinQuery) String() string { return "builtin query " + string(q) }

// Resolve returns the trimmed SQL text.
func (q InlineQuery) Resolve() (string, error) {
	return cleanSQL(string(q))
}

// Resolve reads the file.
func (q QueryFile) Resolve() (string, error) {
	data, err := os.ReadFile(string(q))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read query file: %v", model.ErrInvalidConfig, err)
	}
	return cleanSQL(string(data))
}

// Resolve looks the name up among the embedded queries.
func (q BuiltinQuery) Resolve() (string, error) {
	data, err := builtinQueries.ReadFile(path.Join("queries", string(q)+".sql"))
	if err != nil {
		return "", fmt.Errorf("%w: unknown builtin query %q (available: %s)",
			model.ErrInvalidConfig, string(q), strings.Join(BuiltinQueryNames(), ", "))
	}
	return cleanSQL(string(data))
}

// BuiltinQueryNames lists the embedded query names, sorted.
func BuiltinQueryNames() []string {
	entries, err := builtinQueries.ReadDir("queries")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".sql"))
	}
	sort.Strings(names)
	return names
}

// cleanSQL reduces text to its single statement, without terminator or
// surrounding comments. Text holding several statements is kept as is and
// rejected by the store when it runs.
func cleanSQL(text string) (string, error) {
	stmts := store.Statements(text)
	switch len(stmts) {
	case 0:
		return "", fmt.Errorf("%w: query is empty", model.ErrInvalidConfig)
	case 1:
		return stmts[0], nil
	}
	return strings.TrimSpace(text), nil
}

// Report is a resolved query paired with the file its result is exported to.
type Report struct {
	Name   string
	SQL    string
	Output string
}

// NewReport resolves source into a Report.
func NewReport(name string, source QuerySource, output string) (Report, error) {
	text, err := source.Resolve()
	if err != nil {
		return Report{}, fmt.Errorf("report %s: %w", name, err)
	}
	return Report{Name: name, SQL: text, Output: output}, nil
}

// QueryArgs returns the named parameters bound to every query.
func QueryArgs(params model.QueryParams) []any {
	return []any{
		sql.Named("hourly_rate", params.HourlyRate),
		sql.Named("hours_per_day", params.HoursPerDay),
	}
}

// ------------------- Query Execution -------------------

// Querier is the part of the store the query stage needs.
type Querier interface {
	Query(ctx context.Context, name, query string, args ...any) (*model.Table, error)
}

// ExecuteReport runs the report's SQL and returns the materialized result.
func ExecuteReport(ctx context.Context, q Querier, report Report, params model.QueryParams) (*model.Table, error) {
	return q.Query(ctx, report.Name, report.SQL, QueryArgs(params)...)
}
