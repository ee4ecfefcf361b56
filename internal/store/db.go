package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"worktime-analytics/internal/model"
	"worktime-analytics/pkg/utils"

	_ "github.com/mattn/go-sqlite3"
)

// ErrStatementCount is returned by Query for text that is not exactly one statement.
var ErrStatementCount = errors.New("query must contain exactly one SQL statement")

// DB is the single store handle owned by a pipeline run.
type DB struct {
	db   *sql.DB
	path string
}

// Open creates the storage directory if absent, opens the SQLite database at
// path and creates the run-tracking tables.
func Open(path string) (*DB, error) {
	if err := utils.EnsureParentDir(path); err != nil {
		return nil, &model.ConnectionError{Path: path, Op: "open", Err: err}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &model.ConnectionError{Path: path, Op: "open", Err: err}
	}
	// one exclusive connection for the whole run
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &model.ConnectionError{Path: path, Op: "open", Err: err}
	}

	s := &DB{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, &model.ConnectionError{Path: path, Op: "open", Err: fmt.Errorf("failed to migrate database: %w", err)}
	}
	return s, nil
}

// Path returns the database file path.
func (s *DB) Path() string { return s.path }

// Close releases the connection.
func (s *DB) Close() error {
	if err := s.db.Close(); err != nil {
		return &model.ConnectionError{Path: s.path, Op: "close", Err: err}
	}
	return nil
}

func (s *DB) migrate() error {
	runTable := `
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	stageTable := `
	CREATE TABLE IF NOT EXISTS pipeline_run_stages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		artifact TEXT,
		status TEXT NOT NULL,
		started_at TEXT,
		finished_at TEXT,
		row_count INTEGER
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS pipeline_run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stage TEXT,
		error_message TEXT,
		created_at TEXT NOT NULL
	);
	`

	for _, ddl := range []string{runTable, stageTable, errorTable} {
		if _, err := s.db.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceTable drops any table named t.Name and recreates it from t, inside a
// single transaction. Nothing is appended to an existing table.
func (s *DB) ReplaceTable(ctx context.Context, t *model.Table) (err error) {
	if len(t.Columns) == 0 {
		return &model.TableLoadError{Table: t.Name, Err: errors.New("table has no columns")}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.TableLoadError{Table: t.Name, Err: err}
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	name := QuoteIdent(t.Name)
	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return &model.TableLoadError{Table: t.Name, Err: err}
	}

	defs := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = QuoteIdent(c.Name) + " " + string(c.Type)
		marks[i] = "?"
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))); err != nil {
		return &model.TableLoadError{Table: t.Name, Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", name, strings.Join(marks, ", ")))
	if err != nil {
		return &model.TableLoadError{Table: t.Name, Err: err}
	}
	defer stmt.Close()

	for i, row := range t.Rows {
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return &model.TableLoadError{Table: t.Name, Err: fmt.Errorf("row %d: %w", i+1, err)}
		}
	}

	if err = tx.Commit(); err != nil {
		return &model.TableLoadError{Table: t.Name, Err: err}
	}
	return nil
}

// Query executes query and materializes every row, keeping the projection's
// column order. name identifies the query in errors. query must hold exactly
// one statement; trailing comments and semicolons are ignored.
func (s *DB) Query(ctx context.Context, name, query string, args ...any) (*model.Table, error) {
	stmts := Statements(query)
	if len(stmts) != 1 {
		return nil, &model.QueryExecutionError{Query: name, Err: fmt.Errorf("%w, got %d", ErrStatementCount, len(stmts))}
	}

	rows, err := s.db.QueryContext(ctx, stmts[0], args...)
	if err != nil {
		return nil, &model.QueryExecutionError{Query: name, Err: err}
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, &model.QueryExecutionError{Query: name, Err: err}
	}

	result := &model.Table{Name: name, Columns: make([]model.Column, len(colTypes))}
	for i, ct := range colTypes {
		result.Columns[i] = model.Column{Name: ct.Name(), Type: declaredType(ct.DatabaseTypeName())}
	}

	for rows.Next() {
		vals := make([]any, len(colTypes))
		ptrs := make([]any, len(colTypes))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &model.QueryExecutionError{Query: name, Err: err}
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.QueryExecutionError{Query: name, Err: err}
	}

	inferUntypedColumns(result)
	return result, nil
}

// QuoteIdent quotes name as an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func declaredType(decl string) model.ColumnType {
	switch strings.ToUpper(decl) {
	case "INTEGER", "INT", "BIGINT":
		return model.ColumnInteger
	case "REAL", "FLOAT", "DOUBLE":
		return model.ColumnReal
	case "TEXT":
		return model.ColumnText
	}
	return ""
}

// normalize maps driver values onto the cell types used by model.Table.
func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

// inferUntypedColumns types expression columns from their first non-NULL value.
func inferUntypedColumns(t *model.Table) {
	for i := range t.Columns {
		if t.Columns[i].Type != "" {
			continue
		}
		t.Columns[i].Type = model.ColumnText
		for _, row := range t.Rows {
			if row[i] == nil {
				continue
			}
			switch row[i].(type) {
			case int64:
				t.Columns[i].Type = model.ColumnInteger
			case float64:
				t.Columns[i].Type = model.ColumnReal
			}
			break
		}
	}
}
