// Package adapter reads columnar and delimited files into tables through an
// embedded DuckDB connection.
package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/marcboeker/go-duckdb"

	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// Format is a file format DuckDB can scan.
type Format string

// Supported formats.
const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
)

// FormatForExt maps a file extension to a format.
func FormatForExt(ext string) (Format, bool) {
	switch strings.ToLower(ext) {
	case ".parquet":
		return FormatParquet, true
	case ".csv":
		return FormatCSV, true
	case ".jsonl", ".ndjson", ".json":
		return FormatJSON, true
	default:
		return "", false
	}
}

// DuckDB reads files with an embedded DuckDB database.
type DuckDB struct {
	db *sql.DB
}

// Open creates a DuckDB reader. Use ":memory:" or "" for an in-memory database.
func Open(ctx context.Context, path string) (*DuckDB, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return &DuckDB{db: db}, nil
}

// Close closes the DuckDB connection.
func (a *DuckDB) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Read loads files of one format into a single table. Files with different
// columns are unioned by name.
func (a *DuckDB) Read(ctx context.Context, format Format, files []string) (*dataset.Table, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files to read", format)
	}

	quoted := make([]string, len(files))
	for i, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		quoted[i] = "'" + strings.ReplaceAll(abs, "'", "''") + "'"
	}
	list := "[" + strings.Join(quoted, ", ") + "]"

	var query string
	switch format {
	case FormatParquet:
		query = fmt.Sprintf("SELECT * FROM read_parquet(%s, union_by_name=true)", list)
	case FormatCSV:
		query = fmt.Sprintf("SELECT * FROM read_csv_auto(%s, header=true, union_by_name=true)", list)
	case FormatJSON:
		query = fmt.Sprintf("SELECT * FROM read_json_auto(%s, union_by_name=true)", list)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return a.Query(ctx, query)
}

// Query runs a query and collects the result as a table.
func (a *DuckDB) Query(ctx context.Context, query string, args ...any) (*dataset.Table, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = convert(v)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return dataset.NewTable(columns, data)
}

// Exec runs a statement.
func (a *DuckDB) Exec(ctx context.Context, query string, args ...any) error {
	if a.db == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// convert maps DuckDB driver values into the dataset value domain.
func convert(v any) any {
	switch val := v.(type) {
	case duckdb.Decimal:
		return val.Float64()
	case duckdb.Map:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = convert(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = convert(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = convert(item)
		}
		return out
	default:
		return dataset.Normalize(v)
	}
}
