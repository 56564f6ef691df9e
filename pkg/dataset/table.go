// Package dataset provides the in-memory tabular data model that recipes,
// sources and operations exchange.
//
// A Table is an ordered list of column names plus rows of values. Tables are
// treated as immutable: every transform returns a new Table and never mutates
// the rows of its input.
package dataset

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Dataset is either a single *Table or a *Splits collection.
type Dataset interface {
	// NumRows returns the total row count across all splits.
	NumRows() int
	// Flatten returns the data as a single table, concatenating splits in order.
	Flatten() *Table
}

// Table is a column-ordered in-memory table.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// NewTable creates a table from column names and rows.
// Every row must have exactly len(columns) values.
func NewTable(columns []string, rows [][]any) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
	}
	return &Table{columns: slices.Clone(columns), index: index, rows: rows}, nil
}

// MustTable is like NewTable but panics on malformed input. Intended for tests
// and literals.
func MustTable(columns []string, rows [][]any) *Table {
	t, err := NewTable(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// FromRecords builds a table from row maps. Column order follows first
// appearance; keys of each map are visited in the order given by columnHint
// first, then sorted.
func FromRecords(records []map[string]any, columnHint ...string) *Table {
	var columns []string
	seen := make(map[string]bool)
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			columns = append(columns, c)
		}
	}
	for _, c := range columnHint {
		add(c)
	}
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			add(k)
		}
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	return MustTable(columns, rows)
}

// Empty returns a table with the given columns and no rows.
func Empty(columns ...string) *Table {
	return MustTable(columns, nil)
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return len(t.rows)
}

// Flatten returns the table itself.
func (t *Table) Flatten() *Table {
	return t
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Row returns the values of row i. The slice must not be modified.
func (t *Table) Row(i int) []any {
	return t.rows[i]
}

// Rows returns all rows. The slices must not be modified.
func (t *Table) Rows() [][]any {
	return t.rows
}

// Record returns row i as a column-name keyed map.
func (t *Table) Record(i int) map[string]any {
	rec := make(map[string]any, len(t.columns))
	for j, c := range t.columns {
		rec[c] = t.rows[i][j]
	}
	return rec
}

// Value returns the value of column name in row i.
func (t *Table) Value(i int, name string) (any, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.rows[i][j], true
}

// Column returns all values of a column.
func (t *Table) Column(name string) ([]any, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]any, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, nil
}

// RemoveColumns returns a table without the named columns. Unknown names are ignored.
func (t *Table) RemoveColumns(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var keep []string
	for _, c := range t.columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	out, _ := t.SelectColumns(keep...)
	return out
}

// SelectColumns returns a table with only the named columns, in the given order.
func (t *Table) SelectColumns(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		j, ok := t.index[n]
		if !ok {
			return nil, fmt.Errorf("column %q not found", n)
		}
		idx[i] = j
	}
	rows := make([][]any, len(t.rows))
	for r, row := range t.rows {
		nr := make([]any, len(idx))
		for i, j := range idx {
			nr[i] = row[j]
		}
		rows[r] = nr
	}
	return NewTable(names, rows)
}

// RenameColumns returns a table with columns renamed per mapping (old -> new).
// Every old name must exist and the result must not contain duplicate names.
func (t *Table) RenameColumns(mapping map[string]string) (*Table, error) {
	columns := slices.Clone(t.columns)
	for from, to := range mapping {
		j, ok := t.index[from]
		if !ok {
			return nil, fmt.Errorf("cannot rename missing column %q", from)
		}
		columns[j] = to
	}
	return NewTable(columns, t.rows)
}

// WithColumn returns a table with the column set to values. An existing column
// is replaced in place; a new column is appended.
func (t *Table) WithColumn(name string, values []any) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, fmt.Errorf("column %q has %d values, want %d", name, len(values), len(t.rows))
	}
	j, exists := t.index[name]
	columns := slices.Clone(t.columns)
	if !exists {
		columns = append(columns, name)
	}
	rows := make([][]any, len(t.rows))
	for i, row := range t.rows {
		nr := make([]any, len(columns))
		copy(nr, row)
		if exists {
			nr[j] = values[i]
		} else {
			nr[len(columns)-1] = values[i]
		}
		rows[i] = nr
	}
	return NewTable(columns, rows)
}

// Select returns a table made of the rows at the given indices, in that order.
func (t *Table) Select(indices []int) *Table {
	rows := make([][]any, len(indices))
	for i, idx := range indices {
		rows[i] = t.rows[idx]
	}
	return &Table{columns: t.columns, index: t.index, rows: rows}
}

// Slice returns rows [start, end).
func (t *Table) Slice(start, end int) *Table {
	return &Table{columns: t.columns, index: t.index, rows: t.rows[start:end:end]}
}

// Concatenate stacks tables vertically. Columns are aligned by name: the result
// holds the union of columns in first-appearance order and missing values are nil.
func Concatenate(tables ...*Table) *Table {
	columns := UnionColumns(tables...)
	var rows [][]any
	for _, t := range tables {
		rows = append(rows, t.AlignTo(columns).rows...)
	}
	return MustTable(columns, rows)
}

// UnionColumns returns the union of the tables' columns in first-appearance order.
func UnionColumns(tables ...*Table) []string {
	var columns []string
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, c := range t.columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}
	return columns
}

// AlignTo returns the table projected onto columns; columns the table lacks
// are filled with nil. The receiver is returned unchanged when it already
// matches.
func (t *Table) AlignTo(columns []string) *Table {
	if slices.Equal(columns, t.columns) {
		return t
	}
	rows := make([][]any, len(t.rows))
	for r, row := range t.rows {
		nr := make([]any, len(columns))
		for i, c := range columns {
			if j, ok := t.index[c]; ok {
				nr[i] = row[j]
			}
		}
		rows[r] = nr
	}
	return MustTable(columns, rows)
}

// Shuffle returns the rows in a deterministic pseudo-random order derived from seed.
func (t *Table) Shuffle(seed uint64) *Table {
	rng := rand.New(rand.NewPCG(seed, seed))
	return t.Select(rng.Perm(len(t.rows)))
}
