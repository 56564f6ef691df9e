package dataset

import (
	"fmt"
	"slices"
)

// Standard split names produced by a train/test split.
const (
	SplitTrain = "train"
	SplitTest  = "test"
)

// Splits is an ordered, named collection of tables.
type Splits struct {
	names  []string
	tables map[string]*Table
}

// NewSplits creates an empty split collection.
func NewSplits() *Splits {
	return &Splits{tables: make(map[string]*Table)}
}

// Add appends a split. Adding an existing name replaces the table but keeps its position.
func (s *Splits) Add(name string, t *Table) {
	if _, ok := s.tables[name]; !ok {
		s.names = append(s.names, name)
	}
	s.tables[name] = t
}

// Names returns split names in insertion order.
func (s *Splits) Names() []string {
	return slices.Clone(s.names)
}

// Split returns the named split.
func (s *Splits) Split(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("split %q not found (have %v)", name, s.names)
	}
	return t, nil
}

// Len returns the number of splits.
func (s *Splits) Len() int {
	return len(s.names)
}

// NumRows returns the row count summed over all splits.
func (s *Splits) NumRows() int {
	n := 0
	for _, t := range s.tables {
		n += t.NumRows()
	}
	return n
}

// Flatten concatenates all splits in order.
func (s *Splits) Flatten() *Table {
	tables := make([]*Table, 0, len(s.names))
	for _, name := range s.names {
		tables = append(tables, s.tables[name])
	}
	if len(tables) == 1 {
		return tables[0]
	}
	return Concatenate(tables...)
}

var (
	_ Dataset = (*Table)(nil)
	_ Dataset = (*Splits)(nil)
)
