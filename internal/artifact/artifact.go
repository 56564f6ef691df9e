// Package artifact persists built recipes on disk and loads them back.
//
// A single table is stored as
//
//	<root>/<name>/dataset_info.json
//	<root>/<name>/data.jsonl
//
// and a split collection as
//
//	<root>/<name>/dataset_dict.json
//	<root>/<name>/<split>/dataset_info.json
//	<root>/<name>/<split>/data.jsonl
//
// The marker file (dataset_info.json or dataset_dict.json at the top level)
// is written last. Its presence and modification time are the staleness signal.
package artifact

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// Marker and data file names.
const (
	InfoFile = "dataset_info.json"
	DictFile = "dataset_dict.json"
	DataFile = "data.jsonl"
)

// Info is the content of dataset_info.json.
type Info struct {
	Columns   []string  `json:"columns"`
	NumRows   int       `json:"num_rows"`
	CreatedAt time.Time `json:"created_at"`
}

// Dict is the content of dataset_dict.json.
type Dict struct {
	Splits []string `json:"splits"`
}

// Store reads and writes artifacts under a root directory.
type Store struct {
	root string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the artifact directory for a recipe.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// MarkerPath returns the marker file for a recipe artifact.
func (s *Store) MarkerPath(name string, split bool) string {
	if split {
		return filepath.Join(s.Path(name), DictFile)
	}
	return filepath.Join(s.Path(name), InfoFile)
}

// ModTime returns the marker's modification time. ok is false when the
// marker does not exist.
func (s *Store) ModTime(name string, split bool) (time.Time, bool, error) {
	info, err := os.Stat(s.MarkerPath(name, split))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("stat artifact %s: %w", name, err)
	}
	return info.ModTime(), true, nil
}

// Exists reports whether a complete artifact for name is on disk.
func (s *Store) Exists(name string, split bool) bool {
	_, ok, err := s.ModTime(name, split)
	return ok && err == nil
}

// Save persists ds as the artifact for name. The artifact is written to a
// temporary sibling directory and swapped in, so a failed save leaves any
// previous artifact intact.
func (s *Store) Save(name string, ds dataset.Dataset) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp := filepath.Join(s.root, fmt.Sprintf(".%s.tmp-%s", name, uuid.NewString()))
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	switch d := ds.(type) {
	case *dataset.Table:
		if err := writeTable(tmp, d); err != nil {
			return err
		}
	case *dataset.Splits:
		if err := writeSplits(tmp, d); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported dataset type %T", ds)
	}

	final := s.Path(name)
	if err := os.RemoveAll(final); err != nil {
		return fmt.Errorf("remove previous artifact: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("move artifact into place: %w", err)
	}
	return nil
}

func writeSplits(dir string, splits *dataset.Splits) error {
	for _, name := range splits.Names() {
		t, err := splits.Split(name)
		if err != nil {
			return err
		}
		sub := filepath.Join(dir, name)
		if err := os.Mkdir(sub, 0o755); err != nil {
			return fmt.Errorf("create split %s: %w", name, err)
		}
		if err := writeTable(sub, t); err != nil {
			return fmt.Errorf("split %s: %w", name, err)
		}
	}
	return writeJSON(filepath.Join(dir, DictFile), Dict{Splits: splits.Names()})
}

func writeTable(dir string, t *dataset.Table) error {
	f, err := os.Create(filepath.Join(dir, DataFile))
	if err != nil {
		return fmt.Errorf("create data file: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, row := range t.Rows() {
		if err := enc.Encode(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write data file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close data file: %w", err)
	}

	return writeJSON(filepath.Join(dir, InfoFile), Info{
		Columns:   t.Columns(),
		NumRows:   t.NumRows(),
		CreatedAt: time.Now().UTC(),
	})
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644) //nolint:gosec // artifacts are meant to be shared
}

// Load reads the artifact for name. split selects which marker to expect.
func (s *Store) Load(name string, split bool) (dataset.Dataset, error) {
	return LoadDir(s.Path(name), split)
}

// LoadDir reads an artifact directory. When split is false it expects a single
// table; when true, a split collection.
func LoadDir(dir string, split bool) (dataset.Dataset, error) {
	if !split {
		return readTable(dir)
	}

	var dict Dict
	if err := readJSON(filepath.Join(dir, DictFile), &dict); err != nil {
		return nil, err
	}
	splits := dataset.NewSplits()
	for _, name := range dict.Splits {
		t, err := readTable(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", name, err)
		}
		splits.Add(name, t)
	}
	return splits, nil
}

// Detect loads an artifact directory of either layout.
func Detect(dir string) (dataset.Dataset, error) {
	if _, err := os.Stat(filepath.Join(dir, DictFile)); err == nil {
		return LoadDir(dir, true)
	}
	return LoadDir(dir, false)
}

func readTable(dir string) (*dataset.Table, error) {
	var info Info
	if err := readJSON(filepath.Join(dir, InfoFile), &info); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, DataFile))
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	rows := make([][]any, 0, info.NumRows)
	dec := json.NewDecoder(bufio.NewReader(f))
	dec.UseNumber()
	for dec.More() {
		var row []any
		if err := dec.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode row %d in %s: %w", len(rows), dir, err)
		}
		for i, v := range row {
			row[i] = dataset.Normalize(v)
		}
		rows = append(rows, row)
	}
	if len(rows) != info.NumRows {
		return nil, fmt.Errorf("artifact %s is truncated: %d rows, want %d", dir, len(rows), info.NumRows)
	}
	return dataset.NewTable(info.Columns, rows)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
