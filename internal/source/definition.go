// Package source loads the leaf datasets recipes are built from and memoizes
// them for the lifetime of a build session.
package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapmix/pkg/core"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// Type is the backing kind of a source.
type Type string

// Source types.
const (
	// TypeHub is a dataset published to the configured object store bucket.
	TypeHub Type = "hub"
	// TypeDisk is a directory holding a previously built artifact.
	TypeDisk Type = "disk"
	// TypeParquet is one or more Parquet files.
	TypeParquet Type = "parquet"
	// TypeCSV is a directory of CSV files.
	TypeCSV Type = "csv"
)

var typeAliases = map[string]Type{
	"hub":     TypeHub,
	"hf_hub":  TypeHub,
	"disk":    TypeDisk,
	"hf_disk": TypeDisk,
	"parquet": TypeParquet,
	"csv":     TypeCSV,
}

// Definition is the content of a source definition file.
type Definition struct {
	SourceType  string   `yaml:"source_type"`
	SourcePath  string   `yaml:"source_path"`
	SourceFiles []string `yaml:"source_files"`
	Description string   `yaml:"description"`
}

// Type returns the canonical source type.
func (d *Definition) Type() Type {
	return typeAliases[strings.ToLower(d.SourceType)]
}

// ParseDefinition decodes and validates a source definition.
func ParseDefinition(name, path string, data []byte) (*Definition, error) {
	def := &Definition{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(def); err != nil {
		return nil, &core.ConfigValidationError{Subject: "source " + name, Path: path, Reason: err.Error()}
	}
	if err := def.Validate(); err != nil {
		return nil, &core.ConfigValidationError{Subject: "source " + name, Path: path, Reason: err.Error()}
	}
	return def, nil
}

// Validate checks the definition's invariants.
func (d *Definition) Validate() error {
	if d.Type() == "" {
		return fmt.Errorf("source_type must be one of hub, disk, parquet or csv, got %q", d.SourceType)
	}
	hasPath, hasFiles := d.SourcePath != "", len(d.SourceFiles) > 0
	if !hasPath && !hasFiles {
		return fmt.Errorf("must have either source_path or source_files")
	}
	if d.Type() != TypeHub && hasPath && hasFiles {
		return fmt.Errorf("source_path and source_files are mutually exclusive for %s sources", d.Type())
	}
	for i, f := range d.SourceFiles {
		if f == "" {
			return fmt.Errorf("source_files[%d] is empty", i)
		}
	}
	return nil
}

// Source is a loaded source.
type Source struct {
	Name        string
	Type        Type
	Description string
	// DefinitionPath is the file the source was defined in.
	DefinitionPath string
	// Path is the resolved source_path (or the object prefix for hub sources).
	Path string
	// Files are the resolved source_files (or object keys for hub sources).
	Files []string
	// Dataset is the loaded data.
	Dataset dataset.Dataset
}

// resolve returns a Source with filesystem paths resolved against the
// definition's directory. Hub paths are object keys and stay untouched.
func resolve(name, defPath string, def *Definition) *Source {
	src := &Source{
		Name:           name,
		Type:           def.Type(),
		Description:    def.Description,
		DefinitionPath: defPath,
		Path:           def.SourcePath,
		Files:          append([]string(nil), def.SourceFiles...),
	}
	if src.Type == TypeHub {
		return src
	}

	base := filepath.Dir(defPath)
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	src.Path = abs(src.Path)
	for i, f := range src.Files {
		src.Files[i] = abs(f)
	}
	return src
}

func loadDefinition(name, path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", name, err)
	}
	return ParseDefinition(name, path, data)
}
