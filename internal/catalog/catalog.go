// Package catalog finds recipe and source definition files by name.
//
// A definition named "news" lives in <dir>/news.json, news.yaml or news.yml.
// When several exist, the first extension in that order wins.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapmix/pkg/core"
)

// Extensions lists the recognised definition file extensions in lookup order.
var Extensions = []string{".json", ".yaml", ".yml"}

// Dir is a directory of definition files of one kind.
type Dir struct {
	Kind string
	Path string
}

// New returns a catalog for kind (core.KindRecipe or core.KindSource) rooted at path.
func New(kind, path string) *Dir {
	return &Dir{Kind: kind, Path: path}
}

// Find returns the definition file for name.
func (d *Dir) Find(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", d.notFound(name)
	}
	for _, ext := range Extensions {
		p := filepath.Join(d.Path, name+ext)
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return "", d.notFound(name)
}

// List returns the sorted, de-duplicated names of all definitions.
// A missing directory yields no names.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s directory: %w", d.Kind, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !slices.Contains(Extensions, ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

func (d *Dir) notFound(name string) error {
	available, _ := d.List()
	return &core.DefinitionNotFoundError{Kind: d.Kind, Name: name, Dir: d.Path, Available: available}
}
