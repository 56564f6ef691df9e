package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/leapstack-labs/leapmix/internal/adapter"
	"github.com/leapstack-labs/leapmix/internal/artifact"
	"github.com/leapstack-labs/leapmix/internal/catalog"
	"github.com/leapstack-labs/leapmix/pkg/core"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// Downloader fetches hub objects into a local directory.
type Downloader interface {
	Download(ctx context.Context, prefix string, keys []string, dest string) ([]string, error)
}

// Config configures a Registry.
type Config struct {
	// Dir is the directory holding source definition files.
	Dir string
	// CacheDir receives hub downloads under hub/<name>.
	CacheDir string
	// Hub downloads hub sources. Nil disables hub sources.
	Hub Downloader
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Registry loads sources by name and caches them for its own lifetime.
// It is not safe for concurrent Get calls.
type Registry struct {
	catalog  *catalog.Dir
	cacheDir string
	hub      Downloader
	logger   *slog.Logger
	loaded   map[string]*Source

	// DuckDB reader (lazy initialized)
	reader   *adapter.DuckDB
	readerMu sync.Mutex
}

// NewRegistry creates a registry. No files are read until Get is called.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		catalog:  catalog.New(core.KindSource, cfg.Dir),
		cacheDir: cfg.CacheDir,
		hub:      cfg.Hub,
		logger:   logger,
		loaded:   make(map[string]*Source),
	}
}

// Names lists the defined sources.
func (r *Registry) Names() ([]string, error) {
	return r.catalog.List()
}

// Get returns the named source, loading it on first use.
func (r *Registry) Get(ctx context.Context, name string) (*Source, error) {
	if src, ok := r.loaded[name]; ok {
		return src, nil
	}

	path, err := r.catalog.Find(name)
	if err != nil {
		return nil, err
	}
	def, err := loadDefinition(name, path)
	if err != nil {
		return nil, err
	}
	src := resolve(name, path, def)

	start := time.Now()
	r.logger.Info("loading source", "source", name, "type", src.Type)
	ds, err := r.load(ctx, src)
	if err != nil {
		return nil, err
	}
	src.Dataset = ds
	r.logger.Debug("source loaded", "source", name, "rows", ds.NumRows(), "duration_ms", time.Since(start).Milliseconds())

	r.loaded[name] = src
	return src, nil
}

// Close releases the DuckDB connection, if one was opened.
func (r *Registry) Close() error {
	r.readerMu.Lock()
	defer r.readerMu.Unlock()
	if r.reader == nil {
		return nil
	}
	err := r.reader.Close()
	r.reader = nil
	return err
}

func (r *Registry) load(ctx context.Context, src *Source) (dataset.Dataset, error) {
	switch src.Type {
	case TypeHub:
		return r.loadHub(ctx, src)

	case TypeDisk:
		if len(src.Files) > 0 {
			return nil, &core.UnsupportedSourceTypeError{Source: src.Name, Type: string(src.Type), Mode: "source_files"}
		}
		if err := requireDir(src); err != nil {
			return nil, err
		}
		ds, err := artifact.Detect(src.Path)
		if err != nil {
			return nil, fmt.Errorf("load source %s: %w", src.Name, err)
		}
		return ds, nil

	case TypeParquet:
		return r.loadFiles(ctx, src, adapter.FormatParquet, ".parquet", true)

	case TypeCSV:
		return r.loadFiles(ctx, src, adapter.FormatCSV, ".csv", false)

	default:
		return nil, &core.UnsupportedSourceTypeError{Source: src.Name, Type: string(src.Type), Mode: "loading"}
	}
}

func (r *Registry) loadFiles(ctx context.Context, src *Source, format adapter.Format, ext string, filesAllowed bool) (dataset.Dataset, error) {
	files := src.Files
	if len(files) > 0 {
		if !filesAllowed {
			return nil, &core.UnsupportedSourceTypeError{Source: src.Name, Type: string(src.Type), Mode: "source_files"}
		}
		for _, f := range files {
			if info, err := os.Stat(f); err != nil || info.IsDir() {
				return nil, &core.SourcePathNotFoundError{Source: src.Name, Path: f}
			}
		}
	} else {
		if err := requireDir(src); err != nil {
			return nil, err
		}
		var err error
		if files, err = findFiles(src.Path, ext); err != nil {
			return nil, fmt.Errorf("load source %s: %w", src.Name, err)
		}
		if len(files) == 0 {
			return nil, &core.ConfigValidationError{
				Subject: "source " + src.Name,
				Path:    src.DefinitionPath,
				Reason:  fmt.Sprintf("no %s files in %s", ext, src.Path),
			}
		}
	}

	reader, err := r.duckdb(ctx)
	if err != nil {
		return nil, err
	}
	t, err := reader.Read(ctx, format, files)
	if err != nil {
		return nil, fmt.Errorf("load source %s: %w", src.Name, err)
	}
	return t, nil
}

func (r *Registry) loadHub(ctx context.Context, src *Source) (dataset.Dataset, error) {
	if r.hub == nil {
		return nil, &core.ConfigValidationError{
			Subject: "source " + src.Name,
			Path:    src.DefinitionPath,
			Reason:  "hub sources need the hub section configured in leapmix.yaml",
		}
	}

	dest := filepath.Join(r.cacheDir, "hub", src.Name)
	files, err := r.hub.Download(ctx, src.Path, src.Files, dest)
	if err != nil {
		return nil, fmt.Errorf("fetch source %s: %w", src.Name, err)
	}

	if hasArtifactMarker(dest, files) {
		return artifact.Detect(dest)
	}

	byFormat := make(map[adapter.Format][]string)
	var order []adapter.Format
	for _, f := range files {
		format, ok := adapter.FormatForExt(filepath.Ext(f))
		if !ok {
			r.logger.Debug("skipping hub file", "source", src.Name, "file", f)
			continue
		}
		if _, seen := byFormat[format]; !seen {
			order = append(order, format)
		}
		byFormat[format] = append(byFormat[format], f)
	}
	if len(order) == 0 {
		return nil, &core.UnsupportedSourceTypeError{Source: src.Name, Type: string(src.Type), Mode: "files without a .parquet, .csv or .jsonl extension"}
	}

	reader, err := r.duckdb(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]*dataset.Table, 0, len(order))
	for _, format := range order {
		t, err := reader.Read(ctx, format, byFormat[format])
		if err != nil {
			return nil, fmt.Errorf("load source %s: %w", src.Name, err)
		}
		tables = append(tables, t)
	}
	return dataset.Concatenate(tables...), nil
}

// hasArtifactMarker reports whether the downloaded files include an artifact
// marker at the root of dest. Files left over from earlier downloads do not
// count.
func hasArtifactMarker(dest string, files []string) bool {
	for _, f := range files {
		if filepath.Clean(filepath.Dir(f)) != filepath.Clean(dest) {
			continue
		}
		if base := filepath.Base(f); base == artifact.DictFile || base == artifact.InfoFile {
			return true
		}
	}
	return false
}

// duckdb lazily opens the DuckDB reader.
func (r *Registry) duckdb(ctx context.Context) (*adapter.DuckDB, error) {
	r.readerMu.Lock()
	defer r.readerMu.Unlock()

	if r.reader != nil {
		return r.reader, nil
	}
	r.logger.Debug("opening duckdb reader")
	reader, err := adapter.Open(ctx, "")
	if err != nil {
		return nil, err
	}
	r.reader = reader
	return reader, nil
}

func requireDir(src *Source) error {
	info, err := os.Stat(src.Path)
	if err != nil || !info.IsDir() {
		return &core.SourcePathNotFoundError{Source: src.Name, Path: src.Path}
	}
	return nil
}

// findFiles returns the files below dir with the given extension, sorted.
func findFiles(dir, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(d.Name()) == ext {
			files = append(files, path)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}
