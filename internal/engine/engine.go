// Package engine builds recipes.
// It resolves recipe dependencies, decides which recipes are stale, loads
// sources, applies operation pipelines, interleaves inputs and persists the
// resulting artifacts.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapmix/internal/artifact"
	"github.com/leapstack-labs/leapmix/internal/catalog"
	"github.com/leapstack-labs/leapmix/internal/dag"
	"github.com/leapstack-labs/leapmix/internal/interleave"
	"github.com/leapstack-labs/leapmix/internal/objectstore"
	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/internal/recipe"
	"github.com/leapstack-labs/leapmix/internal/source"
	"github.com/leapstack-labs/leapmix/internal/state"
	"github.com/leapstack-labs/leapmix/pkg/core"
)

// Engine orchestrates recipe builds for one session.
// Every cache it holds lives until Reset or Close. An Engine is not safe for
// concurrent use.
type Engine struct {
	// Structured logger
	logger *slog.Logger

	// Build history (nil when disabled)
	store core.Store
	run   *core.Run

	sourceCfg  source.Config
	sources    *source.Registry
	catalog    *catalog.Dir
	artifacts  *artifact.Store
	operations *operation.Registry
	workers    int
	seed       uint64

	// Session caches
	recipes  map[string]*recipe.Recipe
	verdicts map[string]bool
	// resolving is the current resolution path, used for cycle detection.
	resolving []string
}

// Config holds engine configuration.
type Config struct {
	// SourcesDir is the directory of source definitions
	SourcesDir string
	// RecipesDir is the directory of recipe definitions
	RecipesDir string
	// OutputDir receives one artifact directory per built recipe
	OutputDir string
	// CacheDir receives hub downloads
	CacheDir string
	// StatePath is the SQLite build history database. Empty disables history.
	StatePath string
	// Hub configures the object store backing hub sources (optional)
	Hub *objectstore.Config
	// Downloader overrides the hub client built from Hub (optional)
	Downloader source.Downloader
	// Operations is the operation registry (optional, uses operation.Default if nil)
	Operations *operation.Registry
	// Workers bounds row-wise operation parallelism (0 uses the CPU count)
	Workers int
	// Seed seeds weighted interleaving (0 uses interleave.DefaultSeed)
	Seed uint64
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. Sources are not read until a build needs them.
func New(cfg Config) (*Engine, error) {
	// Initialize logger (use discard handler if nil)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "recipes_dir", cfg.RecipesDir, "sources_dir", cfg.SourcesDir, "output_dir", cfg.OutputDir)

	hub := cfg.Downloader
	if hub == nil && cfg.Hub != nil && cfg.Hub.Enabled() {
		client, err := objectstore.New(*cfg.Hub, logger)
		if err != nil {
			return nil, err
		}
		hub = client
	}

	var store core.Store
	if cfg.StatePath != "" {
		sqlite := state.NewSQLiteStore(logger)
		if err := sqlite.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := sqlite.InitSchema(); err != nil {
			_ = sqlite.Close()
			return nil, fmt.Errorf("failed to initialize state schema: %w", err)
		}
		store = sqlite
	}

	ops := cfg.Operations
	if ops == nil {
		ops = operation.Default
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = interleave.DefaultSeed
	}

	sourceCfg := source.Config{
		Dir:      cfg.SourcesDir,
		CacheDir: cfg.CacheDir,
		Hub:      hub,
		Logger:   logger,
	}

	return &Engine{
		logger:     logger,
		store:      store,
		sourceCfg:  sourceCfg,
		sources:    source.NewRegistry(sourceCfg),
		catalog:    catalog.New(core.KindRecipe, cfg.RecipesDir),
		artifacts:  artifact.NewStore(cfg.OutputDir),
		operations: ops,
		workers:    cfg.Workers,
		seed:       seed,
		recipes:    make(map[string]*recipe.Recipe),
		verdicts:   make(map[string]bool),
	}, nil
}

// Close releases the source readers and the history store.
func (e *Engine) Close() error {
	var errs []error
	if err := e.sources.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sources: %w", err))
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close state store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Reset drops every session cache so the next build re-reads definitions,
// sources and staleness from disk.
func (e *Engine) Reset() error {
	err := e.sources.Close()
	e.sources = source.NewRegistry(e.sourceCfg)
	e.recipes = make(map[string]*recipe.Recipe)
	e.verdicts = make(map[string]bool)
	e.resolving = nil
	if err != nil {
		return fmt.Errorf("close sources: %w", err)
	}
	return nil
}

// Recipes returns the sorted names of all defined recipes.
func (e *Engine) Recipes() ([]string, error) {
	return e.catalog.List()
}

// RecipesDir returns the directory recipe definitions are read from.
func (e *Engine) RecipesDir() string {
	return e.catalog.Path
}

// Sources returns the sorted names of all defined sources.
func (e *Engine) Sources() ([]string, error) {
	return e.sources.Names()
}

// OutputDir returns the artifact root directory.
func (e *Engine) OutputDir() string {
	return e.artifacts.Root()
}

// Operations returns the operation registry builds use.
func (e *Engine) Operations() *operation.Registry {
	return e.operations
}

// Recipe returns the session's node for name, parsing its definition on first use.
func (e *Engine) Recipe(name string) (*recipe.Recipe, error) {
	return e.lookup(name)
}

func (e *Engine) lookup(name string) (*recipe.Recipe, error) {
	if r, ok := e.recipes[name]; ok {
		return r, nil
	}
	path, err := e.catalog.Find(name)
	if err != nil {
		return nil, err
	}
	r, err := recipe.Load(name, path)
	if err != nil {
		return nil, err
	}
	e.recipes[name] = r
	return r, nil
}

// Graph loads every recipe definition and returns the recipe graph. An edge
// runs from a referenced recipe to the recipe that reads it. ReferencedBy is
// filled on every node. References to undefined recipes are not part of the
// graph; building such a recipe reports them.
func (e *Engine) Graph() (*dag.Graph[*recipe.Recipe], error) {
	names, err := e.Recipes()
	if err != nil {
		return nil, err
	}

	g := dag.NewGraph[*recipe.Recipe]()
	for _, name := range names {
		r, err := e.lookup(name)
		if err != nil {
			return nil, err
		}
		g.AddNode(name, r)
	}
	for _, name := range names {
		r, _ := g.Node(name)
		for _, ref := range r.References {
			if _, ok := g.Node(ref); !ok {
				e.logger.Debug("skipping reference to undefined recipe", "recipe", name, "reference", ref)
				continue
			}
			if err := g.AddEdge(ref, name); err != nil {
				return nil, err
			}
		}
	}
	for _, name := range names {
		r, _ := g.Node(name)
		r.ReferencedBy = g.Children(name)
	}
	return g, nil
}
