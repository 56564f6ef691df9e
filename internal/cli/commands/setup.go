// Package commands implements the leapmix CLI subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapmix/internal/cli/config"
	"github.com/leapstack-labs/leapmix/internal/cli/output"
	intconfig "github.com/leapstack-labs/leapmix/internal/config"
	"github.com/leapstack-labs/leapmix/internal/engine"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	eng, err := createEngine(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	cmdCtx.Engine = eng

	cleanup := func() {
		if err := eng.Close(); err != nil {
			cmdCtx.Logger.Warn("failed to close engine", "error", err)
		}
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that only list definitions or operations.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		SourcesDir:   intconfig.DefaultSourcesDir,
		RecipesDir:   intconfig.DefaultRecipesDir,
		OutputDir:    intconfig.DefaultOutputDir,
		CacheDir:     intconfig.DefaultCacheDir,
		StatePath:    intconfig.DefaultStateFile,
		OutputFormat: config.DefaultOutput,
		Workers:      intconfig.DefaultWorkers(),
		Seed:         intconfig.DefaultSeed,
	}
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	// Ensure state directory exists
	if cfg.StatePath != "" {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	return engine.New(engine.Config{
		SourcesDir: cfg.SourcesDir,
		RecipesDir: cfg.RecipesDir,
		OutputDir:  cfg.OutputDir,
		CacheDir:   cfg.CacheDir,
		StatePath:  cfg.StatePath,
		Hub:        cfg.Hub.ObjectStore(),
		Workers:    cfg.Workers,
		Seed:       cfg.Seed,
		Logger:     logger,
	})
}
