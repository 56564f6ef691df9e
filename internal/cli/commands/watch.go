package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/leapmix/internal/catalog"
	"github.com/leapstack-labs/leapmix/internal/engine"
)

// watchAndRebuild rebuilds name whenever its definition or the definition of a
// recipe it depends on changes. Source definitions are not watched: staleness
// only follows recipe definitions. It returns when ctx is canceled or the
// process is interrupted.
func watchAndRebuild(ctx context.Context, cmdCtx *CommandContext, name string, debounce time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := cmdCtx.Renderer
	eng := cmdCtx.Engine

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := cmdCtx.Cfg.RecipesDir
	if err := watcher.Add(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("recipes directory %s does not exist", dir)
		}
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	r.Muted(fmt.Sprintf("Watching %s for changes. Press Ctrl+C to stop.", dir))

	// Debounce timer
	var debounceTimer *time.Timer
	rebuild := make(chan struct{}, 1)
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !affectsRecipe(eng, name, dir, event.Name) {
				continue
			}
			cmdCtx.Logger.Debug("definition changed", "path", event.Name, "op", event.Op.String())

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounce, func() {
				select {
				case rebuild <- struct{}{}:
				default:
				}
			})

		case <-rebuild:
			if err := eng.Reset(); err != nil {
				cmdCtx.Logger.Warn("failed to reset engine", "error", err)
			}
			r.Println("")
			if _, err := buildOnce(ctx, cmdCtx, name); err != nil {
				r.Error(err.Error())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmdCtx.Logger.Warn("watcher error", "error", err)
		}
	}
}

// affectsRecipe reports whether a change to path can change the result of
// building name: path must be the definition of name itself or of one of its
// transitive dependencies.
func affectsRecipe(eng *engine.Engine, name, recipesDir, path string) bool {
	ext := filepath.Ext(path)
	if !slices.Contains(catalog.Extensions, ext) || strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}

	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(recipesDir) {
		return false
	}

	changed := strings.TrimSuffix(filepath.Base(path), ext)
	if changed == name {
		return true
	}
	g, err := eng.Graph()
	if err != nil {
		// A broken definition anywhere is reported by the rebuild.
		return true
	}
	return slices.Contains(g.Upstream(name), changed)
}
