// Package config holds the project layout defaults shared by the CLI and the engine.
package config

import (
	"runtime"

	"github.com/leapstack-labs/leapmix/internal/operation"
)

// Default configuration values.
const (
	DefaultSourcesDir = "sources"
	DefaultRecipesDir = "recipes"
	DefaultOutputDir  = "output"
	DefaultCacheDir   = ".leapmix/cache"
	DefaultStateFile  = ".leapmix/state.db"
	DefaultSeed       = 42
	DefaultHubRegion  = "us-east-1"
)

// DefaultWorkers returns the default worker count for row-wise operations.
func DefaultWorkers() int {
	return min(runtime.NumCPU(), operation.MaxWorkers)
}
