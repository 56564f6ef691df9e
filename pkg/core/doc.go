// Package core defines the shared language of the leapmix system.
//
// This package contains:
//   - The error taxonomy shared by sources, recipes, operations and the engine
//   - Build history entities (Run, RecipeBuild) and the Store interface
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
