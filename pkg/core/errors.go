package core

import (
	"fmt"
	"io/fs"
	"strings"
)

// ConfigValidationError reports a malformed or incomplete recipe, source or
// operation definition.
type ConfigValidationError struct {
	// Subject names what was being validated, e.g. "recipe mix" or "operation remap".
	Subject string
	// Path is the definition file, when known.
	Path   string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid %s (%s): %s", e.Subject, e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Subject, e.Reason)
}

// SourcePathNotFoundError is returned when a source's resolved directory or
// one of its listed files does not exist.
type SourcePathNotFoundError struct {
	Source string
	Path   string
}

func (e *SourcePathNotFoundError) Error() string {
	return fmt.Sprintf("source %q: %q does not exist or is the wrong kind of path", e.Source, e.Path)
}

// UnsupportedSourceTypeError is returned when a source type is known but the
// requested loading mode is not implemented for it.
type UnsupportedSourceTypeError struct {
	Source string
	Type   string
	Mode   string
}

func (e *UnsupportedSourceTypeError) Error() string {
	return fmt.Sprintf("source %q: type %q does not support %s", e.Source, e.Type, e.Mode)
}

// SelfReferenceError is returned when a recipe lists itself as a source.
type SelfReferenceError struct {
	Recipe string
}

func (e *SelfReferenceError) Error() string {
	return fmt.Sprintf("recipe %q tried to use itself as a source", e.Recipe)
}

// CyclicDependencyError is returned when recipe references form a cycle.
// Cycle starts and ends with the same recipe name.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "circular recipe dependency detected: " + strings.Join(e.Cycle, " -> ")
}

// UnknownOperationError is returned when a pipeline step names an operation
// that was never registered.
type UnknownOperationError struct {
	Name      string
	Available []string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q\nAvailable operations: %v\nHint: run 'leapmix list-operations'", e.Name, e.Available)
}

// DuplicateOperationError is returned when an operation name is registered twice.
type DuplicateOperationError struct {
	Name string
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("operation %q is already registered", e.Name)
}

// Definition kinds reported by DefinitionNotFoundError.
const (
	KindRecipe = "recipe"
	KindSource = "source"
)

// DefinitionNotFoundError is returned when no definition file exists for a
// recipe or source name.
type DefinitionNotFoundError struct {
	Kind      string
	Name      string
	Dir       string
	Available []string
}

func (e *DefinitionNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found in %s", e.Kind, e.Name, e.Dir)
}

// Unwrap lets callers match with errors.Is(err, fs.ErrNotExist).
func (e *DefinitionNotFoundError) Unwrap() error {
	return fs.ErrNotExist
}
