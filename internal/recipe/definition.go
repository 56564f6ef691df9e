// Package recipe parses recipe definitions and holds the per-session recipe
// node the build engine works on.
package recipe

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapmix/internal/operation"
	"github.com/leapstack-labs/leapmix/pkg/core"
)

// Reference kinds.
const (
	TypeSource = "source"
	TypeRecipe = "recipe"
)

// Reference is one input of a recipe: a source or another recipe, its
// sampling weight and its local pipeline.
type Reference struct {
	Name        string                 `yaml:"-"`
	Type        string                 `yaml:"type"`
	Probability float64                `yaml:"probability"`
	Operations  []operation.Invocation `yaml:"operations"`
}

// IsRecipe reports whether the reference points at another recipe.
func (r Reference) IsRecipe() bool {
	return r.Type == TypeRecipe
}

// Definition is the parsed content of a recipe file.
type Definition struct {
	Sources         References             `yaml:"sources"`
	FinalOperations []operation.Invocation `yaml:"final_operations"`
	TestSplitRatio  float64                `yaml:"test_split_ratio"`
}

// Split reports whether the recipe persists a train/test split.
func (d *Definition) Split() bool {
	return d.TestSplitRatio > 0
}

// References holds recipe inputs in declaration order. It decodes from either
// a list of source names or an ordered mapping of name to reference.
type References []Reference

var referenceKeys = []string{"type", "probability", "operations"}

// UnmarshalYAML implements yaml.Unmarshaler.
func (rs *References) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		out := make(References, 0, len(node.Content))
		for _, item := range node.Content {
			var name string
			if err := item.Decode(&name); err != nil {
				return fmt.Errorf("line %d: source list entries must be names: %w", item.Line, err)
			}
			out = append(out, Reference{Name: name, Type: TypeSource, Probability: 1})
		}
		*rs = out
		return nil

	case yaml.MappingNode:
		out := make(References, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			ref := Reference{Name: keyNode.Value, Type: TypeSource, Probability: 1}
			if valNode.Kind == yaml.MappingNode {
				for k := 0; k+1 < len(valNode.Content); k += 2 {
					if key := valNode.Content[k].Value; !slices.Contains(referenceKeys, key) {
						return fmt.Errorf("line %d: source %q: unknown field %q", valNode.Content[k].Line, ref.Name, key)
					}
				}
			}
			if valNode.Tag != "!!null" {
				if err := valNode.Decode(&ref); err != nil {
					return fmt.Errorf("source %q: %w", ref.Name, err)
				}
			}
			ref.Name = keyNode.Value
			out = append(out, ref)
		}
		*rs = out
		return nil

	default:
		return fmt.Errorf("line %d: sources must be a list or a mapping", node.Line)
	}
}

// Parse decodes and validates a recipe definition. JSON is accepted as YAML.
// name and path only appear in error messages.
func Parse(name, path string, data []byte) (*Definition, error) {
	def := &Definition{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(def); err != nil {
		return nil, &core.ConfigValidationError{Subject: "recipe " + name, Path: path, Reason: err.Error()}
	}
	if err := def.Validate(); err != nil {
		return nil, &core.ConfigValidationError{Subject: "recipe " + name, Path: path, Reason: err.Error()}
	}
	return def, nil
}

// ParseFile reads and parses a recipe definition file.
func ParseFile(name, path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe %s: %w", name, err)
	}
	return Parse(name, path, data)
}

// Validate checks the structural invariants of a definition.
func (d *Definition) Validate() error {
	if len(d.Sources) == 0 {
		return fmt.Errorf("sources must not be empty")
	}
	seen := make(map[string]bool, len(d.Sources))
	for _, ref := range d.Sources {
		if ref.Name == "" {
			return fmt.Errorf("source names must not be empty")
		}
		if seen[ref.Name] {
			return fmt.Errorf("source %q is listed twice", ref.Name)
		}
		seen[ref.Name] = true
		if ref.Type != TypeSource && ref.Type != TypeRecipe {
			return fmt.Errorf("source %q: type must be %q or %q, got %q", ref.Name, TypeSource, TypeRecipe, ref.Type)
		}
		if ref.Probability < 0 {
			return fmt.Errorf("source %q: probability must be non-negative, got %v", ref.Name, ref.Probability)
		}
		if err := validateInvocations(ref.Operations); err != nil {
			return fmt.Errorf("source %q: %w", ref.Name, err)
		}
	}
	if err := validateInvocations(d.FinalOperations); err != nil {
		return fmt.Errorf("final_operations: %w", err)
	}
	if d.TestSplitRatio < 0 || d.TestSplitRatio >= 1 {
		return fmt.Errorf("test_split_ratio must be in [0, 1), got %v", d.TestSplitRatio)
	}
	return nil
}

func validateInvocations(steps []operation.Invocation) error {
	for i, step := range steps {
		if step.Name == "" {
			return fmt.Errorf("operation %d has no name", i)
		}
	}
	return nil
}

// RecipeReferences returns the names of referenced recipes in declaration order.
func (d *Definition) RecipeReferences() []string {
	var names []string
	for _, ref := range d.Sources {
		if ref.IsRecipe() {
			names = append(names, ref.Name)
		}
	}
	return names
}
