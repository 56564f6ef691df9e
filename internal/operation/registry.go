package operation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/leapstack-labs/leapmix/pkg/core"
)

// Registry maps operation names to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Default is the process-wide registry the built-in operations register into.
var Default = NewRegistry()

// Register adds a constructor under name. Registering a name twice fails.
func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" {
		return fmt.Errorf("operation name must not be empty")
	}
	if ctor == nil {
		return fmt.Errorf("operation %q: nil constructor", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[name]; exists {
		return &core.DuplicateOperationError{Name: name}
	}
	r.ctors[name] = ctor
	return nil
}

// MustRegister is like Register but panics on error.
// Called by operation implementations in their init() functions.
func (r *Registry) MustRegister(name string, ctor Constructor) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// Create instantiates the named operation.
func (r *Registry) Create(name string) (Operation, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &core.UnknownOperationError{Name: name, Available: r.Names()}
	}
	return ctor(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[name]
	return ok
}

// Names returns all registered operation names (sorted).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the description of the named operation, or "".
func (r *Registry) Describe(name string) string {
	op, err := r.Create(name)
	if err != nil {
		return ""
	}
	if d, ok := op.(Describer); ok {
		return d.Description()
	}
	return ""
}
