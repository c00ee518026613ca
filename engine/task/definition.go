package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/flowgate/flowgate/engine/core"
	"github.com/flowgate/flowgate/engine/schema"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrTaskRedefined = errors.New("task redefined with a different definition")
)

// Definition declares a task: its name and the shapes its input and output
// must satisfy. Definitions are immutable once registered.
type Definition struct {
	Name        string       `json:"name"             yaml:"name"`
	InputShape  schema.Shape `json:"input,omitempty"  yaml:"input,omitempty"`
	OutputShape schema.Shape `json:"output,omitempty" yaml:"output,omitempty"`
}

// Validate checks the declaration itself: a non-empty name and shapes that
// compile as schema documents.
func (d *Definition) Validate(_ context.Context) error {
	if d.Name == "" {
		return errors.New("task definition requires a name")
	}
	if _, err := d.InputShape.Compile(); err != nil {
		return fmt.Errorf("task %q input shape: %w", d.Name, err)
	}
	if _, err := d.OutputShape.Compile(); err != nil {
		return fmt.Errorf("task %q output shape: %w", d.Name, err)
	}
	return nil
}

func (d *Definition) fingerprint() (string, error) {
	return core.HashOf(map[string]any{
		"name":   d.Name,
		"input":  map[string]any(d.InputShape),
		"output": map[string]any(d.OutputShape),
	})
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry maps task names to their definitions. It is populated during
// initialization and read-only afterwards, so concurrent lookups from
// parallel phases need no coordination beyond the read lock.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]registered
}

type registered struct {
	def         *Definition
	fingerprint string
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]registered)}
}

// Register adds a definition. Re-registering the same name with an
// identical definition is a no-op; a conflicting definition is a
// configuration error surfaced at startup, never at run time.
func (r *Registry) Register(ctx context.Context, def *Definition) error {
	if err := def.Validate(ctx); err != nil {
		return err
	}
	fp, err := def.fingerprint()
	if err != nil {
		return fmt.Errorf("task %q: %w", def.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.defs[def.Name]; ok {
		if existing.fingerprint == fp {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrTaskRedefined, def.Name)
	}
	r.defs[def.Name] = registered{def: def, fingerprint: fp}
	return nil
}

func (r *Registry) Lookup(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return reg.def, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}
