package block

import (
	"fmt"
	"sort"
	"sync"

	"github.com/enrichflow/enrichflow/types"
)

// Factory constructs a Block instance for one workflow node.
type Factory func() (Block, error)

// Definition is the descriptive metadata a block type registers with.
type Definition struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Registry maps block type keys to factories. Registration happens at
// startup; duplicate keys are rejected so misconfigured deployments fail
// fast rather than silently shadowing a block.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	defs      map[string]Definition
}

// NewRegistry creates an empty block registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		defs:      make(map[string]Definition),
	}
}

// Register adds a block type. It fails on an empty type key, a nil factory,
// or a duplicate registration.
func (r *Registry) Register(def Definition, factory Factory) error {
	if def.Type == "" {
		return types.NewError(types.ErrValidation, "block type key must not be empty")
	}
	if factory == nil {
		return types.NewError(types.ErrValidation, fmt.Sprintf("block type %q has nil factory", def.Type))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[def.Type]; exists {
		return types.NewError(types.ErrValidation, fmt.Sprintf("block type %q already registered", def.Type))
	}

	r.factories[def.Type] = factory
	r.defs[def.Type] = def
	return nil
}

// MustRegister registers a block type and panics on error. Intended for
// startup wiring where a failure is a programming error.
func (r *Registry) MustRegister(def Definition, factory Factory) {
	if err := r.Register(def, factory); err != nil {
		panic(err)
	}
}

// Create instantiates a block for the given type key.
func (r *Registry) Create(blockType string) (Block, error) {
	r.mu.RLock()
	factory, ok := r.factories[blockType]
	r.mu.RUnlock()

	if !ok {
		return nil, types.NewError(types.ErrBlockNotFound,
			fmt.Sprintf("block type %q is not registered", blockType))
	}
	return factory()
}

// Has reports whether blockType is registered.
func (r *Registry) Has(blockType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[blockType]
	return ok
}

// Definition returns the metadata for blockType.
func (r *Registry) Definition(blockType string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[blockType]
	return def, ok
}

// Types returns all registered type keys, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
