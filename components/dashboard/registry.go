package dashboard

import (
	"fmt"
	"sort"
	"sync"
)

// EntityHook lets packages register entity configs during init().
type EntityHook func(reg *Registry) error

var (
	globalHookMu sync.Mutex
	globalHooks  []EntityHook
)

// RegisterEntityHook registers a hook executed against new registries.
func RegisterEntityHook(h EntityHook) {
	globalHookMu.Lock()
	defer globalHookMu.Unlock()
	globalHooks = append(globalHooks, h)
}

// Registry stores entity table configurations discoverable via hooks or manifests.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]EntityConfig
	sources  map[string]string
}

// NewRegistry builds a registry seeded with the built-in entities and applies global hooks.
func NewRegistry() *Registry {
	reg := &Registry{
		entities: map[string]EntityConfig{},
		sources:  map[string]string{},
	}
	for _, cfg := range DefaultEntityConfigs() {
		_ = reg.Register(cfg)
	}
	_ = reg.ApplyHooks()
	return reg
}

// ApplyHooks executes registered entity hooks.
func (r *Registry) ApplyHooks() error {
	globalHookMu.Lock()
	defer globalHookMu.Unlock()
	for _, hook := range globalHooks {
		if err := hook(r); err != nil {
			return err
		}
	}
	return nil
}

// Register stores (or replaces) an entity configuration.
func (r *Registry) Register(cfg EntityConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[cfg.Code] = cfg
	return nil
}

// Unregister drops an entity configuration.
func (r *Registry) Unregister(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entities, code)
	delete(r.sources, code)
}

// Entity fetches a configuration by code.
func (r *Registry) Entity(code string) (EntityConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.entities[code]
	return cfg, ok
}

// MustEntity fetches a configuration or returns ErrUnknownEntity.
func (r *Registry) MustEntity(code string) (EntityConfig, error) {
	cfg, ok := r.Entity(code)
	if !ok {
		return EntityConfig{}, fmt.Errorf("%w: %s", ErrUnknownEntity, code)
	}
	return cfg, nil
}

// Source returns the manifest path an entity was loaded from, if any.
func (r *Registry) Source(code string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[code]
	return src, ok
}

// Entities returns all registered configurations sorted by code.
func (r *Registry) Entities() []EntityConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EntityConfig, 0, len(r.entities))
	for _, cfg := range r.entities {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (r *Registry) recordSource(code, source string) {
	if source == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[code] = source
}
