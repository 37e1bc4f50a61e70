package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ColumnSource reports where a resolved column set came from.
type ColumnSource string

const (
	SourceRemote  ColumnSource = "remote"
	SourceCache   ColumnSource = "cache"
	SourceDefault ColumnSource = "default"
)

// ColumnResolution is the outcome of loading a column set.
type ColumnResolution struct {
	Columns   ColumnSet
	Source    ColumnSource
	RemoteErr error
}

// ColumnPreferences resolves and persists column sets across the remote store and the on-device cache.
type ColumnPreferences struct {
	store  HeaderStore
	cache  HeaderCache
	logger zerolog.Logger
}

// NewColumnPreferences wires the remote store and local cache. Either may be nil.
func NewColumnPreferences(store HeaderStore, cache HeaderCache, logger zerolog.Logger) *ColumnPreferences {
	return &ColumnPreferences{store: store, cache: cache, logger: logger}
}

// Load returns the remote set, falling back to the cached copy and then to cfg's defaults.
func (p *ColumnPreferences) Load(ctx context.Context, cfg EntityConfig, viewer ViewerContext) ColumnResolution {
	var res ColumnResolution
	if p.store != nil {
		cols, err := p.store.FetchColumns(ctx, cfg.Endpoints, viewer)
		switch {
		case err != nil:
			res.RemoteErr = err
		case len(cols) == 0:
		case cols.Validate() != nil:
			res.RemoteErr = cols.Validate()
		default:
			res.Columns, res.Source = cols, SourceRemote
			return res
		}
		if res.RemoteErr != nil {
			p.logger.Warn().Err(res.RemoteErr).Str("entity", cfg.Code).Msg("column fetch failed, falling back")
		}
	}
	if p.cache != nil {
		cols, ok, err := p.cache.LoadColumns(ctx, cfg.cacheKey(viewer))
		if err != nil {
			p.logger.Warn().Err(err).Str("entity", cfg.Code).Msg("column cache unreadable")
		} else if ok && len(cols) > 0 && cols.Validate() == nil {
			res.Columns, res.Source = cols, SourceCache
			return res
		}
	}
	res.Columns, res.Source = cfg.DefaultColumns.Clone(), SourceDefault
	return res
}

// Save validates columns, writes the on-device copy and then the remote copy.
// Admin saves are global; everyone else saves a personal override. The cache write
// does not depend on the remote outcome. Validation failures write nothing.
func (p *ColumnPreferences) Save(ctx context.Context, cfg EntityConfig, viewer ViewerContext, columns ColumnSet) error {
	if err := columns.Validate(); err != nil {
		return err
	}
	var cacheErr, remoteErr error
	if p.cache != nil {
		if err := p.cache.StoreColumns(ctx, cfg.cacheKey(viewer), columns.Clone()); err != nil {
			cacheErr = fmt.Errorf("dashboard: cache columns for %s: %w", cfg.Code, err)
		}
	}
	if p.store != nil {
		scope := ScopePersonal
		if viewer.IsAdmin() {
			scope = ScopeGlobal
		}
		if err := p.store.SaveColumns(ctx, cfg.Endpoints, viewer, columns.Clone(), scope); err != nil {
			remoteErr = fmt.Errorf("dashboard: save columns for %s: %w", cfg.Code, err)
		}
	}
	return errors.Join(cacheErr, remoteErr)
}

// InMemoryHeaderStore is a concurrency-safe HeaderStore used for tests and offline mode.
type InMemoryHeaderStore struct {
	mu       sync.RWMutex
	global   map[string]ColumnSet
	personal map[string]ColumnSet
}

// NewInMemoryHeaderStore creates an empty store.
func NewInMemoryHeaderStore() *InMemoryHeaderStore {
	return &InMemoryHeaderStore{
		global:   make(map[string]ColumnSet),
		personal: make(map[string]ColumnSet),
	}
}

// FetchColumns returns the viewer's override, or the global set.
func (s *InMemoryHeaderStore) FetchColumns(_ context.Context, endpoints EntityEndpoints, viewer ViewerContext) (ColumnSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cols, ok := s.personal[s.key(endpoints, viewer)]; ok {
		return cols.Clone(), nil
	}
	return s.global[endpoints.Columns].Clone(), nil
}

// SaveColumns stores columns under scope.
func (s *InMemoryHeaderStore) SaveColumns(_ context.Context, endpoints EntityEndpoints, viewer ViewerContext, columns ColumnSet, scope ColumnScope) error {
	if viewer.Scope() == "" {
		return fmt.Errorf("header store requires viewer identity")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope == ScopeGlobal {
		s.global[endpoints.Columns] = columns.Clone()
		return nil
	}
	s.personal[s.key(endpoints, viewer)] = columns.Clone()
	return nil
}

func (s *InMemoryHeaderStore) key(endpoints EntityEndpoints, viewer ViewerContext) string {
	return endpoints.Columns + "::" + viewer.Scope()
}

// InMemoryHeaderCache is a HeaderCache kept in process memory.
type InMemoryHeaderCache struct {
	mu   sync.RWMutex
	data map[string]ColumnSet
}

// NewInMemoryHeaderCache creates an empty cache.
func NewInMemoryHeaderCache() *InMemoryHeaderCache {
	return &InMemoryHeaderCache{data: make(map[string]ColumnSet)}
}

// LoadColumns returns the cached set for key.
func (c *InMemoryHeaderCache) LoadColumns(_ context.Context, key string) (ColumnSet, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cols, ok := c.data[key]
	return cols.Clone(), ok, nil
}

// StoreColumns replaces the cached set for key.
func (c *InMemoryHeaderCache) StoreColumns(_ context.Context, key string, columns ColumnSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = columns.Clone()
	return nil
}
