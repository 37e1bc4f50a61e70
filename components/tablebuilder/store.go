package tablebuilder

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

// SchemaStore persists schemas. List returns what the backend exposes to the
// viewer; Service applies the visibility rule again on top.
type SchemaStore interface {
	ListSchemas(ctx context.Context, viewer dashboard.ViewerContext) ([]Schema, error)
	CreateSchema(ctx context.Context, viewer dashboard.ViewerContext, schema Schema) (Schema, error)
	UpdateSchema(ctx context.Context, viewer dashboard.ViewerContext, schema Schema) (Schema, error)
	DeleteSchema(ctx context.Context, viewer dashboard.ViewerContext, id string) error
}

// InMemoryStore is a process-local SchemaStore used by tests and the CLI.
type InMemoryStore struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{schemas: map[string]Schema{}}
}

func (s *InMemoryStore) ListSchemas(context.Context, dashboard.ViewerContext) ([]Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Schema, 0, len(s.schemas))
	for _, schema := range s.schemas {
		out = append(out, schema)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CreateSchema(_ context.Context, _ dashboard.ViewerContext, schema Schema) (Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if schema.ID == "" {
		schema.ID = uuid.NewString()
	}
	s.schemas[schema.ID] = schema
	return schema, nil
}

func (s *InMemoryStore) UpdateSchema(_ context.Context, _ dashboard.ViewerContext, schema Schema) (Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schemas[schema.ID]; !ok {
		return Schema{}, ErrSchemaNotFound
	}
	s.schemas[schema.ID] = schema
	return schema, nil
}

func (s *InMemoryStore) DeleteSchema(_ context.Context, _ dashboard.ViewerContext, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schemas[id]; !ok {
		return ErrSchemaNotFound
	}
	delete(s.schemas, id)
	return nil
}
