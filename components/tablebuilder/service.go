package tablebuilder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

// RowsBasePath is the generic backend collection for dynamic table rows.
const RowsBasePath = "/api/dynamic-tables"

// Options wires the builder. When Registry is set, created, updated and
// published schemas are registered there as entities.
type Options struct {
	Store     SchemaStore
	Registry  *dashboard.Registry
	Notifier  dashboard.Notifier
	Telemetry dashboard.Telemetry
	Logger    *zerolog.Logger
	Now       func() time.Time
}

// Service manages dynamic table schemas for a viewer and turns them into
// entity configurations the generic table can render.
type Service struct {
	store     SchemaStore
	notifier  dashboard.Notifier
	telemetry dashboard.Telemetry
	logger    zerolog.Logger
	now       func() time.Time
	registry  *dashboard.Registry

	mu         sync.RWMutex
	validators map[string]*RowValidator
}

var _ dashboard.ValidatorSource = (*Service)(nil)

// NewService builds a Service with safe defaults.
func NewService(opts Options) *Service {
	if opts.Store == nil {
		opts.Store = NewInMemoryStore()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Service{
		store:      opts.Store,
		notifier:   opts.Notifier,
		telemetry:  opts.Telemetry,
		logger:     logger.With().Str("component", "tablebuilder").Logger(),
		now:        opts.Now,
		registry:   opts.Registry,
		validators: map[string]*RowValidator{},
	}
}

// List returns the schemas visible to viewer: their own plus public ones, or all for admins.
func (s *Service) List(ctx context.Context, viewer dashboard.ViewerContext) ([]Schema, error) {
	all, err := s.store.ListSchemas(ctx, viewer)
	if err != nil {
		s.notifyError(ctx, "Failed to load tables", err)
		return nil, err
	}
	out := make([]Schema, 0, len(all))
	for _, schema := range all {
		if Visible(schema, viewer) {
			out = append(out, schema)
		}
	}
	return out, nil
}

// Visible applies the listing rule to one schema.
func Visible(schema Schema, viewer dashboard.ViewerContext) bool {
	return viewer.IsAdmin() || schema.IsPublic || schema.OwnedBy(viewer.Scope())
}

// Get returns a visible schema by id.
func (s *Service) Get(ctx context.Context, viewer dashboard.ViewerContext, id string) (Schema, error) {
	schemas, err := s.List(ctx, viewer)
	if err != nil {
		return Schema{}, err
	}
	for _, schema := range schemas {
		if schema.ID == id {
			return schema, nil
		}
	}
	return Schema{}, fmt.Errorf("%w: %s", ErrSchemaNotFound, id)
}

// Create validates and stores a new schema owned by viewer.
func (s *Service) Create(ctx context.Context, viewer dashboard.ViewerContext, schema Schema) (Schema, error) {
	schema.Name = strings.TrimSpace(schema.Name)
	if err := schema.Validate(); err != nil {
		s.notifyError(ctx, "Invalid table", err)
		return Schema{}, err
	}
	schema.ID = ""
	schema.CreatedBy = viewer.Scope()
	schema.CreatedAt = s.now().UTC()
	created, err := s.store.CreateSchema(ctx, viewer, schema)
	if err != nil {
		s.notifyError(ctx, "Failed to create table", err)
		return Schema{}, fmt.Errorf("tablebuilder: create %s: %w", schema.Name, err)
	}
	s.activate(created)
	s.notifySuccess(ctx, "Table created", created.Name)
	s.record(ctx, "tablebuilder.schema.create", created)
	return created, nil
}

// Update replaces a schema's name, columns and visibility. The returned warnings
// describe columns whose existing data may be orphaned. Nothing is migrated.
func (s *Service) Update(ctx context.Context, viewer dashboard.ViewerContext, schema Schema) (Schema, []Warning, error) {
	current, err := s.Get(ctx, viewer, schema.ID)
	if err != nil {
		return Schema{}, nil, err
	}
	if !canChange(current, viewer) {
		return Schema{}, nil, ErrForbidden
	}
	schema.Name = strings.TrimSpace(schema.Name)
	if err := schema.Validate(); err != nil {
		s.notifyError(ctx, "Invalid table", err)
		return Schema{}, nil, err
	}
	schema.CreatedBy = current.CreatedBy
	schema.CreatedAt = current.CreatedAt
	warnings := DiffWarnings(current, schema)
	updated, err := s.store.UpdateSchema(ctx, viewer, schema)
	if err != nil {
		s.notifyError(ctx, "Failed to update table", err)
		return Schema{}, warnings, fmt.Errorf("tablebuilder: update %s: %w", schema.ID, err)
	}
	for _, w := range warnings {
		s.logger.Warn().Str("schema", updated.ID).Str("column", w.Column).Str("kind", string(w.Kind)).Msg(w.Message)
	}
	s.activate(updated)
	s.notifySuccess(ctx, "Table updated", updated.Name)
	s.record(ctx, "tablebuilder.schema.update", updated)
	return updated, warnings, nil
}

// Delete removes a schema. Only the owner or an admin may delete.
func (s *Service) Delete(ctx context.Context, viewer dashboard.ViewerContext, id string) error {
	current, err := s.Get(ctx, viewer, id)
	if err != nil {
		return err
	}
	if !canChange(current, viewer) {
		s.notifyError(ctx, "Failed to delete table", ErrForbidden)
		return ErrForbidden
	}
	if err := s.store.DeleteSchema(ctx, viewer, id); err != nil {
		s.notifyError(ctx, "Failed to delete table", err)
		return fmt.Errorf("tablebuilder: delete %s: %w", id, err)
	}
	s.deactivate(id)
	s.notifySuccess(ctx, "Table deleted", current.Name)
	s.record(ctx, "tablebuilder.schema.delete", current)
	return nil
}

// Publish activates every schema visible to viewer and returns how many were activated.
func (s *Service) Publish(ctx context.Context, viewer dashboard.ViewerContext) (int, error) {
	schemas, err := s.List(ctx, viewer)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, schema := range schemas {
		if s.activate(schema) {
			n++
		}
	}
	return n, nil
}

// RowValidator returns the validator of an activated schema by entity code.
func (s *Service) RowValidator(entity string) (dashboard.RowValidator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.validators[entity]
	if !ok {
		return nil, false
	}
	return v, true
}

func (s *Service) activate(schema Schema) bool {
	if schema.ID == "" {
		return false
	}
	validator, err := NewRowValidator(schema)
	if err != nil {
		s.logger.Warn().Err(err).Str("schema", schema.ID).Msg("schema not activated")
		return false
	}
	code := EntityCode(schema.ID)
	if s.registry != nil {
		if err := s.registry.Register(Activate(schema)); err != nil {
			s.logger.Warn().Err(err).Str("schema", schema.ID).Msg("schema not registered")
			return false
		}
	}
	s.mu.Lock()
	s.validators[code] = validator
	s.mu.Unlock()
	return true
}

func (s *Service) deactivate(id string) {
	code := EntityCode(id)
	if s.registry != nil {
		s.registry.Unregister(code)
	}
	s.mu.Lock()
	delete(s.validators, code)
	s.mu.Unlock()
}

func canChange(schema Schema, viewer dashboard.ViewerContext) bool {
	return viewer.IsAdmin() || schema.OwnedBy(viewer.Scope())
}

// Activate converts a schema into an entity configuration served by the
// generic per-schema row endpoint.
func Activate(schema Schema) dashboard.EntityConfig {
	base := RowsBasePath + "/" + schema.ID
	cfg := dashboard.EntityConfig{
		Code: EntityCode(schema.ID),
		Name: schema.Name,
		Endpoints: dashboard.EntityEndpoints{
			List:        base + "/get-data",
			Create:      base + "/add-row",
			Update:      base + "/update-row",
			Delete:      base + "/delete-row",
			Columns:     "/api/table-headers/get-" + EntityCode(schema.ID),
			SaveColumns: "/api/table-headers/update-" + EntityCode(schema.ID),
		},
		LiveSearch: true,
	}
	for _, col := range schema.Columns {
		key := col.Key()
		cfg.DefaultColumns = append(cfg.DefaultColumns, dashboard.ColumnDescriptor{ID: key, Label: col.Name, Visible: true})
		if col.Required {
			cfg.RequiredFields = append(cfg.RequiredFields, key)
		}
		if col.Type == TypeDate && cfg.DateColumn == "" {
			cfg.DateColumn = key
		}
	}
	return cfg
}

// EntityCode is the table code a schema renders under.
func EntityCode(schemaID string) string {
	return "table-" + schemaID
}

// TableOptions carries the shared collaborators for Open.
type TableOptions struct {
	Rows        dashboard.RowSource
	Preferences *dashboard.ColumnPreferences
	RefreshHook dashboard.RefreshHook
}

// Open activates a visible schema and loads it as an entity table with row
// shape validation attached.
func (s *Service) Open(ctx context.Context, viewer dashboard.ViewerContext, id string, opts TableOptions) (*dashboard.EntityTable, error) {
	schema, err := s.Get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	validator, err := NewRowValidator(schema)
	if err != nil {
		return nil, err
	}
	table := dashboard.NewEntityTable(dashboard.TableOptions{
		Config:      Activate(schema),
		Viewer:      viewer,
		Rows:        opts.Rows,
		Preferences: opts.Preferences,
		Notifier:    s.notifier,
		RefreshHook: opts.RefreshHook,
		Telemetry:   s.telemetry,
		Logger:      &s.logger,
		Validator:   validator,
		Now:         s.now,
	})
	if err := table.Load(ctx); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *Service) notifyError(ctx context.Context, title string, err error) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, dashboard.Notification{Level: dashboard.LevelError, Title: title, Description: err.Error()})
}

func (s *Service) notifySuccess(ctx context.Context, title, description string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, dashboard.Notification{Level: dashboard.LevelSuccess, Title: title, Description: description})
}

func (s *Service) record(ctx context.Context, event string, schema Schema) {
	if s.telemetry == nil {
		return
	}
	s.telemetry.Record(ctx, event, map[string]any{
		"schema":  schema.ID,
		"columns": len(schema.Columns),
		"public":  schema.IsPublic,
	})
}
