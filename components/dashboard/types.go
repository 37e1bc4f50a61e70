package dashboard

import (
	"context"
	"strings"
	"time"
)

// Role names recognised by the dashboard.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// RowSource talks to the REST backend for one entity's rows.
// Implementations must honour ctx cancellation.
type RowSource interface {
	ListRows(ctx context.Context, endpoints EntityEndpoints, viewer ViewerContext) ([]Row, error)
	CreateRow(ctx context.Context, endpoints EntityEndpoints, viewer ViewerContext, fields Record) (Row, error)
	UpdateRow(ctx context.Context, endpoints EntityEndpoints, viewer ViewerContext, id string, fields Record) (Row, error)
	DeleteRow(ctx context.Context, endpoints EntityEndpoints, viewer ViewerContext, id string) error
}

// HeaderStore persists column sets remotely.
type HeaderStore interface {
	FetchColumns(ctx context.Context, endpoints EntityEndpoints, viewer ViewerContext) (ColumnSet, error)
	SaveColumns(ctx context.Context, endpoints EntityEndpoints, viewer ViewerContext, columns ColumnSet, scope ColumnScope) error
}

// HeaderCache is the on-device copy of column sets, independent of the remote store.
type HeaderCache interface {
	LoadColumns(ctx context.Context, key string) (ColumnSet, bool, error)
	StoreColumns(ctx context.Context, key string, columns ColumnSet) error
}

// RowValidator checks the shape of a submitted record beyond required fields.
// Returned errors should satisfy IsValidation.
type RowValidator interface {
	ValidateRow(fields Record) error
}

// ValidatorSource supplies shape validators for entities that declare one.
type ValidatorSource interface {
	RowValidator(entity string) (RowValidator, bool)
}

// RefreshHook notifies transports (REST/WebSocket) about entity changes.
type RefreshHook interface {
	EntityUpdated(ctx context.Context, event EntityEvent) error
}

// ViewerContext is the read-only session identity injected into every view.
type ViewerContext struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Token  string   `json:"-"`
	Locale string   `json:"locale,omitempty"`
}

// HasRole reports whether the viewer carries role (case-insensitive).
func (v ViewerContext) HasRole(role string) bool {
	for _, r := range v.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the viewer may mutate global configuration.
func (v ViewerContext) IsAdmin() bool {
	return v.HasRole(RoleAdmin)
}

// RoleSegment returns the route prefix for the viewer: "admin" or "client".
func (v ViewerContext) RoleSegment() string {
	if v.IsAdmin() {
		return RoleAdmin
	}
	return RoleClient
}

// Scope returns the identity rows are scoped by.
func (v ViewerContext) Scope() string {
	if v.Email != "" {
		return v.Email
	}
	return v.UserID
}

// Event reasons published through RefreshHook.
const (
	ReasonRowCreated   = "row.created"
	ReasonRowUpdated   = "row.updated"
	ReasonRowDeleted   = "row.deleted"
	ReasonColumnsSaved = "columns.saved"
)

// EntityEvent describes changes that transports might care about.
type EntityEvent struct {
	Entity string    `json:"entity"`
	RowID  string    `json:"row_id,omitempty"`
	Reason string    `json:"reason"`
	Actor  string    `json:"actor,omitempty"`
	At     time.Time `json:"at"`
}

type noopRefreshHook struct{}

func (noopRefreshHook) EntityUpdated(context.Context, EntityEvent) error {
	return nil
}
