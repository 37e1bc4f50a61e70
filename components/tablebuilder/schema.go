package tablebuilder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ettle/strcase"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ColumnType is the declared type of a dynamic column.
type ColumnType string

const (
	TypeText   ColumnType = "text"
	TypeNumber ColumnType = "number"
	TypeDate   ColumnType = "date"
	TypeEmail  ColumnType = "email"
	TypeSelect ColumnType = "select"
)

// ColumnTypes lists the supported column types in picker order.
var ColumnTypes = []ColumnType{TypeText, TypeNumber, TypeDate, TypeEmail, TypeSelect}

// Valid reports whether t is a supported type.
func (t ColumnType) Valid() bool {
	for _, known := range ColumnTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ColumnSpec declares one column of a dynamic table.
type ColumnSpec struct {
	Name     string     `json:"name" yaml:"name"`
	Type     ColumnType `json:"type" yaml:"type"`
	Required bool       `json:"required" yaml:"required"`
	// Options are the allowed values of a select column.
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Key returns the row field key the column is stored under.
func (c ColumnSpec) Key() string {
	return strcase.ToCamel(strings.TrimSpace(c.Name))
}

// Validate checks a single column spec.
func (c ColumnSpec) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Type, validation.Required, validation.By(func(any) error {
			if !c.Type.Valid() {
				return fmt.Errorf("unsupported type %q", c.Type)
			}
			return nil
		})),
		validation.Field(&c.Options, validation.When(c.Type == TypeSelect, validation.Required)),
	)
}

// Schema is a user-defined table: a name, ordered columns and visibility.
type Schema struct {
	ID        string       `json:"_id,omitempty" yaml:"id,omitempty"`
	Name      string       `json:"name" yaml:"name"`
	Columns   []ColumnSpec `json:"columns" yaml:"columns"`
	IsPublic  bool         `json:"isPublic" yaml:"is_public"`
	CreatedBy string       `json:"createdBy,omitempty" yaml:"created_by,omitempty"`
	CreatedAt time.Time    `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
}

// Validate checks the schema and that column keys are unique.
func (s Schema) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrSchemaName
	}
	if len(s.Columns) == 0 {
		return ErrNoColumns
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for i, col := range s.Columns {
		if err := col.Validate(); err != nil {
			return fmt.Errorf("tablebuilder: column %d: %w", i+1, err)
		}
		key := col.Key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateColumn, col.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Column returns the spec whose key is key.
func (s Schema) Column(key string) (ColumnSpec, bool) {
	for _, col := range s.Columns {
		if col.Key() == key {
			return col, true
		}
	}
	return ColumnSpec{}, false
}

// OwnedBy reports whether viewerScope created the schema.
func (s Schema) OwnedBy(viewerScope string) bool {
	return viewerScope != "" && strings.EqualFold(s.CreatedBy, viewerScope)
}

// Sentinel errors.
var (
	ErrSchemaName      = errors.New("tablebuilder: schema name is required")
	ErrNoColumns       = errors.New("tablebuilder: schema needs at least one column")
	ErrDuplicateColumn = errors.New("tablebuilder: duplicate column")
	ErrSchemaNotFound  = errors.New("tablebuilder: schema not found")
	ErrForbidden       = errors.New("tablebuilder: only the owner or an admin may change this schema")
)

// MoveColumn shifts the column at index by direction. Out of bounds moves are no-ops.
func MoveColumn(cols []ColumnSpec, index, direction int) bool {
	target := index + direction
	if index < 0 || index >= len(cols) || target < 0 || target >= len(cols) || direction == 0 {
		return false
	}
	cols[index], cols[target] = cols[target], cols[index]
	return true
}
