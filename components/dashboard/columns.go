package dashboard

import (
	"fmt"
	"strings"
)

// ColumnScope selects where a saved column set applies.
type ColumnScope string

const (
	// ScopeGlobal is the shared default, editable by admins.
	ScopeGlobal ColumnScope = "global"
	// ScopePersonal is a per-user override.
	ScopePersonal ColumnScope = "personal"
)

// ColumnDescriptor controls one table column's key, label and visibility.
type ColumnDescriptor struct {
	ID      string `json:"id" yaml:"id"`
	Label   string `json:"label" yaml:"label"`
	Visible bool   `json:"visible" yaml:"visible"`
	AltKey  string `json:"altKey,omitempty" yaml:"alt_key,omitempty"`
}

// ColumnSet is the ordered collection of descriptors for one entity.
type ColumnSet []ColumnDescriptor

// Clone returns an independent copy.
func (c ColumnSet) Clone() ColumnSet {
	if c == nil {
		return nil
	}
	return append(ColumnSet(nil), c...)
}

// Visible returns the visible columns in order.
func (c ColumnSet) Visible() ColumnSet {
	out := make(ColumnSet, 0, len(c))
	for _, col := range c {
		if col.Visible {
			out = append(out, col)
		}
	}
	return out
}

// Index returns the position of id, or -1.
func (c ColumnSet) Index(id string) int {
	for i, col := range c {
		if col.ID == id {
			return i
		}
	}
	return -1
}

// Lookup returns the descriptor for id.
func (c ColumnSet) Lookup(id string) (ColumnDescriptor, bool) {
	if i := c.Index(id); i >= 0 {
		return c[i], true
	}
	return ColumnDescriptor{}, false
}

// IDs lists the column ids in order.
func (c ColumnSet) IDs() []string {
	ids := make([]string, len(c))
	for i, col := range c {
		ids[i] = col.ID
	}
	return ids
}

// Validate enforces non-empty, unique ids.
func (c ColumnSet) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for idx, col := range c {
		id := strings.TrimSpace(col.ID)
		if id == "" {
			return fmt.Errorf("dashboard: column at index %d is missing an id", idx)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateColumn, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Equal compares two column sets element-wise.
func (c ColumnSet) Equal(other ColumnSet) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}
