package dashboard

import (
	"fmt"
	"strings"

	"github.com/ettle/strcase"
)

// ColumnEditor edits a temporary copy of a column set. Nothing is persisted
// until the owning table saves the editor.
type ColumnEditor struct {
	viewer   ViewerContext
	defaults ColumnSet
	columns  ColumnSet
}

// NewColumnEditor copies current so edits never touch the active set.
func NewColumnEditor(viewer ViewerContext, current, defaults ColumnSet) *ColumnEditor {
	return &ColumnEditor{
		viewer:   viewer,
		defaults: defaults.Clone(),
		columns:  current.Clone(),
	}
}

// Columns returns a copy of the edited set.
func (e *ColumnEditor) Columns() ColumnSet {
	return e.columns.Clone()
}

// CanMutate reports whether structural edits (add/delete) are allowed.
func (e *ColumnEditor) CanMutate() bool {
	return e.viewer.IsAdmin()
}

// Toggle flips visibility of id.
func (e *ColumnEditor) Toggle(id string) error {
	i := e.columns.Index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, id)
	}
	e.columns[i].Visible = !e.columns[i].Visible
	return nil
}

// SetVisible sets visibility of id.
func (e *ColumnEditor) SetVisible(id string, visible bool) error {
	i := e.columns.Index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, id)
	}
	e.columns[i].Visible = visible
	return nil
}

// Rename changes the display label of id.
func (e *ColumnEditor) Rename(id, label string) error {
	i := e.columns.Index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, id)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("dashboard: label for %s cannot be empty", id)
	}
	e.columns[i].Label = label
	return nil
}

// Move shifts the column at index by one position in direction (-1 or +1).
// Moves that would leave the set are no-ops; the return value reports whether anything moved.
func (e *ColumnEditor) Move(index, direction int) bool {
	if direction != -1 && direction != 1 {
		return false
	}
	target := index + direction
	if index < 0 || index >= len(e.columns) || target < 0 || target >= len(e.columns) {
		return false
	}
	e.columns[index], e.columns[target] = e.columns[target], e.columns[index]
	return true
}

// MoveID is Move addressed by column id.
func (e *ColumnEditor) MoveID(id string, direction int) bool {
	return e.Move(e.columns.Index(id), direction)
}

// Delete removes id. Admin only.
func (e *ColumnEditor) Delete(id string) error {
	if !e.CanMutate() {
		return ErrAdminRequired
	}
	i := e.columns.Index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, id)
	}
	e.columns = append(e.columns[:i:i], e.columns[i+1:]...)
	return nil
}

// Add appends a new visible column. Admin only. When col.ID is empty it is derived from the label.
func (e *ColumnEditor) Add(col ColumnDescriptor) (ColumnDescriptor, error) {
	if !e.CanMutate() {
		return ColumnDescriptor{}, ErrAdminRequired
	}
	col.Label = strings.TrimSpace(col.Label)
	col.ID = strings.TrimSpace(col.ID)
	col.AltKey = strings.TrimSpace(col.AltKey)
	if col.ID == "" {
		col.ID = strcase.ToCamel(col.Label)
	}
	if col.ID == "" {
		return ColumnDescriptor{}, fmt.Errorf("dashboard: column id or label is required")
	}
	if col.Label == "" {
		col.Label = col.ID
	}
	if e.columns.Index(col.ID) >= 0 {
		return ColumnDescriptor{}, fmt.Errorf("%w: %s", ErrDuplicateColumn, col.ID)
	}
	col.Visible = true
	e.columns = append(e.columns, col)
	return col, nil
}

// Reset restores the hardcoded defaults.
func (e *ColumnEditor) Reset() {
	e.columns = e.defaults.Clone()
}

// Apply replaces the edited set with desired. Non-admins may only reorder,
// rename or toggle the columns they already have.
func (e *ColumnEditor) Apply(desired ColumnSet) error {
	if err := desired.Validate(); err != nil {
		return err
	}
	if !e.CanMutate() {
		if len(desired) != len(e.columns) {
			return ErrAdminRequired
		}
		for _, c := range desired {
			if e.columns.Index(c.ID) < 0 {
				return ErrAdminRequired
			}
		}
	}
	e.columns = desired.Clone()
	return nil
}
