package tablebuilder

import "fmt"

// WarningKind classifies a schema change that may orphan row data.
type WarningKind string

const (
	WarningColumnRemoved WarningKind = "column_removed"
	WarningTypeChanged   WarningKind = "type_changed"
)

// Warning is shown to the user before an update is confirmed. It is advisory;
// existing rows are never migrated.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Column  string      `json:"column"`
	Message string      `json:"message"`
}

// DiffWarnings compares two schema versions by column key.
func DiffWarnings(before, after Schema) []Warning {
	var out []Warning
	for _, old := range before.Columns {
		next, ok := after.Column(old.Key())
		if !ok {
			out = append(out, Warning{
				Kind:    WarningColumnRemoved,
				Column:  old.Name,
				Message: fmt.Sprintf("Removing %q hides its data in existing rows.", old.Name),
			})
			continue
		}
		if next.Type != old.Type {
			out = append(out, Warning{
				Kind:    WarningTypeChanged,
				Column:  old.Name,
				Message: fmt.Sprintf("Changing %q from %s to %s may make existing values invalid.", old.Name, old.Type, next.Type),
			})
		}
	}
	return out
}
