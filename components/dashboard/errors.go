package dashboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrAdminRequired   = errors.New("dashboard: admin role required")
	ErrDuplicateColumn = errors.New("dashboard: duplicate column id")
	ErrColumnNotFound  = errors.New("dashboard: column not found")
	ErrRowNotFound     = errors.New("dashboard: row not found")
	ErrNothingToExport = errors.New("dashboard: no rows to export")
	ErrNoPendingDelete = errors.New("dashboard: no delete pending")
	ErrUnknownEntity   = errors.New("dashboard: unknown entity")

	errMissingRowSource = errors.New("dashboard: row source not configured")
)

// ValidationError lists the required fields missing from a submission and any
// fields whose value has the wrong shape.
type ValidationError struct {
	Entity  string
	Fields  []string
	Missing []string
	// Invalid maps field ids to a reason.
	Invalid map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("dashboard: %s is missing required fields: %s", e.Entity, strings.Join(e.Missing, ", "))
	}
	keys := make([]string, 0, len(e.Invalid))
	for k := range e.Invalid {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Invalid[k]
	}
	return fmt.Sprintf("dashboard: %s has invalid fields: %s", e.Entity, strings.Join(parts, "; "))
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
