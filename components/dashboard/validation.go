package dashboard

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidateRequired ensures every required field of cfg carries a non-blank value.
// Legacy alt keys count as present. The returned *ValidationError names missing fields by label.
func ValidateRequired(cfg EntityConfig, fields Record) error {
	errs := validation.Errors{}
	for _, field := range cfg.RequiredFields {
		col, ok := cfg.DefaultColumns.Lookup(field)
		if !ok {
			col = ColumnDescriptor{ID: field}
		}
		value := strings.TrimSpace(fields.Resolve(col).String())
		if err := validation.Validate(value, validation.Required); err != nil {
			errs[field] = err
		}
	}
	if errs.Filter() == nil {
		return nil
	}
	verr := &ValidationError{Entity: cfg.DisplayName()}
	for _, field := range cfg.RequiredFields {
		if _, ok := errs[field]; ok {
			verr.Fields = append(verr.Fields, field)
			verr.Missing = append(verr.Missing, cfg.RequiredLabel(field))
		}
	}
	return verr
}
