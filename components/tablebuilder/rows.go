package tablebuilder

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

// RowValidator checks submitted rows against a JSON Schema generated from the
// column specs. Blank optional values are skipped.
type RowValidator struct {
	schema   Schema
	compiled *jsonschema.Schema
}

var _ dashboard.RowValidator = (*RowValidator)(nil)

// NewRowValidator compiles the row schema for s.
func NewRowValidator(s Schema) (*RowValidator, error) {
	doc := rowSchemaDocument(s)
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("tablebuilder: marshal row schema %s: %w", s.Name, err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	name := "rows-" + s.ID + ".json"
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("tablebuilder: load row schema %s: %w", s.Name, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("tablebuilder: compile row schema %s: %w", s.Name, err)
	}
	return &RowValidator{schema: s, compiled: compiled}, nil
}

func rowSchemaDocument(s Schema) map[string]any {
	props := make(map[string]any, len(s.Columns))
	for _, col := range s.Columns {
		props[col.Key()] = columnSchema(col)
	}
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
}

func columnSchema(col ColumnSpec) map[string]any {
	switch col.Type {
	case TypeNumber:
		return map[string]any{"type": "number"}
	case TypeDate:
		return map[string]any{"type": "string", "format": "date"}
	case TypeEmail:
		return map[string]any{"type": "string", "format": "email"}
	case TypeSelect:
		opts := make([]any, len(col.Options))
		for i, o := range col.Options {
			opts[i] = o
		}
		return map[string]any{"enum": opts}
	default:
		return map[string]any{"type": "string"}
	}
}

// ValidateRow implements dashboard.RowValidator.
func (v *RowValidator) ValidateRow(fields dashboard.Record) error {
	instance := v.instance(fields)
	err := v.compiled.Validate(instance)
	if err == nil {
		return nil
	}
	verr := &dashboard.ValidationError{Entity: v.schema.Name, Invalid: map[string]string{}}
	var schemaErr *jsonschema.ValidationError
	if errors.As(err, &schemaErr) {
		collectInvalid(schemaErr, verr.Invalid)
	}
	if len(verr.Invalid) == 0 {
		verr.Invalid["_"] = err.Error()
	}
	for key := range verr.Invalid {
		verr.Fields = append(verr.Fields, key)
	}
	return verr
}

// instance converts fields into the decoded-JSON shape the validator expects.
// Number columns accept numeric strings since form inputs arrive as text.
// Date columns are reduced to their calendar day so backend timestamps pass.
func (v *RowValidator) instance(fields dashboard.Record) map[string]any {
	out := make(map[string]any, fields.Len())
	for _, key := range fields.Keys() {
		value, _ := fields.Get(key)
		if value.IsBlank() {
			continue
		}
		col, known := v.schema.Column(key)
		switch {
		case known && col.Type == TypeNumber:
			if d, ok := value.Decimal(); ok {
				out[key] = d.InexactFloat64()
			} else if d, err := decimal.NewFromString(strings.TrimSpace(value.String())); err == nil {
				out[key] = d.InexactFloat64()
			} else {
				out[key] = value.String()
			}
		case known && col.Type == TypeDate:
			if at, ok := value.Time(); ok {
				out[key] = at.Format(time.DateOnly)
			} else {
				out[key] = value.String()
			}
		case value.Kind() == dashboard.KindNumber:
			d, _ := value.Decimal()
			out[key] = d.InexactFloat64()
		default:
			out[key] = value.String()
		}
	}
	return out
}

func collectInvalid(err *jsonschema.ValidationError, into map[string]string) {
	if len(err.Causes) == 0 {
		key := strings.TrimPrefix(err.InstanceLocation, "/")
		if key == "" {
			key = "_"
		}
		if _, seen := into[key]; !seen {
			into[key] = err.Message
		}
		return
	}
	for _, cause := range err.Causes {
		collectInvalid(cause, into)
	}
}
