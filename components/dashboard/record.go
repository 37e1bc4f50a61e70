package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Record is an ordered mapping from column key to Value.
type Record struct {
	keys   []string
	values map[string]Value
}

// NewRecord builds a record from alternating key/value pairs.
func NewRecord(pairs ...any) Record {
	var r Record
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		r.Set(key, ParseValue(pairs[i+1]))
	}
	return r
}

// RecordFromMap converts a loose map, ordering keys alphabetically.
func RecordFromMap(m map[string]any) Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var r Record
	for _, k := range keys {
		r.Set(k, ParseValue(m[k]))
	}
	return r
}

// Get returns the value stored under key.
func (r Record) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Set stores a value, keeping the original insertion position for existing keys.
func (r *Record) Set(key string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Delete removes key.
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len reports the number of keys.
func (r Record) Len() int { return len(r.keys) }

// Clone returns an independent copy.
func (r Record) Clone() Record {
	out := Record{
		keys:   append([]string(nil), r.keys...),
		values: make(map[string]Value, len(r.values)),
	}
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// Resolve reads the column's canonical key and falls back to its AltKey
// when the canonical key is absent or null.
func (r Record) Resolve(col ColumnDescriptor) Value {
	if v, ok := r.values[col.ID]; ok && !v.IsNull() {
		return v
	}
	if col.AltKey != "" {
		if v, ok := r.values[col.AltKey]; ok {
			return v
		}
	}
	return Value{}
}

// Map flattens the record into a plain map for transports.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		v := r.values[k]
		switch v.kind {
		case KindNull:
			out[k] = nil
		case KindNumber:
			f, _ := v.number.Float64()
			out[k] = f
		default:
			out[k] = v.text
		}
	}
	return out
}

// MarshalJSON writes the record as an object preserving key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object preserving key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("dashboard: record must be a JSON object")
	}
	*r = Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("dashboard: unexpected record key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("dashboard: decode record field %s: %w", key, err)
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("dashboard: decode record field %s: %w", key, err)
		}
		r.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// Bookkeeping keys the backend attaches to every row.
const (
	FieldID        = "_id"
	FieldCreatedBy = "createdBy"
	FieldCreatedAt = "createdAt"
	FieldUpdatedBy = "updatedBy"
	FieldUpdatedAt = "updatedAt"
	fieldVersion   = "__v"
)

// Row is one record of an entity keyed by the backend identifier.
type Row struct {
	ID        string
	CreatedBy string
	CreatedAt time.Time
	UpdatedBy string
	UpdatedAt *time.Time
	Fields    Record
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	out := r
	out.Fields = r.Fields.Clone()
	if r.UpdatedAt != nil {
		t := *r.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// MarshalJSON flattens bookkeeping and fields into one object, the shape the backend uses.
func (r Row) MarshalJSON() ([]byte, error) {
	flat := Record{}
	if r.ID != "" {
		flat.Set(FieldID, Text(r.ID))
	}
	for _, k := range r.Fields.keys {
		flat.Set(k, r.Fields.values[k])
	}
	if r.CreatedBy != "" {
		flat.Set(FieldCreatedBy, Text(r.CreatedBy))
	}
	if !r.CreatedAt.IsZero() {
		flat.Set(FieldCreatedAt, Text(r.CreatedAt.Format(time.RFC3339)))
	}
	if r.UpdatedBy != "" {
		flat.Set(FieldUpdatedBy, Text(r.UpdatedBy))
	}
	if r.UpdatedAt != nil {
		flat.Set(FieldUpdatedAt, Text(r.UpdatedAt.Format(time.RFC3339)))
	}
	return flat.MarshalJSON()
}

// UnmarshalJSON splits the flat backend object into bookkeeping and fields.
func (r *Row) UnmarshalJSON(data []byte) error {
	var flat Record
	if err := flat.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = Row{}
	for _, k := range flat.keys {
		v := flat.values[k]
		switch k {
		case FieldID:
			r.ID = v.String()
		case "id":
			if r.ID == "" {
				r.ID = v.String()
			}
		case FieldCreatedBy:
			r.CreatedBy = v.String()
		case FieldCreatedAt:
			if t, ok := v.Time(); ok {
				r.CreatedAt = t
			}
		case FieldUpdatedBy:
			r.UpdatedBy = v.String()
		case FieldUpdatedAt:
			if t, ok := v.Time(); ok {
				r.UpdatedAt = &t
			}
		case fieldVersion:
		default:
			r.Fields.Set(k, v)
		}
	}
	return nil
}
