package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind enumerates the closed set of cell value variants.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindText
	KindNumber
	KindDate
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// Value is a single cell of a Row. The zero value is null.
type Value struct {
	kind   ValueKind
	text   string
	number decimal.Decimal
	date   time.Time
}

// Text builds a text value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Number builds a numeric value.
func Number(d decimal.Decimal) Value {
	return Value{kind: KindNumber, number: d}
}

// NumberFromFloat builds a numeric value from a float.
func NumberFromFloat(f float64) Value {
	return Number(decimal.NewFromFloat(f))
}

// Date builds a date value. The ISO text is kept so rendering matches the source.
func Date(t time.Time) Value {
	layout := time.RFC3339
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		layout = time.DateOnly
	}
	return Value{kind: KindDate, date: t, text: t.Format(layout)}
}

// ParseValue converts a decoded JSON scalar (or Go scalar) into a Value.
// Strings that parse as ISO dates become date values.
func ParseValue(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{}
	case Value:
		return v
	case string:
		return parseString(v)
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return Number(d)
		}
		return Text(v.String())
	case float64:
		return NumberFromFloat(v)
	case float32:
		return NumberFromFloat(float64(v))
	case int:
		return Number(decimal.NewFromInt(int64(v)))
	case int64:
		return Number(decimal.NewFromInt(v))
	case decimal.Decimal:
		return Number(v)
	case bool:
		return Text(strconv.FormatBool(v))
	case time.Time:
		return Date(v)
	default:
		return Text(fmt.Sprint(v))
	}
}

func parseString(s string) Value {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) >= len(time.DateOnly) && trimmed[0] >= '0' && trimmed[0] <= '9' && trimmed[4] == '-' {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return Value{kind: KindDate, date: t, text: s}
			}
		}
	}
	return Text(s)
}

// Kind reports the variant.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value carries nothing.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsBlank is true for null values and whitespace-only text.
func (v Value) IsBlank() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return strings.TrimSpace(v.text) == ""
	default:
		return false
	}
}

// String renders the value for display, search and export.
func (v Value) String() string {
	switch v.kind {
	case KindText, KindDate:
		return v.text
	case KindNumber:
		return v.number.String()
	default:
		return ""
	}
}

// Time returns the date payload.
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindDate {
		return time.Time{}, false
	}
	return v.date, true
}

// Decimal returns the numeric payload.
func (v Value) Decimal() (decimal.Decimal, bool) {
	if v.kind != KindNumber {
		return decimal.Zero, false
	}
	return v.number, true
}

// Equal compares kind and rendered content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindNumber {
		return v.number.Equal(other.number)
	}
	return v.String() == other.String()
}

// MarshalJSON writes numbers as JSON numbers and text/dates as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber:
		return []byte(v.number.String()), nil
	default:
		return json.Marshal(v.text)
	}
}

// UnmarshalJSON accepts any JSON scalar.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch raw.(type) {
	case map[string]any, []any:
		*v = Text(string(data))
	default:
		*v = ParseValue(raw)
	}
	return nil
}
