// Package store is the generic load/save layer mapping semicolon
// delimited text rows to typed in-memory records. Field parsing is
// driven by a declarative schema interpreted by one coercion routine;
// entity packages supply decode/encode functions on top of the typed
// Row.
package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the wire type of one schema field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindTime      // serialized as 2006-01-02
	KindTimestamp // serialized as 2006-01-02 15:04:05
)

// Field declares one column: its header name, wire type, and whether a
// row missing it is dropped entirely.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// Schema is the ordered column list of one table.
type Schema struct {
	Fields []Field
}

// Names returns the header row in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Row holds the coerced values of one parsed line. Absent optional
// fields are simply missing from the map; getters return zero values.
type Row map[string]interface{}

// Str returns a string field, or "" when absent.
func (r Row) Str(name string) string {
	if v, ok := r[name].(string); ok {
		return v
	}
	return ""
}

// Int returns an int field, or 0 when absent.
func (r Row) Int(name string) int {
	if v, ok := r[name].(int); ok {
		return v
	}
	return 0
}

// Bool returns a bool field, or false when absent.
func (r Row) Bool(name string) bool {
	if v, ok := r[name].(bool); ok {
		return v
	}
	return false
}

// Time returns a time field, or the zero time when absent.
func (r Row) Time(name string) time.Time {
	if v, ok := r[name].(time.Time); ok {
		return v
	}
	return time.Time{}
}

// Has reports whether a field carried a value.
func (r Row) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// Accepted date layouts on read. Excel exports from the ERP mix ISO and
// the Polish day-first convention, with or without a time part.
var readLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"2006-01-02 15:04:05",
	"02.01.2006 15:04:05",
}

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// truthy is the boolean token set accepted case-insensitively on read.
var truthy = map[string]bool{
	"true": true, "1": true, "tak": true, "yes": true, "t": true,
}

// coerce converts one raw cell per its declared kind. A nil second
// return with ok=false signals an unparseable value.
func coerce(f Field, raw string) (interface{}, error) {
	switch f.Kind {
	case KindInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q for field %s", raw, f.Name)
		}
		return n, nil
	case KindBool:
		return truthy[strings.ToLower(strings.TrimSpace(raw))], nil
	case KindTime, KindTimestamp:
		cleaned := strings.TrimSpace(raw)
		for _, layout := range readLayouts {
			if t, err := time.Parse(layout, cleaned); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("cannot parse date %q for field %s", raw, f.Name)
	default:
		return raw, nil
	}
}

// format serializes one value back to its cell text. The zero value of
// an optional field writes an empty cell.
func format(f Field, v interface{}) string {
	switch f.Kind {
	case KindInt:
		n, _ := v.(int)
		if n == 0 && !f.Required {
			return ""
		}
		return strconv.Itoa(n)
	case KindBool:
		if b, _ := v.(bool); b {
			return "True"
		}
		return "False"
	case KindTime:
		t, _ := v.(time.Time)
		if t.IsZero() {
			return ""
		}
		return t.Format(dateLayout)
	case KindTimestamp:
		t, _ := v.(time.Time)
		if t.IsZero() {
			return ""
		}
		return t.Format(timestampLayout)
	default:
		s, _ := v.(string)
		return s
	}
}
