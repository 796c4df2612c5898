// Package schema describes record shapes: field names, declared types,
// and nullability. Schemas are configuration values, constructed once,
// immutable, and shared read-only across pipeline runs.
package schema

import (
	"fmt"
	"strings"
)

// FieldType represents the declared type of a field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeFloat   FieldType = "float"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeDate    FieldType = "date"
	FieldTypeEnum    FieldType = "enum"
)

var knownFieldTypes = map[FieldType]struct{}{
	FieldTypeString:  {},
	FieldTypeInteger: {},
	FieldTypeFloat:   {},
	FieldTypeBoolean: {},
	FieldTypeDate:    {},
	FieldTypeEnum:    {},
}

// Record is a loose mapping from field name to value. Values may be
// missing or mistyped relative to a Schema; detecting that is the
// quality engine's job. Absence of a key is distinct from a nil value.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Field represents a single field definition in a schema.
type Field struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	Nullable   bool      `json:"nullable"`
	EnumValues []string  `json:"enumValues,omitempty"`
}

// SchemaError reports an invalid schema definition at construction time.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid schema: %s", e.Reason)
	}
	return fmt.Sprintf("invalid schema: field %s: %s", e.Field, e.Reason)
}

// UnknownFieldError reports a reference to a field the schema does not define.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Name)
}

// Schema is an ordered, immutable collection of field definitions.
// The zero value is an empty schema.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New validates the field definitions and constructs a schema.
// Duplicate names, empty names, unknown type tags, and enum fields
// without allowed values fail with *SchemaError.
func New(fields []Field) (Schema, error) {
	index := make(map[string]int, len(fields))
	copied := make([]Field, len(fields))
	for i, field := range fields {
		if strings.TrimSpace(field.Name) == "" {
			return Schema{}, &SchemaError{Reason: "field name must not be empty"}
		}
		if _, ok := knownFieldTypes[field.Type]; !ok {
			return Schema{}, &SchemaError{Field: field.Name, Reason: fmt.Sprintf("unknown type %q", field.Type)}
		}
		if field.Type == FieldTypeEnum && len(field.EnumValues) == 0 {
			return Schema{}, &SchemaError{Field: field.Name, Reason: "enum field requires allowed values"}
		}
		if _, exists := index[field.Name]; exists {
			return Schema{}, &SchemaError{Field: field.Name, Reason: "duplicate field name"}
		}
		index[field.Name] = i
		copied[i] = field
		copied[i].EnumValues = append([]string(nil), field.EnumValues...)
	}
	return Schema{fields: copied, index: index}, nil
}

// MustNew is New for statically known definitions; it panics on error.
func MustNew(fields []Field) Schema {
	s, err := New(fields)
	if err != nil {
		panic(err)
	}
	return s
}

// Resolve returns the named field definition or *UnknownFieldError.
func (s Schema) Resolve(name string) (Field, error) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, &UnknownFieldError{Name: name}
	}
	return s.fields[i], nil
}

// Has reports whether the schema defines the named field.
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Fields returns a defensive copy of the field definitions in
// declaration order.
func (s Schema) Fields() []Field {
	if len(s.fields) == 0 {
		return nil
	}
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// Equal reports structural equality, enabling schema reuse and caching.
func (s Schema) Equal(other Schema) bool {
	if len(s.fields) != len(other.fields) {
		return false
	}
	for i, field := range s.fields {
		o := other.fields[i]
		if field.Name != o.Name || field.Type != o.Type || field.Nullable != o.Nullable {
			return false
		}
		if len(field.EnumValues) != len(o.EnumValues) {
			return false
		}
		for j, v := range field.EnumValues {
			if o.EnumValues[j] != v {
				return false
			}
		}
	}
	return true
}
