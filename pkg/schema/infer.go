package schema

import (
	"sort"
	"strconv"
	"strings"
)

// Infer profiles sample records and produces a schema. It is an
// explicit, separately testable pass; the quality engine never guesses
// types at evaluation time. Field order follows first appearance across
// the sample; a field missing or nil in any record is inferred nullable.
//
// The candidate ladder is boolean, integer, float, date, string: a
// column keeps the narrowest candidate every present value satisfies.
func Infer(records []Record) Schema {
	var order []string
	profiles := make(map[string]*columnProfile)

	for seen, record := range records {
		keys := make([]string, 0, len(record))
		for name := range record {
			keys = append(keys, name)
		}
		sort.Strings(keys)
		for _, name := range keys {
			if _, ok := profiles[name]; !ok {
				order = append(order, name)
				// A field first appearing mid-sample was absent from
				// every earlier record.
				profiles[name] = &columnProfile{isBool: true, isInt: true, isFloat: true, isDate: true, nullable: seen > 0}
			}
		}
		for name, profile := range profiles {
			value, present := record[name]
			profile.observe(value, present)
		}
	}

	fields := make([]Field, 0, len(order))
	for _, name := range order {
		profile := profiles[name]
		fields = append(fields, Field{
			Name:     name,
			Type:     profile.fieldType(),
			Nullable: profile.nullable || !profile.hasValue,
		})
	}

	s, err := New(fields)
	if err != nil {
		// Inferred names come straight from record keys; only an empty
		// key can trip validation. Drop it and keep the rest.
		kept := fields[:0]
		for _, field := range fields {
			if strings.TrimSpace(field.Name) != "" {
				kept = append(kept, field)
			}
		}
		s, _ = New(kept)
	}
	return s
}

type columnProfile struct {
	isBool   bool
	isInt    bool
	isFloat  bool
	isDate   bool
	nullable bool
	hasValue bool
}

func (p *columnProfile) observe(value any, present bool) {
	if !present || value == nil {
		p.nullable = true
		return
	}
	p.hasValue = true
	if !looksLikeBool(value) {
		p.isBool = false
	}
	if !looksLikeInt(value) {
		p.isInt = false
	}
	if !looksLikeFloat(value) {
		p.isFloat = false
	}
	if !looksLikeDate(value) {
		p.isDate = false
	}
}

func (p *columnProfile) fieldType() FieldType {
	switch {
	case !p.hasValue:
		return FieldTypeString
	case p.isBool:
		return FieldTypeBoolean
	case p.isInt:
		return FieldTypeInteger
	case p.isFloat:
		return FieldTypeFloat
	case p.isDate:
		return FieldTypeDate
	default:
		return FieldTypeString
	}
}

func looksLikeBool(value any) bool {
	_, err := coerceBoolean(value)
	return err == nil
}

func looksLikeInt(value any) bool {
	if s, ok := value.(string); ok {
		trimmed := strings.TrimSpace(s)
		if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
			return false
		}
		return true
	}
	_, err := coerceInteger(value)
	return err == nil
}

func looksLikeFloat(value any) bool {
	_, err := coerceFloat(value)
	return err == nil
}

func looksLikeDate(value any) bool {
	_, err := coerceDate(value)
	return err == nil
}
