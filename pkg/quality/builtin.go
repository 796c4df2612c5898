package quality

import (
	"fmt"
	"regexp"
	"time"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

// NotNull flags records where the field is absent or null. Absence and
// null are reported with distinct messages.
func NotNull(id, field string, severity Severity) Rule {
	return FieldRule(id, field, severity, fmt.Sprintf("%s must not be null", field),
		func(value any, present bool, _ schema.Field) (*Fault, error) {
			if !present {
				return &Fault{Message: fmt.Sprintf("field %s is missing", field)}, nil
			}
			if value == nil {
				return &Fault{Message: fmt.Sprintf("field %s is null", field)}, nil
			}
			return nil, nil
		})
}

// Unique flags the second and later occurrences of each value of the
// field across the whole dataset.
func Unique(id, field string, severity Severity) Rule {
	return DatasetRule(id, severity, fmt.Sprintf("%s must be unique", field),
		func() Accumulator { return newUniqueAccumulator(field) })
}

// Range flags numeric values outside [min, max]. A value that cannot
// be read as a number is a rule execution error, not a violation.
// Absent and null values pass; pair with NotNull to reject those.
func Range(id, field string, min, max float64, severity Severity) Rule {
	return FieldRule(id, field, severity, fmt.Sprintf("%s must be within [%v, %v]", field, min, max),
		func(value any, present bool, f schema.Field) (*Fault, error) {
			if !present || value == nil {
				return nil, nil
			}
			n, err := schema.Coerce(schema.Field{Name: f.Name, Type: schema.FieldTypeFloat}, value)
			if err != nil {
				return nil, fmt.Errorf("range check needs a numeric value: %w", err)
			}
			v := n.(float64)
			if v < min || v > max {
				return &Fault{
					Value:   value,
					Message: fmt.Sprintf("value %v is outside [%v, %v]", value, min, max),
				}, nil
			}
			return nil, nil
		})
}

// RegexMatch flags string values that do not match the pattern. The
// pattern is compiled at construction; an invalid pattern is a
// configuration error.
func RegexMatch(id, field, pattern string, severity Severity) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: invalid pattern: %w", id, err)
	}
	rule := FieldRule(id, field, severity, fmt.Sprintf("%s must match %s", field, pattern),
		func(value any, present bool, _ schema.Field) (*Fault, error) {
			if !present || value == nil {
				return nil, nil
			}
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("regex check needs a string value, got %T", value)
			}
			if !re.MatchString(s) {
				return &Fault{Value: value, Message: fmt.Sprintf("value %q does not match %s", s, pattern)}, nil
			}
			return nil, nil
		})
	return rule, nil
}

// EnumAllowed flags values outside the allowed set.
func EnumAllowed(id, field string, values []string, severity Severity) Rule {
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	return FieldRule(id, field, severity, fmt.Sprintf("%s must be one of %v", field, values),
		func(value any, present bool, _ schema.Field) (*Fault, error) {
			if !present || value == nil {
				return nil, nil
			}
			s := fmt.Sprintf("%v", value)
			if _, ok := allowed[s]; !ok {
				return &Fault{Value: value, Message: fmt.Sprintf("value %q is not in the allowed set", s)}, nil
			}
			return nil, nil
		})
}

// NoFutureDates flags date values after the reference time. A zero
// reference compares against the current time at each check. A value
// that cannot be read as a date is a rule execution error. Absent and
// null values pass.
func NoFutureDates(id, field string, reference time.Time, severity Severity) Rule {
	return FieldRule(id, field, severity, fmt.Sprintf("%s must not be in the future", field),
		func(value any, present bool, f schema.Field) (*Fault, error) {
			if !present || value == nil {
				return nil, nil
			}
			d, err := schema.Coerce(schema.Field{Name: f.Name, Type: schema.FieldTypeDate}, value)
			if err != nil {
				return nil, fmt.Errorf("future date check needs a date value: %w", err)
			}
			ref := reference
			if ref.IsZero() {
				ref = time.Now()
			}
			if ts := d.(time.Time); ts.After(ref) {
				return &Fault{
					Value:   value,
					Message: fmt.Sprintf("date %s is after %s", ts.Format("2006-01-02"), ref.Format("2006-01-02")),
				}, nil
			}
			return nil, nil
		})
}

// TypeConformance flags values that do not parse as the field's
// declared type. Absent and null values pass.
func TypeConformance(id, field string, severity Severity) Rule {
	return FieldRule(id, field, severity, fmt.Sprintf("%s must conform to its declared type", field),
		func(value any, present bool, f schema.Field) (*Fault, error) {
			if !present || value == nil {
				return nil, nil
			}
			if _, err := schema.Coerce(f, value); err != nil {
				return &Fault{
					Value:   value,
					Message: fmt.Sprintf("value %v does not conform to type %s: %v", value, f.Type, err),
				}, nil
			}
			return nil, nil
		})
}

// ReferentialExists flags records whose key is not known to the lookup
// collaborator. Dataset-scoped so chunked runs can merge findings; the
// lookup is only ever read.
func ReferentialExists(id, field string, lookup Lookup, severity Severity) Rule {
	return DatasetRule(id, severity, fmt.Sprintf("%s must exist in the reference dataset", field),
		func() Accumulator { return newReferentialAccumulator(field, lookup) })
}
