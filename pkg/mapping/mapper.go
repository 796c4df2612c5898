package mapping

import (
	"context"
	"fmt"
	"io"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
	"github.com/fedeglan/fast-data-integrity/pkg/stream"
)

// ErrorCause classifies why a directive could not produce its field.
type ErrorCause string

const (
	CauseTypeMismatch   ErrorCause = "type-mismatch"
	CauseMissingSource  ErrorCause = "missing-source"
	CauseComputeFailure ErrorCause = "compute-failure"
)

// A MappingError records the failure to produce one target field of
// one record. The record is still emitted without that field.
type MappingError struct {
	RecordIndex int        `json:"recordIndex"`
	Field       string     `json:"field"`
	Cause       ErrorCause `json:"cause"`
	Message     string     `json:"message"`
}

func (e MappingError) Error() string {
	return fmt.Sprintf("record %d field %s: %s: %s", e.RecordIndex, e.Field, e.Cause, e.Message)
}

// Mapper applies a mapping spec to record streams. Pure and
// re-entrant; one mapper may serve concurrent runs.
type Mapper struct {
	spec *Spec
}

// NewMapper wraps a validated spec.
func NewMapper(spec *Spec) (*Mapper, error) {
	if spec == nil {
		return nil, fmt.Errorf("mapping spec is required")
	}
	return &Mapper{spec: spec}, nil
}

// MapResult is the outcome of a mapping pass.
type MapResult struct {
	Records     []schema.Record
	Errors      []MappingError
	RecordsSeen int
	Aborted     bool
}

// Apply maps every record of the stream. Each target field is
// attempted independently: a failed directive records a MappingError
// and the record is still emitted, partially populated. Cancellation
// is checked between records.
func (m *Mapper) Apply(ctx context.Context, s stream.Stream) (MapResult, error) {
	var result MapResult
	for {
		select {
		case <-ctx.Done():
			result.Aborted = true
			return result, ctx.Err()
		default:
		}

		record, err := s.Next()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			result.Aborted = true
			return result, fmt.Errorf("record stream failed at index %d: %w", result.RecordsSeen, err)
		}

		mapped, errs := m.MapRecord(result.RecordsSeen, record)
		result.Records = append(result.Records, mapped)
		result.Errors = append(result.Errors, errs...)
		result.RecordsSeen++
	}
}

// MapRecord maps a single record, applying every directive in target
// field order. The returned record always exists, even when every
// directive failed.
func (m *Mapper) MapRecord(index int, record schema.Record) (schema.Record, []MappingError) {
	out := make(schema.Record, m.spec.target.Len())
	var errs []MappingError
	for _, d := range m.spec.directives {
		if err := applyDirective(m.spec, d, record, out); err != nil {
			err.RecordIndex = index
			errs = append(errs, *err)
		}
	}
	return out, errs
}

func applyDirective(spec *Spec, d Directive, in, out schema.Record) *MappingError {
	switch d.Kind {
	case KindRename, KindPassThrough:
		value, present := in[d.Source]
		if !present {
			return &MappingError{
				Field:   d.Target,
				Cause:   CauseMissingSource,
				Message: fmt.Sprintf("source field %s is absent", d.Source),
			}
		}
		out[d.Target] = value
		return nil

	case KindCoerce:
		value, present := in[d.Source]
		if !present {
			return &MappingError{
				Field:   d.Target,
				Cause:   CauseMissingSource,
				Message: fmt.Sprintf("source field %s is absent", d.Source),
			}
		}
		field, err := spec.target.Resolve(d.Target)
		if err != nil {
			// Spec validation guarantees the target exists.
			return &MappingError{Field: d.Target, Cause: CauseTypeMismatch, Message: err.Error()}
		}
		if d.As != "" {
			field = schema.Field{Name: field.Name, Type: d.As, EnumValues: field.EnumValues}
		}
		coerced, err := schema.Coerce(field, value)
		if err != nil {
			return &MappingError{
				Field:   d.Target,
				Cause:   CauseTypeMismatch,
				Message: err.Error(),
			}
		}
		out[d.Target] = coerced
		return nil

	case KindCompute:
		value, err := computeGuarded(d.Compute, in)
		if err != nil {
			return &MappingError{
				Field:   d.Target,
				Cause:   CauseComputeFailure,
				Message: err.Error(),
			}
		}
		out[d.Target] = value
		return nil

	case KindDefault:
		value, present := in[d.Source]
		if !present || value == nil {
			out[d.Target] = d.Literal
			return nil
		}
		out[d.Target] = value
		return nil

	default:
		// Spec validation rejects unknown kinds.
		return &MappingError{Field: d.Target, Cause: CauseComputeFailure, Message: fmt.Sprintf("unknown directive kind %q", d.Kind)}
	}
}

func computeGuarded(fn ComputeFunc, record schema.Record) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			value, err = nil, fmt.Errorf("compute function panicked: %v", p)
		}
	}()
	return fn(record)
}
