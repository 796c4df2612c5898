package mapping

import (
	"fmt"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

// SpecError reports a malformed mapping specification at construction
// time.
type SpecError struct {
	Target string
	Reason string
}

func (e *SpecError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("invalid mapping spec: %s", e.Reason)
	}
	return fmt.Sprintf("invalid mapping spec: target %s: %s", e.Target, e.Reason)
}

// Spec is a validated, immutable mapping specification: source and
// target schemas plus one directive per target field, held in target
// schema field order. Like schemas and rule sets it is configuration,
// constructed once and shared read-only across runs.
type Spec struct {
	source     schema.Schema
	target     schema.Schema
	directives []Directive
}

// NewSpec validates the directives against both schemas. Every target
// schema field must have exactly one producing directive (pass-through
// included); unknown targets, duplicate producers, unknown source
// references, and kind/parameter mismatches fail with *SpecError.
// Directives are reordered to target schema field order, which is the
// order the mapper applies them in.
func NewSpec(source, target schema.Schema, directives []Directive) (*Spec, error) {
	byTarget := make(map[string]Directive, len(directives))
	for _, d := range directives {
		if d.Target == "" {
			return nil, &SpecError{Reason: "directive has empty target"}
		}
		if !target.Has(d.Target) {
			return nil, &SpecError{Target: d.Target, Reason: "not a target schema field"}
		}
		if _, dup := byTarget[d.Target]; dup {
			return nil, &SpecError{Target: d.Target, Reason: "more than one directive produces this field"}
		}
		if err := validateDirective(source, d); err != nil {
			return nil, err
		}
		byTarget[d.Target] = d
	}

	ordered := make([]Directive, 0, target.Len())
	for _, field := range target.Fields() {
		d, ok := byTarget[field.Name]
		if !ok {
			return nil, &SpecError{Target: field.Name, Reason: "no directive produces this field; add one or mark it pass-through"}
		}
		ordered = append(ordered, d)
	}

	return &Spec{source: source, target: target, directives: ordered}, nil
}

func validateDirective(source schema.Schema, d Directive) error {
	switch d.Kind {
	case KindRename, KindCoerce, KindDefault, KindPassThrough:
		if d.Source == "" {
			return &SpecError{Target: d.Target, Reason: fmt.Sprintf("%s directive requires a source field", d.Kind)}
		}
		if !source.Has(d.Source) {
			return &SpecError{Target: d.Target, Reason: fmt.Sprintf("source field %q is not in the source schema", d.Source)}
		}
	case KindCompute:
		if d.Compute == nil {
			return &SpecError{Target: d.Target, Reason: "compute directive requires a function"}
		}
		for _, name := range d.Sources {
			if !source.Has(name) {
				return &SpecError{Target: d.Target, Reason: fmt.Sprintf("source field %q is not in the source schema", name)}
			}
		}
	default:
		return &SpecError{Target: d.Target, Reason: fmt.Sprintf("unknown directive kind %q", d.Kind)}
	}
	return nil
}

// Source returns the source schema.
func (s *Spec) Source() schema.Schema { return s.source }

// Target returns the target schema.
func (s *Spec) Target() schema.Schema { return s.target }

// Directives returns the directives in application (target field)
// order.
func (s *Spec) Directives() []Directive {
	out := make([]Directive, len(s.directives))
	copy(out, s.directives)
	return out
}
