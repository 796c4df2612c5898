// Package quality implements the rule evaluation engine: declarative
// quality rules bound to a scope, evaluated in a single pass over a
// record stream, producing violations. One bad record never stops the
// scan of the remaining dataset.
package quality

import (
	"encoding/json"
	"fmt"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

// Severity classifies a violation's weight in the final report.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ScopeKind is the granularity a rule applies at.
type ScopeKind string

const (
	ScopeField   ScopeKind = "field"
	ScopeRow     ScopeKind = "row"
	ScopeDataset ScopeKind = "dataset"
)

// Scope binds a rule to a field, a whole row, or the whole dataset.
type Scope struct {
	Kind  ScopeKind
	Field string
}

// FieldScope returns a scope bound to a named field.
func FieldScope(name string) Scope { return Scope{Kind: ScopeField, Field: name} }

// RowScope returns a whole-row scope.
func RowScope() Scope { return Scope{Kind: ScopeRow} }

// DatasetScope returns a whole-dataset scope.
func DatasetScope() Scope { return Scope{Kind: ScopeDataset} }

func (s Scope) String() string {
	if s.Kind == ScopeField {
		return fmt.Sprintf("field:%s", s.Field)
	}
	return string(s.Kind)
}

// MarshalJSON renders the scope in its string form: "field:<name>",
// "row", or "dataset".
func (s Scope) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Fault is the payload of an unsatisfied predicate: the offending
// value and a human-readable message.
type Fault struct {
	Value   any
	Message string
}

// Finding is a fault located in the dataset, produced when a
// dataset-scope accumulator finalizes. RecordIndex is DatasetIndex for
// aggregate findings that cannot be pinned to a single record. A
// non-nil Err marks the finding as a rule execution failure rather
// than a rule violation.
type Finding struct {
	RecordIndex int
	Value       any
	Message     string
	Err         error
}

// FieldPredicate checks a single field's value. present distinguishes
// an absent key from a present null. Returning a non-nil Fault records
// a violation; returning an error records a rule-execution-error
// violation instead (malformed input, not an unsatisfied rule).
type FieldPredicate func(value any, present bool, field schema.Field) (*Fault, error)

// RowPredicate checks a whole record.
type RowPredicate func(record schema.Record) (*Fault, error)

// Rule is a single predicate bound to a scope, with a stable
// identifier and a severity. Built-in kinds and custom functions share
// this one contract; the engine does not special-case either.
type Rule struct {
	ID          string
	Scope       Scope
	Severity    Severity
	Description string

	fieldPred FieldPredicate
	rowPred   RowPredicate
	newAcc    func() Accumulator
}

// FieldRule wraps a pure predicate as a field-scoped rule.
func FieldRule(id, field string, severity Severity, description string, pred FieldPredicate) Rule {
	return Rule{
		ID:          id,
		Scope:       FieldScope(field),
		Severity:    severity,
		Description: description,
		fieldPred:   pred,
	}
}

// RowRule wraps a pure predicate as a row-scoped rule.
func RowRule(id string, severity Severity, description string, pred RowPredicate) Rule {
	return Rule{
		ID:          id,
		Scope:       RowScope(),
		Severity:    severity,
		Description: description,
		rowPred:     pred,
	}
}

// DatasetRule wraps an accumulator constructor as a dataset-scoped
// rule. newAcc is called once per evaluation run (and once per chunk
// when a pipeline partitions the stream; chunk accumulators are merged
// before finalize).
func DatasetRule(id string, severity Severity, description string, newAcc func() Accumulator) Rule {
	return Rule{
		ID:          id,
		Scope:       DatasetScope(),
		Severity:    severity,
		Description: description,
		newAcc:      newAcc,
	}
}

func (r Rule) validate(s schema.Schema) error {
	if r.ID == "" {
		return fmt.Errorf("rule has empty identifier")
	}
	switch r.Scope.Kind {
	case ScopeField:
		if _, err := s.Resolve(r.Scope.Field); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
		if r.fieldPred == nil {
			return fmt.Errorf("rule %s: field-scoped rule has no predicate", r.ID)
		}
	case ScopeRow:
		if r.rowPred == nil {
			return fmt.Errorf("rule %s: row-scoped rule has no predicate", r.ID)
		}
	case ScopeDataset:
		if r.newAcc == nil {
			return fmt.Errorf("rule %s: dataset-scoped rule has no accumulator", r.ID)
		}
	default:
		return fmt.Errorf("rule %s: unknown scope %q", r.ID, r.Scope.Kind)
	}
	return nil
}
