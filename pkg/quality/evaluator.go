package quality

import (
	"context"
	"fmt"
	"io"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
	"github.com/fedeglan/fast-data-integrity/pkg/stream"
)

// Evaluator executes a rule set against record streams. It is pure and
// re-entrant: the schema and rule set are read-only, and every run
// carries its own state, so one evaluator may serve concurrent runs.
type Evaluator struct {
	schema schema.Schema
	rules  []Rule
}

// NewEvaluator binds a rule set to a schema. Rule set validation runs
// here, so configuration errors surface before any record is processed.
func NewEvaluator(s schema.Schema, rs *RuleSet) (*Evaluator, error) {
	if rs == nil {
		return nil, fmt.Errorf("rule set is required")
	}
	if err := rs.Validate(s); err != nil {
		return nil, err
	}
	return &Evaluator{schema: s, rules: rs.Rules()}, nil
}

// Result is the outcome of an evaluation pass.
type Result struct {
	Violations  []Violation
	RecordsSeen int
	Aborted     bool
}

// Run is the incremental state of one evaluation pass: per-rule
// dataset accumulators plus the evaluator they belong to. A pipeline
// drives one Run per chunk and merges them; Evaluate drives a single
// Run over a whole stream.
type Run struct {
	evaluator *Evaluator
	accs      []Accumulator // parallel to rules; nil for non-dataset rules
}

// Begin starts a fresh run: one accumulator per dataset-scope rule.
func (e *Evaluator) Begin() *Run {
	accs := make([]Accumulator, len(e.rules))
	for i, rule := range e.rules {
		if rule.Scope.Kind == ScopeDataset {
			accs[i] = rule.newAcc()
		}
	}
	return &Run{evaluator: e, accs: accs}
}

// Evaluate runs the whole stream through a single pass: field- and
// row-scope rules per record in declaration order, dataset-scope
// accumulators observing alongside and finalizing after the last
// record. Cancellation is checked between records; on cancellation the
// partial result is returned with Aborted set, accumulators finalized
// over what they saw.
func (e *Evaluator) Evaluate(ctx context.Context, s stream.Stream) (Result, error) {
	run := e.Begin()
	var result Result
	for {
		select {
		case <-ctx.Done():
			result.Aborted = true
			result.Violations = append(result.Violations, run.Finish(ctx)...)
			SortViolations(result.Violations)
			return result, ctx.Err()
		default:
		}

		record, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Aborted = true
			result.Violations = append(result.Violations, run.Finish(ctx)...)
			SortViolations(result.Violations)
			return result, fmt.Errorf("record stream failed at index %d: %w", result.RecordsSeen, err)
		}

		result.Violations = append(result.Violations, run.Observe(ctx, result.RecordsSeen, record)...)
		result.RecordsSeen++
	}
	result.Violations = append(result.Violations, run.Finish(ctx)...)
	SortViolations(result.Violations)
	return result, nil
}

// Observe evaluates every applicable rule against one record, in
// declaration order, and feeds dataset accumulators. Predicate errors
// and panics become rule-execution-error violations; they never abort
// the pass.
func (r *Run) Observe(ctx context.Context, index int, record schema.Record) []Violation {
	var violations []Violation
	for ord, rule := range r.evaluator.rules {
		switch rule.Scope.Kind {
		case ScopeField:
			field, err := r.evaluator.schema.Resolve(rule.Scope.Field)
			if err != nil {
				// Validated at construction; unreachable unless the
				// schema was swapped out from under the evaluator.
				continue
			}
			value, present := record[rule.Scope.Field]
			fault, predErr := callFieldPredicate(rule.fieldPred, value, present, field)
			if predErr != nil {
				violations = append(violations, executionError(rule, ord, index, value, predErr))
			} else if fault != nil {
				violations = append(violations, fromFault(rule, ord, index, fault))
			}
		case ScopeRow:
			fault, predErr := callRowPredicate(rule.rowPred, record)
			if predErr != nil {
				violations = append(violations, executionError(rule, ord, index, nil, predErr))
			} else if fault != nil {
				violations = append(violations, fromFault(rule, ord, index, fault))
			}
		case ScopeDataset:
			if err := observeGuarded(ctx, r.accs[ord], index, record); err != nil {
				violations = append(violations, executionError(rule, ord, index, nil, err))
			}
		}
	}
	return violations
}

// Finish finalizes the dataset accumulators and converts their
// findings into violations.
func (r *Run) Finish(ctx context.Context) []Violation {
	var violations []Violation
	for ord, rule := range r.evaluator.rules {
		if r.accs[ord] == nil {
			continue
		}
		findings, err := finalizeGuarded(ctx, r.accs[ord])
		if err != nil {
			violations = append(violations, executionError(rule, ord, DatasetIndex, nil, err))
			continue
		}
		for _, finding := range findings {
			v := Violation{
				RuleID:      rule.ID,
				Scope:       rule.Scope,
				RecordIndex: finding.RecordIndex,
				Value:       finding.Value,
				Severity:    rule.Severity,
				Kind:        KindViolation,
				Message:     finding.Message,
				ruleOrd:     ord,
			}
			if finding.Err != nil {
				v.Kind = KindExecutionError
			}
			violations = append(violations, v)
		}
	}
	return violations
}

// Merge folds another run's accumulators into this one, rule by rule.
// The receiver must represent the earlier chunk so first-occurrence
// semantics stay correct.
func (r *Run) Merge(other *Run) error {
	if other == nil {
		return nil
	}
	if len(r.accs) != len(other.accs) {
		return fmt.Errorf("cannot merge runs of different rule sets")
	}
	for i, acc := range r.accs {
		if acc == nil {
			continue
		}
		if other.accs[i] == nil {
			return fmt.Errorf("cannot merge runs of different rule sets")
		}
		if err := acc.Merge(other.accs[i]); err != nil {
			return fmt.Errorf("rule %s: %w", r.evaluator.rules[i].ID, err)
		}
	}
	return nil
}

func fromFault(rule Rule, ord, index int, fault *Fault) Violation {
	return Violation{
		RuleID:      rule.ID,
		Scope:       rule.Scope,
		RecordIndex: index,
		Value:       fault.Value,
		Severity:    rule.Severity,
		Kind:        KindViolation,
		Message:     fault.Message,
		ruleOrd:     ord,
	}
}

func executionError(rule Rule, ord, index int, value any, err error) Violation {
	return Violation{
		RuleID:      rule.ID,
		Scope:       rule.Scope,
		RecordIndex: index,
		Value:       value,
		Severity:    rule.Severity,
		Kind:        KindExecutionError,
		Message:     err.Error(),
		ruleOrd:     ord,
	}
}

func callFieldPredicate(pred FieldPredicate, value any, present bool, field schema.Field) (fault *Fault, err error) {
	defer func() {
		if p := recover(); p != nil {
			fault, err = nil, fmt.Errorf("predicate panicked: %v", p)
		}
	}()
	return pred(value, present, field)
}

func callRowPredicate(pred RowPredicate, record schema.Record) (fault *Fault, err error) {
	defer func() {
		if p := recover(); p != nil {
			fault, err = nil, fmt.Errorf("predicate panicked: %v", p)
		}
	}()
	return pred(record)
}

func observeGuarded(ctx context.Context, acc Accumulator, index int, record schema.Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("accumulator panicked: %v", p)
		}
	}()
	acc.Observe(ctx, index, record)
	return nil
}

func finalizeGuarded(ctx context.Context, acc Accumulator) (findings []Finding, err error) {
	defer func() {
		if p := recover(); p != nil {
			findings, err = nil, fmt.Errorf("accumulator panicked: %v", p)
		}
	}()
	return acc.Finalize(ctx), nil
}
