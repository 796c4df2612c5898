package quality

import (
	"context"
	"testing"
	"time"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
	"github.com/fedeglan/fast-data-integrity/pkg/stream"
)

func testSchema(t *testing.T) schema.Schema {
	t.Helper()
	return schema.MustNew([]schema.Field{
		{Name: "id", Type: schema.FieldTypeInteger},
		{Name: "email", Type: schema.FieldTypeString, Nullable: true},
		{Name: "age", Type: schema.FieldTypeInteger, Nullable: true},
		{Name: "status", Type: schema.FieldTypeString, Nullable: true},
		{Name: "signed_on", Type: schema.FieldTypeDate, Nullable: true},
	})
}

func mustRuleSet(t *testing.T, rules ...Rule) *RuleSet {
	t.Helper()
	rs, err := NewRuleSet(rules...)
	if err != nil {
		t.Fatalf("build rule set: %v", err)
	}
	return rs
}

func evaluate(t *testing.T, s schema.Schema, rs *RuleSet, records []schema.Record) Result {
	t.Helper()
	eval, err := NewEvaluator(s, rs)
	if err != nil {
		t.Fatalf("build evaluator: %v", err)
	}
	result, err := eval.Evaluate(context.Background(), stream.FromRecords(records))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return result
}

func TestNotNull(t *testing.T) {
	rs := mustRuleSet(t, NotNull("email-required", "email", SeverityError))
	result := evaluate(t, testSchema(t), rs, []schema.Record{
		{"id": 1, "email": "a@example.com"},
		{"id": 2, "email": nil},
		{"id": 3},
	})

	if len(result.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(result.Violations), result.Violations)
	}
	if result.Violations[0].RecordIndex != 1 || result.Violations[1].RecordIndex != 2 {
		t.Errorf("unexpected indexes: %+v", result.Violations)
	}
	// Null and missing read differently in the report.
	if result.Violations[0].Message == result.Violations[1].Message {
		t.Errorf("expected distinct messages for null and missing, got %q twice", result.Violations[0].Message)
	}
}

func TestUniqueFlagsLaterOccurrences(t *testing.T) {
	rs := mustRuleSet(t, Unique("id-unique", "id", SeverityError))
	result := evaluate(t, testSchema(t), rs, []schema.Record{
		{"id": 1},
		{"id": 2},
		{"id": 2},
		{"id": 3},
	})

	if len(result.Violations) != 1 {
		t.Fatalf("got %d violations, want 1: %+v", len(result.Violations), result.Violations)
	}
	v := result.Violations[0]
	if v.RecordIndex != 2 {
		t.Errorf("violation index = %d, want 2", v.RecordIndex)
	}
	if v.RuleID != "id-unique" || v.Kind != KindViolation {
		t.Errorf("unexpected violation: %+v", v)
	}
}

func TestUniqueKeepsTypesApart(t *testing.T) {
	rs := mustRuleSet(t, Unique("status-unique", "status", SeverityError))
	result := evaluate(t, testSchema(t), rs, []schema.Record{
		{"id": 1, "status": 1},
		{"id": 2, "status": "1"},
	})

	// An integer and a string that render the same are not duplicates.
	if len(result.Violations) != 0 {
		t.Errorf("got %d violations, want 0: %+v", len(result.Violations), result.Violations)
	}
}

func TestRange(t *testing.T) {
	rs := mustRuleSet(t, Range("age-range", "age", 0, 100, SeverityError))
	result := evaluate(t, testSchema(t), rs, []schema.Record{
		{"id": 1, "age": -1},
		{"id": 2, "age": 0},
		{"id": 3, "age": 50},
		{"id": 4, "age": 100},
		{"id": 5, "age": 101},
	})

	if len(result.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(result.Violations), result.Violations)
	}
	if result.Violations[0].RecordIndex != 0 || result.Violations[1].RecordIndex != 4 {
		t.Errorf("unexpected indexes: %+v", result.Violations)
	}
}

func TestRangeNonNumericIsExecutionError(t *testing.T) {
	rs := mustRuleSet(t, Range("age-range", "age", 0, 100, SeverityError))
	result := evaluate(t, testSchema(t), rs, []schema.Record{
		{"id": 1, "age": "not a number"},
		{"id": 2, "age": 150},
	})

	if len(result.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(result.Violations), result.Violations)
	}
	if result.Violations[0].Kind != KindExecutionError {
		t.Errorf("expected execution error for non-numeric value, got %+v", result.Violations[0])
	}
	// The bad value did not stop the range check on the next record.
	if result.Violations[1].Kind != KindViolation || result.Violations[1].RecordIndex != 1 {
		t.Errorf("expected plain violation at index 1, got %+v", result.Violations[1])
	}
}

func TestRegexMatch(t *testing.T) {
	rule, err := RegexMatch("email-format", "email", `^[^@\s]+@[^@\s]+$`, SeverityWarning)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rs := mustRuleSet(t, rule)
	result := evaluate(t, testSchema(t), rs, []schema.Record{
		{"id": 1, "email": "good@example.com"},
		{"id": 2, "email": "not-an-email"},
		{"id": 3, "email": 42},
	})

	if len(result.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(result.Violations), result.Violations)
	}
	if result.Violations[0].RecordIndex != 1 || result.Violations[0].Kind != KindViolation {
		t.Errorf("unexpected first violation: %+v", result.Violations[0])
	}
	if result.Violations[1].RecordIndex != 2 || result.Violations[1].Kind != KindExecutionError {
		t.Errorf("expected execution error for non-string value, got %+v", result.Violations[1])
	}
	if result.Violations[1].Severity != SeverityWarning {
		t.Errorf("execution error should keep the rule severity, got %s", result.Violations[1].Severity)
	}
}

func TestRegexMatchRejectsBadPattern(t *testing.T) {
	if _, err := RegexMatch("bad", "email", `([`, SeverityError); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestEnumAllowed(t *testing.T) {
	rs := mustRuleSet(t, EnumAllowed("status-enum", "status", []string{"active", "inactive"}, SeverityError))
	result := evaluate(t, testSchema(t), rs, []schema.Record{
		{"id": 1, "status": "active"},
		{"id": 2, "status": "deleted"},
		{"id": 3, "status": nil},
	})

	if len(result.Violations) != 1 {
		t.Fatalf("got %d violations, want 1: %+v", len(result.Violations), result.Violations)
	}
	if result.Violations[0].RecordIndex != 1 {
		t.Errorf("unexpected violation: %+v", result.Violations[0])
	}
}

func TestNoFutureDates(t *testing.T) {
	reference := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rs := mustRuleSet(t, NoFutureDates("no-future-signing", "signed_on", reference, SeverityError))
	result := evaluate(t, testSchema(t), rs, []schema.Record{
		{"id": 1, "signed_on": "2026-05-30"},
		{"id": 2, "signed_on": "2026-06-02"},
		{"id": 3, "signed_on": nil},
		{"id": 4, "signed_on": "someday"},
	})

	if len(result.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(result.Violations), result.Violations)
	}
	if result.Violations[0].RecordIndex != 1 || result.Violations[0].Kind != KindViolation {
		t.Errorf("unexpected first violation: %+v", result.Violations[0])
	}
	if result.Violations[1].RecordIndex != 3 || result.Violations[1].Kind != KindExecutionError {
		t.Errorf("expected execution error for unparseable date, got %+v", result.Violations[1])
	}
}

func TestTypeConformance(t *testing.T) {
	rs := mustRuleSet(t, TypeConformance("age-type", "age", SeverityError))
	result := evaluate(t, testSchema(t), rs, []schema.Record{
		{"id": 1, "age": 30},
		{"id": 2, "age": "30"},
		{"id": 3, "age": "thirty"},
		{"id": 4, "age": 3.5},
	})

	if len(result.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(result.Violations), result.Violations)
	}
	if result.Violations[0].RecordIndex != 2 || result.Violations[1].RecordIndex != 3 {
		t.Errorf("unexpected indexes: %+v", result.Violations)
	}
	// A mistyped value is an unsatisfied rule, not an engine failure.
	for _, v := range result.Violations {
		if v.Kind != KindViolation {
			t.Errorf("expected plain violation, got %+v", v)
		}
	}
}

func TestReferentialExists(t *testing.T) {
	known := LookupFunc(func(_ context.Context, key string) (bool, error) {
		return key == "1" || key == "3", nil
	})
	rs := mustRuleSet(t, ReferentialExists("id-known", "id", known, SeverityError))
	result := evaluate(t, testSchema(t), rs, []schema.Record{
		{"id": 1},
		{"id": 2},
		{"id": 3},
		{"id": 4},
	})

	if len(result.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(result.Violations), result.Violations)
	}
	if result.Violations[0].RecordIndex != 1 || result.Violations[1].RecordIndex != 3 {
		t.Errorf("unexpected indexes: %+v", result.Violations)
	}
}
