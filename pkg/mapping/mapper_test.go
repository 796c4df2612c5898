package mapping

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
	"github.com/fedeglan/fast-data-integrity/pkg/stream"
)

func mustMapper(t *testing.T, source, target schema.Schema, directives []Directive) *Mapper {
	t.Helper()
	spec, err := NewSpec(source, target, directives)
	if err != nil {
		t.Fatalf("build spec: %v", err)
	}
	m, err := NewMapper(spec)
	if err != nil {
		t.Fatalf("build mapper: %v", err)
	}
	return m
}

func TestApply(t *testing.T) {
	m := mustMapper(t, sourceSchema(t), targetSchema(t), []Directive{
		Compute("full_name", fullName, "first_name", "last_name"),
		Coerce("age", "age"),
		Default("country", "country", "unknown"),
	})

	result, err := m.Apply(context.Background(), stream.FromRecords([]schema.Record{
		{"first_name": "Ada", "last_name": "Lovelace", "age": "36", "country": "UK"},
		{"first_name": "Alan", "last_name": "Turing", "age": "41"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected mapping errors: %+v", result.Errors)
	}
	if len(result.Records) != 2 {
		t.Fatalf("mapped %d records, want 2", len(result.Records))
	}

	first := result.Records[0]
	if first["full_name"] != "Ada Lovelace" || first["age"] != int64(36) || first["country"] != "UK" {
		t.Errorf("unexpected first record: %v", first)
	}
	second := result.Records[1]
	if second["country"] != "unknown" {
		t.Errorf("default did not fill the absent field: %v", second)
	}
}

func TestMapRecordIsolatesDirectiveFailures(t *testing.T) {
	m := mustMapper(t, sourceSchema(t), targetSchema(t), []Directive{
		Compute("full_name", fullName, "first_name", "last_name"),
		Coerce("age", "age"),
		Default("country", "country", "unknown"),
	})

	mapped, errs := m.MapRecord(7, schema.Record{
		"first_name": "Grace",
		"last_name":  "Hopper",
		"age":        "not a number",
	})

	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %+v", len(errs), errs)
	}
	e := errs[0]
	if e.RecordIndex != 7 || e.Field != "age" || e.Cause != CauseTypeMismatch {
		t.Errorf("unexpected error: %+v", e)
	}

	// The rest of the record was still produced; the failed field is
	// absent, not null.
	if mapped["full_name"] != "Grace Hopper" || mapped["country"] != "unknown" {
		t.Errorf("unexpected mapped record: %v", mapped)
	}
	if _, present := mapped["age"]; present {
		t.Errorf("failed field should be absent, got %v", mapped["age"])
	}
}

func TestMapRecordErrorCauses(t *testing.T) {
	source := schema.MustNew([]schema.Field{
		{Name: "a", Type: schema.FieldTypeString, Nullable: true},
		{Name: "b", Type: schema.FieldTypeString, Nullable: true},
	})
	target := schema.MustNew([]schema.Field{
		{Name: "renamed", Type: schema.FieldTypeString},
		{Name: "coerced", Type: schema.FieldTypeInteger},
		{Name: "computed", Type: schema.FieldTypeString},
	})

	tests := []struct {
		name      string
		directive Directive
		record    schema.Record
		wantCause ErrorCause
	}{
		{
			name:      "rename missing source",
			directive: Rename("renamed", "a"),
			record:    schema.Record{"b": "x"},
			wantCause: CauseMissingSource,
		},
		{
			name:      "coerce type mismatch",
			directive: Coerce("coerced", "a"),
			record:    schema.Record{"a": "xyz"},
			wantCause: CauseTypeMismatch,
		},
		{
			name: "compute returns error",
			directive: Compute("computed", func(schema.Record) (any, error) {
				return nil, errors.New("boom")
			}, "a"),
			record:    schema.Record{"a": "x"},
			wantCause: CauseComputeFailure,
		},
		{
			name: "compute panics",
			directive: Compute("computed", func(schema.Record) (any, error) {
				panic("compute exploded")
			}, "a"),
			record:    schema.Record{"a": "x"},
			wantCause: CauseComputeFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := applyDirective(&Spec{source: source, target: target}, tt.directive, tt.record, schema.Record{})
			if err == nil {
				t.Fatal("expected a mapping error")
			}
			if err.Cause != tt.wantCause {
				t.Errorf("cause = %s, want %s", err.Cause, tt.wantCause)
			}
			if err.Field != tt.directive.Target {
				t.Errorf("field = %s, want %s", err.Field, tt.directive.Target)
			}
		})
	}
}

func TestDefaultNeverOverridesPresentValue(t *testing.T) {
	out := schema.Record{}
	spec := &Spec{}
	if err := applyDirective(spec, Default("country", "country", "unknown"), schema.Record{"country": "AR"}, out); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if out["country"] != "AR" {
		t.Errorf("default overrode a present value: %v", out["country"])
	}

	out = schema.Record{}
	if err := applyDirective(spec, Default("country", "country", "unknown"), schema.Record{"country": nil}, out); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if out["country"] != "unknown" {
		t.Errorf("default did not replace a null value: %v", out["country"])
	}
}

func TestCoerceAsOverridesTargetType(t *testing.T) {
	source := schema.MustNew([]schema.Field{{Name: "raw", Type: schema.FieldTypeString}})
	target := schema.MustNew([]schema.Field{{Name: "flag", Type: schema.FieldTypeString}})

	m := mustMapper(t, source, target, []Directive{
		CoerceAs("flag", "raw", schema.FieldTypeBoolean),
	})
	mapped, errs := m.MapRecord(0, schema.Record{"raw": "yes"})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if mapped["flag"] != true {
		t.Errorf("flag = %v (%T), want true", mapped["flag"], mapped["flag"])
	}
}

func TestRoundTripMapping(t *testing.T) {
	// A rename-only spec and its inverse restore the original record.
	source := schema.MustNew([]schema.Field{
		{Name: "first", Type: schema.FieldTypeString},
		{Name: "second", Type: schema.FieldTypeInteger},
	})
	target := schema.MustNew([]schema.Field{
		{Name: "uno", Type: schema.FieldTypeString},
		{Name: "dos", Type: schema.FieldTypeInteger},
	})

	forward := mustMapper(t, source, target, []Directive{
		Rename("uno", "first"),
		Rename("dos", "second"),
	})
	backward := mustMapper(t, target, source, []Directive{
		Rename("first", "uno"),
		Rename("second", "dos"),
	})

	original := schema.Record{"first": "x", "second": int64(2)}
	mapped, errs := forward.MapRecord(0, original)
	if len(errs) != 0 {
		t.Fatalf("forward errors: %+v", errs)
	}
	restored, errs := backward.MapRecord(0, mapped)
	if len(errs) != 0 {
		t.Fatalf("backward errors: %+v", errs)
	}
	if fmt.Sprintf("%v", restored) != fmt.Sprintf("%v", original) {
		t.Errorf("round trip changed the record: %v -> %v", original, restored)
	}
}

func TestMappingErrorString(t *testing.T) {
	e := MappingError{RecordIndex: 3, Field: "age", Cause: CauseTypeMismatch, Message: "bad value"}
	want := "record 3 field age: type-mismatch: bad value"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}
