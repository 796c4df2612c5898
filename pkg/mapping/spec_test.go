package mapping

import (
	"errors"
	"testing"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

func sourceSchema(t *testing.T) schema.Schema {
	t.Helper()
	return schema.MustNew([]schema.Field{
		{Name: "first_name", Type: schema.FieldTypeString},
		{Name: "last_name", Type: schema.FieldTypeString},
		{Name: "age", Type: schema.FieldTypeString, Nullable: true},
		{Name: "country", Type: schema.FieldTypeString, Nullable: true},
	})
}

func targetSchema(t *testing.T) schema.Schema {
	t.Helper()
	return schema.MustNew([]schema.Field{
		{Name: "full_name", Type: schema.FieldTypeString},
		{Name: "age", Type: schema.FieldTypeInteger, Nullable: true},
		{Name: "country", Type: schema.FieldTypeString},
	})
}

func fullName(record schema.Record) (any, error) {
	first, _ := record["first_name"].(string)
	last, _ := record["last_name"].(string)
	return first + " " + last, nil
}

func TestNewSpecValidation(t *testing.T) {
	source, target := sourceSchema(t), targetSchema(t)

	valid := []Directive{
		Compute("full_name", fullName, "first_name", "last_name"),
		Coerce("age", "age"),
		Default("country", "country", "unknown"),
	}

	tests := []struct {
		name       string
		directives []Directive
		wantErr    bool
	}{
		{name: "valid spec", directives: valid},
		{
			name: "empty target",
			directives: append([]Directive{
				{Kind: KindRename, Source: "first_name"},
			}, valid[1:]...),
			wantErr: true,
		},
		{
			name: "unknown target field",
			directives: append([]Directive{
				Rename("nickname", "first_name"),
			}, valid...),
			wantErr: true,
		},
		{
			name:       "duplicate producer",
			directives: append([]Directive{Rename("age", "age")}, valid...),
			wantErr:    true,
		},
		{
			name: "unknown source field",
			directives: []Directive{
				Compute("full_name", fullName, "first_name", "last_name"),
				Coerce("age", "middle_name"),
				Default("country", "country", "unknown"),
			},
			wantErr: true,
		},
		{
			name: "uncovered target field",
			directives: []Directive{
				Compute("full_name", fullName, "first_name", "last_name"),
				Coerce("age", "age"),
			},
			wantErr: true,
		},
		{
			name: "compute without function",
			directives: []Directive{
				{Target: "full_name", Kind: KindCompute, Sources: []string{"first_name"}},
				Coerce("age", "age"),
				Default("country", "country", "unknown"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSpec(source, target, tt.directives)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var specErr *SpecError
				if !errors.As(err, &specErr) {
					t.Errorf("expected *SpecError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDirectivesFollowTargetFieldOrder(t *testing.T) {
	// Directives are declared out of order; the spec applies them in
	// target schema order.
	spec, err := NewSpec(sourceSchema(t), targetSchema(t), []Directive{
		Default("country", "country", "unknown"),
		Compute("full_name", fullName, "first_name", "last_name"),
		Coerce("age", "age"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var targets []string
	for _, d := range spec.Directives() {
		targets = append(targets, d.Target)
	}
	want := []string{"full_name", "age", "country"}
	for i := range want {
		if targets[i] != want[i] {
			t.Fatalf("directive order = %v, want %v", targets, want)
		}
	}
}
