// Package mapping implements the declarative field mapping engine:
// record transformation from a source schema to a target schema under
// an ordered set of directives, with type coercion and per-field error
// capture. Partial failure is never total failure: a directive that
// cannot produce its field records a MappingError and the record is
// still emitted.
package mapping

import (
	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

// DirectiveKind identifies what a directive does to its target field.
type DirectiveKind string

const (
	// KindRename copies a source field's value under the target name.
	KindRename DirectiveKind = "rename"
	// KindCoerce converts a source field's value to a declared type.
	KindCoerce DirectiveKind = "coerce"
	// KindCompute derives the target from one or more source fields
	// through a pure function.
	KindCompute DirectiveKind = "compute"
	// KindDefault supplies a literal when the source value is absent.
	// It never overrides a present value.
	KindDefault DirectiveKind = "default"
	// KindPassThrough copies the same-named source field unchanged.
	KindPassThrough DirectiveKind = "passthrough"
)

// ComputeFunc derives a target value from a source record. It must be
// pure; the mapper treats an error (or panic) as a compute-failure for
// that field alone.
type ComputeFunc func(record schema.Record) (any, error)

// Directive produces exactly one target field.
type Directive struct {
	Target string
	Kind   DirectiveKind

	// Source names the source field for rename, coerce, default, and
	// passthrough. Sources lists the inputs of a compute directive.
	Source  string
	Sources []string

	// As optionally overrides the coercion type; when empty, coerce
	// converts to the target field's declared type.
	As schema.FieldType

	// Literal is the value a default directive supplies.
	Literal any

	// Compute is the derivation function of a compute directive.
	Compute ComputeFunc
}

// Rename copies source under the target name.
func Rename(target, source string) Directive {
	return Directive{Target: target, Kind: KindRename, Source: source}
}

// Coerce converts source to the target field's declared type.
func Coerce(target, source string) Directive {
	return Directive{Target: target, Kind: KindCoerce, Source: source}
}

// CoerceAs converts source to an explicit type instead of the target
// field's declared one.
func CoerceAs(target, source string, as schema.FieldType) Directive {
	return Directive{Target: target, Kind: KindCoerce, Source: source, As: as}
}

// Compute derives target from the named source fields.
func Compute(target string, fn ComputeFunc, sources ...string) Directive {
	return Directive{Target: target, Kind: KindCompute, Compute: fn, Sources: sources}
}

// Default copies source, substituting literal when source is absent.
func Default(target, source string, literal any) Directive {
	return Directive{Target: target, Kind: KindDefault, Source: source, Literal: literal}
}

// PassThrough copies the same-named field unchanged.
func PassThrough(field string) Directive {
	return Directive{Target: field, Kind: KindPassThrough, Source: field}
}
