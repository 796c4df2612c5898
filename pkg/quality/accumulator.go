package quality

import (
	"context"
	"fmt"
	"sort"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

// Accumulator is the running state of a dataset-scope rule. Observe is
// called once per record during the single evaluation pass; Finalize
// once after the last record. Merge combines another accumulator of
// the same type, turning parallel chunked evaluation into an explicit
// reduction instead of shared mutable state.
type Accumulator interface {
	Observe(ctx context.Context, index int, record schema.Record)
	Finalize(ctx context.Context) []Finding
	Merge(other Accumulator) error
}

// uniqueAccumulator tracks every index at which each value of a field
// was seen. Finalize flags the second and later occurrences. Holding
// all indexes is O(record count) by intent; global duplicate detection
// cannot be done in less.
type uniqueAccumulator struct {
	field string
	seen  map[string]*uniqueEntry
}

type uniqueEntry struct {
	display string
	indexes []int
}

func newUniqueAccumulator(field string) *uniqueAccumulator {
	return &uniqueAccumulator{field: field, seen: make(map[string]*uniqueEntry)}
}

func (a *uniqueAccumulator) Observe(_ context.Context, index int, record schema.Record) {
	value, present := record[a.field]
	if !present || value == nil {
		return
	}
	// Type-tagged keys keep the integer 1 and the string "1" apart.
	key := fmt.Sprintf("%T\x00%v", value, value)
	entry := a.seen[key]
	if entry == nil {
		entry = &uniqueEntry{display: fmt.Sprintf("%v", value)}
		a.seen[key] = entry
	}
	entry.indexes = append(entry.indexes, index)
}

func (a *uniqueAccumulator) Finalize(context.Context) []Finding {
	var findings []Finding
	for _, entry := range a.seen {
		if len(entry.indexes) < 2 {
			continue
		}
		sort.Ints(entry.indexes)
		for _, index := range entry.indexes[1:] {
			findings = append(findings, Finding{
				RecordIndex: index,
				Value:       entry.display,
				Message:     fmt.Sprintf("duplicate value %q in field %s (first seen at record %d)", entry.display, a.field, entry.indexes[0]),
			})
		}
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].RecordIndex < findings[j].RecordIndex })
	return findings
}

func (a *uniqueAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*uniqueAccumulator)
	if !ok {
		return fmt.Errorf("cannot merge %T into uniqueAccumulator", other)
	}
	for key, entry := range o.seen {
		mine := a.seen[key]
		if mine == nil {
			a.seen[key] = entry
			continue
		}
		mine.indexes = append(mine.indexes, entry.indexes...)
	}
	return nil
}

// referentialAccumulator checks each record's key against a read-only
// lookup collaborator as the stream goes by, so memory stays bounded
// to the findings alone.
type referentialAccumulator struct {
	field    string
	lookup   Lookup
	findings []Finding
}

func newReferentialAccumulator(field string, lookup Lookup) *referentialAccumulator {
	return &referentialAccumulator{field: field, lookup: lookup}
}

func (a *referentialAccumulator) Observe(ctx context.Context, index int, record schema.Record) {
	value, present := record[a.field]
	if !present || value == nil {
		return
	}
	key := fmt.Sprintf("%v", value)
	exists, err := a.lookup.Exists(ctx, key)
	if err != nil {
		a.findings = append(a.findings, Finding{
			RecordIndex: index,
			Value:       value,
			Message:     fmt.Sprintf("lookup failed for key %q: %v", key, err),
			Err:         err,
		})
		return
	}
	if !exists {
		a.findings = append(a.findings, Finding{
			RecordIndex: index,
			Value:       value,
			Message:     fmt.Sprintf("key %q does not exist in reference dataset", key),
		})
	}
}

func (a *referentialAccumulator) Finalize(context.Context) []Finding {
	sort.SliceStable(a.findings, func(i, j int) bool {
		return a.findings[i].RecordIndex < a.findings[j].RecordIndex
	})
	return a.findings
}

func (a *referentialAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*referentialAccumulator)
	if !ok {
		return fmt.Errorf("cannot merge %T into referentialAccumulator", other)
	}
	a.findings = append(a.findings, o.findings...)
	return nil
}
