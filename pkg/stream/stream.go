// Package stream defines the record stream contract the engine
// consumes. Streams are lazy, finite, and pull-based; the engine issues
// no I/O of its own, so suspension and cancellation belong to the
// caller's stream implementation.
package stream

import (
	"io"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

// Stream produces a finite sequence of records. Next returns io.EOF
// after the last record.
type Stream interface {
	Next() (schema.Record, error)
}

// Source is a restartable stream. Reset rewinds to the first record so
// the same data can be scanned more than once.
type Source interface {
	Stream
	Reset() error
}

// Records is an in-memory Source backed by a slice.
type Records struct {
	records []schema.Record
	pos     int
}

// FromRecords wraps a slice of records as a restartable source. The
// slice is not copied; callers must not mutate it during a run.
func FromRecords(records []schema.Record) *Records {
	return &Records{records: records}
}

// Next implements Stream.
func (r *Records) Next() (schema.Record, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	record := r.records[r.pos]
	r.pos++
	return record, nil
}

// Reset implements Source.
func (r *Records) Reset() error {
	r.pos = 0
	return nil
}

// Len returns the total number of records in the source.
func (r *Records) Len() int {
	return len(r.records)
}

// Collect drains a stream into a slice. Intended for tests and small
// datasets; large datasets should stay streaming.
func Collect(s Stream) ([]schema.Record, error) {
	var out []schema.Record
	for {
		record, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, record)
	}
}
