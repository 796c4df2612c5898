// Package source loads tabular files (CSV and XLSX) into record
// streams for the pipeline. Cell values arrive as strings; an optional
// schema coerces them to typed values, leaving cells that fail
// coercion as raw strings so quality rules can flag them.
package source

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
	"github.com/fedeglan/fast-data-integrity/pkg/stream"
)

// ErrUnsupportedFormat is returned when a file extension is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// naStrings are the cell spellings treated as null on load.
var naStrings = map[string]struct{}{
	"NaN": {}, "nan": {}, "NA": {}, "N/A": {},
	`\NA`: {}, `\N`: {}, "/N": {}, "//N": {},
	"None": {}, "null": {}, "": {},
}

type options struct {
	headerRowIndex *int
	schema         *schema.Schema
}

// Option adjusts how a file is loaded.
type Option func(*options)

// WithHeaderRow pins the zero-based header row instead of using the
// first non-empty row.
func WithHeaderRow(index int) Option {
	return func(o *options) { o.headerRowIndex = &index }
}

// WithSchema coerces cells to the schema's declared types. A cell that
// does not parse keeps its raw string value.
func WithSchema(s schema.Schema) Option {
	return func(o *options) { o.schema = &s }
}

// Open reads the whole file and returns a restartable record source.
// The format is chosen by file extension.
func Open(fileName string, r io.Reader, opts ...Option) (*stream.Records, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%s is empty", fileName)
	}

	var table tableData
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv":
		table, err = parseCSV(payload, o.headerRowIndex)
	case ".xlsx":
		table, err = parseExcel(payload, o.headerRowIndex)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	records := make([]schema.Record, 0, len(table.rows))
	for _, row := range table.rows {
		record := make(schema.Record, len(table.headers))
		for i, header := range table.headers {
			record[header] = cellValue(o.schema, header, row[i])
		}
		records = append(records, record)
	}
	return stream.FromRecords(records), nil
}

// Headers returns the sanitized column names a file would load under,
// without materializing the records.
func Headers(fileName string, r io.Reader, opts ...Option) ([]string, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	var table tableData
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv":
		table, err = parseCSV(payload, o.headerRowIndex)
	case ".xlsx":
		table, err = parseExcel(payload, o.headerRowIndex)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	return table.headers, nil
}

func cellValue(s *schema.Schema, header, raw string) any {
	trimmed := strings.TrimSpace(raw)
	if _, na := naStrings[trimmed]; na {
		return nil
	}
	if s == nil || !s.Has(header) {
		return trimmed
	}
	field, _ := s.Resolve(header)
	coerced, err := schema.Coerce(field, trimmed)
	if err != nil {
		return trimmed
	}
	return coerced
}
