// Package profile summarizes a dataset column by column: inferred
// type, value counts, distinct counts, and missing counts. Profiles
// back the summary sheet of exported reports and give a quick read on
// a file before rules are written for it.
package profile

import (
	"fmt"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

// Column is the profile of a single column.
type Column struct {
	Name       string           `json:"name"`
	Type       schema.FieldType `json:"type"`
	Values     int              `json:"values"`
	Missing    int              `json:"missing"`
	Distinct   int              `json:"distinct"`
	Duplicated int              `json:"duplicated"`
}

// Profile is the column-by-column summary of a dataset.
type Profile struct {
	Records int      `json:"records"`
	Columns []Column `json:"columns"`
}

// Dataset profiles the records. Column order follows the inferred
// schema; types come from the same inference the pipeline uses, so the
// profile and the engine never disagree on what a column looks like.
func Dataset(records []schema.Record) Profile {
	inferred := schema.Infer(records)
	p := Profile{Records: len(records)}

	for _, field := range inferred.Fields() {
		col := Column{Name: field.Name, Type: field.Type}
		seen := make(map[string]int)
		for _, record := range records {
			value, present := record[field.Name]
			if !present || value == nil {
				col.Missing++
				continue
			}
			col.Values++
			seen[fmt.Sprintf("%v", value)]++
		}
		// Duplicated counts the surplus occurrences: present values
		// minus distinct values.
		col.Distinct = len(seen)
		col.Duplicated = col.Values - col.Distinct
		p.Columns = append(p.Columns, col)
	}
	return p
}

// Column returns the named column's profile.
func (p Profile) Column(name string) (Column, bool) {
	for _, col := range p.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}
