// Package render turns finalized reports into output formats: JSON for
// machines, aligned text for terminals, and an Excel workbook for
// review by people who live in spreadsheets.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fedeglan/fast-data-integrity/pkg/pipeline"
	"github.com/fedeglan/fast-data-integrity/pkg/quality"
)

// Format names an output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatExcel Format = "excel"
)

// Write renders the report in the named format.
func Write(w io.Writer, format Format, report *pipeline.Report) error {
	switch format {
	case FormatJSON:
		return JSON(w, report)
	case FormatTable:
		return Table(w, report)
	case FormatExcel:
		return Excel(w, report)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// JSON writes the report as indented JSON.
func JSON(w io.Writer, report *pipeline.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Table writes a terminal-friendly summary followed by the violations
// and mapping errors, one line each.
func Table(w io.Writer, report *pipeline.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "run\t%s\n", report.RunID)
	fmt.Fprintf(tw, "status\t%s\n", report.Status)
	fmt.Fprintf(tw, "order\t%s\n", report.Order)
	fmt.Fprintf(tw, "records seen\t%d\n", report.RecordsSeen)
	fmt.Fprintf(tw, "records mapped\t%d\n", report.RecordsMapped)
	fmt.Fprintf(tw, "errors\t%d\n", report.ErrorViolations)
	fmt.Fprintf(tw, "warnings\t%d\n", report.WarningViolations)
	fmt.Fprintf(tw, "mapping errors\t%d\n", len(report.MappingErrors))
	if report.Truncated {
		fmt.Fprintf(tw, "truncated\tyes\n")
	}

	if len(report.Violations) > 0 {
		fmt.Fprintf(tw, "\nRECORD\tRULE\tSCOPE\tSEVERITY\tKIND\tMESSAGE\n")
		for _, v := range report.Violations {
			index := fmt.Sprintf("%d", v.RecordIndex)
			if v.RecordIndex == quality.DatasetIndex {
				index = "dataset"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", index, v.RuleID, v.Scope, v.Severity, v.Kind, v.Message)
		}
	}

	if len(report.MappingErrors) > 0 {
		fmt.Fprintf(tw, "\nRECORD\tFIELD\tCAUSE\tMESSAGE\n")
		for _, e := range report.MappingErrors {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.RecordIndex, e.Field, e.Cause, e.Message)
		}
	}

	return tw.Flush()
}
