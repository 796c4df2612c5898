package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/fedeglan/fast-data-integrity/pkg/pipeline"
	"github.com/fedeglan/fast-data-integrity/pkg/quality"
)

// Excel writes the report as a workbook with Summary, Violations, and
// Mapping Errors sheets.
func Excel(w io.Writer, report *pipeline.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	summary := f.GetSheetName(0)
	if err := f.SetSheetName(summary, "Summary"); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}

	summaryRows := [][]any{
		{"Run", report.RunID.String()},
		{"Status", string(report.Status)},
		{"Order", string(report.Order)},
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05")},
		{"Finished", report.FinishedAt.Format("2006-01-02 15:04:05")},
		{"Records seen", report.RecordsSeen},
		{"Records mapped", report.RecordsMapped},
		{"Error violations", report.ErrorViolations},
		{"Warning violations", report.WarningViolations},
		{"Mapping errors", len(report.MappingErrors)},
		{"Truncated", report.Truncated},
		{},
		{"Rule", "Violations", "Execution errors", "Truncated"},
	}
	for _, stat := range report.RuleStats {
		summaryRows = append(summaryRows, []any{stat.RuleID, stat.Violations, stat.ExecutionErrors, stat.Truncated})
	}
	if err := writeSheetRows(f, "Summary", summaryRows); err != nil {
		return err
	}

	violationRows := [][]any{{"Record", "Rule", "Scope", "Severity", "Kind", "Value", "Message"}}
	for _, v := range report.Violations {
		index := any(v.RecordIndex)
		if v.RecordIndex == quality.DatasetIndex {
			index = "dataset"
		}
		violationRows = append(violationRows, []any{
			index, v.RuleID, v.Scope.String(), string(v.Severity), string(v.Kind),
			fmt.Sprintf("%v", v.Value), v.Message,
		})
	}
	if _, err := f.NewSheet("Violations"); err != nil {
		return fmt.Errorf("create violations sheet: %w", err)
	}
	if err := writeSheetRows(f, "Violations", violationRows); err != nil {
		return err
	}

	errorRows := [][]any{{"Record", "Field", "Cause", "Message"}}
	for _, e := range report.MappingErrors {
		errorRows = append(errorRows, []any{e.RecordIndex, e.Field, string(e.Cause), e.Message})
	}
	if _, err := f.NewSheet("Mapping Errors"); err != nil {
		return fmt.Errorf("create mapping errors sheet: %w", err)
	}
	if err := writeSheetRows(f, "Mapping Errors", errorRows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheetRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
