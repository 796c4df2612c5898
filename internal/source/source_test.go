package source

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
	"github.com/fedeglan/fast-data-integrity/pkg/stream"
)

func TestOpenCSV(t *testing.T) {
	csvData := "\xEF\xBB\xBFUser Id,Full Name,Age\n1,Ada,36\n2,Alan,NA\n\n3,Grace,85\n"

	src, err := Open("people.csv", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := stream.Collect(src)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3 (empty row skipped)", len(records))
	}

	// Headers are sanitized: spaces become underscores.
	first := records[0]
	if first["User_Id"] != "1" || first["Full_Name"] != "Ada" || first["Age"] != "36" {
		t.Errorf("unexpected first record: %v", first)
	}
	// NA spellings load as null.
	if records[1]["Age"] != nil {
		t.Errorf("expected nil Age, got %v", records[1]["Age"])
	}
}

func TestOpenCSVWithSchema(t *testing.T) {
	s := schema.MustNew([]schema.Field{
		{Name: "id", Type: schema.FieldTypeInteger},
		{Name: "score", Type: schema.FieldTypeFloat, Nullable: true},
	})
	csvData := "id,score\n1,2.5\n2,broken\n"

	src, err := Open("scores.csv", strings.NewReader(csvData), WithSchema(s))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := stream.Collect(src)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if records[0]["id"] != int64(1) || records[0]["score"] != 2.5 {
		t.Errorf("expected coerced values, got %v", records[0])
	}
	// A cell that does not parse keeps its raw string so quality rules
	// can flag it.
	if records[1]["score"] != "broken" {
		t.Errorf("expected raw string for bad cell, got %v", records[1]["score"])
	}
}

func TestOpenCSVHeaderRowOption(t *testing.T) {
	csvData := "report generated 2024-01-01,,\nid,name\n1,Ada\n"

	src, err := Open("export.csv", strings.NewReader(csvData), WithHeaderRow(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := stream.Collect(src)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(records) != 1 || records[0]["name"] != "Ada" {
		t.Errorf("unexpected records: %v", records)
	}
}

func TestOpenXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"id", "name", "active"},
		{1, "Ada", "true"},
		{2, "Alan", "false"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	src, err := Open("people.xlsx", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := stream.Collect(src)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["id"] != "1" || records[0]["name"] != "Ada" {
		t.Errorf("unexpected first record: %v", records[0])
	}
}

func TestOpenRejectsUnknownFormat(t *testing.T) {
	_, err := Open("data.parquet", strings.NewReader("x"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestOpenRejectsEmptyFile(t *testing.T) {
	if _, err := Open("empty.csv", strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestHeaders(t *testing.T) {
	headers, err := Headers("people.csv", strings.NewReader("User Id,User Id,\n1,2,3\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Duplicates are suffixed, blanks get positional names.
	want := []string{"User_Id", "User_Id_2", "column_3"}
	for i := range want {
		if headers[i] != want[i] {
			t.Fatalf("headers = %v, want %v", headers, want)
		}
	}
}
