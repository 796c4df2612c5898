package profile

import (
	"testing"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

func TestDataset(t *testing.T) {
	records := []schema.Record{
		{"id": 1, "city": "BA", "score": 1.5},
		{"id": 2, "city": "BA", "score": nil},
		{"id": 3, "city": "NY"},
		{"id": 4, "city": "BA", "score": 2.5},
	}

	p := Dataset(records)
	if p.Records != 4 {
		t.Fatalf("Records = %d, want 4", p.Records)
	}
	if len(p.Columns) != 3 {
		t.Fatalf("got %d columns, want 3: %+v", len(p.Columns), p.Columns)
	}

	id, ok := p.Column("id")
	if !ok {
		t.Fatal("missing id column")
	}
	if id.Type != schema.FieldTypeInteger || id.Values != 4 || id.Distinct != 4 || id.Duplicated != 0 || id.Missing != 0 {
		t.Errorf("unexpected id profile: %+v", id)
	}

	city, _ := p.Column("city")
	if city.Type != schema.FieldTypeString || city.Distinct != 2 || city.Duplicated != 2 {
		t.Errorf("unexpected city profile: %+v", city)
	}

	score, _ := p.Column("score")
	if score.Type != schema.FieldTypeFloat || score.Values != 2 || score.Missing != 2 {
		t.Errorf("unexpected score profile: %+v", score)
	}
}

func TestDatasetDuplicatedIsSurplus(t *testing.T) {
	records := []schema.Record{
		{"n": 1}, {"n": 2}, {"n": 2}, {"n": 3},
	}
	p := Dataset(records)
	n, ok := p.Column("n")
	if !ok {
		t.Fatal("missing n column")
	}
	// One value beyond the distinct set, not the full occurrence count.
	if n.Values != 4 || n.Distinct != 3 || n.Duplicated != 1 {
		t.Errorf("unexpected profile: %+v", n)
	}
}

func TestDatasetEmpty(t *testing.T) {
	p := Dataset(nil)
	if p.Records != 0 || len(p.Columns) != 0 {
		t.Errorf("unexpected profile for empty dataset: %+v", p)
	}
}
