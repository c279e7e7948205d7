package dataset

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

var customersCSV = `CustomerID,Gender,Age,Income,Profession
1,Male,19,15,Healthcare
2,Female,21,,Engineer
3,Female,20.5,16,
4,Male,23,16,Artist
`

func mustParse(t *testing.T, data string) *Dataset {
	t.Helper()
	d, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	return d
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		raw  string
		kind CellKind
		str  string
	}{
		{"42", Integer, "42"},
		{"-7", Integer, "-7"},
		{"3.25", Float, "3.25"},
		{"1e3", Float, "1000"},
		{"", Missing, ""},
		{"NaN", Missing, ""},
		{"N/A", Missing, ""},
		{"Male", Text, "Male"},
		{"inf", Text, "inf"},
		{"1,000", Text, "1,000"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c := ParseCell(tt.raw)
			if c.Kind() != tt.kind {
				t.Errorf("ParseCell(%q).Kind() = %s, want %s", tt.raw, c.Kind(), tt.kind)
			}
			if c.String() != tt.str {
				t.Errorf("ParseCell(%q).String() = %q, want %q", tt.raw, c.String(), tt.str)
			}
		})
	}
}

func TestCellNumber(t *testing.T) {
	if v, ok := IntCell(5).Number(); !ok || v != 5 {
		t.Errorf("IntCell(5).Number() = %v, %v", v, ok)
	}
	if v, ok := TextCell(" 2.5 ").Number(); !ok || v != 2.5 {
		t.Errorf("numeric text should coerce, got %v, %v", v, ok)
	}
	if _, ok := TextCell("abc").Number(); ok {
		t.Error("non numeric text should not coerce")
	}
	if _, ok := MissingCell().Number(); ok {
		t.Error("missing cell should not coerce")
	}
}

func TestCellMatches(t *testing.T) {
	if !IntCell(12).Matches("12") {
		t.Error("int cell should match its decimal form")
	}
	if !FloatCell(12).Matches("12") {
		t.Error("float cell should match numerically equal key")
	}
	if !TextCell("C-01").Matches("C-01") {
		t.Error("text cell should match exact key")
	}
	if TextCell("12.0").Matches("12") {
		t.Error("text cell should only match its exact text")
	}
	if MissingCell().Matches("") {
		t.Error("missing cell should never match")
	}
}

func TestParseCSVInfersColumnKinds(t *testing.T) {
	d := mustParse(t, customersCSV)

	if d.NumRows() != 4 || d.NumColumns() != 5 {
		t.Fatalf("unexpected shape %dx%d", d.NumRows(), d.NumColumns())
	}

	want := map[string]ColumnKind{
		"CustomerID": Numeric,
		"Gender":     Categorical,
		"Age":        Numeric,
		"Income":     Numeric,
		"Profession": Categorical,
	}
	for col, kind := range want {
		got, ok := d.Kind(col)
		if !ok {
			t.Fatalf("column %s missing", col)
		}
		if got != kind {
			t.Errorf("column %s kind = %s, want %s", col, got, kind)
		}
	}

	if !d.Cell(1, 3).IsMissing() {
		t.Error("empty income should be missing")
	}
	if d.Cell(2, 2).Kind() != Float {
		t.Error("20.5 should be a float cell")
	}
	if d.Cell(0, 2).Kind() != Integer {
		t.Error("19 should stay an integer cell")
	}
}

func TestParseCSVStripsBOM(t *testing.T) {
	d := mustParse(t, "\ufeffCustomerID,Age\n1,30\n")
	if !d.HasColumn("CustomerID") {
		t.Fatalf("BOM should be stripped from first header, got %v", d.Columns())
	}
}

func TestParseCSVHeaderOnlyIsEmptyDataset(t *testing.T) {
	d := mustParse(t, "CustomerID,Age\n")
	if !d.IsEmpty() {
		t.Errorf("expected no rows, got %d", d.NumRows())
	}
}

func TestParseCSVErrors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"ragged rows":    "a,b\n1,2,3\n",
		"duplicate name": "a,a\n1,2\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCSV(strings.NewReader(data)); err == nil {
				t.Errorf("expected error for %q", data)
			}
		})
	}
}

func TestRecordJSONKeepsColumnOrderAndNulls(t *testing.T) {
	d := mustParse(t, customersCSV)

	out, err := json.Marshal(d.Row(1))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"CustomerID":2,"Gender":"Female","Age":21,"Income":null,"Profession":"Engineer"}`
	if string(out) != want {
		t.Errorf("got %s\nwant %s", out, want)
	}
}

func TestWithColumnAppendsAndReplaces(t *testing.T) {
	d := mustParse(t, customersCSV)
	sub, err := d.Subset([]int{0, 3})
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}

	seg, err := sub.WithColumn("Segment", []Cell{IntCell(1), IntCell(0)})
	if err != nil {
		t.Fatalf("WithColumn failed: %v", err)
	}
	if seg.NumColumns() != 6 || seg.Columns()[5] != "Segment" {
		t.Fatalf("expected Segment appended, got %v", seg.Columns())
	}
	if got, _ := seg.Row(1).Get("CustomerID"); !got.Matches("4") {
		t.Errorf("subset row order broken, got customer %s", got)
	}

	again, err := seg.WithColumn("Segment", []Cell{IntCell(2), IntCell(2)})
	if err != nil {
		t.Fatalf("WithColumn replace failed: %v", err)
	}
	if again.NumColumns() != 6 {
		t.Errorf("replacing a column should not add one, got %v", again.Columns())
	}
	if v, _ := seg.Row(0).Get("Segment"); !v.Matches("1") {
		t.Error("original dataset must not be mutated")
	}

	if _, err := sub.WithColumn("Segment", []Cell{IntCell(0)}); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	d := mustParse(t, customersCSV)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, d); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if buf.String() != customersCSV {
		t.Errorf("round trip mismatch:\n%s", buf.String())
	}
}
