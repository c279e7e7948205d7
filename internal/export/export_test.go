package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/rake220/customer-segmentation/internal/dataset"
)

const segmented = "CustomerID,Gender,Age,Segment\n1,M,,0\n2,F,52.5,1\n"

func parse(t *testing.T) *dataset.Dataset {
	t.Helper()
	d, err := dataset.ParseCSV(strings.NewReader(segmented))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	return d
}

func TestCSV(t *testing.T) {
	data, err := CSV(parse(t))
	if err != nil {
		t.Fatalf("CSV failed: %v", err)
	}
	if string(data) != segmented {
		t.Errorf("got %q, want %q", data, segmented)
	}
}

func TestXLSX(t *testing.T) {
	data, err := XLSX(parse(t))
	if err != nil {
		t.Fatalf("XLSX failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	want := [][]string{
		{"CustomerID", "Gender", "Age", "Segment"},
		{"1", "M", "", "0"},
		{"2", "F", "52.5", "1"},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d: %v", len(want), len(rows), rows)
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}
