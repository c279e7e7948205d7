package query

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/rake220/customer-segmentation/internal/apperr"
	"github.com/rake220/customer-segmentation/internal/dataset"
	"github.com/rake220/customer-segmentation/internal/store"
)

const customers = "CustomerID,Gender,Age,Income\n1,M,25,40\n2,F,,90\n3,F,61,95\n"

func load(t *testing.T, st *store.Store, data string) string {
	t.Helper()
	d, err := dataset.ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	return st.ReplaceDataset(d)
}

// commit labels rows 0 and 2 of the current dataset, dropping row 1.
func commit(t *testing.T, st *store.Store, version string, labels []int) {
	t.Helper()
	snap, _ := st.Snapshot()
	retained := []int{0, 2}
	subset, err := snap.Dataset.Subset(retained)
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}
	cells := make([]dataset.Cell, len(labels))
	for i, l := range labels {
		cells[i] = dataset.IntCell(int64(l))
	}
	segmented, err := subset.WithColumn("Segment", cells)
	if err != nil {
		t.Fatalf("WithColumn failed: %v", err)
	}
	err = st.CommitSegmentation(&store.Segmentation{
		ID:             "seg-1",
		DatasetVersion: version,
		Features:       []string{"Age"},
		Algorithm:      "kmeans",
		Clusters:       2,
		Labels:         labels,
		Retained:       retained,
		DroppedRows:    1,
		Dataset:        segmented,
	})
	if err != nil {
		t.Fatalf("CommitSegmentation failed: %v", err)
	}
}

func TestCustomerByIDWithoutData(t *testing.T) {
	e := NewEngine(store.New(), "", "")

	_, err := e.CustomerByID("1")
	if !apperr.Is(err, apperr.KindPreconditionMissing) {
		t.Errorf("expected precondition error, got %v", err)
	}
}

func TestCustomerByIDBeforeSegmentation(t *testing.T) {
	st := store.New()
	load(t, st, customers)
	e := NewEngine(st, "CustomerID", "Segment")

	rec, err := e.CustomerByID("2")
	if err != nil {
		t.Fatalf("CustomerByID failed: %v", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"CustomerID":2,"Gender":"F","Age":null,"Income":90}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	if _, err := e.CustomerByID("42"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCustomerByIDPrefersSegmentedDataset(t *testing.T) {
	st := store.New()
	version := load(t, st, customers)
	commit(t, st, version, []int{1, 0})
	e := NewEngine(st, "CustomerID", "Segment")

	rec, err := e.CustomerByID("3")
	if err != nil {
		t.Fatalf("CustomerByID failed: %v", err)
	}
	segment, ok := rec.Get("Segment")
	if !ok {
		t.Fatal("record should carry Segment")
	}
	if v, _ := segment.Int(); v != 0 {
		t.Errorf("expected segment 0, got %d", v)
	}

	// Row 2 was dropped before clustering, so it is absent from the segmented view.
	if _, err := e.CustomerByID("2"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for dropped row, got %v", err)
	}
}

func TestCustomerByIDMatchesNumerically(t *testing.T) {
	st := store.New()
	load(t, st, customers)
	e := NewEngine(st, "", "")

	if _, err := e.CustomerByID("1.0"); err != nil {
		t.Errorf("1.0 should match id 1: %v", err)
	}
}

func TestCustomersInSegment(t *testing.T) {
	st := store.New()
	e := NewEngine(st, "", "")

	version := load(t, st, customers)
	if _, err := e.CustomersInSegment(0); !apperr.Is(err, apperr.KindPreconditionMissing) {
		t.Errorf("expected precondition error before segmentation, got %v", err)
	}

	commit(t, st, version, []int{1, 1})

	records, err := e.CustomersInSegment(1)
	if err != nil {
		t.Fatalf("CustomersInSegment failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first, _ := records[0].Get("CustomerID")
	second, _ := records[1].Get("CustomerID")
	if first.String() != "1" || second.String() != "3" {
		t.Errorf("records out of order: %s, %s", first, second)
	}

	_, err = e.CustomersInSegment(0)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for empty segment, got %v", err)
	}
	if apperr.Message(err) != "No customers found in segment 0" {
		t.Errorf("unexpected message %q", apperr.Message(err))
	}
}

func TestSegmentCounts(t *testing.T) {
	st := store.New()
	e := NewEngine(st, "", "")
	version := load(t, st, customers)

	if _, err := e.SegmentCounts(); !apperr.Is(err, apperr.KindPreconditionMissing) {
		t.Errorf("expected precondition error, got %v", err)
	}

	commit(t, st, version, []int{1, 0})
	overview, err := e.SegmentCounts()
	if err != nil {
		t.Fatalf("SegmentCounts failed: %v", err)
	}
	if overview.NumPoints != 2 || overview.DroppedRows != 1 {
		t.Errorf("unexpected overview %+v", overview)
	}
	if len(overview.Segments) != 2 || overview.Segments[0].Segment != 0 || overview.Segments[1].Count != 1 {
		t.Errorf("unexpected counts %+v", overview.Segments)
	}
}

func TestParseSegmentID(t *testing.T) {
	if id, err := ParseSegmentID("3"); err != nil || id != 3 {
		t.Errorf("ParseSegmentID(3) = %d, %v", id, err)
	}
	if _, err := ParseSegmentID("x"); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}
