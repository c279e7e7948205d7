// Package dataset holds the in-memory tabular model: typed cells, immutable datasets and
// their CSV representation.
package dataset

import (
	"fmt"
	"strings"
)

type ColumnKind uint8

const (
	// Numeric columns hold only integers, floats or missing cells.
	Numeric ColumnKind = iota
	// Categorical columns hold at least one text cell.
	Categorical
)

func (k ColumnKind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Dataset is an ordered, rectangular table. It is never mutated after construction;
// derived datasets are new values.
type Dataset struct {
	columns []string
	index   map[string]int
	kinds   []ColumnKind
	rows    [][]Cell
}

// New builds a dataset. Every row must have exactly one cell per column and column
// names must be unique. Blank names are replaced by "Unnamed: <position>".
func New(columns []string, rows [][]Cell) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset has no columns")
	}

	names := make([]string, len(columns))
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", name)
		}
		names[i] = name
		index[name] = i
	}

	for r, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", r, len(row), len(names))
		}
	}

	d := &Dataset{
		columns: names,
		index:   index,
		rows:    rows,
	}
	d.kinds = inferKinds(names, rows)
	return d, nil
}

func inferKinds(columns []string, rows [][]Cell) []ColumnKind {
	kinds := make([]ColumnKind, len(columns))
	for _, row := range rows {
		for j, cell := range row {
			if cell.Kind() == Text {
				kinds[j] = Categorical
			}
		}
	}
	return kinds
}

// Columns returns a copy of the column names in order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

func (d *Dataset) NumRows() int {
	return len(d.rows)
}

func (d *Dataset) NumColumns() int {
	return len(d.columns)
}

func (d *Dataset) IsEmpty() bool {
	return len(d.rows) == 0
}

func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

func (d *Dataset) ColumnIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// Kind reports the inferred kind of a column. Unknown columns report Numeric, false.
func (d *Dataset) Kind(name string) (ColumnKind, bool) {
	i, ok := d.index[name]
	if !ok {
		return Numeric, false
	}
	return d.kinds[i], true
}

func (d *Dataset) Cell(row, col int) Cell {
	return d.rows[row][col]
}

// Row returns a read-only view of row i.
func (d *Dataset) Row(i int) Record {
	return Record{Columns: d.columns, Cells: d.rows[i]}
}

func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.rows))
	for i := range d.rows {
		out[i] = d.Row(i)
	}
	return out
}

// Subset returns a dataset holding the given source rows in the given order.
func (d *Dataset) Subset(indices []int) (*Dataset, error) {
	rows := make([][]Cell, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(d.rows) {
			return nil, fmt.Errorf("row index %d out of range [0,%d)", idx, len(d.rows))
		}
		rows[i] = d.rows[idx]
	}
	return New(d.columns, rows)
}

// WithColumn returns a copy of the dataset where the named column holds cells.
// An existing column is replaced in place; a new one is appended.
func (d *Dataset) WithColumn(name string, cells []Cell) (*Dataset, error) {
	if len(cells) != len(d.rows) {
		return nil, fmt.Errorf("column %q has %d cells, dataset has %d rows", name, len(cells), len(d.rows))
	}

	columns := d.columns
	pos, exists := d.index[name]
	if !exists {
		columns = append(d.Columns(), name)
		pos = len(columns) - 1
	}

	rows := make([][]Cell, len(d.rows))
	for i, src := range d.rows {
		row := make([]Cell, len(columns))
		copy(row, src)
		row[pos] = cells[i]
		rows[i] = row
	}
	return New(columns, rows)
}
