// Package features turns selected dataset columns into a numeric matrix for clustering.
package features

import (
	"sort"
	"strings"

	"github.com/rake220/customer-segmentation/internal/apperr"
	"github.com/rake220/customer-segmentation/internal/dataset"
)

// Matrix is the clustering input. Rows[i] was built from source row Retained[i].
type Matrix struct {
	Columns  []string
	Rows     [][]float64
	Retained []int
	Dropped  int
}

func (m *Matrix) NumRows() int {
	return len(m.Rows)
}

func (m *Matrix) NumColumns() int {
	return len(m.Columns)
}

func (m *Matrix) IsEmpty() bool {
	return len(m.Rows) == 0 || len(m.Columns) == 0
}

// ParseSelection splits a comma separated column list, trimming blanks and duplicates.
func ParseSelection(raw string) []string {
	return Normalize(strings.Split(raw, ","))
}

// Normalize trims names, drops blanks and keeps the first occurrence of duplicates.
func Normalize(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

type encoder struct {
	col        int
	categories []string
	position   map[string]int
}

// Build selects columns from d, one-hot expands categorical ones and drops rows with
// any value that cannot be made numeric.
func Build(d *dataset.Dataset, selected []string) (*Matrix, error) {
	selected = Normalize(selected)

	var missing []string
	for _, name := range selected {
		if !d.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.InvalidInput("Columns not found in data: %s", strings.Join(missing, ", "))
	}

	var (
		numericCols []int
		columns     []string
		encoders    []encoder
	)
	for _, name := range selected {
		idx, _ := d.ColumnIndex(name)
		if kind, _ := d.Kind(name); kind == dataset.Categorical {
			encoders = append(encoders, encoder{col: idx})
			continue
		}
		numericCols = append(numericCols, idx)
		columns = append(columns, name)
	}

	names := d.Columns()
	for e := range encoders {
		enc := &encoders[e]
		enc.categories = categories(d, enc.col)
		enc.position = make(map[string]int, len(enc.categories))
		for _, cat := range enc.categories {
			enc.position[cat] = len(columns)
			columns = append(columns, names[enc.col]+"_"+cat)
		}
	}

	m := &Matrix{Columns: columns}
	if len(columns) == 0 {
		return m, nil
	}

	for i := 0; i < d.NumRows(); i++ {
		row, ok := buildRow(d, i, numericCols, encoders, len(columns))
		if !ok {
			m.Dropped++
			continue
		}
		m.Rows = append(m.Rows, row)
		m.Retained = append(m.Retained, i)
	}

	return m, nil
}

func buildRow(d *dataset.Dataset, i int, numericCols []int, encoders []encoder, width int) ([]float64, bool) {
	row := make([]float64, width)
	for j, col := range numericCols {
		v, ok := d.Cell(i, col).Number()
		if !ok {
			return nil, false
		}
		row[j] = v
	}
	for _, enc := range encoders {
		cell := d.Cell(i, enc.col)
		if cell.IsMissing() {
			return nil, false
		}
		if pos, ok := enc.position[cell.String()]; ok {
			row[pos] = 1
		}
	}
	return row, true
}

// categories lists the distinct non-missing values of a column in ascending order.
func categories(d *dataset.Dataset, col int) []string {
	seen := make(map[string]bool)
	for i := 0; i < d.NumRows(); i++ {
		cell := d.Cell(i, col)
		if cell.IsMissing() {
			continue
		}
		seen[cell.String()] = true
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
