// Package summary describes each segment of a segmented dataset.
package summary

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rake220/customer-segmentation/internal/dataset"
)

type SegmentSummary struct {
	Size        int                           `json:"size"`
	Means       map[string]float64            `json:"means"`
	Counts      map[string]map[string]int     `json:"counts"`
	Percentages map[string]map[string]float64 `json:"percentages"`
}

// Build groups rows by segmentColumn and summarises each group. Means cover every
// numeric column with at least one value in the segment; counts and percentages cover
// the categorical columns that exist in the dataset.
func Build(segmented *dataset.Dataset, segmentColumn string, categorical []string) (map[int]SegmentSummary, error) {
	segIdx, ok := segmented.ColumnIndex(segmentColumn)
	if !ok {
		return nil, fmt.Errorf("segment column %q not found", segmentColumn)
	}

	groups := make(map[int][]int)
	for i := 0; i < segmented.NumRows(); i++ {
		label, ok := segmented.Cell(i, segIdx).Int()
		if !ok {
			return nil, fmt.Errorf("row %d has no integer segment", i)
		}
		groups[int(label)] = append(groups[int(label)], i)
	}

	var numeric []int
	for j, name := range segmented.Columns() {
		if kind, _ := segmented.Kind(name); kind == dataset.Numeric {
			numeric = append(numeric, j)
		}
	}

	var catCols []int
	for _, name := range categorical {
		if j, ok := segmented.ColumnIndex(name); ok {
			catCols = append(catCols, j)
		}
	}

	columns := segmented.Columns()
	out := make(map[int]SegmentSummary, len(groups))
	for id, rows := range groups {
		s := SegmentSummary{
			Size:        len(rows),
			Means:       make(map[string]float64),
			Counts:      make(map[string]map[string]int),
			Percentages: make(map[string]map[string]float64),
		}

		values := make([]float64, 0, len(rows))
		for _, j := range numeric {
			values = values[:0]
			for _, i := range rows {
				if v, ok := segmented.Cell(i, j).Number(); ok {
					values = append(values, v)
				}
			}
			if len(values) > 0 {
				s.Means[columns[j]] = stat.Mean(values, nil)
			}
		}

		for _, j := range catCols {
			counts, total := valueCounts(segmented, rows, j)
			pct := make(map[string]float64, len(counts))
			for v, n := range counts {
				pct[v] = round2(float64(n) / float64(total))
			}
			s.Counts[columns[j]] = counts
			s.Percentages[columns[j]] = pct
		}

		out[id] = s
	}

	return out, nil
}

// SegmentIDs returns the ids of summaries in ascending order.
func SegmentIDs(summaries map[int]SegmentSummary) []int {
	ids := make([]int, 0, len(summaries))
	for id := range summaries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func valueCounts(d *dataset.Dataset, rows []int, col int) (map[string]int, int) {
	counts := make(map[string]int)
	total := 0
	for _, i := range rows {
		cell := d.Cell(i, col)
		if cell.IsMissing() {
			continue
		}
		counts[cell.String()]++
		total++
	}
	return counts, total
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
