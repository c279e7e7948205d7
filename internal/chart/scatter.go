// Package chart renders segmentations as images.
package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/rake220/customer-segmentation/internal/apperr"
	"github.com/rake220/customer-segmentation/internal/dataset"
)

const (
	DefaultSize = 6 * vg.Inch
	MaxSize     = 20 * vg.Inch
)

// SegmentScatter plots column y against column x with one colour per segment and a
// cross at each segment's mean. Rows missing either value are skipped.
func SegmentScatter(d *dataset.Dataset, segmentColumn, x, y string, size vg.Length) ([]byte, error) {
	segCol, ok := d.ColumnIndex(segmentColumn)
	if !ok {
		return nil, apperr.PreconditionMissing("No segmentation performed yet.")
	}
	xCol, yCol, err := numericColumns(d, x, y)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	points := make(map[int]plotter.XYs)
	var segments []int
	for i := 0; i < d.NumRows(); i++ {
		label, ok := d.Cell(i, segCol).Int()
		if !ok {
			continue
		}
		xv, xok := d.Cell(i, xCol).Number()
		yv, yok := d.Cell(i, yCol).Number()
		if !xok || !yok {
			continue
		}
		seg := int(label)
		if _, seen := points[seg]; !seen {
			segments = append(segments, seg)
		}
		points[seg] = append(points[seg], plotter.XY{X: xv, Y: yv})
	}
	if len(segments) == 0 {
		return nil, apperr.InvalidInput("No rows have values for both %s and %s", x, y)
	}
	sort.Ints(segments)

	p := plot.New()
	p.Title.Text = "Customer segments"
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Legend.Top = true

	centroids := make(plotter.XYs, 0, len(segments))
	for i, seg := range segments {
		pts := points[seg]
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to plot segment %d: %w", seg, err)
		}
		s.Color = plotutil.Color(i)
		s.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("Segment %d", seg), s)

		centroids = append(centroids, mean(pts))
	}

	c, err := plotter.NewScatter(centroids)
	if err != nil {
		return nil, fmt.Errorf("failed to plot centroids: %w", err)
	}
	c.Color = color.RGBA{A: 255}
	c.Shape = draw.CrossGlyph{}
	c.Radius = vg.Points(5)
	p.Add(c)

	w, err := p.WriterTo(size, size, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func numericColumns(d *dataset.Dataset, x, y string) (int, int, error) {
	var missing []string
	for _, name := range []string{x, y} {
		if name == "" || !d.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return 0, 0, apperr.InvalidInput("Columns not found in data: %s", strings.Join(missing, ", "))
	}
	for _, name := range []string{x, y} {
		if kind, _ := d.Kind(name); kind != dataset.Numeric {
			return 0, 0, apperr.InvalidInput("Column '%s' is not numeric", name)
		}
	}
	xCol, _ := d.ColumnIndex(x)
	yCol, _ := d.ColumnIndex(y)
	return xCol, yCol, nil
}

func mean(pts plotter.XYs) plotter.XY {
	var m plotter.XY
	for _, pt := range pts {
		m.X += pt.X
		m.Y += pt.Y
	}
	n := float64(len(pts))
	m.X /= n
	m.Y /= n
	return m
}
