// Package evaluation scores how well a label vector separates a feature matrix.
package evaluation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/rake220/customer-segmentation/pkg/logger"
)

const defaultMaxSilhouetteRows = 2000

// Report holds internal validity scores. Silhouette and CalinskiHarabasz are nil when
// undefined, which is the case unless 2 <= clusters <= rows-1.
type Report struct {
	Clusters         int      `json:"clusters"`
	Inertia          float64  `json:"inertia"`
	Silhouette       *float64 `json:"silhouette"`
	CalinskiHarabasz *float64 `json:"calinski_harabasz"`
	// SilhouetteRows is the number of rows the silhouette was computed on.
	SilhouetteRows int `json:"silhouette_rows"`
}

type Evaluator struct {
	maxSilhouetteRows int
}

// NewEvaluator bounds the quadratic silhouette computation to maxSilhouetteRows rows,
// taken at an even stride. Zero selects the default.
func NewEvaluator(maxSilhouetteRows int) *Evaluator {
	if maxSilhouetteRows <= 0 {
		maxSilhouetteRows = defaultMaxSilhouetteRows
	}
	return &Evaluator{maxSilhouetteRows: maxSilhouetteRows}
}

func (e *Evaluator) Evaluate(ctx context.Context, X [][]float64, labels []int) (*Report, error) {
	if len(X) != len(labels) {
		return nil, fmt.Errorf("%d labels for %d rows", len(labels), len(X))
	}
	if len(X) == 0 {
		return nil, fmt.Errorf("no rows to evaluate")
	}

	k := 0
	for _, l := range labels {
		if l < 0 {
			return nil, fmt.Errorf("negative label %d", l)
		}
		if l+1 > k {
			k = l + 1
		}
	}

	centroids, sizes := centroids(X, labels, k)
	clusters := 0
	for _, size := range sizes {
		if size > 0 {
			clusters++
		}
	}

	report := &Report{
		Clusters: clusters,
		Inertia:  inertia(X, labels, centroids),
	}

	if clusters < 2 || clusters > len(X)-1 {
		return report, nil
	}

	ch := calinskiHarabasz(X, labels, centroids, sizes, clusters, report.Inertia)
	report.CalinskiHarabasz = &ch

	sample := strideSample(len(X), e.maxSilhouetteRows)
	s, err := silhouette(ctx, X, labels, k, sample)
	if err != nil {
		return nil, err
	}
	report.Silhouette = &s
	report.SilhouetteRows = len(sample)

	logger.Debug("Segmentation evaluated",
		zap.Int("clusters", clusters),
		zap.Float64("inertia", report.Inertia),
		zap.Float64("silhouette", s),
		zap.Float64("calinski_harabasz", ch),
	)

	return report, nil
}

func centroids(X [][]float64, labels []int, k int) ([][]float64, []int) {
	dim := len(X[0])
	centers := make([][]float64, k)
	for c := range centers {
		centers[c] = make([]float64, dim)
	}
	sizes := make([]int, k)
	for i, row := range X {
		floats.Add(centers[labels[i]], row)
		sizes[labels[i]]++
	}
	for c, size := range sizes {
		if size > 0 {
			floats.Scale(1/float64(size), centers[c])
		}
	}
	return centers, sizes
}

func inertia(X [][]float64, labels []int, centers [][]float64) float64 {
	var total float64
	for i, row := range X {
		d := floats.Distance(row, centers[labels[i]], 2)
		total += d * d
	}
	return total
}

// calinskiHarabasz is the ratio of between- to within-cluster dispersion, each
// normalised by its degrees of freedom. Zero within-cluster dispersion scores 1.
func calinskiHarabasz(X [][]float64, labels []int, centers [][]float64, sizes []int, clusters int, within float64) float64 {
	if within == 0 {
		return 1
	}

	mean := make([]float64, len(X[0]))
	for _, row := range X {
		floats.Add(mean, row)
	}
	floats.Scale(1/float64(len(X)), mean)

	var between float64
	for c, size := range sizes {
		if size == 0 {
			continue
		}
		d := floats.Distance(centers[c], mean, 2)
		between += float64(size) * d * d
	}

	n := float64(len(X))
	kk := float64(clusters)
	return between * (n - kk) / (within * (kk - 1))
}

// silhouette averages (b-a)/max(a,b) over the sampled rows, where a is the mean
// distance to the row's own cluster and b the smallest mean distance to another
// cluster. Rows alone in their cluster score 0.
func silhouette(ctx context.Context, X [][]float64, labels []int, k int, sample []int) (float64, error) {
	sampleSizes := make([]int, k)
	for _, i := range sample {
		sampleSizes[labels[i]]++
	}

	sums := make([]float64, k)
	var total float64
	for _, i := range sample {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		own := labels[i]
		if sampleSizes[own] <= 1 {
			continue
		}

		for c := range sums {
			sums[c] = 0
		}
		for _, j := range sample {
			if i == j {
				continue
			}
			sums[labels[j]] += floats.Distance(X[i], X[j], 2)
		}

		a := sums[own] / float64(sampleSizes[own]-1)
		b := -1.0
		for c, sum := range sums {
			if c == own || sampleSizes[c] == 0 {
				continue
			}
			if m := sum / float64(sampleSizes[c]); b < 0 || m < b {
				b = m
			}
		}
		if b < 0 {
			continue
		}

		if denom := max(a, b); denom > 0 {
			total += (b - a) / denom
		}
	}

	return total / float64(len(sample)), nil
}

func strideSample(n, limit int) []int {
	if n <= limit {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = i
		}
		return sample
	}
	sample := make([]int, limit)
	for i := range sample {
		sample[i] = i * n / limit
	}
	return sample
}
