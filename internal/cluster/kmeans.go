package cluster

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/rake220/customer-segmentation/internal/apperr"
)

// KMeansModel partitions rows into K clusters by Lloyd iterations from k-means++ seeds.
type KMeansModel struct {
	K         int
	MaxIter   int
	NInit     int
	Seed      int64
	Centroids [][]float64
	Labels    []int
	Inertia   float64 // sum of squared distances to the assigned centroid
}

func NewKMeans(k, maxIter, nInit int, seed int64) *KMeansModel {
	if maxIter <= 0 {
		maxIter = 300
	}
	if nInit <= 0 {
		nInit = 1
	}
	return &KMeansModel{
		K:       k,
		MaxIter: maxIter,
		NInit:   nInit,
		Seed:    seed,
	}
}

// Fit runs NInit restarts from one seeded source and keeps the lowest inertia.
func (m *KMeansModel) Fit(ctx context.Context, X [][]float64) error {
	if len(X) == 0 {
		return apperr.ComputationFailure("No valid data to cluster")
	}
	if m.K < 1 || len(X) < m.K {
		return apperr.ComputationFailure("Clustering failed: n_samples=%d should be >= n_clusters=%d", len(X), m.K)
	}

	rng := rand.New(rand.NewSource(m.Seed))
	best := math.Inf(1)
	for run := 0; run < m.NInit; run++ {
		centroids := initCenters(X, m.K, rng)
		labels, inertia, err := lloyd(ctx, X, centroids, m.MaxIter)
		if err != nil {
			return err
		}
		if !finite(inertia) {
			return errOverflow()
		}
		if run == 0 || inertia < best {
			best = inertia
			m.Centroids = centroids
			m.Labels = labels
			m.Inertia = inertia
		}
	}
	return nil
}

// Predict assigns rows to the nearest fitted centroid.
func (m *KMeansModel) Predict(X [][]float64) ([]int, error) {
	if len(m.Centroids) == 0 {
		return nil, apperr.ComputationFailure("k-means model is not fitted")
	}
	labels := make([]int, len(X))
	assign(X, m.Centroids, labels)
	return labels, nil
}

func lloyd(ctx context.Context, X [][]float64, centroids [][]float64, maxIter int) ([]int, float64, error) {
	n, p := len(X), len(X[0])
	k := len(centroids)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, p)
	}
	counts := make([]int, k)

	for it := 0; it < maxIter; it++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, apperr.Wrap(apperr.KindComputationFailure, err, "Clustering cancelled")
		}

		if !assign(X, centroids, labels) && it > 0 {
			break
		}

		for c := 0; c < k; c++ {
			floats.Scale(0, sums[c])
			counts[c] = 0
		}
		for i, c := range labels {
			floats.Add(sums[c], X[i])
			counts[c]++
		}
		for c := 0; c < k; c++ {
			// empty clusters keep their previous centroid
			if counts[c] == 0 {
				continue
			}
			floats.ScaleTo(centroids[c], 1/float64(counts[c]), sums[c])
		}
	}

	assign(X, centroids, labels)
	inertia := 0.0
	for i, c := range labels {
		inertia += sqDist(X[i], centroids[c])
	}
	return labels, inertia, nil
}

// assign labels every row with its nearest centroid, lowest index on ties, and reports
// whether any label changed. Rows are split across GOMAXPROCS workers.
func assign(X [][]float64, centroids [][]float64, labels []int) bool {
	n := len(X)
	workers := runtime.GOMAXPROCS(0)
	rowsPerWorker := (n + workers - 1) / workers

	changed := make([]bool, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := start + rowsPerWorker
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				best, bestDist := 0, math.MaxFloat64
				for c, centroid := range centroids {
					if d := sqDist(X[i], centroid); d < bestDist {
						best, bestDist = c, d
					}
				}
				if labels[i] != best {
					labels[i] = best
					changed[w] = true
				}
			}
		}(w, start, end)
	}
	wg.Wait()

	for _, c := range changed {
		if c {
			return true
		}
	}
	return false
}

// initCenters picks k-means++ seeds: the first uniformly, each next one with
// probability proportional to its squared distance from the chosen seeds.
func initCenters(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(X)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), X[rng.Intn(n)]...))

	minDist := make([]float64, n)
	for i := range minDist {
		minDist[i] = sqDist(X[i], centroids[0])
	}

	for len(centroids) < k {
		total := floats.Sum(minDist)
		next := -1
		if total > 0 {
			r := rng.Float64() * total
			cumulative := 0.0
			for i, d := range minDist {
				if d == 0 {
					continue
				}
				cumulative += d
				next = i
				if cumulative >= r {
					break
				}
			}
		}
		if next < 0 {
			// all remaining rows coincide with a seed
			next = rng.Intn(n)
		}

		c := append([]float64(nil), X[next]...)
		centroids = append(centroids, c)
		for i := range minDist {
			if d := sqDist(X[i], c); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return centroids
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}
