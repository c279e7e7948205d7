package cluster

import (
	"context"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/rake220/customer-segmentation/internal/apperr"
)

type Linkage string

const (
	Ward     Linkage = "ward"
	Complete Linkage = "complete"
	Average  Linkage = "average"
	Single   Linkage = "single"
)

func ParseLinkage(name string) (Linkage, error) {
	switch l := Linkage(strings.ToLower(strings.TrimSpace(name))); l {
	case "":
		return Ward, nil
	case Ward, Complete, Average, Single:
		return l, nil
	default:
		return "", apperr.InvalidInput("Unsupported linkage '%s'", name)
	}
}

// condensed stores the upper triangle of a symmetric n×n matrix.
type condensed struct {
	n    int
	data []float64
}

func newCondensed(n int) *condensed {
	return &condensed{n: n, data: make([]float64, n*(n-1)/2)}
}

func (c *condensed) index(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return i*c.n - i*(i+1)/2 + (j - i - 1)
}

func (c *condensed) at(i, j int) float64 {
	return c.data[c.index(i, j)]
}

func (c *condensed) set(i, j int, v float64) {
	c.data[c.index(i, j)] = v
}

// agglomerate merges clusters bottom up until k remain. Each cluster lives in the
// slot of its smallest row index. The closest pair merges first; ties go to the lowest
// (i, j). Labels are numbered in order of each cluster's first row.
func agglomerate(ctx context.Context, X [][]float64, k int, linkage Linkage) ([]int, error) {
	n := len(X)
	labels := make([]int, n)
	if n == 1 {
		return labels, nil
	}

	dist := newCondensed(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(X[i], X[j], 2)
			if linkage == Ward {
				d *= d
			}
			if !finite(d) {
				return nil, errOverflow()
			}
			dist.set(i, j, d)
		}
	}

	active := make([]bool, n)
	size := make([]int, n)
	parent := make([]int, n)
	for i := range active {
		active[i] = true
		size[i] = 1
		parent[i] = i
	}

	nn := make([]int, n)
	nnDist := make([]float64, n)
	nearest := func(i int) {
		nn[i], nnDist[i] = -1, math.Inf(1)
		for j := i + 1; j < n; j++ {
			if active[j] && dist.at(i, j) < nnDist[i] {
				nn[i], nnDist[i] = j, dist.at(i, j)
			}
		}
	}
	for i := 0; i < n; i++ {
		nearest(i)
	}

	for remaining := n; remaining > k; remaining-- {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Wrap(apperr.KindComputationFailure, err, "Clustering cancelled")
		}

		a := -1
		for i := 0; i < n; i++ {
			if active[i] && nn[i] >= 0 && (a < 0 || nnDist[i] < nnDist[a]) {
				a = i
			}
		}
		if a < 0 {
			return nil, errOverflow()
		}
		b := nn[a]

		for h := 0; h < n; h++ {
			if !active[h] || h == a || h == b {
				continue
			}
			dist.set(a, h, lanceWilliams(linkage, dist.at(a, h), dist.at(b, h), dist.at(a, b), size[a], size[b], size[h]))
		}
		active[b] = false
		parent[b] = a
		size[a] += size[b]

		nearest(a)
		for h := 0; h < n; h++ {
			if !active[h] || h == a {
				continue
			}
			switch {
			case nn[h] == a || nn[h] == b:
				nearest(h)
			case h < a:
				if d := dist.at(h, a); d < nnDist[h] || (d == nnDist[h] && a < nn[h]) {
					nn[h], nnDist[h] = a, d
				}
			}
		}
	}

	label := make(map[int]int)
	for i := 0; i < n; i++ {
		root := find(parent, i)
		id, ok := label[root]
		if !ok {
			id = len(label)
			label[root] = id
		}
		labels[i] = id
	}
	return labels, nil
}

func lanceWilliams(linkage Linkage, dA, dB, dAB float64, nA, nB, nH int) float64 {
	switch linkage {
	case Single:
		return math.Min(dA, dB)
	case Complete:
		return math.Max(dA, dB)
	case Average:
		return (float64(nA)*dA + float64(nB)*dB) / float64(nA+nB)
	default:
		total := float64(nA + nB + nH)
		return (float64(nA+nH)*dA + float64(nB+nH)*dB - float64(nH)*dAB) / total
	}
}

func find(parent []int, i int) int {
	for parent[i] != i {
		parent[i] = parent[parent[i]]
		i = parent[i]
	}
	return i
}
