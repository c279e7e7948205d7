// Package cluster assigns feature matrix rows to segments.
package cluster

import (
	"context"
	"math"
	"strings"

	"github.com/rake220/customer-segmentation/internal/apperr"
)

type Algorithm string

const (
	KMeans        Algorithm = "kmeans"
	Agglomerative Algorithm = "agglomerative"
)

// ParseAlgorithm accepts algorithm names case-insensitively.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "kmeans", "k-means":
		return KMeans, nil
	case "agglomerative", "hierarchical":
		return Agglomerative, nil
	default:
		return "", apperr.InvalidInput("Unsupported algorithm '%s'", name)
	}
}

type Options struct {
	Algorithm Algorithm
	Clusters  int
	// Linkage applies to Agglomerative only; empty means ward.
	Linkage Linkage
	Seed    int64
	MaxIter int
	NInit   int
	// MaxAgglomerativeRows bounds the quadratic distance matrix; zero disables the check.
	MaxAgglomerativeRows int
}

func DefaultOptions() Options {
	return Options{
		Algorithm:            KMeans,
		Clusters:             3,
		Linkage:              Ward,
		Seed:                 42,
		MaxIter:              300,
		NInit:                10,
		MaxAgglomerativeRows: 5000,
	}
}

// Segment returns one label in [0, Clusters) per row of X. Results are deterministic
// for identical input and options.
func Segment(ctx context.Context, X [][]float64, opts Options) ([]int, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, apperr.ComputationFailure("No valid data to cluster")
	}
	if opts.Clusters < 1 || opts.Clusters > len(X) {
		return nil, apperr.ComputationFailure(
			"Clustering failed: n_samples=%d should be >= n_clusters=%d (n_clusters must be at least 1)",
			len(X), opts.Clusters)
	}

	switch opts.Algorithm {
	case KMeans:
		m := NewKMeans(opts.Clusters, opts.MaxIter, opts.NInit, opts.Seed)
		if err := m.Fit(ctx, X); err != nil {
			return nil, err
		}
		if len(m.Labels) != len(X) {
			return nil, apperr.ComputationFailure("Clustering failed: %d labels for %d rows", len(m.Labels), len(X))
		}
		return m.Labels, nil
	case Agglomerative:
		if opts.MaxAgglomerativeRows > 0 && len(X) > opts.MaxAgglomerativeRows {
			return nil, apperr.ComputationFailure(
				"Clustering failed: agglomerative clustering supports at most %d rows, got %d",
				opts.MaxAgglomerativeRows, len(X))
		}
		linkage := opts.Linkage
		if linkage == "" {
			linkage = Ward
		}
		return agglomerate(ctx, X, opts.Clusters, linkage)
	default:
		return nil, apperr.InvalidInput("Unsupported algorithm '%s'", opts.Algorithm)
	}
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// errOverflow reports feature values whose distances do not fit in a float64.
func errOverflow() error {
	return apperr.ComputationFailure("Clustering failed: feature values are too large to compare; rescale the data")
}
