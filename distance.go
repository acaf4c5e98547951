package hnsw

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/blas/gonum"
)

// DistanceFunc computes a dissimilarity between two vectors of equal length.
// Smaller values mean more similar.
type DistanceFunc func(a, b []float32) float32

// Metric selects one of the supported distance functions.
type Metric int

const (
	// Euclidean is the L2 norm of the difference. It is the default metric.
	Euclidean Metric = iota
	// Cosine is 1 - cos(a, b), in [0, 2].
	Cosine
	// DotProduct is the negated inner product. Values may be negative.
	DotProduct
)

var blas32 = gonum.Implementation{}

func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case Cosine:
		return "cosine"
	case DotProduct:
		return "dot"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// Func returns the distance function for m, or nil if m is unknown.
func (m Metric) Func() DistanceFunc {
	switch m {
	case Euclidean:
		return EuclideanDistance
	case Cosine:
		return CosineDistance
	case DotProduct:
		return DotProductDistance
	default:
		return nil
	}
}

// ParseMetric parses a metric name as used in configuration files.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "euclidean", "l2":
		return Euclidean, nil
	case "cosine":
		return Cosine, nil
	case "dot", "dotproduct", "dot_product", "ip":
		return DotProduct, nil
	default:
		return 0, fmt.Errorf("%w: unknown metric %q", ErrInvalidConfig, s)
	}
}

// EuclideanDistance returns sqrt(sum((a[i]-b[i])^2)).
func EuclideanDistance(a, b []float32) float32 {
	var sum float32
	i := 0
	for ; i <= len(a)-4; i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		sum += d0*d0 + d1*d1 + d2*d2 + d3*d3
	}
	for ; i < len(a); i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// CosineDistance returns 1 - (a.b)/(|a||b|). If either vector has zero norm
// the result is 1.
func CosineDistance(a, b []float32) float32 {
	n := len(a)
	dot := blas32.Sdot(n, a, 1, b, 1)
	normA := blas32.Sdot(n, a, 1, a, 1)
	normB := blas32.Sdot(n, b, 1, b, 1)
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(float32(math.Sqrt(float64(normA)))*float32(math.Sqrt(float64(normB))))
}

// DotProductDistance returns -(a.b).
func DotProductDistance(a, b []float32) float32 {
	return -blas32.Sdot(len(a), a, 1, b, 1)
}
