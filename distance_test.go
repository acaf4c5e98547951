package hnsw

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEuclideanDistance(t *testing.T) {
	assert.InDelta(t, math.Sqrt(27), EuclideanDistance([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-5)
	assert.Equal(t, float32(0), EuclideanDistance([]float32{1, 2, 3}, []float32{1, 2, 3}))

	// Exercise both the unrolled body and the tail.
	a := []float32{1, 1, 1, 1, 1, 1, 1}
	b := []float32{0, 0, 0, 0, 0, 0, 0}
	assert.InDelta(t, math.Sqrt(7), EuclideanDistance(a, b), 1e-6)
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"Orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"Same", []float32{1, 0}, []float32{1, 0}, 0},
		{"Opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"ScaleInvariant", []float32{3, 4}, []float32{6, 8}, 0},
		{"ZeroA", []float32{0, 0}, []float32{1, 2}, 1},
		{"ZeroB", []float32{1, 2}, []float32{0, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineDistance(tt.a, tt.b), 1e-6)
		})
	}
}

func TestDotProductDistance(t *testing.T) {
	assert.Equal(t, float32(-11), DotProductDistance([]float32{1, 2}, []float32{3, 4}))
	assert.Equal(t, float32(5), DotProductDistance([]float32{1, 2}, []float32{-1, -2}))
}

func TestParseMetric(t *testing.T) {
	tests := map[string]Metric{
		"":            Euclidean,
		"euclidean":   Euclidean,
		"L2":          Euclidean,
		"cosine":      Cosine,
		" Cosine ":    Cosine,
		"dot":         DotProduct,
		"dot_product": DotProduct,
		"ip":          DotProduct,
	}
	for in, want := range tests {
		got, err := ParseMetric(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMetric("manhattan")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMetricString(t *testing.T) {
	for _, m := range []Metric{Euclidean, Cosine, DotProduct} {
		parsed, err := ParseMetric(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
		assert.NotNil(t, m.Func())
	}
	assert.Equal(t, "Metric(9)", Metric(9).String())
	assert.Nil(t, Metric(9).Func())
}

func BenchmarkEuclideanDistance(b *testing.B) {
	x := make([]float32, 128)
	y := make([]float32, 128)
	for i := range x {
		x[i] = float32(i)
		y[i] = float32(128 - i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EuclideanDistance(x, y)
	}
}
