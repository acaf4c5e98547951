package hnsw

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	h, err := New(WithMetrics(m), WithM(2), WithMMax0(1), WithSeed(1))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, h.Insert([]float32{float32(i), float32(i % 3)}, int32(i)))
	}
	assert.Error(t, h.Insert([]float32{0, 0}, 3))
	assert.Error(t, h.Insert([]float32{0}, 11))

	for i := 0; i < 3; i++ {
		_, err := h.Search([]float32{1, 1}, 2)
		require.NoError(t, err)
	}
	// k <= 0 short-circuits and is not counted.
	_, err = h.Search([]float32{1, 1}, 0)
	require.NoError(t, err)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.Inserts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InsertErrors))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Searches))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.Nodes))
	assert.Equal(t, float64(h.MaxLevel()), testutil.ToFloat64(m.MaxLevel))
	assert.Greater(t, testutil.ToFloat64(m.PrunedEdges), 0.0, "layer 0 cap below m must prune")
	assert.Equal(t, 1, testutil.CollectAndCount(m.SearchDuration))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"test_hnsw_inserts_total",
		"test_hnsw_insert_errors_total",
		"test_hnsw_searches_total",
		"test_hnsw_search_duration_seconds",
		"test_hnsw_pruned_edges_total",
		"test_hnsw_nodes",
		"test_hnsw_max_level",
	}, names)
}

func TestMetricsOnLoad(t *testing.T) {
	src := buildIndex(t, [][]float32{{1}, {2}, {3}, {4}}, WithSeed(1))
	var buf bytes.Buffer
	require.NoError(t, src.Save(&buf))

	m := NewMetrics(nil, "")
	loaded, err := Load(&buf, WithMetrics(m))
	require.NoError(t, err)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Nodes))
	assert.Equal(t, float64(loaded.MaxLevel()), testutil.ToFloat64(m.MaxLevel))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Inserts))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.observeInsert(1, 0)
	m.observeInsertError()
	m.observeSearch(0)
	m.observePruned(3)
	m.observeLoad(1, 0)
}
