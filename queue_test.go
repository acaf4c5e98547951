package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontierPopsClosestFirst(t *testing.T) {
	q := newFrontier(4)
	for i, d := range []float32{0.5, 0.1, 0.9, 0.3} {
		q.push(candidate{id: int32(i), dist: d})
	}

	var got []int32
	for q.Len() > 0 {
		got = append(got, q.pop().id)
	}
	assert.Equal(t, []int32{1, 3, 0, 2}, got)
}

func TestResultSetBounded(t *testing.T) {
	q := newResultSet(3)
	for i, d := range []float32{0.5, 0.1, 0.9, 0.3, 0.7, 0.2} {
		q.pushBounded(candidate{id: int32(i), dist: d}, 3)
		require.LessOrEqual(t, q.Len(), 3)
	}

	assert.Equal(t, float32(0.3), q.top().dist, "worst kept candidate on top")

	got := q.sorted()
	assert.Equal(t, []candidate{{1, 0.1}, {5, 0.2}, {3, 0.3}}, got)
	assert.Equal(t, 0, q.Len())
}

func TestSortCandidatesStable(t *testing.T) {
	cs := []candidate{{3, 1}, {1, 0.5}, {2, 1}, {0, 0.5}}
	sortCandidates(cs)
	assert.Equal(t, []candidate{{1, 0.5}, {0, 0.5}, {3, 1}, {2, 1}}, cs)
}

func TestVisitedPoolClears(t *testing.T) {
	p := newVisitedPool()

	bm := p.get()
	assert.True(t, visit(bm, 5))
	assert.False(t, visit(bm, 5))
	assert.True(t, visit(bm, -5))
	p.put(bm)

	bm = p.get()
	assert.True(t, bm.IsEmpty())
	p.put(bm)
}
