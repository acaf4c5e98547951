package hnsw

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrowRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	h := buildIndex(t, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}}, WithSeed(2))

	rec, err := h.ArrowRecord(mem)
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, int64(4), rec.NumRows())
	require.True(t, rec.Schema().Equal(ArrowSchema(3)))

	ids := rec.Column(0).(*array.Int32)
	levels := rec.Column(1).(*array.Int32)
	vectors := rec.Column(2).(*array.FixedSizeList)
	values := vectors.ListValues().(*array.Float32)
	neighbors := rec.Column(3).(*array.List)
	neighborIDs := neighbors.ListValues().(*array.Int32)

	for row, id := range h.IDs() {
		n := h.nodes[id]
		assert.Equal(t, id, ids.Value(row))
		assert.Equal(t, int32(n.level), levels.Value(row))
		assert.Equal(t, n.vector, values.Float32Values()[row*3:(row+1)*3])

		start, end := neighbors.ValueOffsets(row)
		assert.Equal(t, n.connections[0], neighborIDs.Int32Values()[start:end])
	}
}

func TestArrowRecordEmpty(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	_, err = h.ArrowRecord(nil)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestWriteArrow(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	h := buildIndex(t, [][]float32{{1, 2}, {3, 4}}, WithSeed(1))
	rec, err := h.ArrowRecord(mem)
	require.NoError(t, err)
	defer rec.Release()

	var buf bytes.Buffer
	require.NoError(t, WriteArrow(&buf, rec, mem))

	rdr, err := ipc.NewReader(&buf, ipc.WithAllocator(mem))
	require.NoError(t, err)
	defer rdr.Release()

	var rows int64
	for rdr.Next() {
		got := rdr.Record()
		assert.True(t, got.Schema().Equal(rec.Schema()))
		assert.True(t, array.RecordEqual(rec, got))
		rows += got.NumRows()
	}
	require.NoError(t, rdr.Err())
	assert.Equal(t, int64(2), rows)
	assert.Equal(t, arrow.FIXED_SIZE_LIST, rdr.Schema().Field(2).Type.ID())
}
