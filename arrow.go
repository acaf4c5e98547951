package hnsw

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ArrowSchema returns the schema of the record produced by ArrowRecord for
// vectors of the given dimension.
func ArrowSchema(dim int) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32},
		{Name: "level", Type: arrow.PrimitiveTypes.Int32},
		{Name: "vector", Type: arrow.FixedSizeListOf(int32(dim), arrow.PrimitiveTypes.Float32)},
		{Name: "neighbors", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)},
	}, nil)
}

// ArrowRecord exports every node as one row (id, level, vector, layer-0
// neighbors) in insertion order. The caller must Release the record.
func (h *Index) ArrowRecord(mem memory.Allocator) (arrow.Record, error) {
	if len(h.nodes) == 0 {
		return nil, ErrEmptyIndex
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	b := array.NewRecordBuilder(mem, ArrowSchema(h.dim))
	defer b.Release()

	ids := b.Field(0).(*array.Int32Builder)
	levels := b.Field(1).(*array.Int32Builder)
	vectors := b.Field(2).(*array.FixedSizeListBuilder)
	values := vectors.ValueBuilder().(*array.Float32Builder)
	neighbors := b.Field(3).(*array.ListBuilder)
	neighborIDs := neighbors.ValueBuilder().(*array.Int32Builder)

	for _, id := range h.order {
		n := h.nodes[id]
		ids.Append(n.id)
		levels.Append(int32(n.level))
		vectors.Append(true)
		values.AppendValues(n.vector, nil)
		neighbors.Append(true)
		neighborIDs.AppendValues(n.connections[0], nil)
	}

	return b.NewRecord(), nil
}

// WriteArrow writes rec to w as an Arrow IPC stream.
func WriteArrow(w io.Writer, rec arrow.Record, mem memory.Allocator) error {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	wr := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := wr.Write(rec); err != nil {
		wr.Close()
		return fmt.Errorf("failed to write arrow record: %w", err)
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("failed to close arrow stream: %w", err)
	}
	return nil
}
