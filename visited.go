package hnsw

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// visitedPool hands out cleared bitmaps for tracking visited node ids during
// a layer search. Ids are caller-assigned and may be sparse or negative, so
// they are stored as their uint32 bit pattern.
type visitedPool struct {
	pool sync.Pool
}

func newVisitedPool() *visitedPool {
	return &visitedPool{pool: sync.Pool{New: func() any { return roaring.New() }}}
}

func (p *visitedPool) get() *roaring.Bitmap {
	return p.pool.Get().(*roaring.Bitmap)
}

func (p *visitedPool) put(bm *roaring.Bitmap) {
	bm.Clear()
	p.pool.Put(bm)
}

// visit marks id and reports whether it was unvisited before.
func visit(bm *roaring.Bitmap, id int32) bool {
	return bm.CheckedAdd(uint32(id))
}
