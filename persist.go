package hnsw

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Stream layout, all fields big-endian and fixed width:
//
//	int32 m, int32 efConstruction, int32 mMax, int32 mMax0, float32 mL
//	int32 maxLevel, int32 entryPointId (-1 when empty), int32 nodeCount
//	per node: int32 id, int32 level, int32 vectorLength, float32[vectorLength]
//	          then per layer 0..level: int32 neighborCount, int32[neighborCount]
//
// There is no magic number or version; readers must know the schema.

// maxStoredLevel bounds the level fields accepted by Load.
const maxStoredLevel = 1 << 12

// Save writes the complete index state to w.
func (h *Index) Save(w io.Writer) error {
	enc := &encoder{w: bufio.NewWriter(w)}

	enc.int32(int32(h.m))
	enc.int32(int32(h.efConstruction))
	enc.int32(int32(h.mMax))
	enc.int32(int32(h.mMax0))
	enc.float32(float32(h.ml))
	enc.int32(int32(h.maxLevel))
	if len(h.nodes) == 0 {
		enc.int32(-1)
	} else {
		enc.int32(h.entryPoint)
	}
	enc.int32(int32(len(h.nodes)))

	for _, id := range h.order {
		n := h.nodes[id]
		enc.int32(n.id)
		enc.int32(int32(n.level))
		enc.int32(int32(len(n.vector)))
		for _, v := range n.vector {
			enc.float32(v)
		}
		for _, conns := range n.connections {
			enc.int32(int32(len(conns)))
			for _, nid := range conns {
				enc.int32(nid)
			}
		}
	}

	if err := enc.flush(); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	h.logger.Info("index saved", "nodes", len(h.nodes), "max_level", h.maxLevel)
	return nil
}

// Load reads an index written by Save. The stored graph parameters take
// precedence over any passed as options; the metric is not stored and
// defaults to Euclidean.
//
// Edges pointing at ids that are not part of the stream are dropped and
// logged, unless WithStrictLoad is given, in which case Load fails with an
// *UnresolvedNeighborError.
func Load(r io.Reader, opts ...Option) (*Index, error) {
	dec := &decoder{r: bufio.NewReader(r)}
	o := buildOptions(opts)

	o.m = int(dec.int32("m"))
	o.efConstruction = int(dec.int32("efConstruction"))
	o.mMax = int(dec.int32("mMax"))
	o.mMax0 = int(dec.int32("mMax0"))
	o.ml = float64(dec.float32("mL"))
	o.mlSet = true
	maxLevel := int(dec.int32("maxLevel"))
	entryID := dec.int32("entryPointId")
	count := dec.int32("nodeCount")
	if dec.err != nil {
		return nil, dec.err
	}
	if o.mMax == 0 || o.mMax0 == 0 {
		return nil, &DecodeError{Field: "header", Err: fmt.Errorf("zero degree cap (mMax=%d, mMax0=%d)", o.mMax, o.mMax0)}
	}
	if err := o.resolve(); err != nil {
		return nil, &DecodeError{Field: "header", Err: err}
	}
	if count < 0 {
		return nil, &DecodeError{Field: "nodeCount", Err: fmt.Errorf("negative count %d", count)}
	}

	h := newIndex(o)
	if count == 0 {
		h.metrics.observeLoad(0, -1)
		h.logger.Info("index loaded", "nodes", 0)
		return h, nil
	}
	if maxLevel < 0 || maxLevel > maxStoredLevel {
		return nil, &DecodeError{Field: "maxLevel", Err: fmt.Errorf("level %d out of range with %d nodes", maxLevel, count)}
	}

	// Pass 1: nodes without edges.
	pending := make(map[int32][][]int32, min(count, 1<<16))
	for i := int32(0); i < count; i++ {
		n, conns, err := dec.node(maxLevel)
		if err != nil {
			return nil, err
		}
		if _, dup := h.nodes[n.id]; dup {
			return nil, &DecodeError{Field: "node id", Err: fmt.Errorf("id %d appears twice", n.id)}
		}
		if h.dim == 0 {
			h.dim = len(n.vector)
		} else if len(n.vector) != h.dim {
			return nil, &DecodeError{Field: "vector", Err: &DimensionMismatchError{Expected: h.dim, Actual: len(n.vector)}}
		}
		h.nodes[n.id] = n
		h.order = append(h.order, n.id)
		pending[n.id] = conns
	}

	entry, ok := h.nodes[entryID]
	if !ok {
		return nil, &DecodeError{Field: "entryPointId", Err: fmt.Errorf("id %d is not a stored node", entryID)}
	}
	if entry.level != maxLevel {
		return nil, &DecodeError{Field: "entryPointId", Err: fmt.Errorf("entry point level %d differs from maxLevel %d", entry.level, maxLevel)}
	}
	h.entryPoint = entryID
	h.maxLevel = maxLevel

	// Pass 2: resolve edges.
	dropped := 0
	for _, id := range h.order {
		n := h.nodes[id]
		for lvl, ids := range pending[id] {
			conns := make([]int32, 0, len(ids))
			for _, nid := range ids {
				nbr, ok := h.nodes[nid]
				if !ok {
					if o.strictLoad {
						return nil, &UnresolvedNeighborError{NodeID: id, NeighborID: nid, Layer: lvl}
					}
					dropped++
					continue
				}
				if nbr.level < lvl {
					return nil, &DecodeError{Field: "neighbor id", Err: fmt.Errorf("node %d links %d at layer %d above its level %d", id, nid, lvl, nbr.level)}
				}
				conns = append(conns, nid)
			}
			if len(conns) == 0 {
				conns = nil
			}
			n.connections[lvl] = conns
		}
	}
	if dropped > 0 {
		h.logger.Warn("dropped unresolved neighbor references", "count", dropped)
	}

	h.metrics.observeLoad(len(h.nodes), h.maxLevel)
	h.logger.Info("index loaded", "nodes", len(h.nodes), "max_level", h.maxLevel, "dimension", h.dim)
	return h, nil
}

// encoder writes big-endian fields and remembers the first error.
type encoder struct {
	w   *bufio.Writer
	buf [4]byte
	err error
}

func (e *encoder) int32(v int32) {
	if e.err != nil {
		return
	}
	binary.BigEndian.PutUint32(e.buf[:], uint32(v))
	_, e.err = e.w.Write(e.buf[:])
}

func (e *encoder) float32(v float32) {
	e.int32(int32(math.Float32bits(v)))
}

func (e *encoder) flush() error {
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// decoder reads big-endian fields and converts the first failure into a
// *DecodeError naming the field.
type decoder struct {
	r   *bufio.Reader
	buf [4]byte
	err error
}

func (d *decoder) int32(field string) int32 {
	if d.err != nil {
		return 0
	}
	if _, err := io.ReadFull(d.r, d.buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		d.err = &DecodeError{Field: field, Err: err}
		return 0
	}
	return int32(binary.BigEndian.Uint32(d.buf[:]))
}

func (d *decoder) float32(field string) float32 {
	return math.Float32frombits(uint32(d.int32(field)))
}

// node reads one node record. Neighbor ids are returned unresolved.
func (d *decoder) node(maxLevel int) (*node, [][]int32, error) {
	id := d.int32("node id")
	level := int(d.int32("node level"))
	vecLen := int(d.int32("vector length"))
	if d.err != nil {
		return nil, nil, d.err
	}
	if level < 0 || level > maxLevel {
		return nil, nil, &DecodeError{Field: "node level", Err: fmt.Errorf("node %d has level %d outside 0..%d", id, level, maxLevel)}
	}
	if vecLen <= 0 {
		return nil, nil, &DecodeError{Field: "vector length", Err: fmt.Errorf("node %d has vector length %d", id, vecLen)}
	}

	// Lengths come from untrusted input; grow instead of preallocating.
	vec := make([]float32, 0, min(vecLen, 1<<16))
	for i := 0; i < vecLen && d.err == nil; i++ {
		vec = append(vec, d.float32("vector"))
	}

	conns := make([][]int32, level+1)
	for lvl := range conns {
		count := int(d.int32("neighbor count"))
		if d.err != nil {
			return nil, nil, d.err
		}
		if count < 0 {
			return nil, nil, &DecodeError{Field: "neighbor count", Err: fmt.Errorf("node %d layer %d has count %d", id, lvl, count)}
		}
		ids := make([]int32, 0, min(count, 1024))
		for j := 0; j < count && d.err == nil; j++ {
			ids = append(ids, d.int32("neighbor id"))
		}
		conns[lvl] = ids
	}
	if d.err != nil {
		return nil, nil, d.err
	}
	return newNode(id, vec, level), conns, nil
}
