// Package hnsw provides an approximate nearest neighbor index based on
// Hierarchical Navigable Small World graphs.
//
// An Index is not safe for concurrent use. Wrap it with NewLocked, or
// serialize access some other way, when more than one goroutine touches it.
package hnsw

import (
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Index is an HNSW graph over float32 vectors with caller-assigned int32 ids.
type Index struct {
	// HNSW parameters
	m              int
	efConstruction int
	mMax           int
	mMax0          int
	ml             float64
	metric         Metric
	distance       DistanceFunc

	// graph structure
	dim        int
	maxLevel   int
	entryPoint int32
	nodes      map[int32]*node
	order      []int32 // insertion order, used by Save
	levelFunc  func() int

	rng     *rand.Rand
	visited *visitedPool
	logger  *slog.Logger
	metrics *Metrics
}

// New creates an empty index.
func New(opts ...Option) (*Index, error) {
	o := buildOptions(opts)
	if err := o.resolve(); err != nil {
		return nil, err
	}
	return newIndex(o), nil
}

func newIndex(o options) *Index {
	h := &Index{
		m:              o.m,
		efConstruction: o.efConstruction,
		mMax:           o.mMax,
		mMax0:          o.mMax0,
		ml:             o.ml,
		metric:         o.metric,
		distance:       o.metric.Func(),
		maxLevel:       -1,
		entryPoint:     -1,
		nodes:          make(map[int32]*node),
		rng:            o.rng,
		visited:        newVisitedPool(),
		logger:         o.logger,
		metrics:        o.metrics,
	}
	h.levelFunc = h.randomLevel
	return h
}

// randomLevel samples floor(-ln(u) * mL) with u uniform in (0, 1].
func (h *Index) randomLevel() int {
	u := 1 - h.rng.Float64()
	return int(math.Floor(-math.Log(u) * h.ml))
}

// Insert adds vector under id. The vector is copied. The first insert fixes
// the index dimension; later vectors of another length are rejected, as are
// ids that are already present.
func (h *Index) Insert(vector []float32, id int32) error {
	if err := h.insert(vector, id); err != nil {
		h.logger.Debug("insert rejected", "id", id, "error", err)
		h.metrics.observeInsertError()
		return err
	}
	return nil
}

func (h *Index) insert(vector []float32, id int32) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}
	if h.dim != 0 && len(vector) != h.dim {
		return &DimensionMismatchError{Expected: h.dim, Actual: len(vector)}
	}
	if _, ok := h.nodes[id]; ok {
		return ErrDuplicateID
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)

	level := h.levelFunc()
	if level < 0 {
		level = 0
	}
	n := newNode(id, vec, level)

	var cur *node
	var curDist float32
	wasEmpty := len(h.nodes) == 0
	if !wasEmpty {
		cur = h.nodes[h.entryPoint]
		curDist = h.distance(vec, cur.vector)
	}

	h.nodes[id] = n
	h.order = append(h.order, id)
	if h.dim == 0 {
		h.dim = len(vec)
	}

	if !wasEmpty {
		for lvl := h.maxLevel; lvl > level; lvl-- {
			cur, curDist = h.greedySearchLayer(vec, cur, curDist, lvl)
		}

		for lvl := min(level, h.maxLevel); lvl >= 0; lvl-- {
			candidates := h.searchLayer(vec, cur, lvl, h.efConstruction)
			h.mutuallyConnect(n, selectNeighbors(candidates, h.m), lvl)
			if len(candidates) > 0 {
				cur = h.nodes[candidates[0].id]
			}
		}
	}

	if wasEmpty || level > h.maxLevel {
		h.logger.Debug("entry point promoted", "id", id, "level", level, "previous_level", h.maxLevel)
		h.maxLevel = level
		h.entryPoint = id
	}

	h.logger.Debug("insert completed", "id", id, "level", level)
	h.metrics.observeInsert(len(h.nodes), h.maxLevel)
	return nil
}

// greedySearchLayer hill-climbs from cur at layer lvl, moving to the closest
// strictly improving neighbor until none exists.
func (h *Index) greedySearchLayer(query []float32, cur *node, curDist float32, lvl int) (*node, float32) {
	changed := true
	for changed {
		changed = false
		for _, nid := range cur.connections[lvl] {
			nbr := h.nodes[nid]
			if d := h.distance(query, nbr.vector); d < curDist {
				curDist = d
				cur = nbr
				changed = true
			}
		}
	}
	return cur, curDist
}

// searchLayer runs a bounded best-first search at layer lvl starting from
// entry and returns up to ef candidates ordered by ascending distance.
func (h *Index) searchLayer(query []float32, entry *node, lvl, ef int) []candidate {
	if ef < 1 {
		ef = 1
	}

	visited := h.visited.get()
	defer h.visited.put(visited)

	frontier := newFrontier(ef)
	results := newResultSet(ef)

	d0 := h.distance(query, entry.vector)
	frontier.push(candidate{id: entry.id, dist: d0})
	results.push(candidate{id: entry.id, dist: d0})
	visit(visited, entry.id)

	for frontier.Len() > 0 {
		c := frontier.pop()
		if results.Len() >= ef && c.dist > results.top().dist {
			break
		}

		for _, nid := range h.nodes[c.id].connections[lvl] {
			if !visit(visited, nid) {
				continue
			}
			nbr := h.nodes[nid]
			d := h.distance(query, nbr.vector)
			if results.Len() < ef || d < results.top().dist {
				e := candidate{id: nid, dist: d}
				frontier.push(e)
				results.pushBounded(e, ef)
			}
		}
	}

	return results.sorted()
}

// selectNeighbors keeps the m closest candidates. Candidates must already be
// sorted by ascending distance. The diversity heuristic of the HNSW paper is
// intentionally not applied.
func selectNeighbors(candidates []candidate, m int) []candidate {
	if len(candidates) <= m {
		return candidates
	}
	return candidates[:m]
}

// mutuallyConnect links n with every selected neighbor at layer lvl and
// prunes whichever side went over the layer's degree cap.
func (h *Index) mutuallyConnect(n *node, selected []candidate, lvl int) {
	maxConn := h.mMax
	if lvl == 0 {
		maxConn = h.mMax0
	}

	for _, c := range selected {
		n.connections[lvl] = append(n.connections[lvl], c.id)
	}
	if len(n.connections[lvl]) > maxConn {
		h.pruneNeighbors(n, lvl, maxConn)
	}

	for _, c := range selected {
		peer := h.nodes[c.id]
		peer.connections[lvl] = append(peer.connections[lvl], n.id)
		if len(peer.connections[lvl]) > maxConn {
			h.pruneNeighbors(peer, lvl, maxConn)
		}
	}
}

// pruneNeighbors shrinks the adjacency list of nd at lvl to the maxConn
// neighbors closest to nd itself. The dropped neighbors keep their edge back
// to nd, which leaves a legal one-way edge.
func (h *Index) pruneNeighbors(nd *node, lvl, maxConn int) {
	conns := nd.connections[lvl]
	cands := make([]candidate, len(conns))
	for i, nid := range conns {
		cands[i] = candidate{id: nid, dist: h.distance(nd.vector, h.nodes[nid].vector)}
	}
	sortCandidates(cands)

	kept := conns[:0]
	for _, c := range cands[:maxConn] {
		kept = append(kept, c.id)
	}
	nd.connections[lvl] = kept
	h.metrics.observePruned(len(cands) - maxConn)
}

// Search returns the ids of up to k nearest neighbors of query, closest first.
// An empty index yields an empty result for any query.
func (h *Index) Search(query []float32, k int) ([]int32, error) {
	res, err := h.SearchWithDistances(query, k)
	if err != nil {
		return nil, err
	}
	ids := make([]int32, len(res))
	for i, r := range res {
		ids[i] = r.ID
	}
	return ids, nil
}

// SearchWithDistances is Search, also reporting each hit's distance.
func (h *Index) SearchWithDistances(query []float32, k int) ([]Result, error) {
	if len(h.nodes) == 0 || k <= 0 {
		return []Result{}, nil
	}
	if len(query) != h.dim {
		return nil, &DimensionMismatchError{Expected: h.dim, Actual: len(query)}
	}

	start := time.Now()
	cur := h.nodes[h.entryPoint]
	curDist := h.distance(query, cur.vector)
	for lvl := h.maxLevel; lvl > 0; lvl-- {
		cur, curDist = h.greedySearchLayer(query, cur, curDist, lvl)
	}

	candidates := h.searchLayer(query, cur, 0, max(h.efConstruction, k))
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]Result, len(candidates))
	for i, c := range candidates {
		out[i] = Result{ID: c.id, Distance: c.dist}
	}
	h.metrics.observeSearch(time.Since(start))
	return out, nil
}

// Len returns the number of indexed vectors.
func (h *Index) Len() int { return len(h.nodes) }

// Dim returns the vector dimension, or 0 before the first insert.
func (h *Index) Dim() int { return h.dim }

// MaxLevel returns the highest layer in the graph, or -1 when empty.
func (h *Index) MaxLevel() int { return h.maxLevel }

// Metric returns the distance metric the index was built with.
func (h *Index) Metric() Metric { return h.metric }

// EntryPoint returns the id of the node every search starts from.
func (h *Index) EntryPoint() (int32, bool) {
	if len(h.nodes) == 0 {
		return 0, false
	}
	return h.entryPoint, true
}

// Contains reports whether id is indexed.
func (h *Index) Contains(id int32) bool {
	_, ok := h.nodes[id]
	return ok
}

// Vector returns a copy of the vector stored under id.
func (h *Index) Vector(id int32) ([]float32, bool) {
	n, ok := h.nodes[id]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(n.vector))
	copy(out, n.vector)
	return out, true
}

// IDs returns all indexed ids in insertion order.
func (h *Index) IDs() []int32 {
	out := make([]int32, len(h.order))
	copy(out, h.order)
	return out
}
