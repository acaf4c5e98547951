package hnsw

// node is a graph vertex. Edges are stored as ids and resolved through the
// owning Index, so nodes never hold pointers to each other.
type node struct {
	id     int32
	vector []float32
	level  int
	// connections[l] holds the neighbor ids at layer l, for l in 0..level.
	connections [][]int32
}

func newNode(id int32, vector []float32, level int) *node {
	conns := make([][]int32, level+1)
	return &node{
		id:          id,
		vector:      vector,
		level:       level,
		connections: conns,
	}
}

// Result is a single search hit.
type Result struct {
	ID       int32
	Distance float32
}
