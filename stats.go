package hnsw

// LayerStats describes one layer of the graph.
type LayerStats struct {
	Nodes     int
	Edges     int
	MaxDegree int
	AvgDegree float64
}

// Stats is a structural summary of an Index.
type Stats struct {
	Nodes      int
	Dimension  int
	MaxLevel   int
	EntryPoint int32
	Metric     Metric
	M          int
	EfConst    int
	MMax       int
	MMax0      int
	ML         float64
	Layers     []LayerStats
}

// Stats walks the graph and summarizes it per layer.
func (h *Index) Stats() Stats {
	s := Stats{
		Nodes:      len(h.nodes),
		Dimension:  h.dim,
		MaxLevel:   h.maxLevel,
		EntryPoint: h.entryPoint,
		Metric:     h.metric,
		M:          h.m,
		EfConst:    h.efConstruction,
		MMax:       h.mMax,
		MMax0:      h.mMax0,
		ML:         h.ml,
	}
	if h.maxLevel < 0 {
		return s
	}

	s.Layers = make([]LayerStats, h.maxLevel+1)
	for _, n := range h.nodes {
		for lvl, conns := range n.connections {
			ls := &s.Layers[lvl]
			ls.Nodes++
			ls.Edges += len(conns)
			ls.MaxDegree = max(ls.MaxDegree, len(conns))
		}
	}
	for i := range s.Layers {
		if s.Layers[i].Nodes > 0 {
			s.Layers[i].AvgDegree = float64(s.Layers[i].Edges) / float64(s.Layers[i].Nodes)
		}
	}
	return s
}
