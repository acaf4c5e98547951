package hnsw

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors an Index reports to. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Inserts        prometheus.Counter
	InsertErrors   prometheus.Counter
	Searches       prometheus.Counter
	SearchDuration prometheus.Histogram
	PrunedEdges    prometheus.Counter
	Nodes          prometheus.Gauge
	MaxLevel       prometheus.Gauge
}

// NewMetrics creates the index collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Inserts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hnsw_inserts_total",
			Help:      "Total number of vectors inserted into the index",
		}),
		InsertErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hnsw_insert_errors_total",
			Help:      "Total number of rejected inserts",
		}),
		Searches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hnsw_searches_total",
			Help:      "Total number of searches against a non-empty index",
		}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hnsw_search_duration_seconds",
			Help:      "Duration of index searches in seconds",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		PrunedEdges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hnsw_pruned_edges_total",
			Help:      "Total number of edges dropped while enforcing degree caps",
		}),
		Nodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hnsw_nodes",
			Help:      "Number of nodes in the index",
		}),
		MaxLevel: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hnsw_max_level",
			Help:      "Highest layer of the graph",
		}),
	}
}

func (m *Metrics) observeInsert(nodes, maxLevel int) {
	if m == nil {
		return
	}
	m.Inserts.Inc()
	m.Nodes.Set(float64(nodes))
	m.MaxLevel.Set(float64(maxLevel))
}

func (m *Metrics) observeInsertError() {
	if m == nil {
		return
	}
	m.InsertErrors.Inc()
}

func (m *Metrics) observeSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.Searches.Inc()
	m.SearchDuration.Observe(d.Seconds())
}

func (m *Metrics) observePruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PrunedEdges.Add(float64(n))
}

func (m *Metrics) observeLoad(nodes, maxLevel int) {
	if m == nil {
		return
	}
	m.Nodes.Set(float64(nodes))
	m.MaxLevel.Set(float64(maxLevel))
}
