package hnsw

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

const (
	// DefaultM is the default number of neighbors selected per layer.
	DefaultM = 16
	// DefaultEfConstruction is the default build-time search breadth.
	DefaultEfConstruction = 200
)

// options collects everything New and Load can be configured with. Graph
// parameters (m, efConstruction, mMax, mMax0, mL) are fixed for the life of
// an index; Load takes them from the stream.
type options struct {
	m              int
	efConstruction int
	mMax           int
	mMax0          int
	ml             float64
	mlSet          bool
	metric         Metric
	rng            *rand.Rand
	logger         *slog.Logger
	metrics        *Metrics
	strictLoad     bool
}

// Option configures an Index.
type Option func(*options)

// WithM sets the number of neighbors connected per layer on insert.
// mMax, mMax0 and mL default to values derived from it.
func WithM(m int) Option {
	return func(o *options) { o.m = m }
}

// WithEfConstruction sets the candidate breadth used while inserting and the
// minimum breadth used while searching.
func WithEfConstruction(ef int) Option {
	return func(o *options) { o.efConstruction = ef }
}

// WithMMax sets the degree cap for layers above 0. Defaults to m.
func WithMMax(n int) Option {
	return func(o *options) { o.mMax = n }
}

// WithMMax0 sets the degree cap for layer 0. Defaults to 2*m.
func WithMMax0(n int) Option {
	return func(o *options) { o.mMax0 = n }
}

// WithML sets the level distribution scale. Defaults to 1/ln(m).
// Zero puts every node on layer 0.
func WithML(ml float64) Option {
	return func(o *options) {
		o.ml = ml
		o.mlSet = true
	}
}

// WithMetric selects the distance metric. Defaults to Euclidean.
func WithMetric(m Metric) Option {
	return func(o *options) { o.metric = m }
}

// WithRand sets the random source used for level assignment.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithSeed seeds level assignment for reproducible graphs.
func WithSeed(seed int64) Option {
	return func(o *options) { o.rng = rand.New(rand.NewSource(seed)) }
}

// WithLogger sets the structured logger. Logging is discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics attaches Prometheus collectors to the index.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithStrictLoad makes Load fail on neighbor ids that do not resolve to a
// stored node instead of dropping those edges.
func WithStrictLoad() Option {
	return func(o *options) { o.strictLoad = true }
}

func defaultOptions() options {
	return options{
		m:              DefaultM,
		efConstruction: DefaultEfConstruction,
		metric:         Euclidean,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// resolve fills derived defaults and validates the graph parameters.
func (o *options) resolve() error {
	if o.m < 1 {
		return fmt.Errorf("%w: m must be at least 1, got %d", ErrInvalidConfig, o.m)
	}
	if o.efConstruction < 1 {
		return fmt.Errorf("%w: efConstruction must be at least 1, got %d", ErrInvalidConfig, o.efConstruction)
	}
	if o.mMax == 0 {
		o.mMax = o.m
	}
	if o.mMax0 == 0 {
		o.mMax0 = 2 * o.m
	}
	if o.mMax < 1 {
		return fmt.Errorf("%w: mMax must be at least 1, got %d", ErrInvalidConfig, o.mMax)
	}
	if o.mMax0 < 1 {
		return fmt.Errorf("%w: mMax0 must be at least 1, got %d", ErrInvalidConfig, o.mMax0)
	}
	if !o.mlSet {
		o.ml = 1 / math.Log(float64(o.m))
	}
	if math.IsNaN(o.ml) || math.IsInf(o.ml, 0) || o.ml < 0 {
		return fmt.Errorf("%w: mL must be finite and non-negative, got %v (set it explicitly when m < 2)", ErrInvalidConfig, o.ml)
	}
	if o.metric.Func() == nil {
		return fmt.Errorf("%w: unknown metric %v", ErrInvalidConfig, o.metric)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return nil
}
