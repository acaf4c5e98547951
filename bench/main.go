// Command bench measures build time, query latency and recall@k of the index
// against exhaustive search on random data.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/idebroy/hnsw"
)

// generateData generates n vectors of dimension dim from seed.
func generateData(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	data := make([][]float32, n)
	for i := range data {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = rng.Float32()
		}
		data[i] = vec
	}
	return data
}

// computeGroundTruth performs exhaustive search to find the top k neighbors for each query.
func computeGroundTruth(base, queries [][]float32, k int, dist hnsw.DistanceFunc) [][]int32 {
	result := make([][]int32, len(queries))
	for qi, q := range queries {
		dists := make([]struct {
			idx  int32
			dist float32
		}, len(base))
		for i, v := range base {
			dists[i].idx = int32(i)
			dists[i].dist = dist(q, v)
		}
		sort.Slice(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })
		top := make([]int32, min(k, len(dists)))
		for j := range top {
			top[j] = dists[j].idx
		}
		result[qi] = top
	}
	return result
}

func main() {
	var (
		dim      = flag.Int("dim", 128, "vector dimension")
		n        = flag.Int("n", 10000, "dataset size")
		q        = flag.Int("queries", 100, "number of queries")
		m        = flag.Int("m", hnsw.DefaultM, "HNSW M parameter")
		efC      = flag.Int("efC", hnsw.DefaultEfConstruction, "efConstruction")
		k        = flag.Int("k", 10, "neighbors per query")
		metric   = flag.String("metric", "euclidean", "distance metric (euclidean, cosine, dot)")
		seed     = flag.Int64("seed", 42, "random seed for data and levels")
		parallel = flag.Int("parallel", 1, "concurrent query workers")
		save     = flag.Bool("save", false, "also time saving and loading the index")
		compress = flag.Bool("compress", false, "compress the saved index")
	)
	flag.Parse()

	if err := run(*dim, *n, *q, *m, *efC, *k, *metric, *seed, *parallel, *save, *compress); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dim, n, q, m, efC, k int, metricName string, seed int64, parallel int, save, compress bool) error {
	if n < 1 || q < 1 || k < 1 {
		return fmt.Errorf("n, queries and k must be positive")
	}
	metric, err := hnsw.ParseMetric(metricName)
	if err != nil {
		return err
	}

	base := generateData(n, dim, seed)
	queries := generateData(q, dim, seed+1)
	gt := computeGroundTruth(base, queries, k, metric.Func())

	// build index
	start := time.Now()
	idx, err := hnsw.New(hnsw.WithM(m), hnsw.WithEfConstruction(efC), hnsw.WithMetric(metric), hnsw.WithSeed(seed))
	if err != nil {
		return err
	}
	for i, vec := range base {
		if err := idx.Insert(vec, int32(i)); err != nil {
			return err
		}
	}
	buildTime := time.Since(start)

	// get memory usage after build
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	usedMB := mem.Alloc / (1024 * 1024)

	// run queries
	locked := hnsw.NewLocked(idx)
	latencies := make([]time.Duration, len(queries))
	var hits atomic.Int64
	var eg errgroup.Group
	eg.SetLimit(max(parallel, 1))
	start = time.Now()
	for i, vec := range queries {
		eg.Go(func() error {
			t0 := time.Now()
			res, err := locked.Search(vec, k)
			if err != nil {
				return err
			}
			latencies[i] = time.Since(t0)

			gtSet := make(map[int32]struct{}, k)
			for _, id := range gt[i] {
				gtSet[id] = struct{}{}
			}
			for _, id := range res {
				if _, ok := gtSet[id]; ok {
					hits.Add(1)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	totalQueryTime := time.Since(start)

	recall := float64(hits.Load()) / float64(len(queries)*k)

	// average and p95 latency
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	sum := time.Duration(0)
	for _, l := range latencies {
		sum += l
	}
	avgLat := sum / time.Duration(len(latencies))
	p95 := latencies[int(float64(len(latencies))*0.95)]
	qps := float64(len(latencies)) / totalQueryTime.Seconds()

	stats := idx.Stats()
	fmt.Printf("build_time_ms %.2f\n", float64(buildTime.Microseconds())/1000)
	fmt.Printf("avg_latency_ms %.2f\n", float64(avgLat.Microseconds())/1000)
	fmt.Printf("p95_latency_ms %.2f\n", float64(p95.Microseconds())/1000)
	fmt.Printf("qps %.2f\n", qps)
	fmt.Printf("memory_mb %d\n", usedMB)
	fmt.Printf("max_level %d\n", stats.MaxLevel)
	fmt.Printf("avg_degree_l0 %.2f\n", stats.Layers[0].AvgDegree)
	fmt.Printf("recall_at_%d %.4f\n", k, recall)

	if !save {
		return nil
	}

	dir, err := os.MkdirTemp("", "hnsw-bench-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "index.bin")

	var fileOpts []hnsw.FileOption
	if compress {
		fileOpts = append(fileOpts, hnsw.WithCompression())
	}
	start = time.Now()
	if err := hnsw.SaveFile(path, idx, fileOpts...); err != nil {
		return err
	}
	saveTime := time.Since(start)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	start = time.Now()
	if _, err := hnsw.LoadFile(path, hnsw.WithMetric(metric)); err != nil {
		return err
	}
	loadTime := time.Since(start)

	fmt.Printf("save_time_ms %.2f\n", float64(saveTime.Microseconds())/1000)
	fmt.Printf("load_time_ms %.2f\n", float64(loadTime.Microseconds())/1000)
	fmt.Printf("file_mb %.2f\n", float64(info.Size())/(1024*1024))
	return nil
}
