package hnsw

import (
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Locked serializes access to an Index with a reader/writer mutex: inserts
// take the write lock, searches and saves share the read lock.
type Locked struct {
	mu  sync.RWMutex
	idx *Index
}

// NewLocked wraps idx. The caller must not use idx directly afterwards.
func NewLocked(idx *Index) *Locked {
	return &Locked{idx: idx}
}

// Insert adds vector under id. See Index.Insert.
func (l *Locked) Insert(vector []float32, id int32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.idx.Insert(vector, id)
}

// Search returns up to k nearest ids. See Index.Search.
func (l *Locked) Search(query []float32, k int) ([]int32, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.idx.Search(query, k)
}

// SearchWithDistances see Index.SearchWithDistances.
func (l *Locked) SearchWithDistances(query []float32, k int) ([]Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.idx.SearchWithDistances(query, k)
}

// Save writes the index. See Index.Save.
func (l *Locked) Save(w io.Writer) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.idx.Save(w)
}

// SaveFile writes the index to path. See SaveFile.
func (l *Locked) SaveFile(path string, opts ...FileOption) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return SaveFile(path, l.idx, opts...)
}

// Replace swaps in a different index, e.g. one produced by Load.
func (l *Locked) Replace(idx *Index) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.idx = idx
}

// Len returns the number of indexed vectors.
func (l *Locked) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.idx.Len()
}

// Contains reports whether id is indexed.
func (l *Locked) Contains(id int32) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.idx.Contains(id)
}

// Stats see Index.Stats.
func (l *Locked) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.idx.Stats()
}

// ArrowRecord see Index.ArrowRecord.
func (l *Locked) ArrowRecord(mem memory.Allocator) (arrow.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.idx.ArrowRecord(mem)
}
