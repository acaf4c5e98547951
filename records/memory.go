package records

import (
	"context"
	"sort"
	"sync"
)

// Memory is a Store backed by a map. Useful for tests and throwaway runs.
type Memory struct {
	mu      sync.RWMutex
	records map[int32]Record
	nextID  int32
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[int32]Record)}
}

func (m *Memory) Insert(_ context.Context, rec Record) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	rec.ID = m.nextID
	rec.CreatedAt = normalizeTime(rec.CreatedAt)
	m.records[rec.ID] = rec
	return rec.ID, nil
}

func (m *Memory) Update(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = old.CreatedAt
	}
	rec.CreatedAt = normalizeTime(rec.CreatedAt)
	m.records[rec.ID] = rec
	return nil
}

func (m *Memory) Delete(_ context.Context, id int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *Memory) Get(_ context.Context, id int32) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) GetByIDs(_ context.Context, ids []int32) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(ids))
	seen := make(map[int32]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec, ok := m.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) All(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Close() error { return nil }
