// Package records keeps the metadata that belongs to an indexed vector: a
// label, when it was added and where its source image lives. Ids are assigned
// by the store and double as the vector ids in the index.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Record is one stored entry.
type Record struct {
	ID        int32     `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	ImagePath string    `json:"image_path"`
}

// Store persists records.
type Store interface {
	// Insert stores rec under a newly assigned id and returns it. rec.ID is
	// ignored; a zero CreatedAt is set to the current time.
	Insert(ctx context.Context, rec Record) (int32, error)
	// Update replaces the record with rec.ID.
	Update(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id int32) error
	Get(ctx context.Context, id int32) (Record, error)
	// GetByIDs returns the records for the ids that exist, in no particular
	// order. Missing ids are skipped.
	GetByIDs(ctx context.Context, ids []int32) ([]Record, error)
	// All returns every record ordered by id.
	All(ctx context.Context) ([]Record, error)
	Close() error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Bolt)(nil)
	_ Store = (*DuckDB)(nil)
)

// Supported backend names for Open.
const (
	BackendDuckDB = "duckdb"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Open creates a store for the named backend. path is ignored by the memory
// backend; an empty path opens an in-memory DuckDB database.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(backend) {
	case BackendDuckDB, "":
		s, err := OpenDuckDB(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendBolt, "bbolt":
		s, err := OpenBolt(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// timestamps are persisted with millisecond precision on every backend.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return time.UnixMilli(t.UnixMilli())
}
