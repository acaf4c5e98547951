package records

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var recordsBucket = []byte("records")

// Bolt is a Store backed by a bbolt file. Records are JSON values keyed by
// their big-endian id, so cursor order is id order.
type Bolt struct {
	db   *bbolt.DB
	path string
}

// OpenBolt opens or creates the bbolt database at path.
func OpenBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt store needs a file path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB at %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create records bucket: %w", err)
	}

	return &Bolt{db: db, path: path}, nil
}

func boltKey(id int32) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], uint32(id))
	return k[:]
}

func (b *Bolt) Insert(_ context.Context, rec Record) (int32, error) {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordsBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		if seq > 1<<31-1 {
			return fmt.Errorf("record id space exhausted")
		}
		rec.ID = int32(seq)
		rec.CreatedAt = normalizeTime(rec.CreatedAt)

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return bucket.Put(boltKey(rec.ID), data)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	return rec.ID, nil
}

func (b *Bolt) Update(_ context.Context, rec Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordsBucket)
		old := bucket.Get(boltKey(rec.ID))
		if old == nil {
			return ErrNotFound
		}
		if rec.CreatedAt.IsZero() {
			var prev Record
			if err := json.Unmarshal(old, &prev); err != nil {
				return fmt.Errorf("failed to unmarshal record %d: %w", rec.ID, err)
			}
			rec.CreatedAt = prev.CreatedAt
		}
		rec.CreatedAt = normalizeTime(rec.CreatedAt)

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return bucket.Put(boltKey(rec.ID), data)
	})
}

func (b *Bolt) Delete(_ context.Context, id int32) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordsBucket)
		if bucket.Get(boltKey(id)) == nil {
			return ErrNotFound
		}
		return bucket.Delete(boltKey(id))
	})
}

func (b *Bolt) Get(_ context.Context, id int32) (Record, error) {
	var rec Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(recordsBucket).Get(boltKey(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (b *Bolt) GetByIDs(_ context.Context, ids []int32) ([]Record, error) {
	out := make([]Record, 0, len(ids))
	seen := make(map[int32]struct{}, len(ids))
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(recordsBucket)
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			data := bucket.Get(boltKey(id))
			if data == nil {
				continue
			}
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal record %d: %w", id, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bolt) All(_ context.Context) ([]Record, error) {
	var out []Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
