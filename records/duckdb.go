package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
)

var duckSchema = []string{
	`CREATE SEQUENCE IF NOT EXISTS records_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS records (
		id         INTEGER PRIMARY KEY DEFAULT nextval('records_id_seq'),
		label      VARCHAR NOT NULL,
		created_ms BIGINT  NOT NULL,
		image_path VARCHAR NOT NULL DEFAULT ''
	)`,
}

// DuckDB is a Store backed by a DuckDB database.
type DuckDB struct {
	db *sql.DB
}

// OpenDuckDB opens or creates the database at path. An empty path keeps the
// database in memory.
func OpenDuckDB(path string) (*DuckDB, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB at %q: %w", path, err)
	}
	for _, stmt := range duckSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create records schema: %w", err)
		}
	}
	return &DuckDB{db: db}, nil
}

func (d *DuckDB) Insert(ctx context.Context, rec Record) (int32, error) {
	var id int32
	err := d.db.QueryRowContext(ctx,
		`INSERT INTO records (label, created_ms, image_path) VALUES (?, ?, ?) RETURNING id`,
		rec.Label, normalizeTime(rec.CreatedAt).UnixMilli(), rec.ImagePath,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	return id, nil
}

func (d *DuckDB) Update(ctx context.Context, rec Record) error {
	var (
		res sql.Result
		err error
	)
	if rec.CreatedAt.IsZero() {
		res, err = d.db.ExecContext(ctx,
			`UPDATE records SET label = ?, image_path = ? WHERE id = ?`,
			rec.Label, rec.ImagePath, rec.ID)
	} else {
		res, err = d.db.ExecContext(ctx,
			`UPDATE records SET label = ?, image_path = ?, created_ms = ? WHERE id = ?`,
			rec.Label, rec.ImagePath, rec.CreatedAt.UnixMilli(), rec.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update record %d: %w", rec.ID, err)
	}
	return affectedOne(res)
}

func (d *DuckDB) Delete(ctx context.Context, id int32) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %d: %w", id, err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DuckDB) Get(ctx context.Context, id int32) (Record, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, label, created_ms, image_path FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get record %d: %w", id, err)
	}
	return rec, nil
}

func (d *DuckDB) GetByIDs(ctx context.Context, ids []int32) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	return d.query(ctx,
		`SELECT id, label, created_ms, image_path FROM records WHERE id IN (`+placeholders+`)`, args...)
}

func (d *DuckDB) All(ctx context.Context) ([]Record, error) {
	return d.query(ctx, `SELECT id, label, created_ms, image_path FROM records ORDER BY id`)
}

func (d *DuckDB) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (Record, error) {
	var (
		rec Record
		ms  int64
	)
	if err := s.Scan(&rec.ID, &rec.Label, &ms, &rec.ImagePath); err != nil {
		return Record{}, err
	}
	rec.CreatedAt = time.UnixMilli(ms)
	return rec, nil
}

func (d *DuckDB) Close() error {
	return d.db.Close()
}
