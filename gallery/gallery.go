// Package gallery stores labelled images and finds visually similar ones. It
// ties together the record store, the image vectorizer and the HNSW index:
// record ids are the index ids.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/idebroy/hnsw"
	"github.com/idebroy/hnsw/imagevec"
	"github.com/idebroy/hnsw/records"
)

// DefaultIndexFile is the index file name used when Options.IndexFile is empty.
const DefaultIndexFile = "hnsw_index.bin"

// Options configures Open.
type Options struct {
	// Dir holds stored images and, by default, the index file.
	Dir string
	// IndexFile is the index location. Relative paths are resolved against Dir.
	IndexFile string
	// Store is used as the record store when set. The caller keeps ownership.
	Store records.Store
	// StoreBackend and StorePath open a store owned by the gallery when
	// Store is nil.
	StoreBackend string
	StorePath    string
	// IndexOptions are passed to the index when it is created or loaded.
	IndexOptions []hnsw.Option
	// Compress writes the index file zstd compressed.
	Compress bool
	Logger   *slog.Logger
}

// Gallery is safe for concurrent use.
type Gallery struct {
	mu        sync.Mutex // serializes mutations spanning store, files and index
	dir       string
	indexPath string
	store     records.Store
	ownsStore bool
	index     *hnsw.Locked
	fileOpts  []hnsw.FileOption
	logger    *slog.Logger
}

// Open prepares a gallery in opts.Dir. An existing index file is loaded; if
// it cannot be read the error is logged and an empty index is used instead.
func Open(ctx context.Context, opts Options) (*Gallery, error) {
	if opts.Dir == "" {
		return nil, errors.New("gallery directory must not be empty")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", opts.Dir, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	indexPath := opts.IndexFile
	if indexPath == "" {
		indexPath = DefaultIndexFile
	}
	if !filepath.IsAbs(indexPath) {
		indexPath = filepath.Join(opts.Dir, indexPath)
	}

	g := &Gallery{
		dir:       opts.Dir,
		indexPath: indexPath,
		store:     opts.Store,
		logger:    logger,
	}
	if opts.Compress {
		g.fileOpts = append(g.fileOpts, hnsw.WithCompression())
	}

	idxOpts := append([]hnsw.Option{hnsw.WithLogger(logger)}, opts.IndexOptions...)
	idx, err := g.loadIndex(idxOpts)
	if err != nil {
		return nil, err
	}
	g.index = hnsw.NewLocked(idx)

	if g.store == nil {
		store, err := records.Open(opts.StoreBackend, opts.StorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open record store: %w", err)
		}
		g.store = store
		g.ownsStore = true
	}

	logger.InfoContext(ctx, "gallery opened", "dir", g.dir, "index", g.indexPath, "vectors", idx.Len())
	return g, nil
}

func (g *Gallery) loadIndex(opts []hnsw.Option) (*hnsw.Index, error) {
	if _, err := os.Stat(g.indexPath); err == nil {
		idx, err := hnsw.LoadFile(g.indexPath, opts...)
		if err == nil {
			return idx, nil
		}
		g.logger.Error("failed to load index, starting empty", "path", g.indexPath, "error", err)
	}
	return hnsw.New(opts...)
}

// Add stores img under label and indexes it. The image is saved as
// img_<id>.jpg and the index file is rewritten.
func (g *Gallery) Add(ctx context.Context, img image.Image, label string) (records.Record, error) {
	vec := imagevec.FromImage(img)

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	rec := records.Record{
		Label:     label,
		CreatedAt: now,
		ImagePath: fmt.Sprintf("temp_%d.jpg", now.UnixMilli()),
	}
	id, err := g.store.Insert(ctx, rec)
	if err != nil {
		return records.Record{}, fmt.Errorf("failed to insert record: %w", err)
	}
	rec.ID = id
	rec.ImagePath = fmt.Sprintf("img_%d.jpg", id)

	if err := g.writeImage(rec.ImagePath, img); err != nil {
		g.rollback(ctx, rec)
		return records.Record{}, err
	}
	if err := g.store.Update(ctx, rec); err != nil {
		g.rollback(ctx, rec)
		return records.Record{}, fmt.Errorf("failed to update record %d: %w", id, err)
	}
	if err := g.index.Insert(vec, id); err != nil {
		g.rollback(ctx, rec)
		return records.Record{}, fmt.Errorf("failed to index record %d: %w", id, err)
	}

	if err := g.saveIndex(); err != nil {
		return rec, err
	}

	g.logger.InfoContext(ctx, "image added", "id", id, "label", label)
	return g.store.Get(ctx, id)
}

// rollback undoes a partially applied Add. The index is never touched here:
// it only sees ids whose record and image already exist.
func (g *Gallery) rollback(ctx context.Context, rec records.Record) {
	if err := g.store.Delete(ctx, rec.ID); err != nil && !errors.Is(err, records.ErrNotFound) {
		g.logger.WarnContext(ctx, "failed to remove record after failed add", "id", rec.ID, "error", err)
	}
	g.removeImage(rec.ImagePath)
}

func (g *Gallery) writeImage(name string, img image.Image) (err error) {
	path := filepath.Join(g.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close image file: %w", cerr)
		}
	}()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

func (g *Gallery) removeImage(name string) {
	if name == "" {
		return
	}
	path := filepath.Join(g.dir, name)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		g.logger.Warn("failed to remove image", "path", path, "error", err)
	}
}

// FindSimilar returns up to k records whose images are closest to img, most
// similar first. Indexed ids whose record has been deleted are skipped, so
// fewer than k records may be returned.
func (g *Gallery) FindSimilar(ctx context.Context, img image.Image, k int) ([]records.Record, error) {
	return g.FindSimilarVector(ctx, imagevec.FromImage(img), k)
}

// FindSimilarVector is FindSimilar for an already vectorized image.
func (g *Gallery) FindSimilarVector(ctx context.Context, vec []float32, k int) ([]records.Record, error) {
	ids, err := g.index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	if len(ids) == 0 {
		return []records.Record{}, nil
	}

	found, err := g.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}
	byID := make(map[int32]records.Record, len(found))
	for _, rec := range found {
		byID[rec.ID] = rec
	}

	out := make([]records.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// All returns every stored record ordered by id.
func (g *Gallery) All(ctx context.Context) ([]records.Record, error) {
	return g.store.All(ctx)
}

// Get returns the record with id.
func (g *Gallery) Get(ctx context.Context, id int32) (records.Record, error) {
	return g.store.Get(ctx, id)
}

// UpdateLabel changes the label of record id.
func (g *Gallery) UpdateLabel(ctx context.Context, id int32, label string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, err := g.store.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.Label = label
	if err := g.store.Update(ctx, rec); err != nil {
		return err
	}
	g.logger.InfoContext(ctx, "label updated", "id", id, "label", label)
	return nil
}

// Delete removes record id and its image. The vector stays in the index,
// which has no deletion, but is no longer returned by FindSimilar.
func (g *Gallery) Delete(ctx context.Context, id int32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, err := g.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := g.store.Delete(ctx, id); err != nil {
		return err
	}
	g.removeImage(rec.ImagePath)
	g.logger.InfoContext(ctx, "image deleted", "id", id)
	return nil
}

// ImageFile returns the location of rec's stored image.
func (g *Gallery) ImageFile(rec records.Record) string {
	return filepath.Join(g.dir, rec.ImagePath)
}

// IndexFile returns the index file location.
func (g *Gallery) IndexFile() string {
	return g.indexPath
}

// Index returns the underlying index.
func (g *Gallery) Index() *hnsw.Locked {
	return g.index
}

// SaveIndex writes the index file.
func (g *Gallery) SaveIndex() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saveIndex()
}

func (g *Gallery) saveIndex() error {
	if err := g.index.SaveFile(g.indexPath, g.fileOpts...); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return nil
}

// Close releases the record store if the gallery opened it.
func (g *Gallery) Close() error {
	if g.ownsStore {
		return g.store.Close()
	}
	return nil
}
