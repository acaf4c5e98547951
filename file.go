package hnsw

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every zstd frame. A plain index would have to start with
// m = 0x28B52FFD to collide with it.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

type fileOptions struct {
	compress bool
	level    zstd.EncoderLevel
}

// FileOption configures SaveFile.
type FileOption func(*fileOptions)

// WithCompression wraps the index stream in a zstd frame.
func WithCompression() FileOption {
	return func(o *fileOptions) { o.compress = true }
}

// WithCompressionLevel is WithCompression at a specific encoder level.
func WithCompressionLevel(level zstd.EncoderLevel) FileOption {
	return func(o *fileOptions) {
		o.compress = true
		o.level = level
	}
}

// SaveFile writes h to path. The data goes to a temporary file in the same
// directory first and replaces path only once fully written and synced.
func SaveFile(path string, h *Index, opts ...FileOption) (err error) {
	o := fileOptions{level: zstd.SpeedDefault}
	for _, opt := range opts {
		opt(&o)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if o.compress {
		enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(o.level))
		if err != nil {
			return fmt.Errorf("failed to create compressor: %w", err)
		}
		if err := h.Save(enc); err != nil {
			enc.Close()
			return err
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to finish compressed stream: %w", err)
		}
	} else if err := h.Save(tmp); err != nil {
		return err
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// LoadFile reads an index written by SaveFile (or by any writer of the plain
// stream format). Compressed files are detected automatically.
func LoadFile(path string, opts ...Option) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()
	return loadStream(bufio.NewReader(f), opts...)
}

func loadStream(br *bufio.Reader, opts ...Option) (*Index, error) {
	head, err := br.Peek(len(zstdMagic))
	if err == nil && bytes.Equal(head, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create decompressor: %w", err)
		}
		defer dec.Close()
		return Load(dec, opts...)
	}
	// Short or unreadable input falls through to Load, which reports it as
	// a DecodeError.
	return Load(br, opts...)
}
