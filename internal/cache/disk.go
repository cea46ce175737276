package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Disk stores gob-encoded values as one file per key under a directory.
// Keys must be safe file names, such as hex digests.
type Disk[V any] struct {
	dir string
}

// NewDisk creates the cache directory if needed.
func NewDisk[V any](dir string) (*Disk[V], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Disk[V]{dir: dir}, nil
}

func (d *Disk[V]) path(key string) string {
	return filepath.Join(d.dir, key+".gob")
}

// Get decodes the value stored under key. A missing entry returns false
// with a nil error.
func (d *Disk[V]) Get(key string) (V, bool, error) {
	var v V
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("read cache entry: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return v, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return v, true, nil
}

// Put writes value under key. The file is written to a temporary name and
// renamed so concurrent readers never see a partial entry.
func (d *Disk[V]) Put(key string, value V) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(d.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}
