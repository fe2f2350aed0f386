package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DiskCache stores raw archive bytes as files under a cache root. Staleness
// is judged by file modification time, so entries survive process restarts
// and a stale file is simply re-fetched and overwritten.
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache creates a disk cache rooted at dir with a default TTL.
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl}
}

// Get returns the cached bytes if the entry exists and is younger than the
// TTL. Stale entries are treated as absent.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := filepath.Join(c.dir, key)

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.ttl {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set writes the bytes to disk. The ttl argument is ignored for disk
// entries; freshness is always the cache-wide TTL against mtime.
func (c *DiskCache) Set(key string, value []byte, _ time.Duration) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, key), value, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

// Delete removes one entry.
func (c *DiskCache) Delete(key string) error {
	return os.Remove(filepath.Join(c.dir, key))
}

// Clear removes the whole cache directory.
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}
