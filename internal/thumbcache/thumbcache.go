// Package thumbcache persists thumbnail bytes on disk so gallery
// restarts do not re-download every visible thumbnail. Entries are
// keyed by their source URL, which changes whenever the backend path
// for an image changes, so stale bytes age out naturally.
package thumbcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"git.mills.io/prologic/bitcask"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a key is not present in the cache.
var ErrNotFound = errors.New("key not found")

// maxValueSize caps a single cached thumbnail. Anything larger is a
// full-resolution image that does not belong in this cache.
const maxValueSize = 8 << 20

// Cache is a persistent URL-to-bytes store with a soft size budget.
// A nil *Cache is valid and behaves as a cache that never hits, which
// is how the no-cache mode is implemented.
type Cache struct {
	db       *bitcask.Bitcask
	mu       sync.Mutex
	maxBytes int64

	closeOnce sync.Once
	closeErr  error
}

// Open initializes the cache at path with a budget of maxMB megabytes.
func Open(path string, maxMB int) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory for %s: %w", path, err)
	}

	db, err := bitcask.Open(path, bitcask.WithMaxValueSize(maxValueSize))
	if err != nil {
		return nil, fmt.Errorf("failed to open thumbnail cache at %s: %w", path, err)
	}

	log.Debugf("Thumbnail cache opened at %s (budget %d MB)", path, maxMB)
	return &Cache{db: db, maxBytes: int64(maxMB) << 20}, nil
}

// Get returns the cached bytes for url, or ErrNotFound.
func (c *Cache) Get(url string) ([]byte, error) {
	if c == nil || c.db == nil {
		return nil, ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := c.db.Get([]byte(url))
	if err != nil {
		if errors.Is(err, bitcask.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache read for %s: %w", url, err)
	}
	return data, nil
}

// Has reports whether url is cached.
func (c *Cache) Has(url string) bool {
	if c == nil || c.db == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Has([]byte(url))
}

// Put stores data under url, sweeping old entries first when the cache
// has outgrown its budget. Oversized values are silently skipped.
func (c *Cache) Put(url string, data []byte) error {
	if c == nil || c.db == nil {
		return nil
	}
	if len(data) == 0 || len(data) > maxValueSize {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxBytes > 0 {
		if stats, err := c.db.Stats(); err == nil && int64(stats.Size) > c.maxBytes {
			c.sweepLocked()
		}
	}

	if err := c.db.Put([]byte(url), data); err != nil {
		return fmt.Errorf("cache write for %s: %w", url, err)
	}
	return nil
}

// Delete drops the entry for url if present.
func (c *Cache) Delete(url string) {
	if c == nil || c.db == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.db.Delete([]byte(url)); err != nil && !errors.Is(err, bitcask.ErrKeyNotFound) {
		log.WithError(err).Debugf("Failed to drop cache entry for %s", url)
	}
}

// sweepLocked drops roughly half the entries and compacts the data
// files. The store keeps no access order, so the sweep is arbitrary;
// evicted thumbnails are simply re-downloaded on next view.
func (c *Cache) sweepLocked() {
	var keys [][]byte
	_ = c.db.Fold(func(key []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	})
	for i, key := range keys {
		if i%2 == 0 {
			continue
		}
		_ = c.db.Delete(key)
	}
	if err := c.db.Merge(); err != nil {
		log.WithError(err).Warn("Thumbnail cache compaction failed")
	}
	log.Debugf("Thumbnail cache swept, %d entries remain", c.Len())
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	if c == nil || c.db == nil {
		return 0
	}
	return c.db.Len()
}

// Close flushes and closes the store. Safe to call more than once and
// on a nil cache.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closeErr = c.db.Close()
	})
	return c.closeErr
}
