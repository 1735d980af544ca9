// Package cache keeps extracted files so repeated runs over unchanged inputs
// skip parsing.
package cache

import (
	"fmt"
	"os"
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/TFMV/hismetrics/types"
)

// ExtractionCache caches FileAnalysis values by file identity.
type ExtractionCache struct {
	cache *lru.Cache
	mu    sync.RWMutex // lru.Cache is not safe for concurrent use
	hits  int
}

func NewExtractionCache(size int) *ExtractionCache {
	return &ExtractionCache{
		cache: lru.New(size),
	}
}

// Key identifies a file by path, size and modification time. The frontend
// is part of the key since dump and source extraction differ.
func Key(frontend, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s|%s|%d|%d", frontend, path, info.Size(), info.ModTime().UnixNano()), nil
}

// Get returns the cached analysis for key, if available.
func (c *ExtractionCache) Get(key string) (types.FileAnalysis, bool) {
	c.mu.Lock() // Get updates recency
	defer c.mu.Unlock()
	if val, ok := c.cache.Get(key); ok {
		c.hits++
		return val.(types.FileAnalysis), true
	}
	return types.FileAnalysis{}, false
}

func (c *ExtractionCache) Put(key string, fa types.FileAnalysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, fa)
}

// GetOrLoad returns the cached analysis of path or calls load and caches a
// successful result. Files that cannot be stat'ed are loaded uncached.
func (c *ExtractionCache) GetOrLoad(frontend, path string, load func() (types.FileAnalysis, error)) (types.FileAnalysis, error) {
	key, err := Key(frontend, path)
	if err != nil {
		return load()
	}
	if fa, ok := c.Get(key); ok {
		return fa, nil
	}
	fa, err := load()
	if err != nil {
		return fa, err
	}
	c.Put(key, fa)
	return fa, nil
}

// Hits returns the number of lookups served from the cache
func (c *ExtractionCache) Hits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits
}

func (c *ExtractionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Len()
}

// Clear clears the cache.
func (c *ExtractionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
}
