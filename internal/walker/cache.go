package walker

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"ansa-fs/internal/analyzer"
	"ansa-fs/internal/hash"
	"ansa-fs/internal/tree"
)

// DefaultCacheSize is the number of files remembered by NewCache(0).
const DefaultCacheSize = 4096

// fileFacts is what was derived from one version of a file. A version is
// identified by size and modification time.
type fileFacts struct {
	size    int64
	modTime time.Time

	hash     string
	hashAlgo hash.Algorithm

	analyzed     bool
	analyzedWith analyzer.Options
	content      *tree.ContentAnalysis
}

// Cache remembers hashes and content analyses across extractions so an
// unchanged file is neither re-read nor re-analyzed. It is safe for
// concurrent use.
type Cache struct {
	facts *lru.Cache[string, fileFacts]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	facts, err := lru.New[string, fileFacts](size)
	if err != nil {
		return nil, fmt.Errorf("create file cache: %w", err)
	}
	return &Cache{facts: facts}, nil
}

// Len is the number of cached files.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.facts.Len()
}

func (c *Cache) lookup(path string, size int64, modTime time.Time) (fileFacts, bool) {
	if c == nil {
		return fileFacts{}, false
	}
	f, ok := c.facts.Get(path)
	if !ok || f.size != size || !f.modTime.Equal(modTime) {
		return fileFacts{}, false
	}
	return f, true
}

func (c *Cache) store(path string, f fileFacts) {
	if c == nil {
		return
	}
	c.facts.Add(path, f)
}
