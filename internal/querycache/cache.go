package querycache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/localrag/localrag/internal/model"
)

// Cache memoizes ranked query results. It is flushed whenever the index
// changes: a cached result computed against a superseded index state is
// never served. Each flush bumps a generation counter, and Put rejects
// results computed against an older generation, so a search that raced
// with an index write cannot repopulate the cache with stale chunks.
type Cache struct {
	mu  sync.Mutex
	gen uint64
	lru *expirable.LRU[string, []model.Source]
}

func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	return &Cache{
		lru: expirable.NewLRU[string, []model.Source](size, nil, ttl),
	}
}

func (c *Cache) Get(query string, k int) ([]model.Source, bool) {
	return c.lru.Get(Key(query, k))
}

// Generation returns the current flush generation. Capture it before
// running a search and pass it to Put so the entry lands only if no
// flush happened in between.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Cache) Put(query string, k int, gen uint64, sources []model.Source) {
	clone := make([]model.Source, len(sources))
	copy(clone, sources)
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.lru.Add(Key(query, k), clone)
}

func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.lru.Purge()
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

// Key normalizes the query so trivially different spellings of the same
// question share an entry.
func Key(query string, k int) string {
	return Normalize(query) + "|k=" + strconv.Itoa(k)
}

func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
