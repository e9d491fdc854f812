package net

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
)

// DefaultCacheSize is the number of descriptors kept when none is configured.
const DefaultCacheSize = 256

// keyLock serialises compilation of one key. refs counts the callers
// holding or waiting on it; the last one out removes it from loading.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

type compiledTable struct {
	desc  *tableshare.TableDescriptor
	diags tableshare.Diagnostics
}

// DescriptorCache keeps recently compiled descriptors keyed by
// schema.table. Descriptors are immutable once compiled, so entries are
// shared between requests.
// 已编译表描述的LRU缓存
type DescriptorCache struct {
	entries *lru.Cache[string, *compiledTable]
	// loading serialises compilation per key
	mu      sync.Mutex
	loading map[string]*keyLock
}

// NewDescriptorCache returns a cache holding at most size descriptors.
func NewDescriptorCache(size int) (*DescriptorCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *compiledTable](size)
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor cache")
	}
	return &DescriptorCache{entries: entries, loading: make(map[string]*keyLock)}, nil
}

func cacheKey(schema, table string) string {
	return schema + "." + table
}

// GetOrCompile returns the cached entry or runs compile once for the key,
// even under concurrent requests. Failures are not cached.
func (c *DescriptorCache) GetOrCompile(schema, table string, compile func() (*compiledTable, error)) (*compiledTable, bool, error) {
	key := cacheKey(schema, table)
	if e, ok := c.entries.Get(key); ok {
		return e, true, nil
	}

	l := c.acquire(key)
	defer c.release(key, l)

	if e, ok := c.entries.Get(key); ok {
		return e, true, nil
	}
	e, err := compile()
	if err != nil {
		return nil, false, err
	}
	c.entries.Add(key, e)
	return e, false, nil
}

func (c *DescriptorCache) acquire(key string) *keyLock {
	c.mu.Lock()
	l, ok := c.loading[key]
	if !ok {
		l = &keyLock{}
		c.loading[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return l
}

func (c *DescriptorCache) release(key string, l *keyLock) {
	l.mu.Unlock()
	c.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(c.loading, key)
	}
	c.mu.Unlock()
}

// Invalidate drops one table; it reports whether it was cached.
func (c *DescriptorCache) Invalidate(schema, table string) bool {
	return c.entries.Remove(cacheKey(schema, table))
}

// Purge drops every entry.
func (c *DescriptorCache) Purge() {
	c.entries.Purge()
}

// Len is the number of cached descriptors.
func (c *DescriptorCache) Len() int {
	return c.entries.Len()
}
