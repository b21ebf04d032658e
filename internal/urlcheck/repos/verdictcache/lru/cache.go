// Package lru caches phishing decisions per link.
package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-urlcheck/internal/urlcheck/domain"
	"github.com/haukened/rr-urlcheck/internal/urlcheck/services/phishcheck"
)

// verdictCache is an LRU-backed phishcheck.DecisionCache with hit, miss and
// eviction counters.
type verdictCache struct {
	lru       *lru.Cache[string, domain.Decision]
	hits      uint64
	misses    uint64
	evictions uint64
}

// disabledCache always misses.
type disabledCache struct{}

// newLRU is a seam for tests.
var newLRU = func(size int, onEvict func(string, domain.Decision)) (*lru.Cache[string, domain.Decision], error) {
	return lru.NewWithEvict(size, onEvict)
}

// New returns a cache holding up to size decisions. A size <= 0 yields a
// disabled cache.
func New(size int) (phishcheck.DecisionCache, error) {
	if size <= 0 {
		return &disabledCache{}, nil
	}
	var vc verdictCache
	cache, err := newLRU(size, func(string, domain.Decision) {
		atomic.AddUint64(&vc.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	vc.lru = cache
	return &vc, nil
}

func (c *verdictCache) Get(key string) (domain.Decision, bool) {
	if val, ok := c.lru.Get(key); ok {
		atomic.AddUint64(&c.hits, 1)
		return val, true
	}
	atomic.AddUint64(&c.misses, 1)
	return domain.Decision{}, false
}

func (c *verdictCache) Put(key string, d domain.Decision) { c.lru.Add(key, d) }

func (c *verdictCache) Len() int { return c.lru.Len() }

// Purge clears all entries; each one counts as an eviction.
func (c *verdictCache) Purge() { c.lru.Purge() }

func (c *verdictCache) Stats() (hits, misses, evictions uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses), atomic.LoadUint64(&c.evictions)
}

func (d *disabledCache) Get(string) (domain.Decision, bool) { return domain.Decision{}, false }

func (d *disabledCache) Put(string, domain.Decision) {}

func (d *disabledCache) Len() int { return 0 }

func (d *disabledCache) Purge() {}

func (d *disabledCache) Stats() (uint64, uint64, uint64) { return 0, 0, 0 }

var _ phishcheck.DecisionCache = (*verdictCache)(nil)
var _ phishcheck.DecisionCache = (*disabledCache)(nil)
