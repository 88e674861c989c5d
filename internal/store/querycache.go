package store

import (
	"fmt"

	"github.com/wildtrack-data/ethogram/internal/behavior"
)

// queryCacheCapacity bounds the number of memoized query results.
const queryCacheCapacity = 16

// QueryParams selects observations from the store. The zero value matches
// everything. Species "" is the wildcard; StartUnix/EndUnix of 0 leave that
// end of the time range open.
type QueryParams struct {
	Species       string
	StartUnix     int64
	EndUnix       int64
	Behavior      behavior.BehaviorType
	BehaviorSet   bool
	MinConfidence float64
	SortByTime    bool
	MaxResults    int
}

// key produces the exact-match cache key for the parameters.
func (q QueryParams) key() string {
	return fmt.Sprintf("%s|%d|%d|%d|%t|%.4f|%t|%d",
		q.Species, q.StartUnix, q.EndUnix, q.Behavior, q.BehaviorSet,
		q.MinConfidence, q.SortByTime, q.MaxResults)
}

type queryCacheEntry struct {
	results      []behavior.Observation
	hits         int
	insertedUnix int64
}

// queryCache memoizes query results by exact parameter match. At capacity
// the entry with the oldest insertion time is evicted.
type queryCache struct {
	entries map[string]*queryCacheEntry
}

func newQueryCache() *queryCache {
	return &queryCache{entries: make(map[string]*queryCacheEntry)}
}

func (c *queryCache) get(key string) ([]behavior.Observation, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e.hits++
	out := make([]behavior.Observation, len(e.results))
	copy(out, e.results)
	return out, true
}

func (c *queryCache) put(key string, results []behavior.Observation, nowUnix int64) {
	if len(c.entries) >= queryCacheCapacity {
		c.evictOldest()
	}
	stored := make([]behavior.Observation, len(results))
	copy(stored, results)
	c.entries[key] = &queryCacheEntry{results: stored, insertedUnix: nowUnix}
}

func (c *queryCache) len() int {
	return len(c.entries)
}

// evictOldest drops the entry with the oldest insertion time.
func (c *queryCache) evictOldest() {
	var oldestKey string
	var oldestAt int64
	first := true
	for k, e := range c.entries {
		if first || e.insertedUnix < oldestAt {
			oldestKey, oldestAt = k, e.insertedUnix
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

func (c *queryCache) hits(key string) int {
	if e, ok := c.entries[key]; ok {
		return e.hits
	}
	return 0
}

func (c *queryCache) invalidate() {
	c.entries = make(map[string]*queryCacheEntry)
}

func (c *queryCache) bytes() int {
	n := 0
	for k, e := range c.entries {
		n += cacheEntryBytes(k, e.results)
	}
	return n
}

// cacheEntryBytes is the accounted footprint of one memoized result set.
func cacheEntryBytes(key string, results []behavior.Observation) int {
	return 64 + len(key) + len(results)*rawRecordBytes
}
