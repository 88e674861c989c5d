// Package cache implements the multi-index pattern cache. Discovered
// patterns are kept under a capacity and memory budget with pluggable
// eviction: least-recently-used order when enabled, otherwise a relevance
// score combining confidence, access frequency and recency.
package cache

import (
	"container/list"
	"sync"

	"github.com/wildtrack-data/ethogram/internal/behavior"
	"github.com/wildtrack-data/ethogram/internal/timeutil"
)

// hourIndexThreshold is the hourly probability above which a pattern is
// listed in the hour-of-day index (likewise for months).
const hourIndexThreshold = 0.1

// Config holds the cache's tunable parameters.
type Config struct {
	MaxPatterns            int     `json:"max_patterns"`
	MaxMemoryKB            int     `json:"max_memory_kb"`
	TTLSeconds             int64   `json:"ttl_seconds"`
	RelevanceThreshold     float64 `json:"relevance_threshold"`
	EnableLRU              bool    `json:"enable_lru"`
	EnableRelevanceScoring bool    `json:"enable_relevance_scoring"`
}

// DefaultConfig returns the cache defaults.
func DefaultConfig() Config {
	return Config{
		MaxPatterns:            50,
		MaxMemoryKB:            128,
		TTLSeconds:             3600,
		RelevanceThreshold:     0.1,
		EnableLRU:              true,
		EnableRelevanceScoring: true,
	}
}

// Entry wraps a cached pattern with its access metadata.
type Entry struct {
	Pattern        behavior.Pattern
	AccessCount    int
	LastAccessUnix int64
	InsertedUnix   int64
	Relevance      float64
}

// PatternCache stores discovered patterns keyed by sequence identity with
// secondary indices by behavior, sequence hash, hour of day, month and
// confidence decile.
type PatternCache struct {
	mu    sync.Mutex
	cfg   Config
	clock timeutil.Clock

	entries map[uint64]*Entry        // keyed by sequence hash
	lru     *list.List               // front = most recently used, values are uint64 keys
	lruPos  map[uint64]*list.Element

	byBehavior   map[behavior.BehaviorType]map[uint64]struct{}
	byHour       [24]map[uint64]struct{}
	byMonth      [12]map[uint64]struct{}
	byConfidence [10]map[uint64]struct{}
}

// New creates a pattern cache with the given configuration and clock.
func New(cfg Config, clock timeutil.Clock) *PatternCache {
	if cfg.MaxPatterns <= 0 {
		cfg.MaxPatterns = DefaultConfig().MaxPatterns
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	c := &PatternCache{
		cfg:        cfg,
		clock:      clock,
		entries:    make(map[uint64]*Entry),
		lru:        list.New(),
		lruPos:     make(map[uint64]*list.Element),
		byBehavior: make(map[behavior.BehaviorType]map[uint64]struct{}),
	}
	for i := range c.byHour {
		c.byHour[i] = make(map[uint64]struct{})
	}
	for i := range c.byMonth {
		c.byMonth[i] = make(map[uint64]struct{})
	}
	for i := range c.byConfidence {
		c.byConfidence[i] = make(map[uint64]struct{})
	}
	return c
}

// Put inserts the pattern, or merges it into the existing entry with the
// same sequence identity (weighted average by observation count, refreshed
// access metadata). Returns true when an existing entry was merged.
func (c *PatternCache) Put(p behavior.Pattern) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now().Unix()
	key := p.SequenceKey()
	if e, ok := c.entries[key]; ok {
		c.unindexLocked(key, &e.Pattern)
		e.Pattern.Merge(&p)
		e.AccessCount++
		e.LastAccessUnix = now
		e.Relevance = c.relevanceLocked(e, now)
		c.indexLocked(key, &e.Pattern)
		c.touchLocked(key)
		return true
	}

	e := &Entry{
		Pattern:        p.Clone(),
		AccessCount:    1,
		LastAccessUnix: now,
		InsertedUnix:   now,
	}
	e.Relevance = c.relevanceLocked(e, now)
	c.entries[key] = e
	c.lruPos[key] = c.lru.PushFront(key)
	c.indexLocked(key, &e.Pattern)

	c.enforceBudgetsLocked()
	return false
}

// Get returns a copy of the entry for the exact sequence, updating its
// access metadata.
func (c *PatternCache) Get(seq []behavior.BehaviorType) (behavior.Pattern, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[behavior.SequenceKey(seq)]
	if !ok {
		return behavior.Pattern{}, false
	}
	c.recordAccessLocked(behavior.SequenceKey(seq), e)
	return e.Pattern.Clone(), true
}

// ByBehavior returns cached patterns containing the behavior with confidence
// at or above minConfidence.
func (c *PatternCache) ByBehavior(t behavior.BehaviorType, minConfidence float64) []behavior.Pattern {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []behavior.Pattern
	for key := range c.byBehavior[t] {
		e := c.entries[key]
		if e == nil || e.Pattern.Confidence < minConfidence {
			continue
		}
		c.recordAccessLocked(key, e)
		out = append(out, e.Pattern.Clone())
	}
	return out
}

// BySequence returns patterns matching the sequence: the identical sequence
// when exact, otherwise every pattern with similarity of at least 0.9.
func (c *PatternCache) BySequence(seq []behavior.BehaviorType, exact bool) []behavior.Pattern {
	c.mu.Lock()
	defer c.mu.Unlock()

	if exact {
		key := behavior.SequenceKey(seq)
		if e, ok := c.entries[key]; ok {
			c.recordAccessLocked(key, e)
			return []behavior.Pattern{e.Pattern.Clone()}
		}
		return nil
	}

	var out []behavior.Pattern
	for key, e := range c.entries {
		if behavior.SequenceSimilarity(seq, e.Pattern.Sequence) >= 0.9 {
			c.recordAccessLocked(key, e)
			out = append(out, e.Pattern.Clone())
		}
	}
	return out
}

// Contextual returns patterns active at the given hour that contain the
// behavior and fit the environment, best environmental match first.
func (c *PatternCache) Contextual(t behavior.BehaviorType, env behavior.Environment, hour int) []behavior.Pattern {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hour < 0 || hour > 23 {
		return nil
	}
	var out []behavior.Pattern
	for key := range c.byHour[hour] {
		e := c.entries[key]
		if e == nil {
			continue
		}
		if _, ok := c.byBehavior[t][key]; !ok {
			continue
		}
		c.recordAccessLocked(key, e)
		out = append(out, e.Pattern.Clone())
	}
	sortPatternsByEnvMatch(out, env)
	return out
}

// Len returns the number of cached patterns.
func (c *PatternCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns a snapshot of all cache entries, for inspection.
func (c *PatternCache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		snap := *e
		snap.Pattern = e.Pattern.Clone()
		out = append(out, snap)
	}
	return out
}

// Optimize drops entries past their TTL, then, while the cache sits above
// 80% of capacity, evicts entries whose relevance score falls below the
// configured threshold, lowest first. Returns the number of entries removed.
func (c *PatternCache) Optimize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now().Unix()
	removed := 0
	for key, e := range c.entries {
		if c.cfg.TTLSeconds > 0 && now-e.InsertedUnix > c.cfg.TTLSeconds {
			c.removeLocked(key)
			removed++
		}
	}

	if !c.cfg.EnableRelevanceScoring {
		return removed
	}
	highWater := c.cfg.MaxPatterns * 8 / 10
	for len(c.entries) > highWater {
		key, e := c.lowestRelevanceLocked(now)
		if e == nil || e.Relevance >= c.cfg.RelevanceThreshold {
			break
		}
		c.removeLocked(key)
		removed++
	}
	return removed
}

// Clear removes every entry and index.
func (c *PatternCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uint64]*Entry)
	c.lru.Init()
	c.lruPos = make(map[uint64]*list.Element)
	c.byBehavior = make(map[behavior.BehaviorType]map[uint64]struct{})
	for i := range c.byHour {
		c.byHour[i] = make(map[uint64]struct{})
	}
	for i := range c.byMonth {
		c.byMonth[i] = make(map[uint64]struct{})
	}
	for i := range c.byConfidence {
		c.byConfidence[i] = make(map[uint64]struct{})
	}
}

// enforceBudgetsLocked evicts entries until both the pattern count and the
// memory budget hold. Capacity eviction always evicts: LRU order when
// enabled, otherwise the lowest relevance score.
func (c *PatternCache) enforceBudgetsLocked() {
	now := c.clock.Now().Unix()
	for len(c.entries) > c.cfg.MaxPatterns || (c.cfg.MaxMemoryKB > 0 && c.memoryBytesLocked() > c.cfg.MaxMemoryKB*1024) {
		var victim uint64
		if c.cfg.EnableLRU {
			back := c.lru.Back()
			if back == nil {
				return
			}
			victim = back.Value.(uint64)
		} else {
			key, e := c.lowestRelevanceLocked(now)
			if e == nil {
				return
			}
			victim = key
		}
		c.removeLocked(victim)
	}
}

func (c *PatternCache) lowestRelevanceLocked(nowUnix int64) (uint64, *Entry) {
	var worstKey uint64
	var worst *Entry
	for key, e := range c.entries {
		e.Relevance = c.relevanceLocked(e, nowUnix)
		if worst == nil || e.Relevance < worst.Relevance {
			worstKey, worst = key, e
		}
	}
	return worstKey, worst
}

func (c *PatternCache) removeLocked(key uint64) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.unindexLocked(key, &e.Pattern)
	if el, ok := c.lruPos[key]; ok {
		c.lru.Remove(el)
		delete(c.lruPos, key)
	}
	delete(c.entries, key)
}

func (c *PatternCache) recordAccessLocked(key uint64, e *Entry) {
	now := c.clock.Now().Unix()
	e.AccessCount++
	e.LastAccessUnix = now
	e.Relevance = c.relevanceLocked(e, now)
	c.touchLocked(key)
}

func (c *PatternCache) touchLocked(key uint64) {
	if el, ok := c.lruPos[key]; ok {
		c.lru.MoveToFront(el)
	}
}

func (c *PatternCache) indexLocked(key uint64, p *behavior.Pattern) {
	for _, b := range p.Sequence {
		if c.byBehavior[b] == nil {
			c.byBehavior[b] = make(map[uint64]struct{})
		}
		c.byBehavior[b][key] = struct{}{}
	}
	for h, prob := range p.HourlyProbability {
		if prob > hourIndexThreshold {
			c.byHour[h][key] = struct{}{}
		}
	}
	for m, prob := range p.MonthlyProbability {
		if prob > hourIndexThreshold {
			c.byMonth[m][key] = struct{}{}
		}
	}
	c.byConfidence[confidenceBucket(p.Confidence)][key] = struct{}{}
}

func (c *PatternCache) unindexLocked(key uint64, p *behavior.Pattern) {
	for _, b := range p.Sequence {
		if idx := c.byBehavior[b]; idx != nil {
			delete(idx, key)
		}
	}
	for h := range c.byHour {
		delete(c.byHour[h], key)
	}
	for m := range c.byMonth {
		delete(c.byMonth[m], key)
	}
	for i := range c.byConfidence {
		delete(c.byConfidence[i], key)
	}
}

func (c *PatternCache) memoryBytesLocked() int {
	n := 0
	for _, e := range c.entries {
		// entry struct, probability vectors and sequence payload
		n += 400 + 8*len(e.Pattern.Sequence)
	}
	return n
}

func confidenceBucket(conf float64) int {
	b := int(conf * 10)
	if b < 0 {
		return 0
	}
	if b > 9 {
		return 9
	}
	return b
}
