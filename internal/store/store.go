// Package store implements the compressed, budget-bounded observation store.
// Records are append-only and quantized to a fixed-size byte layout; when the
// memory budget would be exceeded the store evicts its oldest records before
// refusing the insert. Secondary indices by species and time window keep the
// engine's readiness and transition queries cheap.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/wildtrack-data/ethogram/internal/behavior"
	"github.com/wildtrack-data/ethogram/internal/timeutil"
)

var (
	// ErrInvalidBudget indicates a zero or negative memory budget.
	ErrInvalidBudget = errors.New("invalid memory budget")
	// ErrMemoryExhausted indicates the store is at capacity even after
	// evicting stale records. The observation was not inserted.
	ErrMemoryExhausted = errors.New("memory budget exhausted")
)

// staleAgeSeconds is the age past which records are evicted when an insert
// would exceed the budget (7 days).
const staleAgeSeconds = 7 * 24 * 3600

// timeBucketSeconds is the granularity of the time index.
const timeBucketSeconds = 3600

// Config holds the store's tunable parameters.
type Config struct {
	// MaxMemoryKB is the memory budget for records, indices and the query
	// cache combined.
	MaxMemoryKB int `json:"max_memory_kb"`
	// EnableCompression selects the quantized record layout. When false the
	// store keeps full-precision copies at a much higher per-record cost.
	EnableCompression bool `json:"enable_compression"`
}

// DefaultConfig returns the store defaults: 512 KB budget, compression on.
func DefaultConfig() Config {
	return Config{MaxMemoryKB: 512, EnableCompression: true}
}

type speciesStats struct {
	count     int
	firstUnix int64
	lastUnix  int64
}

// CompressedStore is the append-only, budget-bounded observation store.
// All methods are safe for a single concurrent writer per call; the mutex is
// scoped to each public method.
type CompressedStore struct {
	mu    sync.Mutex
	cfg   Config
	clock timeutil.Clock

	records []record
	raw     []rawRecord // populated only when compression is disabled

	species    *speciesDict
	speciesIdx map[uint8]*speciesStats
	timeIdx    map[int64][]int // hour bucket -> record offsets

	qcache *queryCache
}

// New creates a store with the given configuration. It fails only on an
// invalid (zero) budget.
func New(cfg Config, clock timeutil.Clock) (*CompressedStore, error) {
	if cfg.MaxMemoryKB <= 0 {
		return nil, fmt.Errorf("%w: %d KB", ErrInvalidBudget, cfg.MaxMemoryKB)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &CompressedStore{
		cfg:        cfg,
		clock:      clock,
		species:    newSpeciesDict(),
		speciesIdx: make(map[uint8]*speciesStats),
		timeIdx:    make(map[int64][]int),
		qcache:     newQueryCache(),
	}, nil
}

// Store compresses and appends one observation. If the projected memory after
// the insert would exceed the budget, cached query results are dropped and
// records older than seven days are evicted; if the budget still cannot
// accommodate the record the insert fails with ErrMemoryExhausted without
// storing the observation.
func (s *CompressedStore) Store(obs behavior.Observation, env behavior.Environment) error {
	if err := obs.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cost := s.insertCostLocked(obs)
	if s.memoryUsageLocked()+cost > s.budgetBytes() {
		// A successful insert invalidates the query cache anyway, so cached
		// results never justify refusing a record.
		s.qcache.invalidate()
	}
	if s.memoryUsageLocked()+cost > s.budgetBytes() {
		cutoff := s.clock.Now().Unix() - staleAgeSeconds
		s.evictOlderThanLocked(cutoff)
		cost = s.insertCostLocked(obs) // eviction rebuilds the indices
		if s.memoryUsageLocked()+cost > s.budgetBytes() {
			return fmt.Errorf("%w: %d bytes used of %d", ErrMemoryExhausted,
				s.memoryUsageLocked(), s.budgetBytes())
		}
	}

	id := s.species.intern(obs.Species)
	rec := compress(obs, env, id)
	offset := len(s.records)
	s.records = append(s.records, rec)
	if !s.cfg.EnableCompression {
		s.raw = append(s.raw, rawRecord{obs: obs, env: env})
	}
	s.indexRecordLocked(rec, offset)
	s.qcache.invalidate()
	return nil
}

// Query filters stored observations by the given parameters. Results come
// from the bounded query cache on an exact parameter match; otherwise a
// linear scan decompresses matches and the result is memoized, but only as
// long as the cached bytes keep total usage within the memory budget. The
// returned slice is owned by the caller.
func (s *CompressedStore) Query(q QueryParams) []behavior.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := q.key()
	if results, ok := s.qcache.get(key); ok {
		return results
	}

	results := s.scanLocked(q)
	cost := cacheEntryBytes(key, results)
	for s.memoryUsageLocked()+cost > s.budgetBytes() && s.qcache.len() > 0 {
		s.qcache.evictOldest()
	}
	if s.memoryUsageLocked()+cost <= s.budgetBytes() {
		s.qcache.put(key, results, s.clock.Now().Unix())
	}
	return results
}

// QueryCacheHits reports the hit counter for the cache entry matching q.
func (s *CompressedStore) QueryCacheHits(q QueryParams) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qcache.hits(q.key())
}

// Recent returns up to maxCount observations for the species within the last
// windowSeconds, oldest first.
func (s *CompressedStore) Recent(species string, windowSeconds int64, maxCount int) []behavior.Observation {
	now := s.clock.Now().Unix()
	results := s.Query(QueryParams{
		Species:    species,
		StartUnix:  now - windowSeconds,
		SortByTime: true,
	})
	if maxCount > 0 && len(results) > maxCount {
		results = results[len(results)-maxCount:]
	}
	return results
}

// BehaviorFrequencies counts observations per behavior for the species
// within the last windowSeconds.
func (s *CompressedStore) BehaviorFrequencies(species string, windowSeconds int64) map[behavior.BehaviorType]int {
	now := s.clock.Now().Unix()
	obs := s.Query(QueryParams{Species: species, StartUnix: now - windowSeconds})
	freq := make(map[behavior.BehaviorType]int)
	for _, o := range obs {
		freq[o.Behavior]++
	}
	return freq
}

// TransitionMatrix derives first-order behavior transition probabilities from
// observations within the last windowSeconds, in timestamp order. For any
// from-state with at least one observed transition the probabilities over its
// successors sum to 1.
func (s *CompressedStore) TransitionMatrix(windowSeconds int64) map[behavior.BehaviorType]map[behavior.BehaviorType]float64 {
	now := s.clock.Now().Unix()
	obs := s.Query(QueryParams{StartUnix: now - windowSeconds, SortByTime: true})

	counts := make(map[behavior.BehaviorType]map[behavior.BehaviorType]int)
	totals := make(map[behavior.BehaviorType]int)
	for i := 1; i < len(obs); i++ {
		from, to := obs[i-1].Behavior, obs[i].Behavior
		if counts[from] == nil {
			counts[from] = make(map[behavior.BehaviorType]int)
		}
		counts[from][to]++
		totals[from]++
	}

	matrix := make(map[behavior.BehaviorType]map[behavior.BehaviorType]float64, len(counts))
	for from, row := range counts {
		matrix[from] = make(map[behavior.BehaviorType]float64, len(row))
		for to, n := range row {
			matrix[from][to] = float64(n) / float64(totals[from])
		}
	}
	return matrix
}

// OptimizeStorage evicts all records older than the given timestamp and
// compacts the indices. It returns the number of records removed.
func (s *CompressedStore) OptimizeStorage(olderThanUnix int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictOlderThanLocked(olderThanUnix)
}

// HasSufficientData reports whether the store holds at least minRecords
// observations for the species (wildcard "") spanning at least
// minSpanSeconds between the first and last record.
func (s *CompressedStore) HasSufficientData(species string, minRecords int, minSpanSeconds int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if species == "" {
		count := len(s.records)
		if count < minRecords {
			return false
		}
		var first, last int64
		for i, r := range s.records {
			if i == 0 || r.timestamp < first {
				first = r.timestamp
			}
			if r.timestamp > last {
				last = r.timestamp
			}
		}
		return last-first >= minSpanSeconds
	}

	id, ok := s.species.lookup(species)
	if !ok {
		return false
	}
	st, ok := s.speciesIdx[id]
	if !ok {
		return false
	}
	return st.count >= minRecords && st.lastUnix-st.firstUnix >= minSpanSeconds
}

// MemoryUsage returns the bytes consumed by records, indices and the query
// cache. This is exactly the quantity the budget check enforces.
func (s *CompressedStore) MemoryUsage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memoryUsageLocked()
}

// Len returns the number of stored records.
func (s *CompressedStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Clear removes every record, index entry and cached query result.
func (s *CompressedStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.raw = nil
	s.species = newSpeciesDict()
	s.speciesIdx = make(map[uint8]*speciesStats)
	s.timeIdx = make(map[int64][]int)
	s.qcache.invalidate()
}

func (s *CompressedStore) budgetBytes() int {
	return s.cfg.MaxMemoryKB * 1024
}

// insertCostLocked projects the full memory growth of storing obs: the record
// itself plus any index and dictionary entries it creates. The projection
// covers everything memoryUsageLocked counts, so an accepted insert can never
// push usage past the budget.
func (s *CompressedStore) insertCostLocked(obs behavior.Observation) int {
	cost := recordBytes
	if !s.cfg.EnableCompression {
		cost += rawRecordBytes
	}
	cost += 8 // offset slot in the time index
	if _, ok := s.timeIdx[obs.TimestampUnix/timeBucketSeconds]; !ok {
		cost += 16 // new time bucket
	}
	id, known := s.species.lookup(obs.Species)
	if !known {
		cost += 24 + len(obs.Species) + 40 // dictionary plus stats entry
	} else if _, ok := s.speciesIdx[id]; !ok {
		cost += 40
	}
	return cost
}

func (s *CompressedStore) memoryUsageLocked() int {
	n := len(s.records) * recordBytes
	n += len(s.raw) * rawRecordBytes
	n += s.species.bytes()
	n += len(s.speciesIdx) * 40 // map entry + speciesStats
	for _, offsets := range s.timeIdx {
		n += 16 + len(offsets)*8
	}
	n += s.qcache.bytes()
	return n
}

func (s *CompressedStore) indexRecordLocked(rec record, offset int) {
	st, ok := s.speciesIdx[rec.speciesID]
	if !ok {
		st = &speciesStats{firstUnix: rec.timestamp, lastUnix: rec.timestamp}
		s.speciesIdx[rec.speciesID] = st
	}
	st.count++
	if rec.timestamp < st.firstUnix {
		st.firstUnix = rec.timestamp
	}
	if rec.timestamp > st.lastUnix {
		st.lastUnix = rec.timestamp
	}

	bucket := rec.timestamp / timeBucketSeconds
	s.timeIdx[bucket] = append(s.timeIdx[bucket], offset)
}

// evictOlderThanLocked removes records with timestamp strictly older than the
// cutoff, then rebuilds the indices. Eviction is strictly oldest-first by
// timestamp regardless of species or confidence.
func (s *CompressedStore) evictOlderThanLocked(cutoffUnix int64) int {
	kept := s.records[:0]
	var keptRaw []rawRecord
	if !s.cfg.EnableCompression {
		keptRaw = s.raw[:0]
	}
	removed := 0
	for i, r := range s.records {
		if r.timestamp < cutoffUnix {
			removed++
			continue
		}
		kept = append(kept, r)
		if !s.cfg.EnableCompression {
			keptRaw = append(keptRaw, s.raw[i])
		}
	}
	if removed == 0 {
		return 0
	}
	s.records = kept
	if !s.cfg.EnableCompression {
		s.raw = keptRaw
	}
	s.rebuildIndicesLocked()
	s.qcache.invalidate()
	return removed
}

func (s *CompressedStore) rebuildIndicesLocked() {
	s.speciesIdx = make(map[uint8]*speciesStats)
	s.timeIdx = make(map[int64][]int)
	for i, r := range s.records {
		s.indexRecordLocked(r, i)
	}
}

func (s *CompressedStore) scanLocked(q QueryParams) []behavior.Observation {
	var speciesID uint8
	filterSpecies := q.Species != ""
	if filterSpecies {
		id, ok := s.species.lookup(q.Species)
		if !ok {
			return nil
		}
		speciesID = id
	}

	var results []behavior.Observation
	for i, r := range s.records {
		if filterSpecies && r.speciesID != speciesID {
			continue
		}
		if q.StartUnix != 0 && r.timestamp < q.StartUnix {
			continue
		}
		if q.EndUnix != 0 && r.timestamp > q.EndUnix {
			continue
		}
		if q.BehaviorSet && behavior.BehaviorType(r.behavior) != q.Behavior {
			continue
		}
		var obs behavior.Observation
		if s.cfg.EnableCompression {
			obs, _ = r.decompress(s.species.name(r.speciesID))
		} else {
			obs = s.raw[i].obs
		}
		if obs.Confidence < q.MinConfidence {
			continue
		}
		results = append(results, obs)
	}

	if q.SortByTime {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].TimestampUnix < results[j].TimestampUnix
		})
	}
	if q.MaxResults > 0 && len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}
	return results
}
