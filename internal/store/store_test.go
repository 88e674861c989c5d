package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildtrack-data/ethogram/internal/behavior"
	"github.com/wildtrack-data/ethogram/internal/testutil"
	"github.com/wildtrack-data/ethogram/internal/timeutil"
)

func newTestStore(t *testing.T, cfg Config, nowUnix int64) (*CompressedStore, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Unix(nowUnix, 0).UTC())
	s, err := New(cfg, clock)
	require.NoError(t, err)
	return s, clock
}

func TestNewRejectsInvalidBudget(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxMemoryKB: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidBudget)

	_, err = New(Config{MaxMemoryKB: -5}, nil)
	assert.ErrorIs(t, err, ErrInvalidBudget)
}

func TestStoreRejectsInvalidObservation(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, DefaultConfig(), 1700000000)
	bad := testutil.Obs(behavior.BehaviorFeeding, 1.5, 1700000000)
	err := s.Store(bad, testutil.MildEnv(1700000000))
	assert.ErrorIs(t, err, behavior.ErrInvalidObservation)
	assert.Equal(t, 0, s.Len())
}

func TestStoreRoundTripWithinQuantization(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, DefaultConfig(), 1700000000)
	obs := behavior.Observation{
		Species:          "vulpes_vulpes",
		Behavior:         behavior.BehaviorForaging,
		Confidence:       0.87,
		DurationSeconds:  150,
		ActivityLevel:    0.62,
		StressLevel:      0.13,
		AnimalCount:      3,
		Repeated:         true,
		HumanInteraction: true,
		TimestampUnix:    1700000000,
	}
	env := testutil.Env(14.3, 62.7, 0.4, 1700000000)
	require.NoError(t, s.Store(obs, env))

	got := s.Query(QueryParams{Species: "vulpes_vulpes"})
	require.Len(t, got, 1)

	assert.Equal(t, obs.Species, got[0].Species)
	assert.Equal(t, obs.Behavior, got[0].Behavior)
	assert.Equal(t, obs.TimestampUnix, got[0].TimestampUnix)
	assert.Equal(t, obs.AnimalCount, got[0].AnimalCount)
	assert.Equal(t, obs.Repeated, got[0].Repeated)
	assert.Equal(t, obs.Group, got[0].Group)
	assert.Equal(t, obs.HumanInteraction, got[0].HumanInteraction)
	assert.InDelta(t, obs.Confidence, got[0].Confidence, 1.0/255+1e-9)
	assert.InDelta(t, obs.ActivityLevel, got[0].ActivityLevel, 1.0/255+1e-9)
	assert.InDelta(t, obs.StressLevel, got[0].StressLevel, 1.0/255+1e-9)
	// Duration quantizes to whole minutes.
	assert.InDelta(t, obs.DurationSeconds, got[0].DurationSeconds, 30+1e-9)
}

func TestMemoryBudgetNeverExceeded(t *testing.T) {
	t.Parallel()

	// Tiny budget so the store fills quickly. All records are fresh, so
	// nothing is stale and inserts must start failing.
	s, _ := newTestStore(t, Config{MaxMemoryKB: 1, EnableCompression: true}, 1700000000)

	budget := 1 * 1024
	sawExhausted := false
	for i := 0; i < 200; i++ {
		ts := int64(1700000000 - i) // within the last few minutes
		err := s.Store(testutil.Obs(behavior.BehaviorMoving, 0.8, ts), testutil.MildEnv(ts))
		if err != nil {
			require.ErrorIs(t, err, ErrMemoryExhausted)
			sawExhausted = true
		}
		assert.LessOrEqual(t, s.MemoryUsage(), budget)
	}
	assert.True(t, sawExhausted, "store never hit its budget")

	// A failed insert mutates nothing.
	lenBefore := s.Len()
	err := s.Store(testutil.Obs(behavior.BehaviorMoving, 0.8, 1700000000), testutil.MildEnv(1700000000))
	require.ErrorIs(t, err, ErrMemoryExhausted)
	assert.Equal(t, lenBefore, s.Len())
}

func TestBudgetCoversIndexAndDictionaryGrowth(t *testing.T) {
	t.Parallel()

	// Unique species names grow the dictionary and species index with every
	// insert; the budget must cover that growth, not just the record bytes.
	now := int64(1700000000)
	s, _ := newTestStore(t, Config{MaxMemoryKB: 1, EnableCompression: true}, now)

	budget := 1 * 1024
	sawExhausted := false
	for i := 0; i < 50; i++ {
		ts := now - int64(i)
		name := fmt.Sprintf("species_%05d", i)
		err := s.Store(testutil.ObsSpecies(name, behavior.BehaviorMoving, 0.8, ts), testutil.MildEnv(ts))
		if err != nil {
			require.ErrorIs(t, err, ErrMemoryExhausted)
			sawExhausted = true
		}
		require.LessOrEqual(t, s.MemoryUsage(), budget, "after insert %d", i)
	}
	assert.True(t, sawExhausted, "store never hit its budget")
}

func TestQueryCacheRespectsBudget(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, clock := newTestStore(t, Config{MaxMemoryKB: 1, EnableCompression: true}, now)

	budget := 1 * 1024
	for i := 0; i < 15; i++ {
		ts := now - int64(i+1)
		require.NoError(t, s.Store(testutil.Obs(behavior.BehaviorMoving, 0.8, ts), testutil.MildEnv(ts)))
	}

	// Broad queries return every record; memoizing them all would dwarf the
	// record storage. Usage must stay within budget on the query path too.
	for i := 1; i <= queryCacheCapacity; i++ {
		clock.Advance(time.Second)
		got := s.Query(QueryParams{MinConfidence: float64(i) / 1000})
		assert.Len(t, got, 15)
		require.LessOrEqual(t, s.MemoryUsage(), budget, "after query %d", i)
	}

	// Cached result sets never starve record storage: a fresh record still
	// fits.
	require.NoError(t, s.Store(testutil.Obs(behavior.BehaviorMoving, 0.8, now), testutil.MildEnv(now)))

	t.Run("small results still cached", func(t *testing.T) {
		q := QueryParams{MinConfidence: 0.95} // matches nothing
		s.Query(q)
		s.Query(q)
		assert.Equal(t, 1, s.QueryCacheHits(q))
		assert.LessOrEqual(t, s.MemoryUsage(), budget)
	})
}

func TestCapacityEvictsStaleRecordsFirst(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, _ := newTestStore(t, Config{MaxMemoryKB: 1, EnableCompression: true}, now)

	stale := now - 8*24*3600 // older than the 7 day horizon
	require.NoError(t, s.Store(testutil.ObsSpecies("old_one", behavior.BehaviorResting, 0.9, stale), testutil.MildEnv(stale)))

	// Fill the store with fresh records until it refuses.
	for i := 0; ; i++ {
		ts := now - int64(i)
		if err := s.Store(testutil.Obs(behavior.BehaviorMoving, 0.8, ts), testutil.MildEnv(ts)); err != nil {
			break
		}
	}

	// The stale record was evicted to make room; fresh ones survived.
	assert.Empty(t, s.Query(QueryParams{Species: "old_one"}))
	assert.NotEmpty(t, s.Query(QueryParams{Species: "vulpes_vulpes"}))
}

func TestQueryFilters(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, _ := newTestStore(t, DefaultConfig(), now)

	require.NoError(t, s.Store(testutil.ObsSpecies("fox", behavior.BehaviorFeeding, 0.9, now-300), testutil.MildEnv(now-300)))
	require.NoError(t, s.Store(testutil.ObsSpecies("fox", behavior.BehaviorResting, 0.5, now-200), testutil.MildEnv(now-200)))
	require.NoError(t, s.Store(testutil.ObsSpecies("deer", behavior.BehaviorFeeding, 0.8, now-100), testutil.MildEnv(now-100)))

	t.Run("by species", func(t *testing.T) {
		got := s.Query(QueryParams{Species: "fox"})
		assert.Len(t, got, 2)
		for _, o := range got {
			assert.Equal(t, "fox", o.Species)
		}
	})

	t.Run("unknown species matches nothing", func(t *testing.T) {
		assert.Empty(t, s.Query(QueryParams{Species: "lynx"}))
	})

	t.Run("wildcard species matches all", func(t *testing.T) {
		assert.Len(t, s.Query(QueryParams{}), 3)
	})

	t.Run("by time range", func(t *testing.T) {
		got := s.Query(QueryParams{StartUnix: now - 250, EndUnix: now - 150})
		require.Len(t, got, 1)
		assert.Equal(t, behavior.BehaviorResting, got[0].Behavior)
	})

	t.Run("by behavior", func(t *testing.T) {
		got := s.Query(QueryParams{Behavior: behavior.BehaviorFeeding, BehaviorSet: true})
		assert.Len(t, got, 2)
	})

	t.Run("by minimum confidence", func(t *testing.T) {
		got := s.Query(QueryParams{Species: "fox", MinConfidence: 0.7})
		require.Len(t, got, 1)
		assert.Equal(t, behavior.BehaviorFeeding, got[0].Behavior)
	})

	t.Run("sorted with max results", func(t *testing.T) {
		got := s.Query(QueryParams{SortByTime: true, MaxResults: 2})
		require.Len(t, got, 2)
		assert.True(t, got[0].TimestampUnix <= got[1].TimestampUnix)
	})
}

func TestQueryCacheHitsAndInvalidation(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, _ := newTestStore(t, DefaultConfig(), now)
	require.NoError(t, s.Store(testutil.Obs(behavior.BehaviorFeeding, 0.9, now-60), testutil.MildEnv(now-60)))

	q := QueryParams{Species: "vulpes_vulpes", SortByTime: true}

	first := s.Query(q)
	assert.Equal(t, 0, s.QueryCacheHits(q), "first query populates, not hits")

	second := s.Query(q)
	assert.Equal(t, 1, s.QueryCacheHits(q))
	assert.Empty(t, cmp.Diff(first, second), "cached result differs from scan")

	// Cached results are copies; mutating one must not poison the cache.
	second[0].Species = "mangled"
	third := s.Query(q)
	assert.Equal(t, "vulpes_vulpes", third[0].Species)

	// Inserting invalidates so results never go stale.
	require.NoError(t, s.Store(testutil.Obs(behavior.BehaviorResting, 0.9, now-30), testutil.MildEnv(now-30)))
	assert.Equal(t, 0, s.QueryCacheHits(q))
	assert.Len(t, s.Query(q), 2)
}

func TestQueryCacheBounded(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, clock := newTestStore(t, DefaultConfig(), now)
	require.NoError(t, s.Store(testutil.Obs(behavior.BehaviorFeeding, 0.9, now-60), testutil.MildEnv(now-60)))

	// Insert more distinct queries than the cache holds; advance the clock so
	// insertion order is distinguishable.
	oldest := QueryParams{MinConfidence: 0.001}
	s.Query(oldest)
	for i := 2; i <= queryCacheCapacity+1; i++ {
		clock.Advance(time.Second)
		s.Query(QueryParams{MinConfidence: float64(i) / 1000})
	}

	// The oldest entry was evicted: querying it again is a miss.
	s.Query(oldest)
	assert.Equal(t, 0, s.QueryCacheHits(oldest))
}

func TestRecentReturnsTail(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, _ := newTestStore(t, DefaultConfig(), now)
	for i := 0; i < 10; i++ {
		ts := now - int64(600-i*60)
		require.NoError(t, s.Store(testutil.Obs(behavior.BehaviorMoving, 0.8, ts), testutil.MildEnv(ts)))
	}

	got := s.Recent("vulpes_vulpes", 3600, 3)
	require.Len(t, got, 3)
	// Oldest first, and the newest three of the ten.
	assert.Equal(t, now-180, got[0].TimestampUnix)
	assert.Equal(t, now-60, got[2].TimestampUnix)
}

func TestTransitionMatrix(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, _ := newTestStore(t, DefaultConfig(), now)

	// FEEDING -> RESTING three times, FEEDING -> MOVING once.
	seq := []behavior.BehaviorType{
		behavior.BehaviorFeeding, behavior.BehaviorResting,
		behavior.BehaviorFeeding, behavior.BehaviorResting,
		behavior.BehaviorFeeding, behavior.BehaviorResting,
		behavior.BehaviorFeeding, behavior.BehaviorMoving,
	}
	for i, b := range seq {
		ts := now - int64((len(seq)-i)*30)
		require.NoError(t, s.Store(testutil.Obs(b, 0.9, ts), testutil.MildEnv(ts)))
	}

	matrix := s.TransitionMatrix(3600)
	row := matrix[behavior.BehaviorFeeding]
	require.NotNil(t, row)
	assert.InDelta(t, 0.75, row[behavior.BehaviorResting], 1e-9)
	assert.InDelta(t, 0.25, row[behavior.BehaviorMoving], 1e-9)

	// Rows with observed transitions sum to 1.
	for from, r := range matrix {
		sum := 0.0
		for _, p := range r {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %s", from)
	}
}

func TestBehaviorFrequencies(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, _ := newTestStore(t, DefaultConfig(), now)
	for i, b := range []behavior.BehaviorType{
		behavior.BehaviorFeeding, behavior.BehaviorFeeding, behavior.BehaviorResting,
	} {
		ts := now - int64(300-i*60)
		require.NoError(t, s.Store(testutil.Obs(b, 0.9, ts), testutil.MildEnv(ts)))
	}

	freq := s.BehaviorFrequencies("vulpes_vulpes", 3600)
	assert.Equal(t, 2, freq[behavior.BehaviorFeeding])
	assert.Equal(t, 1, freq[behavior.BehaviorResting])
}

func TestOptimizeStorage(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, _ := newTestStore(t, DefaultConfig(), now)
	require.NoError(t, s.Store(testutil.Obs(behavior.BehaviorResting, 0.9, now-7200), testutil.MildEnv(now-7200)))
	require.NoError(t, s.Store(testutil.Obs(behavior.BehaviorFeeding, 0.9, now-60), testutil.MildEnv(now-60)))

	removed := s.OptimizeStorage(now - 3600)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())

	got := s.Query(QueryParams{})
	require.Len(t, got, 1)
	assert.Equal(t, behavior.BehaviorFeeding, got[0].Behavior)
}

func TestHasSufficientData(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, _ := newTestStore(t, DefaultConfig(), now)

	assert.False(t, s.HasSufficientData("fox", 1, 0))

	require.NoError(t, s.Store(testutil.ObsSpecies("fox", behavior.BehaviorFeeding, 0.9, now-1200), testutil.MildEnv(now-1200)))
	require.NoError(t, s.Store(testutil.ObsSpecies("fox", behavior.BehaviorResting, 0.9, now-60), testutil.MildEnv(now-60)))

	assert.True(t, s.HasSufficientData("fox", 2, 600))
	assert.False(t, s.HasSufficientData("fox", 3, 600), "not enough records")
	assert.False(t, s.HasSufficientData("fox", 2, 3600), "span too short")
	assert.True(t, s.HasSufficientData("", 2, 600), "wildcard counts all species")
}

func TestUncompressedStoreKeepsFullPrecision(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, _ := newTestStore(t, Config{MaxMemoryKB: 512, EnableCompression: false}, now)

	obs := testutil.Obs(behavior.BehaviorGrooming, 0.87654, now-60)
	require.NoError(t, s.Store(obs, testutil.MildEnv(now-60)))

	got := s.Query(QueryParams{})
	require.Len(t, got, 1)
	assert.Equal(t, obs.Confidence, got[0].Confidence, "no quantization loss when compression is off")
}

func TestClear(t *testing.T) {
	t.Parallel()

	now := int64(1700000000)
	s, _ := newTestStore(t, DefaultConfig(), now)
	require.NoError(t, s.Store(testutil.Obs(behavior.BehaviorFeeding, 0.9, now-60), testutil.MildEnv(now-60)))

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Query(QueryParams{}))
}
