package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildtrack-data/ethogram/internal/behavior"
	"github.com/wildtrack-data/ethogram/internal/testutil"
)

// monthObservations builds n observations in the given month of 2026 with the
// given behavior and activity level.
func monthObservations(month time.Month, n int, b behavior.BehaviorType, activity float64) []behavior.Observation {
	out := make([]behavior.Observation, n)
	for i := range out {
		ts := time.Date(2026, month, 1+i%27, 10, 0, 0, 0, time.UTC)
		o := testutil.Obs(b, 0.9, ts.Unix())
		o.ActivityLevel = activity
		out[i] = o
	}
	return out
}

func TestAnalyzeSeasonalMigration(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	a, _ := newTestAnalyzer(t, testConfig(), now)

	// Activity jumps from 0.2 in March to 0.9 in April.
	feed(a, monthObservations(time.March, 10, behavior.BehaviorForaging, 0.2))
	feed(a, monthObservations(time.April, 10, behavior.BehaviorForaging, 0.9))

	res, err := a.AnalyzeSeasonal(2)
	require.NoError(t, err)

	assert.True(t, res.MigrationIndicator)
	assert.InDelta(t, 0.2, res.MonthlyActivity[2], 1e-9)
	assert.InDelta(t, 0.9, res.MonthlyActivity[3], 1e-9)
	assert.InDelta(t, 0.5, res.MonthlyProbability[2], 1e-9)
}

func TestAnalyzeSeasonalNoMigrationAcrossGap(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a, _ := newTestAnalyzer(t, testConfig(), now)

	// Large activity difference, but the months are not adjacent and the gap
	// month has no data, so no migration is inferred.
	feed(a, monthObservations(time.March, 10, behavior.BehaviorForaging, 0.1))
	feed(a, monthObservations(time.May, 10, behavior.BehaviorForaging, 0.9))

	res, err := a.AnalyzeSeasonal(2)
	require.NoError(t, err)
	assert.False(t, res.MigrationIndicator)
}

func TestAnalyzeSeasonalBreedingMonths(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	a, _ := newTestAnalyzer(t, testConfig(), now)

	// April: 3 of 12 observations are mating (25%, above the 10% floor).
	feed(a, monthObservations(time.March, 10, behavior.BehaviorForaging, 0.5))
	feed(a, monthObservations(time.April, 9, behavior.BehaviorForaging, 0.5))
	feed(a, monthObservations(time.April, 3, behavior.BehaviorMating, 0.5))

	res, err := a.AnalyzeSeasonal(2)
	require.NoError(t, err)

	assert.Equal(t, []int{3}, res.BreedingMonths)
	assert.InDelta(t, 0.25, res.MatingProbability[3], 1e-9)
}

func TestAnalyzeSeasonalInsufficientData(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("too few points", func(t *testing.T) {
		a, _ := newTestAnalyzer(t, testConfig(), now)
		feed(a, monthObservations(time.March, 5, behavior.BehaviorForaging, 0.5))
		_, err := a.AnalyzeSeasonal(1)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("too few distinct months", func(t *testing.T) {
		a, _ := newTestAnalyzer(t, testConfig(), now)
		feed(a, monthObservations(time.March, 20, behavior.BehaviorForaging, 0.5))
		_, err := a.AnalyzeSeasonal(2)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})
}

func TestAnalyzeSeasonalCachedUntilTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	a, clock := newTestAnalyzer(t, testConfig(), now)

	feed(a, monthObservations(time.March, 10, behavior.BehaviorForaging, 0.5))
	feed(a, monthObservations(time.April, 10, behavior.BehaviorForaging, 0.5))

	first, err := a.AnalyzeSeasonal(2)
	require.NoError(t, err)

	feed(a, monthObservations(time.May, 10, behavior.BehaviorForaging, 0.5))
	clock.Advance(12 * time.Hour)
	cached, err := a.AnalyzeSeasonal(2)
	require.NoError(t, err)
	assert.Equal(t, first.DataPoints, cached.DataPoints)

	clock.Advance(13 * time.Hour)
	refreshed, err := a.AnalyzeSeasonal(2)
	require.NoError(t, err)
	assert.Equal(t, 30, refreshed.DataPoints)
}
