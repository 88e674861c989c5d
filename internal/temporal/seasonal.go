package temporal

import (
	"math"

	"github.com/wildtrack-data/ethogram/internal/behavior"
)

// Thresholds for seasonal indicators.
const (
	// migrationDelta flags a migration pattern when month-over-month
	// activity changes by more than this.
	migrationDelta = 0.5
	// breedingProbability flags a breeding month when mating behavior
	// exceeds this share of the month's observations.
	breedingProbability = 0.1
)

// SeasonalAnalysis is the 12-month decomposition of the activity stream.
type SeasonalAnalysis struct {
	// MonthlyActivity is the mean activity level per month (index 0 =
	// January).
	MonthlyActivity [12]float64
	// MonthlyProbability is the share of observations per month.
	MonthlyProbability [12]float64
	// MatingProbability is the share of mating behavior per month.
	MatingProbability [12]float64

	// MigrationIndicator is set when any month-over-month activity change
	// exceeds the migration delta.
	MigrationIndicator bool
	// BreedingMonths lists months whose mating probability exceeds the
	// breeding threshold.
	BreedingMonths []int

	DataPoints   int
	ComputedUnix int64
}

// AnalyzeSeasonal buckets history by month and derives migration and
// breeding indicators. It requires the configured minimum data points and at
// least minMonths distinct months of coverage. The result is cached and
// reused until the refresh interval (one simulated day) elapses.
func (a *Analyzer) AnalyzeSeasonal(minMonths int) (SeasonalAnalysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.cfg.EnableSeasonal {
		return SeasonalAnalysis{}, ErrInsufficientData
	}
	now := a.clock.Now().Unix()
	if a.seasonal != nil && now-a.seasonalAtUnix < a.cfg.SeasonalTTLSeconds {
		return *a.seasonal, nil
	}

	events := a.hist.snapshot()
	if len(events) < a.cfg.SeasonalMinPoints {
		return SeasonalAnalysis{}, ErrInsufficientData
	}
	if minMonths > 0 && distinctMonths(events) < minMonths {
		return SeasonalAnalysis{}, ErrInsufficientData
	}

	res := computeSeasonal(events, now)
	a.seasonal = &res
	a.seasonalAtUnix = now
	return res, nil
}

func computeSeasonal(events []timedEvent, nowUnix int64) SeasonalAnalysis {
	res := SeasonalAnalysis{DataPoints: len(events), ComputedUnix: nowUnix}

	var activitySum [12]float64
	var counts [12]int
	var matingCounts [12]int
	for _, e := range events {
		m := e.obs.Month()
		activitySum[m] += e.obs.ActivityLevel
		counts[m]++
		if e.obs.Behavior == behavior.BehaviorMating {
			matingCounts[m]++
		}
	}

	total := len(events)
	for m := 0; m < 12; m++ {
		if counts[m] > 0 {
			res.MonthlyActivity[m] = clamp01(activitySum[m] / float64(counts[m]))
			res.MatingProbability[m] = float64(matingCounts[m]) / float64(counts[m])
		}
		res.MonthlyProbability[m] = float64(counts[m]) / float64(total)

		if res.MatingProbability[m] > breedingProbability {
			res.BreedingMonths = append(res.BreedingMonths, m)
		}
	}

	for m := 0; m < 12; m++ {
		next := (m + 1) % 12
		if counts[m] == 0 || counts[next] == 0 {
			continue
		}
		if math.Abs(res.MonthlyActivity[next]-res.MonthlyActivity[m]) > migrationDelta {
			res.MigrationIndicator = true
			break
		}
	}
	return res
}

func distinctMonths(events []timedEvent) int {
	months := make(map[int]struct{})
	for _, e := range events {
		months[e.obs.Month()] = struct{}{}
	}
	return len(months)
}
