package predict

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wildtrack-data/ethogram/internal/behavior"
	"github.com/wildtrack-data/ethogram/internal/store"
)

// populationHealth summarizes the behavior stream over a window: Shannon
// diversity of the behavior distribution (normalized to [0,1]) plus mean
// stress and activity. A quiet window yields the zero value.
func (e *Engine) populationHealth(windowSeconds int64) PopulationHealth {
	now := e.clock.Now().Unix()
	obs := e.store.Query(store.QueryParams{StartUnix: now - windowSeconds})
	if len(obs) == 0 {
		return PopulationHealth{}
	}

	counts := make(map[behavior.BehaviorType]int)
	var stressSum, activitySum float64
	for _, o := range obs {
		counts[o.Behavior]++
		stressSum += o.StressLevel
		activitySum += o.ActivityLevel
	}

	probs := make([]float64, 0, len(counts))
	for _, n := range counts {
		probs = append(probs, float64(n)/float64(len(obs)))
	}
	diversity := 0.0
	if len(probs) > 1 {
		entropy := stat.Entropy(probs)
		diversity = entropy / math.Log(float64(behavior.NumBehaviorTypes))
		if diversity > 1 {
			diversity = 1
		}
	}

	return PopulationHealth{
		BehavioralDiversity: diversity,
		MeanStress:          stressSum / float64(len(obs)),
		MeanActivity:        activitySum / float64(len(obs)),
		ObservationCount:    len(obs),
	}
}

// FeedingWindow is one recommended observation slot for feeding activity.
type FeedingWindow struct {
	DayOffset int
	Hour      int
	Score     float64
}

// OptimalFeedingTimes projects the species' feeding hours from the stored
// circadian distribution over the next daysAhead days, best hours first
// within each day. Returns nil when the species has no feeding history.
func (e *Engine) OptimalFeedingTimes(species string, daysAhead int) []FeedingWindow {
	if daysAhead <= 0 {
		daysAhead = 1
	}

	feeding := e.store.Query(store.QueryParams{
		Species:     species,
		Behavior:    behavior.BehaviorFeeding,
		BehaviorSet: true,
	})
	if len(feeding) == 0 {
		return nil
	}

	var hourCounts [24]int
	for _, o := range feeding {
		hourCounts[o.Hour()]++
	}

	type hourScore struct {
		hour  int
		score float64
	}
	var scored []hourScore
	for h, n := range hourCounts {
		if n == 0 {
			continue
		}
		scored = append(scored, hourScore{hour: h, score: float64(n) / float64(len(feeding))})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > 3 {
		scored = scored[:3]
	}

	var out []FeedingWindow
	for day := 0; day < daysAhead; day++ {
		for _, hs := range scored {
			out = append(out, FeedingWindow{DayOffset: day, Hour: hs.hour, Score: hs.score})
		}
	}
	return out
}
