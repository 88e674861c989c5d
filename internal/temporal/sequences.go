package temporal

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wildtrack-data/ethogram/internal/behavior"
)

// Sequence is the materialized slice of observations inside one window,
// with derived statistics. Sequences are ephemeral: recomputed per analysis
// call and owned by the caller.
type Sequence struct {
	Window       Window
	Observations []behavior.Observation
	StartUnix    int64
	EndUnix      int64

	DominantBehavior behavior.BehaviorType
	TransitionCount  int
	ActivityLevel    float64
	Entropy          float64
	Predictability   float64
	Coherence        float64
}

// AnalysisResult groups the sequences extracted per window tier.
type AnalysisResult struct {
	Short  []Sequence
	Medium []Sequence
	Long   []Sequence
}

// AnalyzeSequences extracts short-, medium- and long-term sequences from the
// history within the last windowSeconds via sliding windows. Windows with
// fewer than their tier's minimum observations are skipped.
func (a *Analyzer) AnalyzeSequences(windowSeconds int64) AnalysisResult {
	a.mu.Lock()
	events := a.hist.since(a.clock.Now().Unix() - windowSeconds)
	a.mu.Unlock()

	return AnalysisResult{
		Short:  extractSequences(events, a.cfg.Short),
		Medium: extractSequences(events, a.cfg.Medium),
		Long:   extractSequences(events, a.cfg.Long),
	}
}

func extractSequences(events []timedEvent, w Window) []Sequence {
	if len(events) == 0 || w.SizeSeconds <= 0 {
		return nil
	}
	step := w.StepSeconds
	if step <= 0 {
		step = w.SizeSeconds
	}
	if !w.Overlap && step < w.SizeSeconds {
		step = w.SizeSeconds
	}

	first := events[0].obs.TimestampUnix
	last := events[len(events)-1].obs.TimestampUnix

	var out []Sequence
	for start := first; start <= last; start += step {
		end := start + w.SizeSeconds
		var obs []behavior.Observation
		for _, e := range events {
			if e.obs.TimestampUnix >= start && e.obs.TimestampUnix < end {
				obs = append(obs, e.obs)
			}
		}
		if len(obs) < w.MinObservations {
			continue
		}
		out = append(out, buildSequence(obs, w, start, end))
	}
	return out
}

func buildSequence(obs []behavior.Observation, w Window, start, end int64) Sequence {
	seq := Sequence{
		Window:       w,
		Observations: obs,
		StartUnix:    start,
		EndUnix:      end,
	}

	counts := make(map[behavior.BehaviorType]int)
	activities := make([]float64, len(obs))
	for i, o := range obs {
		counts[o.Behavior]++
		activities[i] = o.ActivityLevel
	}

	maxCount := 0
	for b, n := range counts {
		if n > maxCount {
			maxCount = n
			seq.DominantBehavior = b
		}
	}
	for i := 1; i < len(obs); i++ {
		if obs[i].Behavior != obs[i-1].Behavior {
			seq.TransitionCount++
		}
	}
	seq.ActivityLevel = stat.Mean(activities, nil)
	seq.Entropy = behaviorEntropy(counts, len(obs))
	seq.Predictability = clamp01(1 - seq.Entropy/maxBehaviorEntropy())
	seq.Coherence = sequenceCoherence(obs)
	return seq
}

// behaviorEntropy computes the Shannon entropy of the behavior distribution.
// Zero-count buckets never enter the distribution, so no NaN can appear.
func behaviorEntropy(counts map[behavior.BehaviorType]int, total int) float64 {
	if total == 0 || len(counts) == 0 {
		return 0
	}
	probs := make([]float64, 0, len(counts))
	for _, n := range counts {
		probs = append(probs, float64(n)/float64(total))
	}
	e := stat.Entropy(probs)
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return 0
	}
	return e
}

// maxBehaviorEntropy is the entropy of a uniform distribution over all
// behavior classes, used to normalize predictability into [0,1].
func maxBehaviorEntropy() float64 {
	return math.Log(float64(behavior.NumBehaviorTypes))
}
