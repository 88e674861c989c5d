package detect

import (
	"github.com/wildtrack-data/ethogram/internal/behavior"
)

// detectMarkov counts first-order behavior transitions and emits a
// two-element pattern for every transition whose conditional probability
// reaches markovMinProbability with at least the minimum supporting count.
// Needs at least three observations to see a meaningful chain.
func (d *Detector) detectMarkov(obs []behavior.Observation, env behavior.Environment) []behavior.Pattern {
	if len(obs) < 3 {
		return nil
	}

	type transition struct{ from, to behavior.BehaviorType }
	counts := make(map[transition]int)
	totals := make(map[behavior.BehaviorType]int)
	support := make(map[transition][]behavior.Observation)
	for i := 1; i < len(obs); i++ {
		t := transition{obs[i-1].Behavior, obs[i].Behavior}
		counts[t]++
		totals[t.from]++
		support[t] = append(support[t], obs[i])
	}

	var out []behavior.Pattern
	for t, n := range counts {
		if n < d.cfg.MinObservations {
			continue
		}
		prob := float64(n) / float64(totals[t.from])
		if prob < markovMinProbability {
			continue
		}
		seq := []behavior.BehaviorType{t.from, t.to}
		out = append(out, newPattern(seq, support[t], env, prob, n, behavior.MethodMarkov))
	}
	return out
}

// TransitionProbabilities exposes the normalized transition matrix for a
// window of observations. For every from-state with at least one observed
// transition the row sums to 1.
func TransitionProbabilities(obs []behavior.Observation) map[behavior.BehaviorType]map[behavior.BehaviorType]float64 {
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
