package detect

import (
	"github.com/wildtrack-data/ethogram/internal/behavior"
)

// detectStatistical counts raw behavior frequency and emits a
// single-behavior pattern for every behavior holding at least
// statisticalMinShare of the window with the minimum supporting count.
func (d *Detector) detectStatistical(obs []behavior.Observation, env behavior.Environment) []behavior.Pattern {
	if len(obs) < 2 {
		return nil
	}

	counts := make(map[behavior.BehaviorType]int)
	support := make(map[behavior.BehaviorType][]behavior.Observation)
	for _, o := range obs {
		counts[o.Behavior]++
		support[o.Behavior] = append(support[o.Behavior], o)
	}

	var out []behavior.Pattern
	for b, n := range counts {
		if n < d.cfg.MinObservations {
			continue
		}
		share := float64(n) / float64(len(obs))
		if share < statisticalMinShare {
			continue
		}
		seq := []behavior.BehaviorType{b}
		out = append(out, newPattern(seq, support[b], env, share, n, behavior.MethodStatistical))
	}
	return out
}
