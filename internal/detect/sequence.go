package detect

import (
	"github.com/wildtrack-data/ethogram/internal/behavior"
)

// detectSequences scans every candidate subsequence length from 2 up to the
// configured maximum (and at most half the window) at every start offset,
// counting immediately-following exact repetitions. A candidate is accepted
// once its occurrence count reaches the minimum; confidence grows with
// repetitions and saturates at ten.
func (d *Detector) detectSequences(obs []behavior.Observation, env behavior.Environment) []behavior.Pattern {
	if len(obs) < 2 {
		return nil
	}

	seq := make([]behavior.BehaviorType, len(obs))
	for i, o := range obs {
		seq[i] = o.Behavior
	}

	maxLen := d.cfg.MaxPatternLength
	if half := len(seq) / 2; half < maxLen {
		maxLen = half
	}

	var out []behavior.Pattern
	seen := make(map[uint64]bool)
	for length := 2; length <= maxLen; length++ {
		for start := 0; start+length <= len(seq); start++ {
			candidate := seq[start : start+length]
			key := behavior.SequenceKey(candidate)
			if seen[key] {
				continue
			}

			occurrences := 1
			var support []behavior.Observation
			support = append(support, obs[start:start+length]...)
			for next := start + length; next+length <= len(seq); next += length {
				if !equalSequences(candidate, seq[next:next+length]) {
					break
				}
				occurrences++
				support = append(support, obs[next:next+length]...)
			}

			if occurrences < d.cfg.MinObservations {
				continue
			}
			seen[key] = true

			confidence := float64(occurrences) / 10
			if confidence > 1 {
				confidence = 1
			}
			out = append(out, newPattern(candidate, support, env, confidence, occurrences, behavior.MethodSequence))
		}
	}
	return out
}

func equalSequences(a, b []behavior.BehaviorType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
