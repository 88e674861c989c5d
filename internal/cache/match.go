package cache

import (
	"sort"

	"github.com/wildtrack-data/ethogram/internal/behavior"
)

// Weights of the combined match score. Sequence agreement dominates;
// environmental compatibility refines.
const (
	sequenceMatchWeight = 0.7
	envMatchWeight      = 0.3
)

// MatchRequest asks the cache for patterns resembling a behavior sequence in
// a given environment.
type MatchRequest struct {
	Sequence      []behavior.BehaviorType
	Environment   behavior.Environment
	Exact         bool
	MinConfidence float64
	MaxMatches    int
}

// Match pairs a pattern with its combined match score.
type Match struct {
	Pattern behavior.Pattern
	Score   float64
}

// MatchResult is the scored outcome of a FindMatches call.
type MatchResult struct {
	Matches []Match
	// Considered is the number of cached patterns scored for the request.
	Considered int
}

// FindMatches scores every cached pattern against the request's sequence
// (exact or fuzzy) combined with environmental compatibility, and returns the
// top MaxMatches at or above MinConfidence, best first. Access metadata and
// LRU order update for every candidate considered, hit or not.
func (c *PatternCache) FindMatches(req MatchRequest) MatchResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matches []Match
	considered := 0
	for key, e := range c.entries {
		considered++
		c.recordAccessLocked(key, e)

		seqScore := behavior.SequenceSimilarity(req.Sequence, e.Pattern.Sequence)
		if req.Exact && seqScore < 1 {
			continue
		}
		envScore := e.Pattern.EnvironmentMatch(req.Environment)
		score := sequenceMatchWeight*seqScore + envMatchWeight*envScore
		if score < req.MinConfidence {
			continue
		}
		matches = append(matches, Match{Pattern: e.Pattern.Clone(), Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if req.MaxMatches > 0 && len(matches) > req.MaxMatches {
		matches = matches[:req.MaxMatches]
	}
	return MatchResult{Matches: matches, Considered: considered}
}

// Continuation is a predicted next behavior together with the pattern that
// produced it and its score (pattern confidence times environmental match).
type Continuation struct {
	Pattern behavior.Pattern
	Next    behavior.BehaviorType
	Score   float64
}

// PredictNext scans cached patterns whose sequence begins with the tail of
// recent behaviors and returns the best continuation, scored by confidence
// times environmental match.
func (c *PatternCache) PredictNext(recent []behavior.BehaviorType, env behavior.Environment) (Continuation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *Entry
	var bestKey uint64
	bestScore := 0.0
	bestPrefix := 0
	for key, e := range c.entries {
		prefix := prefixMatchLen(recent, e.Pattern.Sequence)
		if prefix == 0 || prefix >= len(e.Pattern.Sequence) {
			continue
		}
		score := e.Pattern.Confidence * e.Pattern.EnvironmentMatch(env)
		if score > bestScore || (score == bestScore && prefix > bestPrefix) {
			best, bestKey, bestScore, bestPrefix = e, key, score, prefix
		}
	}
	if best == nil {
		return Continuation{}, false
	}
	c.recordAccessLocked(bestKey, best)
	return Continuation{
		Pattern: best.Pattern.Clone(),
		Next:    best.Pattern.Sequence[bestPrefix],
		Score:   bestScore,
	}, true
}

// prefixMatchLen returns the longest n such that the last n behaviors of
// recent equal the first n of seq.
func prefixMatchLen(recent, seq []behavior.BehaviorType) int {
	max := len(recent)
	if len(seq) < max {
		max = len(seq)
	}
	for n := max; n > 0; n-- {
		tail := recent[len(recent)-n:]
		ok := true
		for i := 0; i < n; i++ {
			if tail[i] != seq[i] {
				ok = false
				break
			}
		}
		if ok {
			return n
		}
	}
	return 0
}

func sortPatternsByEnvMatch(patterns []behavior.Pattern, env behavior.Environment) {
	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].EnvironmentMatch(env) > patterns[j].EnvironmentMatch(env)
	})
}
