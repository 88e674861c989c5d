// Package detect implements behavior pattern mining over observation
// windows. Configuration selects one of repeated-subsequence matching,
// Markov transition analysis or statistical frequency analysis, with a
// hybrid mode that runs all of them. Detected patterns
// are remembered internally so re-detections merge instead of duplicating.
package detect

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wildtrack-data/ethogram/internal/behavior"
	"github.com/wildtrack-data/ethogram/internal/timeutil"
)

// Algorithm selects the pattern mining strategy.
type Algorithm uint8

const (
	AlgorithmHybrid Algorithm = iota
	AlgorithmSequence
	AlgorithmMarkov
	AlgorithmStatistical
)

var algorithmNames = [...]string{"hybrid", "sequence", "markov", "statistical"}

// String returns the lowercase name of the algorithm.
func (a Algorithm) String() string {
	if int(a) < len(algorithmNames) {
		return algorithmNames[a]
	}
	return "unknown"
}

// Markov transitions are emitted as patterns only above this conditional
// probability.
const markovMinProbability = 0.7

// Statistical patterns require this share of the window.
const statisticalMinShare = 0.3

// Patterns merge rather than duplicate at or above this sequence similarity.
const mergeSimilarity = 0.9

// Config holds the detector's tunable parameters.
type Config struct {
	PrimaryAlgorithm Algorithm `json:"primary_algorithm"`
	MinConfidence    float64   `json:"min_confidence"`
	MinObservations  int       `json:"min_observations"`
	MaxPatternLength int       `json:"max_pattern_length"`
}

// DefaultConfig returns the detector defaults: hybrid mode, confidence 0.7,
// five supporting observations, patterns up to ten behaviors long.
func DefaultConfig() Config {
	return Config{
		PrimaryAlgorithm: AlgorithmHybrid,
		MinConfidence:    0.7,
		MinObservations:  5,
		MaxPatternLength: 10,
	}
}

// Result reports one detection pass: patterns discovered for the first time,
// existing patterns updated by merge, and all currently valid patterns (those
// at or above the configured minimum confidence).
type Result struct {
	Discovered []behavior.Pattern
	Updated    []behavior.Pattern
	Valid      []behavior.Pattern
}

// Detector mines observation windows for recurring patterns. It never
// returns an error: windows too short for an algorithm simply produce no
// candidates.
type Detector struct {
	mu    sync.Mutex
	cfg   Config
	clock timeutil.Clock
	known map[uint64]*behavior.Pattern
}

// New creates a detector with the given configuration.
func New(cfg Config, clock timeutil.Clock) *Detector {
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = DefaultConfig().MinObservations
	}
	if cfg.MaxPatternLength < 2 {
		cfg.MaxPatternLength = DefaultConfig().MaxPatternLength
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Detector{
		cfg:   cfg,
		clock: clock,
		known: make(map[uint64]*behavior.Pattern),
	}
}

// DetectPatterns runs the configured algorithm (all of them in hybrid mode)
// over the observation window and folds candidates into the detector's known
// set.
func (d *Detector) DetectPatterns(obs []behavior.Observation, env behavior.Environment) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	var candidates []behavior.Pattern
	switch d.cfg.PrimaryAlgorithm {
	case AlgorithmSequence:
		candidates = d.detectSequences(obs, env)
	case AlgorithmMarkov:
		candidates = d.detectMarkov(obs, env)
	case AlgorithmStatistical:
		candidates = d.detectStatistical(obs, env)
	default: // hybrid
		candidates = append(candidates, d.detectSequences(obs, env)...)
		candidates = append(candidates, d.detectMarkov(obs, env)...)
		candidates = append(candidates, d.detectStatistical(obs, env)...)
	}

	var res Result
	for i := range candidates {
		cand := &candidates[i]
		if existing := d.findMergeTargetLocked(cand); existing != nil {
			existing.Merge(cand)
			res.Updated = append(res.Updated, existing.Clone())
			continue
		}
		cand.ID = uuid.NewString()
		stored := cand.Clone()
		d.known[stored.SequenceKey()] = &stored
		res.Discovered = append(res.Discovered, stored.Clone())
	}

	for _, p := range d.known {
		if p.Confidence >= d.cfg.MinConfidence {
			res.Valid = append(res.Valid, p.Clone())
		}
	}
	return res
}

// PredictNext returns the behavior following the highest-confidence known
// pattern whose prefix matches the tail of the recent sequence, and that
// confidence. Environmental fit only breaks confidence ties; scaling by fit
// is the pattern cache's job. Returns BehaviorUnknown with zero confidence
// when nothing matches.
func (d *Detector) PredictNext(recent []behavior.BehaviorType, env behavior.Environment) (behavior.BehaviorType, float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	best := behavior.BehaviorUnknown
	bestConf := 0.0
	bestEnv := 0.0
	for _, p := range d.known {
		if len(p.Sequence) < 2 {
			continue
		}
		n := prefixMatchLen(recent, p.Sequence)
		if n == 0 || n >= len(p.Sequence) {
			continue
		}
		envMatch := p.EnvironmentMatch(env)
		if p.Confidence > bestConf || (p.Confidence == bestConf && envMatch > bestEnv) {
			best = p.Sequence[n]
			bestConf = p.Confidence
			bestEnv = envMatch
		}
	}
	return best, bestConf
}

// KnownPatterns returns a snapshot of all remembered patterns.
func (d *Detector) KnownPatterns() []behavior.Pattern {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]behavior.Pattern, 0, len(d.known))
	for _, p := range d.known {
		out = append(out, p.Clone())
	}
	return out
}

// Reset forgets all known patterns.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.known = make(map[uint64]*behavior.Pattern)
}

// findMergeTargetLocked locates a known pattern with identical identity or
// at least mergeSimilarity sequence agreement.
func (d *Detector) findMergeTargetLocked(cand *behavior.Pattern) *behavior.Pattern {
	if existing, ok := d.known[cand.SequenceKey()]; ok {
		return existing
	}
	for _, existing := range d.known {
		if len(existing.Sequence) == len(cand.Sequence) &&
			behavior.SequenceSimilarity(existing.Sequence, cand.Sequence) >= mergeSimilarity {
			return existing
		}
	}
	return nil
}

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

// newPattern builds a candidate pattern from the supporting observations.
// Hour and month profiles come from the supporting timestamps; environmental
// ranges from the paired context. Sequences involving mating, aggression or
// human interaction are flagged conservation significant.
func newPattern(seq []behavior.BehaviorType, support []behavior.Observation, env behavior.Environment,
	confidence float64, count int, method behavior.DetectionMethod) behavior.Pattern {

	p := behavior.Pattern{
		Sequence:         append([]behavior.BehaviorType(nil), seq...),
		Confidence:       confidence,
		ObservationCount: count,
		TempMinC:         env.TemperatureC - 5,
		TempMaxC:         env.TemperatureC + 5,
		HumidityMin:      env.HumidityPct - 10,
		HumidityMax:      env.HumidityPct + 10,
		Method:           method,
	}
	if len(support) > 0 {
		p.FirstSeenUnix = support[0].TimestampUnix
		p.LastSeenUnix = support[len(support)-1].TimestampUnix
		for _, o := range support {
			p.HourlyProbability[o.Hour()] += 1 / float64(len(support))
			p.MonthlyProbability[o.Month()] += 1 / float64(len(support))
			if o.HumanInteraction {
				p.ConservationSignificant = true
			}
			if o.TimestampUnix < p.FirstSeenUnix {
				p.FirstSeenUnix = o.TimestampUnix
			}
			if o.TimestampUnix > p.LastSeenUnix {
				p.LastSeenUnix = o.TimestampUnix
			}
		}
	}
	for _, b := range seq {
		if b == behavior.BehaviorMating || b == behavior.BehaviorAggression {
			p.ConservationSignificant = true
		}
	}
	return p
}
