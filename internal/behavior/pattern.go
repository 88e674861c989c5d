package behavior

import (
	"hash/fnv"
)

// DetectionMethod tags which mining algorithm produced a pattern.
type DetectionMethod uint8

const (
	MethodSequence DetectionMethod = iota
	MethodMarkov
	MethodStatistical
)

var methodNames = [...]string{"sequence", "markov", "statistical"}

// String returns the lowercase name of the detection method.
func (m DetectionMethod) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "unknown"
}

// Pattern is a discovered recurring behavior sequence together with its
// temporal and environmental context. Patterns are created by the detector
// and merged in place when re-detected.
type Pattern struct {
	ID               string
	Sequence         []BehaviorType
	Confidence       float64
	ObservationCount int

	// HourlyProbability and MonthlyProbability are normalized occurrence
	// distributions over hour of day and month of year.
	HourlyProbability  [24]float64
	MonthlyProbability [12]float64

	// Environmental dependency ranges observed for this pattern.
	TempMinC    float64
	TempMaxC    float64
	HumidityMin float64
	HumidityMax float64

	ConservationSignificant bool
	Method                  DetectionMethod

	FirstSeenUnix int64
	LastSeenUnix  int64
}

// SequenceKey returns the FNV-1a hash of the behavior sequence. Two patterns
// with the same key have the same identity for merge purposes.
func SequenceKey(seq []BehaviorType) uint64 {
	h := fnv.New64a()
	buf := make([]byte, len(seq))
	for i, b := range seq {
		buf[i] = byte(b)
	}
	h.Write(buf)
	return h.Sum64()
}

// SequenceKey returns the identity hash of the pattern's sequence.
func (p *Pattern) SequenceKey() uint64 {
	return SequenceKey(p.Sequence)
}

// SequenceSimilarity returns the fraction of positions at which the two
// sequences agree, over the length of the longer sequence. Identical
// sequences score 1, disjoint lengths are penalized proportionally.
func SequenceSimilarity(a, b []BehaviorType) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}
	matches := 0
	for i := 0; i < shorter; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(longer)
}

// Merge folds other into p using a weighted average by observation count.
// Confidence and probability profiles blend; environmental ranges widen to
// cover both; timestamps extend to the union.
func (p *Pattern) Merge(other *Pattern) {
	total := p.ObservationCount + other.ObservationCount
	if total == 0 {
		return
	}
	wp := float64(p.ObservationCount) / float64(total)
	wo := float64(other.ObservationCount) / float64(total)

	p.Confidence = clamp01(p.Confidence*wp + other.Confidence*wo)
	for i := range p.HourlyProbability {
		p.HourlyProbability[i] = clamp01(p.HourlyProbability[i]*wp + other.HourlyProbability[i]*wo)
	}
	for i := range p.MonthlyProbability {
		p.MonthlyProbability[i] = clamp01(p.MonthlyProbability[i]*wp + other.MonthlyProbability[i]*wo)
	}
	if other.TempMinC < p.TempMinC {
		p.TempMinC = other.TempMinC
	}
	if other.TempMaxC > p.TempMaxC {
		p.TempMaxC = other.TempMaxC
	}
	if other.HumidityMin < p.HumidityMin {
		p.HumidityMin = other.HumidityMin
	}
	if other.HumidityMax > p.HumidityMax {
		p.HumidityMax = other.HumidityMax
	}
	if other.FirstSeenUnix != 0 && other.FirstSeenUnix < p.FirstSeenUnix {
		p.FirstSeenUnix = other.FirstSeenUnix
	}
	if other.LastSeenUnix > p.LastSeenUnix {
		p.LastSeenUnix = other.LastSeenUnix
	}
	p.ObservationCount = total
	p.ConservationSignificant = p.ConservationSignificant || other.ConservationSignificant
}

// EnvironmentMatch scores how well env fits the pattern's recorded ranges.
// Each of temperature and humidity contributes half: 1 inside the range,
// decaying linearly to 0 one range-width outside it.
func (p *Pattern) EnvironmentMatch(env Environment) float64 {
	t := rangeMatch(env.TemperatureC, p.TempMinC, p.TempMaxC)
	h := rangeMatch(env.HumidityPct, p.HumidityMin, p.HumidityMax)
	return clamp01(0.5*t + 0.5*h)
}

// Clone returns a deep copy of the pattern. Components hand out clones so no
// mutable pattern state is shared across boundaries.
func (p *Pattern) Clone() Pattern {
	out := *p
	out.Sequence = make([]BehaviorType, len(p.Sequence))
	copy(out.Sequence, p.Sequence)
	return out
}

func rangeMatch(v, lo, hi float64) float64 {
	if hi <= lo {
		// Degenerate range: exact-value pattern, score on closeness.
		if v == lo {
			return 1
		}
		return 0.5
	}
	if v >= lo && v <= hi {
		return 1
	}
	width := hi - lo
	var dist float64
	if v < lo {
		dist = lo - v
	} else {
		dist = v - hi
	}
	if dist >= width {
		return 0
	}
	return 1 - dist/width
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
