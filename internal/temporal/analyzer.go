// Package temporal implements time-domain analysis of the observation
// stream: sliding-window sequence statistics, circadian (24-hour) and
// seasonal (12-month) activity decomposition, transition matrices and
// temporal anomaly detection. History is a bounded ring buffer; the derived
// circadian and seasonal analyses are cached and refreshed when stale.
package temporal

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/wildtrack-data/ethogram/internal/behavior"
	"github.com/wildtrack-data/ethogram/internal/timeutil"
)

const defaultHistoryCapacity = 1000

// Data-sufficiency tiers: minimum history sizes for short-, medium- and
// long-horizon analysis.
var tierMinimums = [3]int{5, 20, 100}

// Window configures one sliding-window tier.
type Window struct {
	SizeSeconds     int64 `json:"size_seconds"`
	StepSeconds     int64 `json:"step_seconds"`
	MinObservations int   `json:"min_observations"`
	Overlap         bool  `json:"overlap"`
}

// Config holds the analyzer's tunable parameters.
type Config struct {
	Short  Window `json:"short"`
	Medium Window `json:"medium"`
	Long   Window `json:"long"`

	EnableCircadian   bool `json:"enable_circadian"`
	EnableSeasonal    bool `json:"enable_seasonal"`
	CircadianMinPoints int `json:"circadian_min_points"`
	SeasonalMinPoints  int `json:"seasonal_min_points"`

	HistoryCapacity int `json:"history_capacity"`

	// Refresh intervals for the cached analyses, in simulated seconds.
	CircadianTTLSeconds int64 `json:"circadian_ttl_seconds"`
	SeasonalTTLSeconds  int64 `json:"seasonal_ttl_seconds"`
}

// DefaultConfig returns the analyzer defaults: 30s/600s/3600s windows,
// circadian and seasonal analysis enabled at 50/200 data points, cached for
// one hour and one day respectively.
func DefaultConfig() Config {
	return Config{
		Short:               Window{SizeSeconds: 30, StepSeconds: 5, MinObservations: 3},
		Medium:              Window{SizeSeconds: 600, StepSeconds: 60, MinObservations: 5},
		Long:                Window{SizeSeconds: 3600, StepSeconds: 300, MinObservations: 10},
		EnableCircadian:     true,
		EnableSeasonal:      true,
		CircadianMinPoints:  50,
		SeasonalMinPoints:   200,
		HistoryCapacity:     defaultHistoryCapacity,
		CircadianTTLSeconds: 3600,
		SeasonalTTLSeconds:  86400,
	}
}

// Analyzer consumes the observation stream and produces temporal analyses.
type Analyzer struct {
	mu    sync.Mutex
	cfg   Config
	clock timeutil.Clock
	hist  *history

	circadian       *CircadianAnalysis
	circadianAtUnix int64
	seasonal        *SeasonalAnalysis
	seasonalAtUnix  int64
}

// New creates an analyzer with the given configuration and clock.
func New(cfg Config, clock timeutil.Clock) *Analyzer {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = defaultHistoryCapacity
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Analyzer{
		cfg:   cfg,
		clock: clock,
		hist:  newHistory(cfg.HistoryCapacity),
	}
}

// AddObservation appends one observation to the bounded history. Beyond
// capacity the oldest entry is overwritten.
func (a *Analyzer) AddObservation(obs behavior.Observation, env behavior.Environment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hist.add(timedEvent{obs: obs, env: env})
}

// HistoryLen returns the number of buffered observations.
func (a *Analyzer) HistoryLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hist.len()
}

// HasSufficientData reports whether the history can support the given
// analysis tier (0, 1 or 2 requiring at least 5, 20 or 100 observations).
func (a *Analyzer) HasSufficientData(tier int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if tier < 0 || tier >= len(tierMinimums) {
		return false
	}
	return a.hist.len() >= tierMinimums[tier]
}

// TransitionMatrix derives first-order transition probabilities from the
// buffered observations within the last windowSeconds. Rows sum to 1 for any
// from-state with observed transitions.
func (a *Analyzer) TransitionMatrix(windowSeconds int64) map[behavior.BehaviorType]map[behavior.BehaviorType]float64 {
	a.mu.Lock()
	events := a.hist.since(a.clock.Now().Unix() - windowSeconds)
	a.mu.Unlock()

	counts := make(map[behavior.BehaviorType]map[behavior.BehaviorType]int)
	totals := make(map[behavior.BehaviorType]int)
	for i := 1; i < len(events); i++ {
		from, to := events[i-1].obs.Behavior, events[i].obs.Behavior
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

// DetectAnomalies flags observations in the sequence whose incoming
// transition is rarer than (1 - threshold) under the matrix learned from the
// analyzer's own history. Unseen from-states are not flagged; a quiet history
// produces no anomalies. Returns indices into the sequence.
func (a *Analyzer) DetectAnomalies(seq []behavior.Observation, threshold float64) []int {
	if len(seq) < 2 {
		return nil
	}
	matrix := a.TransitionMatrix(math.MaxInt32)

	var anomalies []int
	floor := 1 - threshold
	for i := 1; i < len(seq); i++ {
		row, ok := matrix[seq[i-1].Behavior]
		if !ok {
			continue
		}
		if row[seq[i].Behavior] < floor {
			anomalies = append(anomalies, i)
		}
	}
	return anomalies
}

// SequenceCoherence scores how orderly a sequence of observations is: half
// transition predictability, half timing regularity.
func (a *Analyzer) SequenceCoherence(seq []behavior.Observation) float64 {
	return sequenceCoherence(seq)
}

// Reset clears the history and cached analyses.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hist.clear()
	a.circadian = nil
	a.circadianAtUnix = 0
	a.seasonal = nil
	a.seasonalAtUnix = 0
}

// sequenceCoherence = 0.5*transition predictability + 0.5*timing consistency.
// Transition predictability is the occurrence-weighted mean of each
// from-state's dominant transition probability; timing consistency is
// 1 minus the coefficient of variation of inter-event gaps, floored at zero.
func sequenceCoherence(seq []behavior.Observation) float64 {
	if len(seq) < 2 {
		return 0
	}
	return clamp01(0.5*transitionPredictability(seq) + 0.5*timingConsistency(seq))
}

func transitionPredictability(seq []behavior.Observation) float64 {
	counts := make(map[behavior.BehaviorType]map[behavior.BehaviorType]int)
	totals := make(map[behavior.BehaviorType]int)
	for i := 1; i < len(seq); i++ {
		from, to := seq[i-1].Behavior, seq[i].Behavior
		if counts[from] == nil {
			counts[from] = make(map[behavior.BehaviorType]int)
		}
		counts[from][to]++
		totals[from]++
	}
	if len(totals) == 0 {
		return 0
	}

	weighted := 0.0
	totalTransitions := 0
	for from, row := range counts {
		maxCount := 0
		for _, n := range row {
			if n > maxCount {
				maxCount = n
			}
		}
		weighted += float64(maxCount)
		totalTransitions += totals[from]
	}
	return float64(weighted) / float64(totalTransitions)
}

func timingConsistency(seq []behavior.Observation) float64 {
	if len(seq) < 3 {
		// One gap or fewer: trivially regular.
		return 1
	}
	gaps := make([]float64, 0, len(seq)-1)
	for i := 1; i < len(seq); i++ {
		gaps = append(gaps, float64(seq[i].TimestampUnix-seq[i-1].TimestampUnix))
	}
	mean := stat.Mean(gaps, nil)
	if mean <= 0 {
		return 0
	}
	cv := stat.StdDev(gaps, nil) / mean
	if cv >= 1 {
		return 0
	}
	return 1 - cv
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
