// Package predict implements the orchestrating predictive engine. Each
// incoming observation is stored and fed to the temporal analyzer. Once the
// readiness gate opens it is also mined for patterns, matched against the
// pattern cache, checked for anomalies and answered with a next-behavior
// prediction.
// Component locks are acquired in a fixed order (store, cache, detector,
// analyzer) through sequential calls and never re-entered.
package predict

import (
	"errors"
	"sync"

	"github.com/wildtrack-data/ethogram/internal/behavior"
	"github.com/wildtrack-data/ethogram/internal/cache"
	"github.com/wildtrack-data/ethogram/internal/config"
	"github.com/wildtrack-data/ethogram/internal/detect"
	"github.com/wildtrack-data/ethogram/internal/monitoring"
	"github.com/wildtrack-data/ethogram/internal/store"
	"github.com/wildtrack-data/ethogram/internal/temporal"
	"github.com/wildtrack-data/ethogram/internal/timeutil"
)

// State is the engine's lifecycle phase.
type State uint8

const (
	StateUninitialized State = iota
	StateCollecting
	StateReady
)

var stateNames = [...]string{"uninitialized", "collecting", "ready"}

// String returns the lowercase name of the state.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Observations with confidence below this are anomalous regardless of
// pattern matches.
const anomalyConfidenceFloor = 0.3

// recentSequenceLength is how many trailing behaviors feed the predictor.
const recentSequenceLength = 5

// rollingAccuracyWindow bounds the rolling prediction accuracy counter.
const rollingAccuracyWindow = 100

// detectionWindowMaxObs caps the observation window handed to the detector
// per cycle, keeping the per-call compute bounded.
const detectionWindowMaxObs = 200

// Prediction is a next-behavior forecast.
type Prediction struct {
	Behavior   behavior.BehaviorType
	Confidence float64
}

// PopulationHealth summarizes the observed population over a window.
type PopulationHealth struct {
	// BehavioralDiversity is the normalized Shannon diversity of the
	// behavior distribution, in [0,1].
	BehavioralDiversity float64
	MeanStress          float64
	MeanActivity        float64
	ObservationCount    int
}

// AnalysisResult is the outcome of one analyze cycle, handed to the
// reporting and alerting layers as read-only data.
type AnalysisResult struct {
	Ready bool

	Prediction    Prediction
	HasPrediction bool

	NewPatterns     []behavior.Pattern
	UpdatedPatterns int

	IsAnomaly      bool
	AnomalyReasons []string

	Health PopulationHealth
}

// Engine orchestrates the store, pattern cache, detector and temporal
// analyzer, and tracks rolling prediction accuracy.
type Engine struct {
	mu    sync.Mutex
	cfg   config.Config
	clock timeutil.Clock

	store    *store.CompressedStore
	cache    *cache.PatternCache
	detector *detect.Detector
	analyzer *temporal.Analyzer

	state State

	predictionsMade    int
	predictionsCorrect int
	rolling            []bool
	rollingHead        int
	rollingSize        int
}

// New builds an engine and its four components from the configuration. The
// same clock is injected everywhere so TTLs, recency decay and circadian
// bucketing share one time source.
func New(cfg config.Config, clock timeutil.Clock) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	st, err := store.New(cfg.Store, clock)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		clock:    clock,
		store:    st,
		cache:    cache.New(cfg.Cache, clock),
		detector: detect.New(cfg.Detector, clock),
		analyzer: temporal.New(cfg.Analyzer, clock),
		state:    StateCollecting,
		rolling:  make([]bool, rollingAccuracyWindow),
	}, nil
}

// Store exposes the underlying observation store as a read-only collaborator
// for reporting surfaces.
func (e *Engine) Store() *store.CompressedStore { return e.store }

// State returns the engine's current lifecycle phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ReadyForPredictions exposes the readiness gate. Once true it stays true
// until Reset.
func (e *Engine) ReadyForPredictions() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateReady
}

// AnalyzeBehavior stores the observation and feeds the analyzers, during
// collection as well, to accumulate history. Once ready it also predicts the
// next behavior, mines the recent window for patterns, flags anomalies and
// summarizes population health. The only propagating error is the store's
// ErrMemoryExhausted; with power optimization enabled the engine retries
// once after an aggressive eviction.
func (e *Engine) AnalyzeBehavior(obs behavior.Observation, env behavior.Environment) (AnalysisResult, error) {
	if err := obs.Validate(); err != nil {
		return AnalysisResult{}, err
	}

	if err := e.store.Store(obs, env); err != nil {
		if errors.Is(err, store.ErrMemoryExhausted) && e.cfg.Engine.EnablePowerOptimization {
			evicted := e.store.OptimizeStorage(e.clock.Now().Unix() - e.cfg.Engine.LongWindowSeconds)
			monitoring.Logf("store at capacity: evicted %d records older than long window", evicted)
			err = e.store.Store(obs, env)
		}
		if err != nil {
			return AnalysisResult{}, err
		}
	}
	e.analyzer.AddObservation(obs, env)

	e.mu.Lock()
	if e.state == StateCollecting && e.readinessLocked() {
		e.state = StateReady
		monitoring.Logf("readiness gate open: predictions enabled")
	}
	ready := e.state == StateReady
	e.mu.Unlock()

	res := AnalysisResult{Ready: ready}
	if !ready {
		return res, nil
	}

	recent := e.store.Recent("", e.cfg.Engine.MediumWindowSeconds, detectionWindowMaxObs)

	if e.cfg.Engine.EnablePatternDetection {
		detection := e.detector.DetectPatterns(recent, env)
		for _, p := range detection.Discovered {
			e.cache.Put(p)
		}
		for _, p := range detection.Updated {
			e.cache.Put(p)
		}
		res.NewPatterns = detection.Discovered
		res.UpdatedPatterns = len(detection.Updated)
	}

	recentSeq := trailingBehaviors(recent, recentSequenceLength)

	if e.cfg.Engine.EnablePrediction {
		predicted, conf := e.detector.PredictNext(recentSeq, env)
		if conf < e.cfg.Engine.PredictionConfidenceThreshold {
			// Fall back to the cache's pattern continuation.
			if cont, ok := e.cache.PredictNext(recentSeq, env); ok && cont.Score > conf {
				predicted, conf = cont.Next, cont.Score
			}
		}
		if conf >= e.cfg.Engine.PredictionConfidenceThreshold && predicted != behavior.BehaviorUnknown {
			res.Prediction = Prediction{Behavior: predicted, Confidence: conf}
			res.HasPrediction = true
		}
	}

	if e.cfg.Engine.EnableAnomalyDetection {
		e.flagAnomalies(&res, obs, env, recentSeq)
	}

	res.Health = e.populationHealth(e.cfg.Engine.MediumWindowSeconds)
	return res, nil
}

// UpdatePredictionModels compares a realized observation against the
// previous cycle's prediction and updates the rolling accuracy counters.
func (e *Engine) UpdatePredictionModels(actual behavior.Observation, previous Prediction) {
	if previous.Behavior == behavior.BehaviorUnknown {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	correct := actual.Behavior == previous.Behavior
	e.predictionsMade++
	if correct {
		e.predictionsCorrect++
	}
	e.rolling[e.rollingHead] = correct
	e.rollingHead = (e.rollingHead + 1) % len(e.rolling)
	if e.rollingSize < len(e.rolling) {
		e.rollingSize++
	}
}

// PredictionAccuracy returns the fraction of correct predictions over the
// rolling window, and the lifetime totals.
func (e *Engine) PredictionAccuracy() (rolling float64, made, correct int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rollingSize > 0 {
		n := 0
		for i := 0; i < e.rollingSize; i++ {
			if e.rolling[i] {
				n++
			}
		}
		rolling = float64(n) / float64(e.rollingSize)
	}
	return rolling, e.predictionsMade, e.predictionsCorrect
}

// PopulationHealth summarizes behavioral diversity and stress over the
// given window.
func (e *Engine) PopulationHealth(windowSeconds int64) PopulationHealth {
	return e.populationHealth(windowSeconds)
}

// Reset clears the store, cache, detector and analyzer and returns the
// engine to the collecting state.
func (e *Engine) Reset() {
	e.store.Clear()
	e.cache.Clear()
	e.detector.Reset()
	e.analyzer.Reset()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateCollecting
	e.predictionsMade = 0
	e.predictionsCorrect = 0
	e.rolling = make([]bool, rollingAccuracyWindow)
	e.rollingHead = 0
	e.rollingSize = 0
}

func (e *Engine) readinessLocked() bool {
	return e.store.HasSufficientData("", e.cfg.Engine.ReadinessMinRecords, e.cfg.Engine.ReadinessMinSpanSeconds) &&
		e.analyzer.HasSufficientData(0)
}

func (e *Engine) flagAnomalies(res *AnalysisResult, obs behavior.Observation, env behavior.Environment, recentSeq []behavior.BehaviorType) {
	if obs.Confidence < anomalyConfidenceFloor {
		res.IsAnomaly = true
		res.AnomalyReasons = append(res.AnomalyReasons, "low classification confidence")
	}

	if e.cache.Len() > 0 {
		match := e.cache.FindMatches(cache.MatchRequest{
			Sequence:    append(recentSeq, obs.Behavior),
			Environment: env,
			MaxMatches:  1,
		})
		if len(match.Matches) == 0 || match.Matches[0].Score < e.cfg.Engine.AnomalyDetectionThreshold {
			res.IsAnomaly = true
			res.AnomalyReasons = append(res.AnomalyReasons, "no cached pattern above anomaly threshold")
		}
	}
}

func trailingBehaviors(obs []behavior.Observation, n int) []behavior.BehaviorType {
	if len(obs) > n {
		obs = obs[len(obs)-n:]
	}
	out := make([]behavior.BehaviorType, len(obs))
	for i, o := range obs {
		out[i] = o.Behavior
	}
	return out
}
