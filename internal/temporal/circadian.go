package temporal

import (
	"errors"

	"github.com/wildtrack-data/ethogram/internal/behavior"
)

// Thresholds for circadian classification.
const (
	// peakFloor is the minimum hourly activity for a detected peak.
	peakFloor = 0.3
	// dayNightRatio classifies diurnal/nocturnal when day vs night mean
	// activity differs by this factor either direction.
	dayNightRatio = 1.5
	// crepuscularRatio flags dawn/dusk spikes above this multiple of the
	// day mean.
	crepuscularRatio = 1.2
)

// ErrInsufficientData indicates too little history for the requested
// decomposition.
var ErrInsufficientData = errors.New("insufficient data for analysis")

// CircadianAnalysis is the 24-hour decomposition of the activity stream.
type CircadianAnalysis struct {
	// HourlyActivity is the mean activity level per hour of day.
	HourlyActivity [24]float64
	// HourlyProbability is the share of observations per hour of day.
	HourlyProbability [24]float64
	// HourlyBehaviorProbability is the per-hour probability of each
	// behavior class.
	HourlyBehaviorProbability [24][behavior.NumBehaviorTypes]float64

	// Peaks lists hours whose activity is a strict local maximum above the
	// peak floor.
	Peaks []int

	IsDiurnal     bool
	IsNocturnal   bool
	IsCrepuscular bool

	DataPoints   int
	ComputedUnix int64
}

// AnalyzeCircadian buckets history by hour of day and classifies the overall
// activity pattern. It requires the configured minimum data points and at
// least minDays distinct days of coverage. The result is cached and reused
// until the refresh interval (one simulated hour) elapses.
func (a *Analyzer) AnalyzeCircadian(minDays int) (CircadianAnalysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.cfg.EnableCircadian {
		return CircadianAnalysis{}, ErrInsufficientData
	}
	now := a.clock.Now().Unix()
	if a.circadian != nil && now-a.circadianAtUnix < a.cfg.CircadianTTLSeconds {
		return *a.circadian, nil
	}

	events := a.hist.snapshot()
	if len(events) < a.cfg.CircadianMinPoints {
		return CircadianAnalysis{}, ErrInsufficientData
	}
	if minDays > 0 && distinctDays(events) < minDays {
		return CircadianAnalysis{}, ErrInsufficientData
	}

	res := computeCircadian(events, now)
	a.circadian = &res
	a.circadianAtUnix = now
	return res, nil
}

func computeCircadian(events []timedEvent, nowUnix int64) CircadianAnalysis {
	res := CircadianAnalysis{DataPoints: len(events), ComputedUnix: nowUnix}

	var activitySum [24]float64
	var counts [24]int
	var behaviorCounts [24][behavior.NumBehaviorTypes]int
	for _, e := range events {
		h := e.obs.Hour()
		activitySum[h] += e.obs.ActivityLevel
		counts[h]++
		behaviorCounts[h][e.obs.Behavior]++
	}

	total := len(events)
	for h := 0; h < 24; h++ {
		if counts[h] > 0 {
			res.HourlyActivity[h] = clamp01(activitySum[h] / float64(counts[h]))
			for b := 0; b < behavior.NumBehaviorTypes; b++ {
				res.HourlyBehaviorProbability[h][b] = float64(behaviorCounts[h][b]) / float64(counts[h])
			}
		}
		res.HourlyProbability[h] = float64(counts[h]) / float64(total)
	}

	res.Peaks = detectPeaks(res.HourlyActivity)
	classifyCircadian(&res)
	return res
}

// detectPeaks finds hours whose activity strictly exceeds both neighbors
// (wrapping at midnight) and the peak floor.
func detectPeaks(activity [24]float64) []int {
	var peaks []int
	for h := 0; h < 24; h++ {
		prev := activity[(h+23)%24]
		next := activity[(h+1)%24]
		if activity[h] > prev && activity[h] > next && activity[h] > peakFloor {
			peaks = append(peaks, h)
		}
	}
	return peaks
}

// classifyCircadian compares mean day (06-18h) and night activity. A ratio
// above 1.5 either direction sets diurnal or nocturnal; dawn (05-07h) or
// dusk (17-19h) spikes above 1.2x the day mean flag crepuscular.
func classifyCircadian(res *CircadianAnalysis) {
	var daySum, nightSum float64
	var dayHours, nightHours int
	for h := 0; h < 24; h++ {
		if h >= 6 && h < 18 {
			daySum += res.HourlyActivity[h]
			dayHours++
		} else {
			nightSum += res.HourlyActivity[h]
			nightHours++
		}
	}
	dayMean := daySum / float64(dayHours)
	nightMean := nightSum / float64(nightHours)

	switch {
	case nightMean == 0 && dayMean > 0:
		res.IsDiurnal = true
	case dayMean == 0 && nightMean > 0:
		res.IsNocturnal = true
	case dayMean > nightMean*dayNightRatio:
		res.IsDiurnal = true
	case nightMean > dayMean*dayNightRatio:
		res.IsNocturnal = true
	}

	if dayMean > 0 {
		dawn := (res.HourlyActivity[5] + res.HourlyActivity[6] + res.HourlyActivity[7]) / 3
		dusk := (res.HourlyActivity[17] + res.HourlyActivity[18] + res.HourlyActivity[19]) / 3
		if dawn > dayMean*crepuscularRatio || dusk > dayMean*crepuscularRatio {
			res.IsCrepuscular = true
		}
	}
}

func distinctDays(events []timedEvent) int {
	days := make(map[int64]struct{})
	for _, e := range events {
		days[e.obs.TimestampUnix/86400] = struct{}{}
	}
	return len(days)
}
