// Package testutil provides builders for observations and environments used
// across the analytics package tests.
package testutil

import (
	"github.com/wildtrack-data/ethogram/internal/behavior"
)

// Obs builds a valid observation with sensible defaults.
func Obs(b behavior.BehaviorType, confidence float64, tsUnix int64) behavior.Observation {
	return behavior.Observation{
		Species:         "vulpes_vulpes",
		Behavior:        b,
		Confidence:      confidence,
		DurationSeconds: 90,
		ActivityLevel:   0.5,
		StressLevel:     0.2,
		AnimalCount:     1,
		TimestampUnix:   tsUnix,
	}
}

// ObsSpecies builds a valid observation for a specific species.
func ObsSpecies(species string, b behavior.BehaviorType, confidence float64, tsUnix int64) behavior.Observation {
	o := Obs(b, confidence, tsUnix)
	o.Species = species
	return o
}

// Env builds an environmental context reading.
func Env(tempC, humidityPct, light float64, tsUnix int64) behavior.Environment {
	return behavior.Environment{
		TemperatureC:  tempC,
		HumidityPct:   humidityPct,
		LightLevel:    light,
		TimestampUnix: tsUnix,
	}
}

// MildEnv is a neutral environment for tests that don't care about it.
func MildEnv(tsUnix int64) behavior.Environment {
	return Env(18, 60, 0.5, tsUnix)
}

// AlternatingSeq builds n observations alternating between the two
// behaviors, spaced stepSeconds apart starting at startUnix.
func AlternatingSeq(a, b behavior.BehaviorType, n int, startUnix, stepSeconds int64) []behavior.Observation {
	out := make([]behavior.Observation, n)
	for i := range out {
		kind := a
		if i%2 == 1 {
			kind = b
		}
		out[i] = Obs(kind, 0.85, startUnix+int64(i)*stepSeconds)
	}
	return out
}
