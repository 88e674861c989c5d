// Package behavior defines the core value types exchanged between the
// analytics components: classified observations, environmental context and
// discovered behavior patterns. All types are plain values; the classifier
// and sensor layers that produce them live outside this module.
package behavior

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// BehaviorType enumerates the behavior classes the external classifier emits.
type BehaviorType uint8

const (
	BehaviorUnknown BehaviorType = iota
	BehaviorFeeding
	BehaviorDrinking
	BehaviorResting
	BehaviorMoving
	BehaviorForaging
	BehaviorGrooming
	BehaviorMating
	BehaviorAggression
	BehaviorAlert
	BehaviorSocial
)

// NumBehaviorTypes is the number of distinct behavior classes, including
// BehaviorUnknown.
const NumBehaviorTypes = 11

var behaviorNames = [NumBehaviorTypes]string{
	"unknown",
	"feeding",
	"drinking",
	"resting",
	"moving",
	"foraging",
	"grooming",
	"mating",
	"aggression",
	"alert",
	"social",
}

// String returns the lowercase name of the behavior.
func (b BehaviorType) String() string {
	if int(b) < len(behaviorNames) {
		return behaviorNames[b]
	}
	return fmt.Sprintf("behavior(%d)", uint8(b))
}

// Valid reports whether b is a known behavior class.
func (b BehaviorType) Valid() bool {
	return int(b) < NumBehaviorTypes
}

// ParseBehaviorType maps a lowercase behavior name to its BehaviorType.
func ParseBehaviorType(s string) (BehaviorType, error) {
	for i, name := range behaviorNames {
		if name == s {
			return BehaviorType(i), nil
		}
	}
	return BehaviorUnknown, fmt.Errorf("unknown behavior type %q", s)
}

// MarshalJSON encodes the behavior as its lowercase name.
func (b BehaviorType) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON accepts either a lowercase name or a numeric class index.
func (b *BehaviorType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := ParseBehaviorType(s)
		if perr != nil {
			return perr
		}
		*b = parsed
		return nil
	}
	var n uint8
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("behavior type must be a name or class index: %w", err)
	}
	*b = BehaviorType(n)
	return nil
}

// Observation is one classified wildlife activity event. Produced by the
// external classifier; immutable once created.
type Observation struct {
	Species          string       `json:"species"`
	Behavior         BehaviorType `json:"behavior"`
	Confidence       float64      `json:"confidence"`
	DurationSeconds  float64      `json:"duration_seconds"`
	ActivityLevel    float64      `json:"activity_level"`
	StressLevel      float64      `json:"stress_level"`
	AnimalCount      int          `json:"animal_count"`
	Repeated         bool         `json:"repeated"`
	Group            bool         `json:"group"`
	HumanInteraction bool         `json:"human_interaction"`

	// TimestampUnix is device time in seconds. Callers must present
	// observations in non-decreasing timestamp order for trend analysis
	// to be meaningful; the components accept out-of-order inserts.
	TimestampUnix int64 `json:"timestamp_unix"`
}

var (
	// ErrInvalidObservation indicates an observation that fails validation.
	ErrInvalidObservation = errors.New("invalid observation")
)

// Validate checks the classifier's boundary contract: a known behavior type,
// a confidence in [0,1] and unit-range activity/stress levels.
func (o Observation) Validate() error {
	if !o.Behavior.Valid() {
		return fmt.Errorf("%w: behavior %d out of range", ErrInvalidObservation, o.Behavior)
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.3f outside [0,1]", ErrInvalidObservation, o.Confidence)
	}
	if o.ActivityLevel < 0 || o.ActivityLevel > 1 {
		return fmt.Errorf("%w: activity level %.3f outside [0,1]", ErrInvalidObservation, o.ActivityLevel)
	}
	if o.StressLevel < 0 || o.StressLevel > 1 {
		return fmt.Errorf("%w: stress level %.3f outside [0,1]", ErrInvalidObservation, o.StressLevel)
	}
	if o.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidObservation)
	}
	if o.AnimalCount < 0 {
		return fmt.Errorf("%w: negative animal count", ErrInvalidObservation)
	}
	return nil
}

// Hour returns the hour of day (0-23) of the observation in UTC.
func (o Observation) Hour() int {
	return time.Unix(o.TimestampUnix, 0).UTC().Hour()
}

// Month returns the month index (0-11) of the observation in UTC.
func (o Observation) Month() int {
	return int(time.Unix(o.TimestampUnix, 0).UTC().Month()) - 1
}

// Environment is the sensor reading paired with an observation.
type Environment struct {
	TemperatureC  float64 `json:"temperature_c"`
	HumidityPct   float64 `json:"humidity_pct"`
	LightLevel    float64 `json:"light_level"`
	TimestampUnix int64   `json:"timestamp_unix"`
}
