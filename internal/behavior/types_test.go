package behavior

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBehaviorTypeNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "feeding", BehaviorFeeding.String())
	assert.Equal(t, "unknown", BehaviorUnknown.String())
	assert.Equal(t, "behavior(200)", BehaviorType(200).String())

	for i := 0; i < NumBehaviorTypes; i++ {
		b := BehaviorType(i)
		parsed, err := ParseBehaviorType(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, parsed)
	}

	_, err := ParseBehaviorType("levitating")
	assert.Error(t, err)
}

func TestBehaviorTypeJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(BehaviorForaging)
	require.NoError(t, err)
	assert.Equal(t, `"foraging"`, string(data))

	var b BehaviorType
	require.NoError(t, json.Unmarshal([]byte(`"resting"`), &b))
	assert.Equal(t, BehaviorResting, b)

	require.NoError(t, json.Unmarshal([]byte(`4`), &b))
	assert.Equal(t, BehaviorMoving, b)

	assert.Error(t, json.Unmarshal([]byte(`"levitating"`), &b))
}

func TestObservationValidate(t *testing.T) {
	t.Parallel()

	valid := Observation{
		Species:       "vulpes_vulpes",
		Behavior:      BehaviorFeeding,
		Confidence:    0.9,
		ActivityLevel: 0.5,
		StressLevel:   0.1,
		AnimalCount:   2,
		TimestampUnix: 1700000000,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Observation)
	}{
		{"behavior out of range", func(o *Observation) { o.Behavior = BehaviorType(99) }},
		{"confidence above one", func(o *Observation) { o.Confidence = 1.2 }},
		{"confidence negative", func(o *Observation) { o.Confidence = -0.1 }},
		{"activity above one", func(o *Observation) { o.ActivityLevel = 3 }},
		{"stress negative", func(o *Observation) { o.StressLevel = -1 }},
		{"negative duration", func(o *Observation) { o.DurationSeconds = -5 }},
		{"negative count", func(o *Observation) { o.AnimalCount = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := valid
			tc.mutate(&o)
			err := o.Validate()
			assert.ErrorIs(t, err, ErrInvalidObservation)
		})
	}
}

func TestObservationHourMonth(t *testing.T) {
	t.Parallel()

	// 2023-11-14T22:13:20Z
	o := Observation{TimestampUnix: 1700000000}
	assert.Equal(t, 22, o.Hour())
	assert.Equal(t, 10, o.Month()) // November is index 10
}
