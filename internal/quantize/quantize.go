// Package quantize provides the lossy byte encodings used by the compressed
// observation store. Each field maps linearly onto a single byte with its own
// range; decoding is the exact inverse map, so round-trip error is bounded by
// half the quantization step.
package quantize

import "math"

// Temperature range covered by the one-byte encoding, in degrees Celsius.
// 255 steps over [-40, 87.5] gives a 0.5 degree step.
const (
	TempMinC = -40.0
	TempMaxC = 87.5
	TempStep = (TempMaxC - TempMinC) / 255.0
)

// Unit01 encodes a value in [0,1] to a byte on a 0-255 linear scale.
// Out-of-range inputs are clamped.
func Unit01(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}

// Unit01Value decodes a byte produced by Unit01.
func Unit01Value(b uint8) float64 {
	return float64(b) / 255.0
}

// Temperature encodes degrees Celsius over [TempMinC, TempMaxC].
func Temperature(c float64) uint8 {
	if c <= TempMinC {
		return 0
	}
	if c >= TempMaxC {
		return 255
	}
	return uint8(math.Round((c - TempMinC) / TempStep))
}

// TemperatureValue decodes a byte produced by Temperature.
func TemperatureValue(b uint8) float64 {
	return TempMinC + float64(b)*TempStep
}

// Humidity encodes relative humidity percent over [0, 100].
func Humidity(pct float64) uint8 {
	if pct <= 0 {
		return 0
	}
	if pct >= 100 {
		return 255
	}
	return uint8(math.Round(pct / 100 * 255))
}

// HumidityValue decodes a byte produced by Humidity.
func HumidityValue(b uint8) float64 {
	return float64(b) / 255.0 * 100
}

// DurationMinutes encodes a duration in seconds as whole minutes, capped at
// 255. Sub-minute durations round to the nearest minute.
func DurationMinutes(seconds float64) uint8 {
	if seconds <= 0 {
		return 0
	}
	m := math.Round(seconds / 60)
	if m >= 255 {
		return 255
	}
	return uint8(m)
}

// DurationSeconds decodes a byte produced by DurationMinutes back to seconds.
func DurationSeconds(b uint8) float64 {
	return float64(b) * 60
}

// Count encodes a small non-negative integer, capped at 255.
func Count(n int) uint8 {
	if n <= 0 {
		return 0
	}
	if n >= 255 {
		return 255
	}
	return uint8(n)
}
