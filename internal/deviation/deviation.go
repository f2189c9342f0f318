// Package deviation scores actual output against the expected rate.
package deviation

import "math"

// DefaultBand is the tolerance band, in percent, used when none is configured.
const DefaultBand = 10.0

// Tolerance classifies a deviation for presentation.
type Tolerance string

const (
	InTolerance    Tolerance = "in-tolerance"
	OutOfTolerance Tolerance = "out-of-tolerance"
)

// Percent returns the signed deviation of actual from expected, in percent,
// rounded to 2 decimals. A nil, zero or negative expectation yields 0: a reading
// without a defined expectation is reported as "no deviation".
func Percent(expected *float64, actual float64) float64 {
	if expected == nil || *expected <= 0 || math.IsNaN(*expected) {
		return 0
	}
	return Round((actual-*expected) / *expected * 100, 2)
}

// Classify applies the inclusive band: |pct| <= band is in tolerance.
func Classify(pct, band float64) Tolerance {
	if band <= 0 {
		band = DefaultBand
	}
	if math.Abs(pct) <= band {
		return InTolerance
	}
	return OutOfTolerance
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
