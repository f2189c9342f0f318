package deviation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestPercent(t *testing.T) {
	testCases := []struct {
		name     string
		expected *float64
		actual   float64
		want     float64
	}{
		{name: "nil expected", expected: nil, actual: 50, want: 0},
		{name: "zero expected", expected: ptr(0), actual: 50, want: 0},
		{name: "negative expected", expected: ptr(-5), actual: 50, want: 0},
		{name: "under target", expected: ptr(100), actual: 90, want: -10},
		{name: "over target", expected: ptr(100), actual: 115, want: 15},
		{name: "on target", expected: ptr(75), actual: 75, want: 0},
		{name: "rounded to two decimals", expected: ptr(3), actual: 4, want: 33.33},
		{name: "rounded negative", expected: ptr(155), actual: 130, want: -16.13},
		{name: "zero actual", expected: ptr(85), actual: 0, want: -100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Percent(tc.expected, tc.actual))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, InTolerance, Classify(0, 10))
	assert.Equal(t, InTolerance, Classify(10, 10))
	assert.Equal(t, InTolerance, Classify(-10, 10))
	assert.Equal(t, OutOfTolerance, Classify(10.01, 10))
	assert.Equal(t, OutOfTolerance, Classify(-15, 10))
	assert.Equal(t, OutOfTolerance, Classify(6, 5))
	assert.Equal(t, InTolerance, Classify(9.99, 0), "non-positive band falls back to the default")
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.5, Round(0.49999999, 3))
	assert.Equal(t, 1.235, Round(1.23456, 3))
	assert.Equal(t, -2.5, Round(-2.4999999, 2))
}
