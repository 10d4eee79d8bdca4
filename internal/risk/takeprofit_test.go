package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTakeProfitPctFloor(t *testing.T) {
	// A tiny volatility bucket cannot push take-profit under the floor.
	assert.Equal(t, MinTakeProfitPct, TakeProfitPct(0.0001, 0.6, 1))
}

func TestTakeProfitPctFormula(t *testing.T) {
	base, conf, hold := 0.02, 0.95, 6.0
	want := base * (0.8 + 0.4*conf) * math.Sqrt(hold/3)
	assert.InDelta(t, want, TakeProfitPct(base, conf, hold), 1e-12)
}

func TestTakeProfitPctShortHoldClamped(t *testing.T) {
	// Hold durations under one hour use one hour.
	assert.Equal(t, TakeProfitPct(0.02, 0.8, 0.25), TakeProfitPct(0.02, 0.8, 1))
}

func TestTakeProfitPctGrowsWithConfidence(t *testing.T) {
	low := TakeProfitPct(0.02, 0.6, 6)
	high := TakeProfitPct(0.02, 0.95, 6)
	assert.Greater(t, high, low)
}

func TestStopLossPct(t *testing.T) {
	tests := []struct {
		name string
		tp   float64
	}{
		{"tight take-profit hits absolute floor", MinTakeProfitPct},
		{"moderate take-profit doubles", 0.03},
		{"wide take-profit doubles", 0.08},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sl := StopLossPct(tc.tp)
			assert.GreaterOrEqual(t, sl, AbsMinStopLossPct)
			assert.GreaterOrEqual(t, sl, 2*tc.tp)
		})
	}
}

func TestVolatilityTableBucket(t *testing.T) {
	table := VolatilityTable{
		Buckets: map[string]float64{"BTCUSDT": 0.015},
		Default: 0.02,
	}
	assert.Equal(t, 0.015, table.Bucket("BTCUSDT"))
	assert.Equal(t, 0.02, table.Bucket("DOGEUSDT"))
}
