package risk

import "math"

const (
	// MinTakeProfitPct floors the dynamic take-profit distance.
	MinTakeProfitPct = 0.01
	// AbsMinStopLossPct floors the derived stop distance so an extremely
	// tight take-profit cannot produce a degenerate stop.
	AbsMinStopLossPct = 0.025
)

// VolatilityTable maps symbols to their volatility bucket, the base
// input of the take-profit model. Symbols absent from the table use the
// default bucket.
type VolatilityTable struct {
	Buckets map[string]float64
	Default float64
}

// Bucket returns the volatility base for a symbol.
func (v VolatilityTable) Bucket(symbol string) float64 {
	if b, ok := v.Buckets[symbol]; ok {
		return b
	}
	return v.Default
}

// TakeProfitPct computes the take-profit distance (as a fraction of
// entry price) from the symbol's volatility bucket, signal confidence,
// and intended hold duration in hours.
func TakeProfitPct(base, confidence, holdHours float64) float64 {
	tp := base * (0.8 + 0.4*confidence) * math.Sqrt(math.Max(holdHours, 1)/3)
	return math.Max(tp, MinTakeProfitPct)
}

// StopLossPct derives the stop distance from a take-profit distance:
// always at least twice the take-profit and never below the absolute
// floor.
func StopLossPct(takeProfitPct float64) float64 {
	return math.Max(AbsMinStopLossPct, 2*takeProfitPct)
}
