package risk

import "math"

// DecayedConfidence applies exponential half-life decay to a confidence
// score over elapsed hours, rounded to 3 decimal places. Pure and
// deterministic: zero elapsed time returns the input unchanged, and the
// result is non-increasing in elapsed time.
func DecayedConfidence(initial, elapsedHours, halfLifeHours float64) float64 {
	if halfLifeHours <= 0 {
		return round3(initial)
	}
	factor := math.Pow(0.5, elapsedHours/halfLifeHours)
	return round3(initial * factor)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
