package trader

import (
	"time"

	"github.com/quantfold/tiertrader/internal/risk"
)

// Settings are the lifecycle knobs shared by the placer, supervisor and
// janitor. All values come from the configuration surface.
type Settings struct {
	Asset string

	TTLHours           float64
	FlipThreshold      float64
	MinConfidence      float64
	DecayHalfLifeHours float64

	PartialTPEnabled bool
	TP1Fraction      float64
	PartialTolerance float64

	// ProtectiveDelay lets the venue register a fresh position before
	// reduce-only orders reference it.
	ProtectiveDelay time.Duration
	// SettleDelay lets order cancellation settle before the closing
	// market order goes out.
	SettleDelay time.Duration

	StaleOrderMaxAge time.Duration

	Volatility risk.VolatilityTable
}
