// Package risk holds the confidence-tier table, the confidence decay
// model, and the dynamic take-profit/stop-loss model. It is a pure
// dependency of the trader package and must never import it.
package risk

import (
	"fmt"
)

// Order styles a tier can request for the entry order.
const (
	StyleMarket = "MARKET"
	StyleLimit  = "LIMIT"
)

// Tier is the execution parameter bundle selected by a signal's
// confidence band.
type Tier struct {
	Lo               float64 `yaml:"lo"`
	Hi               float64 `yaml:"hi"`
	Leverage         int     `yaml:"leverage"`
	PositionFraction float64 `yaml:"position_fraction"`
	StopLossPct      float64 `yaml:"stop_loss_pct"`
	TakeProfitPct    float64 `yaml:"take_profit_pct"`
	OrderStyle       string  `yaml:"order_style"`
	LimitOffsetPct   float64 `yaml:"limit_offset_pct"`
	TTLMinutes       int     `yaml:"ttl_minutes"`
}

// TierTable selects a Tier by confidence. Ranges are inclusive on both
// ends and disjoint by construction; match order does not matter.
type TierTable struct {
	tiers []Tier
}

// NewTierTable validates and builds a table. A malformed table is a
// startup-fatal configuration error.
func NewTierTable(tiers []Tier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("tier table: no tiers configured")
	}
	for i, t := range tiers {
		if t.Lo > t.Hi {
			return nil, fmt.Errorf("tier table: tier %d has lo %.4f > hi %.4f", i, t.Lo, t.Hi)
		}
		if t.Lo < 0 || t.Hi > 1 {
			return nil, fmt.Errorf("tier table: tier %d range [%.4f, %.4f] outside [0, 1]", i, t.Lo, t.Hi)
		}
		if t.Leverage <= 0 {
			return nil, fmt.Errorf("tier table: tier %d has non-positive leverage %d", i, t.Leverage)
		}
		if t.PositionFraction <= 0 || t.PositionFraction > 1 {
			return nil, fmt.Errorf("tier table: tier %d has position fraction %.4f outside (0, 1]", i, t.PositionFraction)
		}
		if t.OrderStyle != StyleMarket && t.OrderStyle != StyleLimit {
			return nil, fmt.Errorf("tier table: tier %d has unknown order style %q", i, t.OrderStyle)
		}
		for j, u := range tiers[:i] {
			if t.Lo <= u.Hi && u.Lo <= t.Hi {
				return nil, fmt.Errorf("tier table: tiers %d and %d overlap", j, i)
			}
		}
	}
	return &TierTable{tiers: tiers}, nil
}

// Select returns the tier whose [lo, hi] range contains confidence, or
// false when no configured range matches (signal dropped, no side
// effect).
func (tt *TierTable) Select(confidence float64) (Tier, bool) {
	for _, t := range tt.tiers {
		if confidence >= t.Lo && confidence <= t.Hi {
			return t, true
		}
	}
	return Tier{}, false
}

// DefaultTiers is the shipped tier table. Boundaries and values are
// configuration; any deployment can swap them via the config file.
func DefaultTiers() []Tier {
	return []Tier{
		{Lo: 0.95, Hi: 1.00, Leverage: 10, PositionFraction: 0.20, StopLossPct: 0.060, TakeProfitPct: 0.030, OrderStyle: StyleMarket, LimitOffsetPct: 0, TTLMinutes: 0},
		{Lo: 0.90, Hi: 0.9499, Leverage: 10, PositionFraction: 0.20, StopLossPct: 0.060, TakeProfitPct: 0.030, OrderStyle: StyleLimit, LimitOffsetPct: -0.0035, TTLMinutes: 3},
		{Lo: 0.80, Hi: 0.8999, Leverage: 7, PositionFraction: 0.15, StopLossPct: 0.050, TakeProfitPct: 0.025, OrderStyle: StyleLimit, LimitOffsetPct: -0.0050, TTLMinutes: 10},
		{Lo: 0.70, Hi: 0.7999, Leverage: 5, PositionFraction: 0.10, StopLossPct: 0.040, TakeProfitPct: 0.020, OrderStyle: StyleLimit, LimitOffsetPct: -0.0100, TTLMinutes: 15},
		{Lo: 0.60, Hi: 0.6999, Leverage: 3, PositionFraction: 0.05, StopLossPct: 0.030, TakeProfitPct: 0.015, OrderStyle: StyleLimit, LimitOffsetPct: -0.0150, TTLMinutes: 15},
	}
}
