// Package signal models the confidence-scored entries delivered by the
// external analytics feed and normalizes their free-form side flags.
package signal

import (
	"strings"
	"time"
)

// Direction is the normalized side of a signal.
type Direction int

const (
	Unknown Direction = iota
	Long
	Short
)

// synonyms maps the free-form side flags the analytics feed emits to a
// normalized direction. Lookup is case-insensitive.
var synonyms = map[string]Direction{
	"LONG":    Long,
	"BUY":     Long,
	"BULL":    Long,
	"BULLISH": Long,
	"SHORT":   Short,
	"SELL":    Short,
	"BEAR":    Short,
	"BEARISH": Short,
}

// ParseDirection normalizes a free-form side flag. Unrecognized flags
// yield Unknown, which marks the signal invalid.
func ParseDirection(flag string) Direction {
	if d, ok := synonyms[strings.ToUpper(strings.TrimSpace(flag))]; ok {
		return d
	}
	return Unknown
}

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the flipped direction. Unknown stays Unknown.
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return Unknown
	}
}

// Signal is one confidence-scored trading signal from the external feed.
type Signal struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	Volume     float64 `json:"volume"`
	Timestamp  int64   `json:"timestamp"`
	Confidence float64 `json:"confidence"`
	Side       string  `json:"side"`
}

// Direction returns the normalized side of the signal.
func (s Signal) Direction() Direction {
	return ParseDirection(s.Side)
}

// Valid reports whether the signal carries enough to act on. Direction is
// checked separately by the order placer so an unknown side can be
// surfaced as its own error.
func (s Signal) Valid() bool {
	return s.Symbol != "" && s.Price > 0 && s.Confidence >= 0 && s.Confidence <= 1
}

// Time converts the feed's unix timestamp.
func (s Signal) Time() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// Latest indexes signals by symbol, keeping the highest-confidence entry
// per symbol. Input is expected sorted descending by confidence, as the
// source returns it.
func Latest(signals []Signal) map[string]Signal {
	latest := make(map[string]Signal, len(signals))
	for _, s := range signals {
		if _, ok := latest[s.Symbol]; !ok {
			latest[s.Symbol] = s
		}
	}
	return latest
}
