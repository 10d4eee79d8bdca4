// Package journal defines the append-only audit record of placements,
// closures, and errors.
package journal

import (
	"context"
	"time"
)

// Event represents a journaled event.
type Event struct {
	Time        time.Time
	Type        string // e.g. "order", "closure", "error"
	Description string
	Data        map[string]any
}

// Outcome is the append-only record of one closed trade.
type Outcome struct {
	Time       time.Time
	Symbol     string
	EntryPrice float64
	ExitPrice  float64
	PnlPct     float64
	HoldHours  float64
	Reason     string
}

// Journaler is the append-only audit surface. Implementations must not
// let a journaling failure disturb the trading path; callers log and
// move on.
type Journaler interface {
	LogEvent(ctx context.Context, event Event) error
	RecordOutcome(ctx context.Context, outcome Outcome) error
	GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]Event, error)
}
