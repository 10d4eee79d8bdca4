// Package trader implements the position lifecycle core: order
// placement from tiered signals, the supervisor sweep over open
// positions, and the stale entry-order janitor.
package trader

import (
	"errors"
	"fmt"
)

// ErrInvalidDirection marks a signal whose side flag could not be
// normalized. The signal is dropped and no order is sent.
var ErrInvalidDirection = errors.New("invalid signal direction")

// ProtectiveOrderError reports an entry that filled but was left without
// full protection: the stop or take-profit order failed. The entry is
// not rolled back; this is the one failure class that must be escalated,
// not merely logged.
type ProtectiveOrderError struct {
	Symbol string
	Kind   string // "stop_loss" or "take_profit"
	Cause  error
}

func (e *ProtectiveOrderError) Error() string {
	return fmt.Sprintf("protective %s order failed for %s: %v", e.Kind, e.Symbol, e.Cause)
}

func (e *ProtectiveOrderError) Unwrap() error { return e.Cause }
