// Package ledger owns the per-symbol position lifecycle state. All
// mutation goes through it; the entry cycle and the supervisor sweep
// never share raw maps. No persistence across restarts is required.
package ledger

import (
	"sync"
	"time"
)

// State of a symbol's position lifecycle.
//
//	OPENING -> ACTIVE -> REDUCING -> CLOSING -> CLOSED
type State int

const (
	StateNone State = iota
	StateOpening
	StateActive
	StateReducing
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "OPENING"
	case StateActive:
		return "ACTIVE"
	case StateReducing:
		return "REDUCING"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "NONE"
	}
}

// Record is one symbol's lifecycle entry. Overwritten on a new entry,
// marked CLOSED on close.
type Record struct {
	State       State
	EntryPrice  float64
	OriginalQty float64
	OpenedAt    time.Time

	// state before BeginClose, so a failed close can resume from it
	prevState State
}

// Ledger serializes lifecycle transitions per symbol so an entry cycle
// and a supervisor sweep cannot open and close the same symbol
// concurrently.
type Ledger struct {
	mu      sync.Mutex
	records map[string]*Record
}

func New() *Ledger {
	return &Ledger{records: make(map[string]*Record)}
}

// Get returns a copy of the symbol's record.
func (l *Ledger) Get(symbol string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[symbol]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// State returns the symbol's lifecycle state, StateNone when untracked.
func (l *Ledger) State(symbol string) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[symbol]; ok {
		return rec.State
	}
	return StateNone
}

// BeginOpen transitions a symbol to OPENING. It refuses when the symbol
// is already mid-lifecycle (OPENING or CLOSING), which is the duplicate
// concurrent entry guard.
func (l *Ledger) BeginOpen(symbol string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[symbol]; ok {
		if rec.State == StateOpening || rec.State == StateClosing {
			return false
		}
	}
	l.records[symbol] = &Record{State: StateOpening, OpenedAt: now}
	return true
}

// SetEntry records the fill price and original quantity while OPENING.
func (l *Ledger) SetEntry(symbol string, entryPrice, qty float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[symbol]; ok {
		rec.EntryPrice = entryPrice
		rec.OriginalQty = qty
	}
}

// MarkActive completes an entry: OPENING -> ACTIVE.
func (l *Ledger) MarkActive(symbol string) {
	l.setState(symbol, StateActive)
}

// MarkReducing transitions ACTIVE -> REDUCING. Only valid from ACTIVE;
// reports whether the transition happened.
func (l *Ledger) MarkReducing(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[symbol]
	if !ok || rec.State != StateActive {
		return false
	}
	rec.State = StateReducing
	return true
}

// BeginClose transitions a symbol to CLOSING. It refuses when a close is
// already in flight or an entry is mid-opening (re-entrant closure
// guard).
func (l *Ledger) BeginClose(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[symbol]
	if !ok {
		// Position exists at the broker but predates this process; track
		// it so the close is still serialized. A failed close reverts it
		// to ACTIVE, which is what an adopted live position is.
		l.records[symbol] = &Record{State: StateClosing, prevState: StateActive}
		return true
	}
	if rec.State == StateClosing || rec.State == StateOpening {
		return false
	}
	rec.prevState = rec.State
	rec.State = StateClosing
	return true
}

// RevertClose undoes a BeginClose after the close attempt failed,
// restoring the pre-close state so the next sweep resumes from where it
// left off (a REDUCING position must not demote to ACTIVE and re-run
// the break-even promotion).
func (l *Ledger) RevertClose(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[symbol]; ok && rec.State == StateClosing {
		rec.State = rec.prevState
	}
}

// MarkClosed completes a close.
func (l *Ledger) MarkClosed(symbol string) {
	l.setState(symbol, StateClosed)
}

// Clear drops a symbol's record, used when an entry order fails before
// any position exists.
func (l *Ledger) Clear(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, symbol)
}

func (l *Ledger) setState(symbol string, s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[symbol]; ok {
		rec.State = s
	}
}
