package sched

import "sync/atomic"

// Gate is the process-wide trading enable flag. Halting only stops
// future trade-entry cycles; in-flight work and supervisor sweeps are
// unaffected.
type Gate struct {
	enabled atomic.Bool
}

// NewGate returns an enabled gate.
func NewGate() *Gate {
	g := &Gate{}
	g.enabled.Store(true)
	return g
}

func (g *Gate) Enabled() bool { return g.enabled.Load() }
func (g *Gate) Enable()       { g.enabled.Store(true) }
func (g *Gate) Disable()      { g.enabled.Store(false) }
