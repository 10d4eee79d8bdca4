package db

import (
	"context"
	"sync"
	"time"

	"github.com/quantfold/tiertrader/internal/journal"
)

// Memory is an in-process journal.Journaler used when no database is
// configured, and by tests.
type Memory struct {
	mu       sync.Mutex
	events   []journal.Event
	outcomes []journal.Outcome
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) LogEvent(_ context.Context, event journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *Memory) RecordOutcome(_ context.Context, o journal.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *Memory) GetEvents(_ context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []journal.Event
	for _, ev := range m.events {
		if ev.Type == eventType && !ev.Time.Before(start) && !ev.Time.After(end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Outcomes returns a snapshot of recorded outcomes.
func (m *Memory) Outcomes() []journal.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]journal.Outcome, len(m.outcomes))
	copy(out, m.outcomes)
	return out
}
