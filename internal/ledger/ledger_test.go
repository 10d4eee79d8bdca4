package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleHappyPath(t *testing.T) {
	l := New()
	now := time.Now()

	require.True(t, l.BeginOpen("BTCUSDT", now))
	assert.Equal(t, StateOpening, l.State("BTCUSDT"))

	l.SetEntry("BTCUSDT", 50000, 0.5)
	l.MarkActive("BTCUSDT")
	assert.Equal(t, StateActive, l.State("BTCUSDT"))

	rec, ok := l.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 50000.0, rec.EntryPrice)
	assert.Equal(t, 0.5, rec.OriginalQty)
	assert.Equal(t, now, rec.OpenedAt)

	require.True(t, l.MarkReducing("BTCUSDT"))
	assert.Equal(t, StateReducing, l.State("BTCUSDT"))

	require.True(t, l.BeginClose("BTCUSDT"))
	assert.Equal(t, StateClosing, l.State("BTCUSDT"))

	l.MarkClosed("BTCUSDT")
	assert.Equal(t, StateClosed, l.State("BTCUSDT"))
}

func TestBeginOpenGuards(t *testing.T) {
	l := New()
	now := time.Now()

	require.True(t, l.BeginOpen("BTCUSDT", now))
	assert.False(t, l.BeginOpen("BTCUSDT", now), "OPENING blocks a second entry")

	l.MarkActive("BTCUSDT")
	require.True(t, l.BeginClose("BTCUSDT"))
	assert.False(t, l.BeginOpen("BTCUSDT", now), "CLOSING blocks a new entry")

	l.MarkClosed("BTCUSDT")
	assert.True(t, l.BeginOpen("BTCUSDT", now), "CLOSED symbol can re-enter")
}

func TestBeginCloseGuards(t *testing.T) {
	l := New()
	now := time.Now()

	require.True(t, l.BeginOpen("BTCUSDT", now))
	assert.False(t, l.BeginClose("BTCUSDT"), "OPENING blocks a close")

	l.MarkActive("BTCUSDT")
	require.True(t, l.BeginClose("BTCUSDT"))
	assert.False(t, l.BeginClose("BTCUSDT"), "re-entrant close is refused")
}

func TestBeginCloseUntrackedSymbol(t *testing.T) {
	// Positions that predate the process still get serialized closes.
	l := New()
	require.True(t, l.BeginClose("ETHUSDT"))
	assert.Equal(t, StateClosing, l.State("ETHUSDT"))
	assert.False(t, l.BeginClose("ETHUSDT"))
}

func TestRevertCloseRestoresPreCloseState(t *testing.T) {
	l := New()
	now := time.Now()

	require.True(t, l.BeginOpen("BTCUSDT", now))
	l.MarkActive("BTCUSDT")
	require.True(t, l.MarkReducing("BTCUSDT"))

	require.True(t, l.BeginClose("BTCUSDT"))
	l.RevertClose("BTCUSDT")
	assert.Equal(t, StateReducing, l.State("BTCUSDT"), "failed close resumes from REDUCING, not ACTIVE")

	// An adopted broker-only position reverts to ACTIVE.
	require.True(t, l.BeginClose("ETHUSDT"))
	l.RevertClose("ETHUSDT")
	assert.Equal(t, StateActive, l.State("ETHUSDT"))

	// No-op outside CLOSING.
	l.RevertClose("BTCUSDT")
	assert.Equal(t, StateReducing, l.State("BTCUSDT"))
}

func TestMarkReducingOnlyFromActive(t *testing.T) {
	l := New()
	now := time.Now()

	assert.False(t, l.MarkReducing("BTCUSDT"), "untracked symbol")

	require.True(t, l.BeginOpen("BTCUSDT", now))
	assert.False(t, l.MarkReducing("BTCUSDT"), "OPENING is not reducible")

	l.MarkActive("BTCUSDT")
	assert.True(t, l.MarkReducing("BTCUSDT"))
	assert.False(t, l.MarkReducing("BTCUSDT"), "REDUCING is terminal for this transition")
}

func TestClear(t *testing.T) {
	l := New()
	require.True(t, l.BeginOpen("BTCUSDT", time.Now()))
	l.Clear("BTCUSDT")
	assert.Equal(t, StateNone, l.State("BTCUSDT"))
	_, ok := l.Get("BTCUSDT")
	assert.False(t, ok)
}

func TestNewEntryOverwritesClosedRecord(t *testing.T) {
	l := New()
	now := time.Now()

	require.True(t, l.BeginOpen("BTCUSDT", now))
	l.SetEntry("BTCUSDT", 100, 1)
	l.MarkActive("BTCUSDT")
	require.True(t, l.BeginClose("BTCUSDT"))
	l.MarkClosed("BTCUSDT")

	later := now.Add(time.Hour)
	require.True(t, l.BeginOpen("BTCUSDT", later))
	rec, ok := l.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, StateOpening, rec.State)
	assert.Zero(t, rec.EntryPrice, "stale entry data must not leak into the new record")
	assert.Equal(t, later, rec.OpenedAt)
}
