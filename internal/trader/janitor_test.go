package trader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfold/tiertrader/internal/broker"
)

func TestJanitorCancelsOnlyStaleBotEntries(t *testing.T) {
	b := newMockBroker()
	now := time.Now()

	b.resting = []broker.OrderInfo{
		{
			// Stale bot-owned limit entry: canceled.
			OrderID:       "1",
			ClientOrderID: broker.ClientIDPrefix + "aaa",
			Symbol:        "BTCUSDT",
			Type:          broker.OrderTypeLimit,
			CreatedAt:     now.Add(-time.Hour),
		},
		{
			// Fresh bot-owned limit entry: kept.
			OrderID:       "2",
			ClientOrderID: broker.ClientIDPrefix + "bbb",
			Symbol:        "ETHUSDT",
			Type:          broker.OrderTypeLimit,
			CreatedAt:     now.Add(-time.Minute),
		},
		{
			// Protective stop, bot-owned and old: never touched.
			OrderID:       "3",
			ClientOrderID: broker.ClientIDPrefix + "ccc",
			Symbol:        "BTCUSDT",
			Type:          broker.OrderTypeStopMarket,
			CreatedAt:     now.Add(-2 * time.Hour),
		},
		{
			// Reduce-only limit (ladder exit): never touched.
			OrderID:       "4",
			ClientOrderID: broker.ClientIDPrefix + "ddd",
			Symbol:        "BTCUSDT",
			Type:          broker.OrderTypeLimit,
			ReduceOnly:    true,
			CreatedAt:     now.Add(-2 * time.Hour),
		},
		{
			// Foreign order without the bot prefix: never touched.
			OrderID:       "5",
			ClientOrderID: "manual-xyz",
			Symbol:        "BTCUSDT",
			Type:          broker.OrderTypeLimit,
			CreatedAt:     now.Add(-3 * time.Hour),
		},
	}

	j := NewJanitor(b, testSettings()) // max age 30m
	j.now = func() time.Time { return now }

	canceled := j.Sweep(context.Background())
	assert.Equal(t, 1, canceled)
	assert.Equal(t, [][2]string{{"BTCUSDT", "1"}}, b.cancelCalls)
}

func TestJanitorEmptyBook(t *testing.T) {
	b := newMockBroker()
	j := NewJanitor(b, testSettings())
	assert.Zero(t, j.Sweep(context.Background()))
	assert.Empty(t, b.cancelCalls)
}
