package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		flag string
		want Direction
	}{
		{"BUY", Long},
		{"buy", Long},
		{"LONG", Long},
		{"Bull", Long},
		{"BULLISH", Long},
		{"SELL", Short},
		{"short", Short},
		{"BEAR", Short},
		{"bearish", Short},
		{" long ", Long},
		{"foo", Unknown},
		{"", Unknown},
		{"HOLD", Unknown},
	}
	for _, tc := range tests {
		t.Run(tc.flag, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseDirection(tc.flag))
		})
	}
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, Short, Long.Opposite())
	assert.Equal(t, Long, Short.Opposite())
	assert.Equal(t, Unknown, Unknown.Opposite())
}

func TestSignalValid(t *testing.T) {
	ok := Signal{Symbol: "BTCUSDT", Price: 100, Confidence: 0.7, Side: "LONG"}
	assert.True(t, ok.Valid())

	assert.False(t, Signal{Price: 100, Confidence: 0.7}.Valid(), "missing symbol")
	assert.False(t, Signal{Symbol: "BTCUSDT", Confidence: 0.7}.Valid(), "missing price")
	assert.False(t, Signal{Symbol: "BTCUSDT", Price: 100, Confidence: 1.2}.Valid(), "confidence above 1")
}

func TestLatestKeepsHighestConfidence(t *testing.T) {
	signals := []Signal{
		{Symbol: "BTCUSDT", Confidence: 0.9},
		{Symbol: "ETHUSDT", Confidence: 0.8},
		{Symbol: "BTCUSDT", Confidence: 0.7},
	}
	latest := Latest(signals)
	assert.Len(t, latest, 2)
	assert.Equal(t, 0.9, latest["BTCUSDT"].Confidence)
	assert.Equal(t, 0.8, latest["ETHUSDT"].Confidence)
}
