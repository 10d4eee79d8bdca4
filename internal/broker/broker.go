// Package broker abstracts the futures venue behind a capability
// interface and provides the Binance USD-M implementation.
package broker

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType covers the order styles the lifecycle manager submits.
type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeLimit            OrderType = "LIMIT"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// ClientIDPrefix marks orders as bot-owned. The stale-order janitor only
// ever touches orders carrying this prefix.
const ClientIDPrefix = "ttr-"

// NewClientOrderID returns a unique bot-owned client order identifier.
func NewClientOrderID() string {
	return ClientIDPrefix + uuid.NewString()
}

// BotOwned reports whether a client order ID carries the bot prefix.
func BotOwned(clientOrderID string) bool {
	return strings.HasPrefix(clientOrderID, ClientIDPrefix)
}

// OrderSpec describes an order to submit.
type OrderSpec struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      float64
	Price         float64
	StopPrice     float64
	ReduceOnly    bool
	ClosePosition bool
	ClientOrderID string
}

// OrderResult is the venue's response to a submitted order.
type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Status        string
	AvgPrice      float64
	ExecutedQty   float64
	Timestamp     time.Time
}

// PositionInfo is a currently-open position at the venue. Quantity is
// signed: positive long, negative short.
type PositionInfo struct {
	Symbol     string
	Quantity   float64
	EntryPrice float64
	Leverage   int
	UpdateTime time.Time
}

// Long reports the position's direction.
func (p PositionInfo) Long() bool { return p.Quantity > 0 }

// OrderInfo is a resting open order at the venue.
type OrderInfo struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Price         float64
	Quantity      float64
	ReduceOnly    bool
	CreatedAt     time.Time
}

// SymbolFilters are the venue's rounding constraints for a symbol.
type SymbolFilters struct {
	LotStep  float64
	TickSize float64
}

// Broker is the capability set the lifecycle manager consumes from the
// trading venue. All calls are blocking network operations with a
// bounded timeout; a timed-out call fails that call only.
type Broker interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	WalletBalance(ctx context.Context, asset string) (float64, error)
	OpenPosition(ctx context.Context, symbol string) (*PositionInfo, error)
	OpenPositions(ctx context.Context) ([]PositionInfo, error)
	MarkPrice(ctx context.Context, symbol string) (float64, error)
	SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error)
	CreateOrder(ctx context.Context, spec OrderSpec) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllOpenOrders(ctx context.Context, symbol string) error
	OpenOrders(ctx context.Context) ([]OrderInfo, error)
	RealizedPnl(ctx context.Context, asset string, since time.Time) (float64, error)
}

// RoundDownToStep rounds a quantity down to the venue's lot-size step.
func RoundDownToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	return math.Floor(qty/step) * step
}

// RoundToTick rounds a price to the venue's tick size.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}
