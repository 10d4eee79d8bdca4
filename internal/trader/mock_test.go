package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantfold/tiertrader/internal/broker"
	"github.com/quantfold/tiertrader/internal/risk"
)

// mockBroker records every call and serves canned data, in the spirit of
// the venue proxy mocks used upstream.
type mockBroker struct {
	mu sync.Mutex

	balance   float64
	mark      float64
	filters   broker.SymbolFilters
	positions []broker.PositionInfo
	resting   []broker.OrderInfo

	orders         []broker.OrderSpec
	cancelAllCalls []string
	cancelCalls    [][2]string
	leverageCalls  map[string]int

	failOrderType   map[broker.OrderType]error
	failOrderSymbol map[string]error
	failCancelAll   map[string]error

	orderSeq int
}

func newMockBroker() *mockBroker {
	return &mockBroker{
		balance:         1000,
		mark:            100,
		filters:         broker.SymbolFilters{LotStep: 0.001, TickSize: 0.01},
		leverageCalls:   make(map[string]int),
		failOrderType:   make(map[broker.OrderType]error),
		failOrderSymbol: make(map[string]error),
		failCancelAll:   make(map[string]error),
	}
}

func (m *mockBroker) SetLeverage(_ context.Context, symbol string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leverageCalls[symbol] = leverage
	return nil
}

func (m *mockBroker) WalletBalance(context.Context, string) (float64, error) {
	return m.balance, nil
}

func (m *mockBroker) OpenPosition(_ context.Context, symbol string) (*broker.PositionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if p.Symbol == symbol && p.Quantity != 0 {
			pos := p
			return &pos, nil
		}
	}
	return nil, nil
}

func (m *mockBroker) OpenPositions(context.Context) ([]broker.PositionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]broker.PositionInfo, len(m.positions))
	copy(out, m.positions)
	return out, nil
}

func (m *mockBroker) MarkPrice(context.Context, string) (float64, error) {
	return m.mark, nil
}

func (m *mockBroker) SymbolFilters(context.Context, string) (broker.SymbolFilters, error) {
	return m.filters, nil
}

func (m *mockBroker) CreateOrder(_ context.Context, spec broker.OrderSpec) (broker.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failOrderType[spec.Type]; ok {
		return broker.OrderResult{}, err
	}
	if err, ok := m.failOrderSymbol[spec.Symbol]; ok {
		return broker.OrderResult{}, err
	}
	m.orders = append(m.orders, spec)
	m.orderSeq++
	avg := 0.0
	if spec.Type == broker.OrderTypeMarket {
		avg = m.mark
	}
	return broker.OrderResult{
		OrderID:       fmt.Sprintf("%d", m.orderSeq),
		ClientOrderID: spec.ClientOrderID,
		Symbol:        spec.Symbol,
		Status:        "NEW",
		AvgPrice:      avg,
		ExecutedQty:   spec.Quantity,
		Timestamp:     time.Now(),
	}, nil
}

func (m *mockBroker) CancelOrder(_ context.Context, symbol, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls = append(m.cancelCalls, [2]string{symbol, orderID})
	return nil
}

func (m *mockBroker) CancelAllOpenOrders(_ context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failCancelAll[symbol]; ok {
		return err
	}
	m.cancelAllCalls = append(m.cancelAllCalls, symbol)
	return nil
}

func (m *mockBroker) OpenOrders(context.Context) ([]broker.OrderInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]broker.OrderInfo, len(m.resting))
	copy(out, m.resting)
	return out, nil
}

func (m *mockBroker) RealizedPnl(context.Context, string, time.Time) (float64, error) {
	return 0, nil
}

func (m *mockBroker) ordersOfType(t broker.OrderType) []broker.OrderSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []broker.OrderSpec
	for _, o := range m.orders {
		if o.Type == t {
			out = append(out, o)
		}
	}
	return out
}

func (m *mockBroker) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// recordingNotifier captures escalations.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingNotifier) Send(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingNotifier) SendWithRetry(msg string) error { return r.Send(msg) }

func (r *recordingNotifier) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func testSettings() Settings {
	return Settings{
		Asset:              "USDT",
		TTLHours:           6,
		FlipThreshold:      0.60,
		MinConfidence:      0.30,
		DecayHalfLifeHours: 6,
		TP1Fraction:        0.5,
		PartialTolerance:   0.02,
		StaleOrderMaxAge:   30 * time.Minute,
		Volatility:         risk.VolatilityTable{Default: 0.02},
	}
}
