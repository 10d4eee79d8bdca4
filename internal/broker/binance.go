package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	futuresBaseURL = "https://fapi.binance.com"
	testnetBaseURL = "https://testnet.binancefuture.com"
)

// BinanceFutures is a Broker backed by the Binance USD-M futures REST
// API. Every request passes a shared rate limiter and a circuit breaker,
// and carries a bounded per-call timeout.
type BinanceFutures struct {
	apiKey    string
	apiSecret string
	baseURL   string

	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	mu      sync.Mutex
	filters map[string]SymbolFilters // exchangeInfo cache
}

// NewBinanceFutures builds a client. testnet switches the base URL to
// the Binance futures testnet.
func NewBinanceFutures(apiKey, apiSecret string, testnet bool, callTimeout time.Duration) *BinanceFutures {
	base := futuresBaseURL
	if testnet {
		base = testnetBaseURL
	}
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:     "binance-futures",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("BinanceFutures | breaker state change")
		},
	}

	return &BinanceFutures{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   base,
		client:    &http.Client{Timeout: callTimeout},
		limiter:   rate.NewLimiter(rate.Limit(8), 16),
		breaker:   gobreaker.NewCircuitBreaker(settings),
		filters:   make(map[string]SymbolFilters),
	}
}

// apiError is a non-2xx response from the venue.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Status  int    `json:"-"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("binance: status %d code %d: %s", e.Status, e.Code, e.Message)
}

func (b *BinanceFutures) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// request performs one HTTP call through the limiter and breaker.
// signed requests get a timestamp and HMAC signature appended.
func (b *BinanceFutures) request(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", "5000")
	}
	query := params.Encode()
	if signed {
		// Binance wants the signature appended after the signed payload,
		// not sorted into it.
		query += "&signature=" + b.sign(query)
	}

	body, err := b.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path+"?"+query, nil)
		if err != nil {
			return nil, err
		}
		if b.apiKey != "" {
			req.Header.Set("X-MBX-APIKEY", b.apiKey)
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &apiError{Status: resp.StatusCode}
			_ = json.Unmarshal(data, apiErr)
			return nil, apiErr
		}
		return data, nil
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func (b *BinanceFutures) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	return b.request(ctx, http.MethodPost, "/fapi/v1/leverage", params, true, nil)
}

func (b *BinanceFutures) WalletBalance(ctx context.Context, asset string) (float64, error) {
	var balances []struct {
		Asset   string `json:"asset"`
		Balance string `json:"balance"`
	}
	if err := b.request(ctx, http.MethodGet, "/fapi/v2/balance", nil, true, &balances); err != nil {
		return 0, err
	}
	for _, bal := range balances {
		if bal.Asset == asset {
			return strconv.ParseFloat(bal.Balance, 64)
		}
	}
	return 0, nil
}

type positionRisk struct {
	Symbol      string `json:"symbol"`
	PositionAmt string `json:"positionAmt"`
	EntryPrice  string `json:"entryPrice"`
	Leverage    string `json:"leverage"`
	UpdateTime  int64  `json:"updateTime"`
}

func (p positionRisk) toInfo() PositionInfo {
	qty, _ := strconv.ParseFloat(p.PositionAmt, 64)
	entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
	lev, _ := strconv.Atoi(p.Leverage)
	return PositionInfo{
		Symbol:     p.Symbol,
		Quantity:   qty,
		EntryPrice: entry,
		Leverage:   lev,
		UpdateTime: time.UnixMilli(p.UpdateTime).UTC(),
	}
}

func (b *BinanceFutures) OpenPosition(ctx context.Context, symbol string) (*PositionInfo, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var positions []positionRisk
	if err := b.request(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, true, &positions); err != nil {
		return nil, err
	}
	for _, p := range positions {
		info := p.toInfo()
		if info.Quantity != 0 {
			return &info, nil
		}
	}
	return nil, nil
}

func (b *BinanceFutures) OpenPositions(ctx context.Context) ([]PositionInfo, error) {
	var positions []positionRisk
	if err := b.request(ctx, http.MethodGet, "/fapi/v2/positionRisk", nil, true, &positions); err != nil {
		return nil, err
	}
	open := make([]PositionInfo, 0, len(positions))
	for _, p := range positions {
		info := p.toInfo()
		if info.Quantity != 0 {
			open = append(open, info)
		}
	}
	return open, nil
}

func (b *BinanceFutures) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var premium struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := b.request(ctx, http.MethodGet, "/fapi/v1/premiumIndex", params, false, &premium); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(premium.MarkPrice, 64)
}

// SymbolFilters fetches LOT_SIZE and PRICE_FILTER steps, caching the
// exchangeInfo response per symbol.
func (b *BinanceFutures) SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error) {
	b.mu.Lock()
	if f, ok := b.filters[symbol]; ok {
		b.mu.Unlock()
		return f, nil
	}
	b.mu.Unlock()

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
				TickSize   string `json:"tickSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := b.request(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", nil, false, &info); err != nil {
		return SymbolFilters{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range info.Symbols {
		var f SymbolFilters
		for _, flt := range s.Filters {
			switch flt.FilterType {
			case "LOT_SIZE":
				f.LotStep, _ = strconv.ParseFloat(flt.StepSize, 64)
			case "PRICE_FILTER":
				f.TickSize, _ = strconv.ParseFloat(flt.TickSize, 64)
			}
		}
		b.filters[s.Symbol] = f
	}
	f, ok := b.filters[symbol]
	if !ok {
		return SymbolFilters{}, fmt.Errorf("symbol %s not in exchange info", symbol)
	}
	return f, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (b *BinanceFutures) CreateOrder(ctx context.Context, spec OrderSpec) (OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", spec.Symbol)
	params.Set("side", string(spec.Side))
	params.Set("type", string(spec.Type))
	if spec.ClientOrderID != "" {
		params.Set("newClientOrderId", spec.ClientOrderID)
	}
	if spec.ClosePosition {
		params.Set("closePosition", "true")
	} else if spec.Quantity > 0 {
		params.Set("quantity", formatFloat(spec.Quantity))
	}
	if spec.ReduceOnly && !spec.ClosePosition {
		params.Set("reduceOnly", "true")
	}
	if spec.Type == OrderTypeLimit {
		params.Set("price", formatFloat(spec.Price))
		params.Set("timeInForce", "GTC")
	}
	if spec.Type == OrderTypeStopMarket || spec.Type == OrderTypeTakeProfitMarket {
		params.Set("stopPrice", formatFloat(spec.StopPrice))
	}

	var resp struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Symbol        string `json:"symbol"`
		Status        string `json:"status"`
		AvgPrice      string `json:"avgPrice"`
		ExecutedQty   string `json:"executedQty"`
		UpdateTime    int64  `json:"updateTime"`
	}
	if err := b.request(ctx, http.MethodPost, "/fapi/v1/order", params, true, &resp); err != nil {
		return OrderResult{}, err
	}

	avg, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	executed, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	return OrderResult{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Status:        resp.Status,
		AvgPrice:      avg,
		ExecutedQty:   executed,
		Timestamp:     time.UnixMilli(resp.UpdateTime).UTC(),
	}, nil
}

func (b *BinanceFutures) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	return b.request(ctx, http.MethodDelete, "/fapi/v1/order", params, true, nil)
}

func (b *BinanceFutures) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	return b.request(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params, true, nil)
}

func (b *BinanceFutures) OpenOrders(ctx context.Context) ([]OrderInfo, error) {
	var orders []struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Symbol        string `json:"symbol"`
		Side          string `json:"side"`
		Type          string `json:"type"`
		Price         string `json:"price"`
		OrigQty       string `json:"origQty"`
		ReduceOnly    bool   `json:"reduceOnly"`
		Time          int64  `json:"time"`
	}
	if err := b.request(ctx, http.MethodGet, "/fapi/v1/openOrders", nil, true, &orders); err != nil {
		return nil, err
	}

	infos := make([]OrderInfo, 0, len(orders))
	for _, o := range orders {
		price, _ := strconv.ParseFloat(o.Price, 64)
		qty, _ := strconv.ParseFloat(o.OrigQty, 64)
		infos = append(infos, OrderInfo{
			OrderID:       strconv.FormatInt(o.OrderID, 10),
			ClientOrderID: o.ClientOrderID,
			Symbol:        o.Symbol,
			Side:          Side(o.Side),
			Type:          OrderType(o.Type),
			Price:         price,
			Quantity:      qty,
			ReduceOnly:    o.ReduceOnly,
			CreatedAt:     time.UnixMilli(o.Time).UTC(),
		})
	}
	return infos, nil
}

func (b *BinanceFutures) RealizedPnl(ctx context.Context, asset string, since time.Time) (float64, error) {
	params := url.Values{}
	params.Set("incomeType", "REALIZED_PNL")
	params.Set("startTime", strconv.FormatInt(since.UnixMilli(), 10))
	params.Set("limit", "1000")
	var income []struct {
		Asset  string `json:"asset"`
		Income string `json:"income"`
	}
	if err := b.request(ctx, http.MethodGet, "/fapi/v1/income", params, true, &income); err != nil {
		return 0, err
	}
	var total float64
	for _, item := range income {
		if item.Asset != asset {
			continue
		}
		v, _ := strconv.ParseFloat(item.Income, 64)
		total += v
	}
	return total, nil
}
