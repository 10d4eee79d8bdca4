package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/tiertrader/internal/broker"
	"github.com/quantfold/tiertrader/internal/journal"
	"github.com/quantfold/tiertrader/internal/ledger"
	"github.com/quantfold/tiertrader/internal/metrics"
	"github.com/quantfold/tiertrader/internal/notifier"
	"github.com/quantfold/tiertrader/internal/risk"
	"github.com/quantfold/tiertrader/internal/signal"
)

// PlacementResult reports what one Place call did. Blocked is set (with
// no orders and unchanged ledger state) when the symbol was already
// mid-lifecycle.
type PlacementResult struct {
	Blocked bool

	Symbol          string
	Quantity        float64
	EntryPrice      float64
	StopPrice       float64
	TakeProfitPrice float64

	Entry      broker.OrderResult
	Stop       broker.OrderResult
	TakeProfit broker.OrderResult
}

// Placer converts a tiered signal into an entry order plus protective
// orders, driving the ledger through OPENING -> ACTIVE.
type Placer struct {
	broker   broker.Broker
	ledger   *ledger.Ledger
	journal  journal.Journaler
	notifier notifier.Notifier
	settings Settings

	now func() time.Time
}

func NewPlacer(b broker.Broker, l *ledger.Ledger, j journal.Journaler, n notifier.Notifier, s Settings) *Placer {
	return &Placer{
		broker:   b,
		ledger:   l,
		journal:  j,
		notifier: n,
		settings: s,
		now:      time.Now,
	}
}

// Place submits the entry and protective orders for a signal under the
// given tier.
//
// A failed protective order does not roll back the entry: the caller
// gets a ProtectiveOrderError and the position stays ACTIVE so the
// supervisor keeps managing it. Protective orders are never resubmitted
// automatically.
func (p *Placer) Place(ctx context.Context, sig signal.Signal, tier risk.Tier) (PlacementResult, error) {
	dir := sig.Direction()
	if dir == signal.Unknown {
		return PlacementResult{}, fmt.Errorf("%w: side %q", ErrInvalidDirection, sig.Side)
	}

	symbol := sig.Symbol
	if !p.ledger.BeginOpen(symbol, p.now()) {
		log.Warn().Str("symbol", symbol).Stringer("state", p.ledger.State(symbol)).Msg("Place | symbol mid-lifecycle, entry blocked")
		metrics.EntriesBlocked.Inc()
		p.logEvent(ctx, "order", "entry_blocked_duplicate", map[string]any{"symbol": symbol})
		return PlacementResult{Blocked: true, Symbol: symbol}, nil
	}

	result, err := p.place(ctx, sig, dir, tier)
	if err != nil {
		if _, ok := err.(*ProtectiveOrderError); ok {
			// Entry filled; the position is live and must stay tracked.
			p.ledger.MarkActive(symbol)
		} else {
			p.ledger.Clear(symbol)
		}
		return result, err
	}

	p.ledger.MarkActive(symbol)
	return result, nil
}

func (p *Placer) place(ctx context.Context, sig signal.Signal, dir signal.Direction, tier risk.Tier) (PlacementResult, error) {
	symbol := sig.Symbol
	result := PlacementResult{Symbol: symbol}

	if err := p.broker.SetLeverage(ctx, symbol, tier.Leverage); err != nil {
		metrics.BrokerErrors.Inc()
		return result, fmt.Errorf("set leverage for %s: %w", symbol, err)
	}

	balance, err := p.broker.WalletBalance(ctx, p.settings.Asset)
	if err != nil {
		metrics.BrokerErrors.Inc()
		return result, fmt.Errorf("wallet balance: %w", err)
	}
	if balance <= 0 {
		return result, fmt.Errorf("no %s balance available", p.settings.Asset)
	}

	mark, err := p.broker.MarkPrice(ctx, symbol)
	if err != nil {
		metrics.BrokerErrors.Inc()
		return result, fmt.Errorf("mark price for %s: %w", symbol, err)
	}

	filters, err := p.broker.SymbolFilters(ctx, symbol)
	if err != nil {
		metrics.BrokerErrors.Inc()
		return result, fmt.Errorf("symbol filters for %s: %w", symbol, err)
	}

	notional := balance * tier.PositionFraction * float64(tier.Leverage)
	qty := broker.RoundDownToStep(notional/mark, filters.LotStep)
	if qty <= 0 {
		return result, fmt.Errorf("quantity for %s rounds to zero (notional %.2f, mark %.4f)", symbol, notional, mark)
	}
	result.Quantity = qty

	entrySide := broker.SideBuy
	if dir == signal.Short {
		entrySide = broker.SideSell
	}

	entrySpec := broker.OrderSpec{
		Symbol:        symbol,
		Side:          entrySide,
		Type:          broker.OrderTypeMarket,
		Quantity:      qty,
		ClientOrderID: broker.NewClientOrderID(),
	}
	if tier.OrderStyle == risk.StyleLimit {
		entrySpec.Type = broker.OrderTypeLimit
		entrySpec.Price = broker.RoundToTick(limitPrice(mark, tier.LimitOffsetPct, dir), filters.TickSize)
	}

	entry, err := p.broker.CreateOrder(ctx, entrySpec)
	if err != nil {
		metrics.BrokerErrors.Inc()
		return result, fmt.Errorf("entry order for %s: %w", symbol, err)
	}
	result.Entry = entry
	metrics.OrdersPlaced.WithLabelValues(string(entrySpec.Type)).Inc()

	entryPrice := entry.AvgPrice
	if entryPrice <= 0 {
		entryPrice = mark
	}
	result.EntryPrice = entryPrice
	p.ledger.SetEntry(symbol, entryPrice, qty)

	p.logEvent(ctx, "order", "entry_placed", map[string]any{
		"symbol":     symbol,
		"side":       dir.String(),
		"type":       string(entrySpec.Type),
		"quantity":   qty,
		"price":      entryPrice,
		"confidence": sig.Confidence,
		"leverage":   tier.Leverage,
		"client_id":  entrySpec.ClientOrderID,
	})

	if p.settings.ProtectiveDelay > 0 {
		select {
		case <-ctx.Done():
			// The entry has already filled; bailing out here leaves a live
			// position with no stop, which is the protective failure mode.
			return result, p.protectiveFailed(ctx, symbol, "stop_loss", ctx.Err())
		case <-time.After(p.settings.ProtectiveDelay):
		}
	}

	base := p.settings.Volatility.Bucket(symbol)
	tpPct := risk.TakeProfitPct(base, sig.Confidence, p.settings.TTLHours)
	slPct := risk.StopLossPct(tpPct)

	stopPrice := broker.RoundToTick(protectivePrice(entryPrice, slPct, dir, false), filters.TickSize)
	tpPrice := broker.RoundToTick(protectivePrice(entryPrice, tpPct, dir, true), filters.TickSize)
	result.StopPrice = stopPrice
	result.TakeProfitPrice = tpPrice

	exitSide := broker.SideSell
	if dir == signal.Short {
		exitSide = broker.SideBuy
	}

	// Full-size stop: closes the whole remaining position on trigger.
	stop, err := p.broker.CreateOrder(ctx, broker.OrderSpec{
		Symbol:        symbol,
		Side:          exitSide,
		Type:          broker.OrderTypeStopMarket,
		StopPrice:     stopPrice,
		ClosePosition: true,
		ClientOrderID: broker.NewClientOrderID(),
	})
	if err != nil {
		return result, p.protectiveFailed(ctx, symbol, "stop_loss", err)
	}
	result.Stop = stop

	tpSpec := broker.OrderSpec{
		Symbol:        symbol,
		Side:          exitSide,
		Type:          broker.OrderTypeTakeProfitMarket,
		StopPrice:     tpPrice,
		ClosePosition: true,
		ClientOrderID: broker.NewClientOrderID(),
	}
	if p.settings.PartialTPEnabled {
		// Ladder mode: the first take-profit closes only a fraction. An
		// entry too small for the fraction to survive lot-step rounding
		// keeps the full-size take-profit instead of sending a
		// zero-quantity order.
		if tp1Qty := broker.RoundDownToStep(qty*p.settings.TP1Fraction, filters.LotStep); tp1Qty > 0 {
			tpSpec.ClosePosition = false
			tpSpec.ReduceOnly = true
			tpSpec.Quantity = tp1Qty
		}
	}
	tp, err := p.broker.CreateOrder(ctx, tpSpec)
	if err != nil {
		return result, p.protectiveFailed(ctx, symbol, "take_profit", err)
	}
	result.TakeProfit = tp

	p.logEvent(ctx, "order", "protection_placed", map[string]any{
		"symbol":     symbol,
		"stop_price": stopPrice,
		"tp_price":   tpPrice,
		"partial":    p.settings.PartialTPEnabled,
	})

	log.Info().
		Str("symbol", symbol).
		Str("side", dir.String()).
		Float64("qty", qty).
		Float64("entry", entryPrice).
		Float64("stop", stopPrice).
		Float64("take_profit", tpPrice).
		Msg("Place | position opened")

	return result, nil
}

func (p *Placer) protectiveFailed(ctx context.Context, symbol, kind string, cause error) error {
	metrics.ProtectiveFailures.Inc()
	metrics.BrokerErrors.Inc()
	err := &ProtectiveOrderError{Symbol: symbol, Kind: kind, Cause: cause}
	log.Error().Err(cause).Str("symbol", symbol).Str("kind", kind).Msg("Place | entry filled but protective order failed")
	p.logEvent(ctx, "error", "protective_order_failed", map[string]any{
		"symbol": symbol,
		"kind":   kind,
		"cause":  cause.Error(),
	})
	if nerr := p.notifier.SendWithRetry(fmt.Sprintf("URGENT: %s entry filled without %s protection: %v", symbol, kind, cause)); nerr != nil {
		log.Error().Err(nerr).Msg("Place | failed to escalate protective order failure")
	}
	return err
}

func (p *Placer) logEvent(ctx context.Context, eventType, description string, data map[string]any) {
	if err := p.journal.LogEvent(ctx, journal.Event{
		Time:        p.now().UTC(),
		Type:        eventType,
		Description: description,
		Data:        data,
	}); err != nil {
		log.Warn().Err(err).Str("event", description).Msg("logEvent | journal write failed")
	}
}

// limitPrice offsets the reference price by the tier's limit offset.
// A negative offset rests below the mark for longs and above it for
// shorts.
func limitPrice(mark, offsetPct float64, dir signal.Direction) float64 {
	if dir == signal.Short {
		return mark * (1 - offsetPct)
	}
	return mark * (1 + offsetPct)
}

// protectivePrice places the stop below (long) or above (short) entry,
// and the take-profit on the opposite side.
func protectivePrice(entry, pct float64, dir signal.Direction, takeProfit bool) float64 {
	up := takeProfit
	if dir == signal.Short {
		up = !up
	}
	if up {
		return entry * (1 + pct)
	}
	return entry * (1 - pct)
}
