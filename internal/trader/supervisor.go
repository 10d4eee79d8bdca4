package trader

import (
	"context"
	"fmt"
	"math"
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

// ClosureReason says why the supervisor closed a position.
type ClosureReason string

const (
	ReasonTimeStop   ClosureReason = "TIME_STOP"
	ReasonSignalFlip ClosureReason = "SIGNAL_FLIP"
	ReasonConfDecay  ClosureReason = "CONF_DECAY"
)

// ClosureEvent records one supervised closure. CancelErr carries a
// non-fatal order-cancellation failure that happened on the way out; it
// is reported, never silently discarded.
type ClosureEvent struct {
	Symbol    string
	Reason    ClosureReason
	AgeHours  float64
	PnlPct    float64
	CancelErr error
}

// Supervisor periodically re-evaluates every open position. The broker,
// not the ledger, is the source of truth for "open": positions with
// non-zero quantity at the venue get swept even if this process never
// opened them.
type Supervisor struct {
	broker   broker.Broker
	ledger   *ledger.Ledger
	journal  journal.Journaler
	notifier notifier.Notifier
	settings Settings

	now func() time.Time
}

func NewSupervisor(b broker.Broker, l *ledger.Ledger, j journal.Journaler, n notifier.Notifier, s Settings) *Supervisor {
	return &Supervisor{
		broker:   b,
		ledger:   l,
		journal:  j,
		notifier: n,
		settings: s,
		now:      time.Now,
	}
}

// Sweep applies the closure rules to every open position, in fixed
// priority order: time-stop, signal flip, partial-TP promotion,
// confidence decay. One symbol's broker failure never blocks the rest
// of the sweep.
func (s *Supervisor) Sweep(ctx context.Context, latest map[string]signal.Signal) []ClosureEvent {
	start := s.now()
	defer func() {
		metrics.SweepDuration.Observe(s.now().Sub(start).Seconds())
	}()

	positions, err := s.broker.OpenPositions(ctx)
	if err != nil {
		metrics.BrokerErrors.Inc()
		log.Error().Err(err).Msg("Sweep | failed to list open positions")
		return nil
	}

	var events []ClosureEvent
	for _, pos := range positions {
		if pos.Quantity == 0 {
			continue
		}
		if ev, closed := s.inspect(ctx, pos, latest); closed {
			metrics.Closures.WithLabelValues(string(ev.Reason)).Inc()
			events = append(events, ev)
		}
	}
	return events
}

func (s *Supervisor) inspect(ctx context.Context, pos broker.PositionInfo, latest map[string]signal.Signal) (ClosureEvent, bool) {
	symbol := pos.Symbol
	age := s.ageHours(pos)

	// Time-stop takes precedence over everything else.
	if age >= s.settings.TTLHours {
		return s.close(ctx, pos, age, ReasonTimeStop)
	}

	posDir := signal.Long
	if !pos.Long() {
		posDir = signal.Short
	}

	sig, hasSig := latest[symbol]
	if hasSig && sig.Direction() == posDir.Opposite() && sig.Confidence >= s.settings.FlipThreshold {
		return s.close(ctx, pos, age, ReasonSignalFlip)
	}

	if s.settings.PartialTPEnabled && s.ledger.State(symbol) == ledger.StateActive {
		if rec, ok := s.ledger.Get(symbol); ok && rec.OriginalQty > 0 {
			remaining := math.Abs(pos.Quantity)
			threshold := rec.OriginalQty * (1 - s.settings.TP1Fraction + s.settings.PartialTolerance)
			if remaining <= threshold {
				s.promoteBreakEven(ctx, pos, rec)
				return ClosureEvent{}, false
			}
		}
	}

	// Decay rule is skipped entirely when no signal matches the symbol.
	if hasSig {
		decayed := risk.DecayedConfidence(sig.Confidence, age, s.settings.DecayHalfLifeHours)
		if decayed < s.settings.MinConfidence {
			return s.close(ctx, pos, age, ReasonConfDecay)
		}
	}

	return ClosureEvent{}, false
}

// promoteBreakEven treats TP1 as filled: replaces all resting orders
// with one full-size stop at the original entry price, locking in zero
// P&L on the remainder, and moves the ledger to REDUCING.
func (s *Supervisor) promoteBreakEven(ctx context.Context, pos broker.PositionInfo, rec ledger.Record) {
	symbol := pos.Symbol

	if err := s.broker.CancelAllOpenOrders(ctx, symbol); err != nil {
		// Without the cancel the old stop is still resting; submitting a
		// second one would race it. Try again next sweep.
		metrics.BrokerErrors.Inc()
		log.Error().Err(err).Str("symbol", symbol).Msg("promoteBreakEven | cancel failed, promotion postponed")
		s.logEvent(ctx, "error", "breakeven_cancel_failed", map[string]any{"symbol": symbol, "cause": err.Error()})
		return
	}

	entry := rec.EntryPrice
	if entry <= 0 {
		entry = pos.EntryPrice
	}

	exitSide := broker.SideSell
	if !pos.Long() {
		exitSide = broker.SideBuy
	}

	_, err := s.broker.CreateOrder(ctx, broker.OrderSpec{
		Symbol:        symbol,
		Side:          exitSide,
		Type:          broker.OrderTypeStopMarket,
		StopPrice:     entry,
		ClosePosition: true,
		ClientOrderID: broker.NewClientOrderID(),
	})
	if err != nil {
		metrics.BrokerErrors.Inc()
		log.Error().Err(err).Str("symbol", symbol).Msg("promoteBreakEven | break-even stop failed")
		s.logEvent(ctx, "error", "breakeven_stop_failed", map[string]any{"symbol": symbol, "cause": err.Error()})
		if nerr := s.notifier.SendWithRetry(fmt.Sprintf("URGENT: %s TP1 filled but break-even stop failed: %v", symbol, err)); nerr != nil {
			log.Error().Err(nerr).Msg("promoteBreakEven | escalation failed")
		}
		return
	}

	s.ledger.MarkReducing(symbol)
	log.Info().Str("symbol", symbol).Float64("stop", entry).Msg("promoteBreakEven | TP1 filled, stop moved to entry")
	s.logEvent(ctx, "order", "breakeven_promoted", map[string]any{
		"symbol":     symbol,
		"stop_price": entry,
		"remaining":  math.Abs(pos.Quantity),
	})
}

// close runs the closure procedure: cancel resting orders, let the
// cancellation settle, market-close the remaining quantity, record the
// outcome.
func (s *Supervisor) close(ctx context.Context, pos broker.PositionInfo, age float64, reason ClosureReason) (ClosureEvent, bool) {
	symbol := pos.Symbol

	if !s.ledger.BeginClose(symbol) {
		log.Warn().Str("symbol", symbol).Msg("close | closure already in flight, skipping")
		return ClosureEvent{}, false
	}

	ev := ClosureEvent{Symbol: symbol, Reason: reason, AgeHours: age}

	if err := s.broker.CancelAllOpenOrders(ctx, symbol); err != nil {
		// Reported and attached to the event, but not fatal: the market
		// close below still goes out.
		metrics.BrokerErrors.Inc()
		ev.CancelErr = err
		log.Warn().Err(err).Str("symbol", symbol).Msg("close | cancel before close failed")
		s.logEvent(ctx, "error", "close_cancel_failed", map[string]any{"symbol": symbol, "cause": err.Error()})
	}

	if s.settings.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			s.ledger.RevertClose(symbol)
			return ClosureEvent{}, false
		case <-time.After(s.settings.SettleDelay):
		}
	}

	exitSide := broker.SideSell
	if !pos.Long() {
		exitSide = broker.SideBuy
	}

	res, err := s.broker.CreateOrder(ctx, broker.OrderSpec{
		Symbol:        symbol,
		Side:          exitSide,
		Type:          broker.OrderTypeMarket,
		Quantity:      math.Abs(pos.Quantity),
		ReduceOnly:    true,
		ClientOrderID: broker.NewClientOrderID(),
	})
	if err != nil {
		// Leave the position supervised; the next sweep retries.
		metrics.BrokerErrors.Inc()
		log.Error().Err(err).Str("symbol", symbol).Str("reason", string(reason)).Msg("close | closing order failed")
		s.logEvent(ctx, "error", "close_order_failed", map[string]any{"symbol": symbol, "reason": string(reason), "cause": err.Error()})
		s.ledger.RevertClose(symbol)
		return ClosureEvent{}, false
	}

	entry := pos.EntryPrice
	if rec, ok := s.ledger.Get(symbol); ok && rec.EntryPrice > 0 {
		entry = rec.EntryPrice
	}

	exit := res.AvgPrice
	if exit <= 0 {
		if mark, merr := s.broker.MarkPrice(ctx, symbol); merr == nil {
			exit = mark
		} else {
			exit = entry
		}
	}

	pnl := 0.0
	if entry > 0 {
		pnl = (exit - entry) / entry * 100
		if !pos.Long() {
			pnl = -pnl
		}
	}
	ev.PnlPct = pnl

	s.ledger.MarkClosed(symbol)

	log.Info().
		Str("symbol", symbol).
		Str("reason", string(reason)).
		Float64("age_hours", age).
		Float64("pnl_pct", pnl).
		Msg("close | position closed")

	s.logEvent(ctx, "closure", "position_closed", map[string]any{
		"symbol":    symbol,
		"reason":    string(reason),
		"age_hours": age,
		"pnl_pct":   pnl,
	})
	if err := s.journal.RecordOutcome(ctx, journal.Outcome{
		Time:       s.now().UTC(),
		Symbol:     symbol,
		EntryPrice: entry,
		ExitPrice:  exit,
		PnlPct:     pnl,
		HoldHours:  age,
		Reason:     string(reason),
	}); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("close | outcome record failed")
	}

	if err := s.notifier.Send(fmt.Sprintf("Closed %s (%s) after %.1fh, PnL %.2f%%", symbol, reason, age, pnl)); err != nil {
		log.Warn().Err(err).Msg("close | notification failed")
	}

	return ev, true
}

// ageHours prefers the ledger's open time; positions that predate this
// process fall back to the venue's update time.
func (s *Supervisor) ageHours(pos broker.PositionInfo) float64 {
	if rec, ok := s.ledger.Get(pos.Symbol); ok && !rec.OpenedAt.IsZero() {
		return s.now().Sub(rec.OpenedAt).Hours()
	}
	if !pos.UpdateTime.IsZero() {
		return s.now().Sub(pos.UpdateTime).Hours()
	}
	return 0
}

func (s *Supervisor) logEvent(ctx context.Context, eventType, description string, data map[string]any) {
	if err := s.journal.LogEvent(ctx, journal.Event{
		Time:        s.now().UTC(),
		Type:        eventType,
		Description: description,
		Data:        data,
	}); err != nil {
		log.Warn().Err(err).Str("event", description).Msg("logEvent | journal write failed")
	}
}
