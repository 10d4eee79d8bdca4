package trader

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/tiertrader/internal/broker"
	"github.com/quantfold/tiertrader/internal/metrics"
)

// Janitor cancels resting limit entry orders that have outlived their
// welcome. It only ever touches bot-owned orders (client ID prefix) and
// never protective orders: stops and take-profits are reduce-only
// STOP_MARKET/TAKE_PROFIT_MARKET orders and fail the type check.
type Janitor struct {
	broker   broker.Broker
	settings Settings

	now func() time.Time
}

func NewJanitor(b broker.Broker, s Settings) *Janitor {
	return &Janitor{broker: b, settings: s, now: time.Now}
}

// Sweep cancels every stale bot-owned limit entry order. Cancellation
// failures are logged per order and do not stop the sweep.
func (j *Janitor) Sweep(ctx context.Context) int {
	orders, err := j.broker.OpenOrders(ctx)
	if err != nil {
		metrics.BrokerErrors.Inc()
		log.Error().Err(err).Msg("Sweep | failed to list open orders")
		return 0
	}

	canceled := 0
	for _, o := range orders {
		if !broker.BotOwned(o.ClientOrderID) {
			continue
		}
		if o.Type != broker.OrderTypeLimit || o.ReduceOnly {
			continue
		}
		if j.now().Sub(o.CreatedAt) < j.settings.StaleOrderMaxAge {
			continue
		}

		if err := j.broker.CancelOrder(ctx, o.Symbol, o.OrderID); err != nil {
			metrics.BrokerErrors.Inc()
			log.Warn().Err(err).Str("symbol", o.Symbol).Str("order_id", o.OrderID).Msg("Sweep | stale order cancel failed")
			continue
		}
		canceled++
		log.Info().Str("symbol", o.Symbol).Str("order_id", o.OrderID).Time("created", o.CreatedAt).Msg("Sweep | stale entry order canceled")
	}
	return canceled
}
