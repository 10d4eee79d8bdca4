package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/tiertrader/internal/broker"
	"github.com/quantfold/tiertrader/internal/config"
	"github.com/quantfold/tiertrader/internal/db"
	"github.com/quantfold/tiertrader/internal/journal"
	"github.com/quantfold/tiertrader/internal/ledger"
	"github.com/quantfold/tiertrader/internal/metrics"
	"github.com/quantfold/tiertrader/internal/notifier"
	"github.com/quantfold/tiertrader/internal/risk"
	"github.com/quantfold/tiertrader/internal/sched"
	"github.com/quantfold/tiertrader/internal/server"
	"github.com/quantfold/tiertrader/internal/signal"
	"github.com/quantfold/tiertrader/internal/trader"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	pretty := flag.Bool("pretty", false, "Human-readable log output")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if *pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("main | invalid configuration")
	}

	var store journal.Journaler
	if cfg.DBConnStr != "" {
		pg, err := db.NewPostgres(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
		if err != nil {
			log.Fatal().Err(err).Msg("main | failed to connect journal database")
		}
		defer pg.Close()
		store = pg
	} else {
		log.Warn().Msg("main | no database configured, journaling in memory only")
		store = db.NewMemory()
	}

	var notify notifier.Notifier = notifier.Noop{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notify = notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.NotificationRetries, cfg.NotificationDelay)
	}

	venue := broker.NewBinanceFutures(cfg.APIKey, cfg.APISecret, cfg.Testnet, cfg.CallTimeout)
	book := ledger.New()

	tiers, err := risk.NewTierTable(cfg.Tiers)
	if err != nil {
		log.Fatal().Err(err).Msg("main | invalid tier table")
	}

	source := signal.NewHTTPSource(cfg.SignalURL, cfg.ConfThreshold, cfg.SignalLimit, cfg.SignalTimeout)

	settings := trader.Settings{
		Asset:              cfg.Asset,
		TTLHours:           cfg.TTLHours,
		FlipThreshold:      cfg.FlipThreshold,
		MinConfidence:      cfg.MinConfidence,
		DecayHalfLifeHours: cfg.DecayHalfLifeHours,
		PartialTPEnabled:   cfg.PartialTPEnabled,
		TP1Fraction:        cfg.TP1Fraction,
		PartialTolerance:   cfg.PartialTolerance,
		ProtectiveDelay:    cfg.ProtectiveDelay,
		SettleDelay:        cfg.SettleDelay,
		StaleOrderMaxAge:   cfg.StaleOrderMaxAge,
		Volatility: risk.VolatilityTable{
			Buckets: cfg.VolatilityBuckets,
			Default: cfg.DefaultVolatility,
		},
	}

	placer := trader.NewPlacer(venue, book, store, notify, settings)
	supervisor := trader.NewSupervisor(venue, book, store, notify, settings)
	janitor := trader.NewJanitor(venue, settings)

	gate := sched.NewGate()
	metrics.TradingEnabled.Set(1)

	ctrl := server.New(cfg.HTTPAddr, gate)
	go func() {
		if err := ctrl.Start(); err != nil {
			log.Fatal().Err(err).Msg("main | control server failed")
		}
	}()

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := sched.NewRunner(
		&sched.Task{
			Name:     "trade-cycle",
			Interval: cfg.TradeInterval,
			Run: func(ctx context.Context) {
				tradeCycle(ctx, gate, source, tiers, venue, placer, cfg.MaxEntriesPerCycle)
			},
		},
		&sched.Task{
			Name:     "supervisor-sweep",
			Interval: cfg.SweepInterval,
			Run: func(ctx context.Context) {
				latest := signal.Latest(source.FetchSignals(ctx))
				supervisor.Sweep(ctx, latest)
			},
		},
		&sched.Task{
			Name:     "stale-order-janitor",
			Interval: cfg.JanitorInterval,
			Run: func(ctx context.Context) {
				janitor.Sweep(ctx)
			},
		},
	)

	log.Info().Str("http", cfg.HTTPAddr).Bool("testnet", cfg.Testnet).Msg("main | tiertrader started")
	runner.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("main | control server shutdown failed")
	}
	log.Info().Msg("main | tiertrader stopped")
}

// tradeCycle is one scheduled trade-entry pass: pull signals, select a
// tier per signal, skip symbols already holding a position, and hand the
// rest to the placer until the per-cycle entry budget is spent.
func tradeCycle(
	ctx context.Context,
	gate *sched.Gate,
	source signal.Source,
	tiers *risk.TierTable,
	venue broker.Broker,
	placer *trader.Placer,
	maxEntries int,
) {
	if !gate.Enabled() {
		log.Debug().Msg("tradeCycle | trading halted, skipping")
		return
	}

	signals := source.FetchSignals(ctx)
	metrics.SignalsFetched.Add(float64(len(signals)))
	if len(signals) == 0 {
		return
	}

	entries := 0
	for _, sig := range signals {
		if entries >= maxEntries {
			break
		}

		tier, ok := tiers.Select(sig.Confidence)
		if !ok {
			log.Debug().Str("symbol", sig.Symbol).Float64("confidence", sig.Confidence).Msg("tradeCycle | no tier match, dropped")
			continue
		}

		pos, err := venue.OpenPosition(ctx, sig.Symbol)
		if err != nil {
			metrics.BrokerErrors.Inc()
			log.Warn().Err(err).Str("symbol", sig.Symbol).Msg("tradeCycle | position check failed, skipping symbol")
			continue
		}
		if pos != nil {
			continue
		}

		res, err := placer.Place(ctx, sig, tier)
		if err != nil {
			var protective *trader.ProtectiveOrderError
			switch {
			case errors.Is(err, trader.ErrInvalidDirection):
				log.Warn().Str("symbol", sig.Symbol).Str("side", sig.Side).Msg("tradeCycle | invalid direction, signal dropped")
			case errors.As(err, &protective):
				// Entry is live; already escalated by the placer.
				entries++
			default:
				log.Error().Err(err).Str("symbol", sig.Symbol).Msg("tradeCycle | placement failed")
			}
			continue
		}
		if !res.Blocked {
			entries++
		}
	}
}
