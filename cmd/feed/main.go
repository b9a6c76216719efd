// Command feed runs the Binance market-data client: it tracks the
// configured symbols' order books, trade tapes, and k-line series, and
// republishes normalized updates on an in-process event bus (optionally
// bridged to NATS) until told to stop.
package main

import (
	"context"
	"flag"
	"os"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/BullionBear/sequex/internal/config"
	"github.com/BullionBear/sequex/internal/stream"
	"github.com/BullionBear/sequex/internal/trader"
	"github.com/BullionBear/sequex/pkg/binance"
	"github.com/BullionBear/sequex/pkg/bridge"
	"github.com/BullionBear/sequex/pkg/eventbus"
	"github.com/BullionBear/sequex/pkg/logger"
	"github.com/BullionBear/sequex/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "", "path to a feed config JSON file")
	flag.Parse()

	if *configPath == "" {
		logger.Log.Error().Msg("missing required -config flag")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Error().Err(err).Msg("failed to load config")
		os.Exit(1)
	}

	logger.InitLogger(cfg.Development)
	log := logger.Get()

	bus := eventbus.New()
	client := binance.NewClient(&cfg.Binance)

	bus.On("error", func(args ...interface{}) {
		log.Warn().Interface("error", args).Msg("bus error event")
	})

	if cfg.NATS != nil {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to nats")
			os.Exit(1)
		}
		nb, err := bridge.New(nc, cfg.NATS.SubjectPrefix, *log)
		if err != nil {
			log.Error().Err(err).Msg("failed to open nats bridge")
			os.Exit(1)
		}
		nb.Register(bus)
	}

	t := trader.New(client, *log)
	bus.On("orderbook_open", func(args ...interface{}) {
		log.Info().Msg("order books ready, trader now accepting submissions")
		t.Ready().Flip()
	})

	engine := stream.New(client, bus, *log, cfg.KlinePeriods(),
		stream.WithTradeBookSize(cfg.TradeBookSize),
		stream.WithKlineHistoryLimit(cfg.KlineHistoryLimit),
		stream.WithSnapshotTimeout(cfg.SnapshotTimeout))

	sd := shutdown.NewShutdown(*log)
	sd.HookShutdownCallback("stream-engine", func() {
		if err := engine.Stop(); err != nil {
			log.Warn().Err(err).Msg("engine stop returned an error")
		}
	}, 0)

	if err := engine.Start(context.Background(), cfg.Markets); err != nil {
		log.Error().Err(err).Msg("failed to start stream engine")
		os.Exit(1)
	}

	sd.WaitForShutdown(syscall.SIGINT, syscall.SIGTERM)
}
