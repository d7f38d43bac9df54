// Command backtest replays a configured price feed against an order
// book populated with user-assigned strategies, journaling balances
// and market state to the configured output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"mgvsim/internal/config"
	"mgvsim/internal/feed"
	"mgvsim/internal/market"
	"mgvsim/internal/sim"
	"mgvsim/internal/strategy"
	"mgvsim/internal/strategy/arbitrage"
	"mgvsim/internal/strategy/kandel"
	"mgvsim/internal/strategy/limitorder"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the run's YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	level := zerolog.InfoLevel
	if cfg.Logging.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var t tomb.Tomb
	t.Go(func() error {
		return run(ctx, cfg)
	})

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested, waiting for run to finish")
	case <-t.Dead():
	}

	if err := t.Wait(); err != nil {
		log.Fatal().Err(err).Msg("backtest run failed")
	}
	log.Info().Msg("backtest run complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	points, err := feed.ReadFile(cfg.Feed.Path)
	if err != nil {
		return fmt.Errorf("load price feed: %w", err)
	}

	book := market.NewOrderBook(cfg.Market.Base, cfg.Market.Quote)
	runner, err := sim.New(book, points, cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("construct simulator: %w", err)
	}

	for _, u := range cfg.Users {
		runner.AddUser(u.ID, u.InitialNative)
	}

	registry := buildRegistry(cfg.Strategies)
	for _, s := range cfg.Strategies {
		strat, err := registry.Create(s.ID)
		if err != nil {
			return fmt.Errorf("build strategy %s: %w", s.ID, err)
		}
		runner.AddStrategy(s.ID, strat)
		for _, userID := range s.Users {
			if err := runner.AssignStrategy(userID, s.ID); err != nil {
				return fmt.Errorf("assign strategy %s to %s: %w", s.ID, userID, err)
			}
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return runner.RunSimulation(cfg.Logging.ShowProgress, cfg.Logging.Verbose)
}

// buildRegistry registers one builder per configured strategy id,
// closing over that strategy's own params so the registry can be
// created generically by id regardless of kind.
func buildRegistry(strategies []config.StrategyConfig) *strategy.Registry {
	registry := strategy.NewRegistry()
	for _, s := range strategies {
		s := s
		registry.Register(s.ID, func() (market.Strategy, error) {
			return buildStrategy(s)
		})
	}
	return registry
}

func buildStrategy(s config.StrategyConfig) (market.Strategy, error) {
	switch s.Kind {
	case "kandel":
		return buildKandel(s.Params)
	case "arbitrage":
		threshold := s.Params["min_profit_threshold"]
		maxVolume := s.Params["max_volume_per_trade"]
		return arbitrage.New(threshold, maxVolume)
	case "limit_order":
		side := market.Bid
		if s.Params["side"] == float64(market.Ask) {
			side = market.Ask
		}
		return limitorder.New(s.Params["trigger_price"], s.Params["volume"], side)
	default:
		return nil, fmt.Errorf("unknown strategy kind %q for %s", s.Kind, s.ID)
	}
}

func buildKandel(params map[string]float64) (market.Strategy, error) {
	reference := params["reference_price"]
	initialBase := params["initial_base"]
	initialQuote := params["initial_quote"]

	var nPoints *int
	if v, ok := params["n_points"]; ok {
		n := int(v)
		nPoints = &n
	}
	var rangeMultiplier *float64
	if v, ok := params["range_multiplier"]; ok {
		rangeMultiplier = &v
	}
	var gridstep *float64
	if v, ok := params["gridstep"]; ok {
		gridstep = &v
	}

	return kandel.New(reference, initialBase, initialQuote, nPoints, rangeMultiplier, gridstep)
}
