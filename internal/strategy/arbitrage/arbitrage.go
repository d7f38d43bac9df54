// Package arbitrage implements a threshold taker that drains one-sided
// liquidity whenever the book crosses a reference price by more than a
// configured margin.
package arbitrage

import (
	"fmt"
	"math"

	"mgvsim/internal/account"
	"mgvsim/internal/feed"
	"mgvsim/internal/market"
)

// Strategy repeatedly lifts mispriced resting offers against a
// reference price. It mints the inventory it trades away rather than
// drawing down a real position: the taker here represents a price
// oracle, not a funded arbitrageur.
type Strategy struct {
	market.NoopPostHook
	minProfitThreshold float64
	maxVolumePerTrade  float64
}

// New constructs an arbitrage strategy. minProfitThreshold may be
// zero (arbitrage on any crossing); maxVolumePerTrade must be
// positive.
func New(minProfitThreshold, maxVolumePerTrade float64) (*Strategy, error) {
	if minProfitThreshold < 0 {
		return nil, fmt.Errorf("min_profit_threshold must be non-negative, got %.6f", minProfitThreshold)
	}
	if maxVolumePerTrade <= 0 {
		return nil, fmt.Errorf("max_volume_per_trade must be positive, got %.6f", maxVolumePerTrade)
	}
	return &Strategy{minProfitThreshold: minProfitThreshold, maxVolumePerTrade: maxVolumePerTrade}, nil
}

// Name implements market.Strategy.
func (s *Strategy) Name() string { return "Arbitrage Strategy" }

// Description implements market.Strategy.
func (s *Strategy) Description() string {
	return "Executes trades when market prices deviate from reference price"
}

// Execute drains the book one side at a time until neither side is
// mispriced relative to the feed's reference price, or the book runs
// dry.
func (s *Strategy) Execute(pricePoint feed.PricePoint, book *market.OrderBook, user *account.Account) error {
	reference := pricePoint.Price

	for {
		bestBid, hasBid := book.BestBid()
		bestAsk, hasAsk := book.BestAsk()
		if !hasBid && !hasAsk {
			return nil
		}

		switch {
		case hasBid && bestBid.Price-reference > s.minProfitThreshold:
			volume := math.Min(bestBid.Volume, s.maxVolumePerTrade)
			if err := user.AddToken(book.Base, volume); err != nil {
				return err
			}
			if _, err := book.MarketOrder(user, market.Sell, volume); err != nil {
				return err
			}
			if err := user.SpendToken(book.Quote, reference*volume); err != nil {
				return err
			}

		case hasAsk && reference-bestAsk.Price > s.minProfitThreshold:
			volume := math.Min(bestAsk.Volume, s.maxVolumePerTrade)
			if err := user.AddToken(book.Quote, reference*volume); err != nil {
				return err
			}
			if _, err := book.MarketOrder(user, market.Buy, volume); err != nil {
				return err
			}
			if err := user.SpendToken(book.Base, volume); err != nil {
				return err
			}

		default:
			return nil
		}
	}
}

// SetParameter implements market.Strategy.
func (s *Strategy) SetParameter(name string, value float64) error {
	switch name {
	case "min_profit_threshold":
		if value < 0 {
			return fmt.Errorf("min_profit_threshold must be non-negative, got %.6f", value)
		}
		s.minProfitThreshold = value
	case "max_volume_per_trade":
		if value <= 0 {
			return fmt.Errorf("max_volume_per_trade must be positive, got %.6f", value)
		}
		s.maxVolumePerTrade = value
	default:
		return fmt.Errorf("%w: %s", market.ErrUnknownParameter, name)
	}
	return nil
}

// GetParameter implements market.Strategy.
func (s *Strategy) GetParameter(name string) (float64, bool) {
	switch name {
	case "min_profit_threshold":
		return s.minProfitThreshold, true
	case "max_volume_per_trade":
		return s.maxVolumePerTrade, true
	default:
		return 0, false
	}
}
