// Package limitorder implements a one-shot order: place a single offer
// once the feed crosses a trigger price in the side-appropriate
// direction, then go dormant.
package limitorder

import (
	"fmt"

	"mgvsim/internal/account"
	"mgvsim/internal/feed"
	"mgvsim/internal/market"
)

const defaultGasReq = 100_000.0

// Strategy places exactly one offer, at the block where the feed first
// crosses trigger_price in the configured direction.
type Strategy struct {
	market.NoopPostHook
	triggerPrice float64
	volume       float64
	side         market.Side
	executed     bool
}

// New constructs a limit-order strategy. volume must be positive.
func New(triggerPrice, volume float64, side market.Side) (*Strategy, error) {
	if triggerPrice <= 0 {
		return nil, fmt.Errorf("trigger_price must be positive, got %.6f", triggerPrice)
	}
	if volume <= 0 {
		return nil, fmt.Errorf("volume must be positive, got %.6f", volume)
	}
	return &Strategy{triggerPrice: triggerPrice, volume: volume, side: side}, nil
}

// Name implements market.Strategy.
func (s *Strategy) Name() string { return "Limit Order Strategy" }

// Description implements market.Strategy.
func (s *Strategy) Description() string {
	return "Places a limit order when price reaches trigger level"
}

// Execute places the order once, the first time the feed price crosses
// trigger_price: at or below for a Bid, at or above for an Ask.
func (s *Strategy) Execute(pricePoint feed.PricePoint, book *market.OrderBook, user *account.Account) error {
	if s.executed {
		return nil
	}

	crossed := (s.side == market.Bid && pricePoint.Price <= s.triggerPrice) ||
		(s.side == market.Ask && pricePoint.Price >= s.triggerPrice)
	if !crossed {
		return nil
	}

	offer, err := market.NewOffer(user, s.side, s.triggerPrice, s.volume, defaultGasReq, s)
	if err != nil {
		return err
	}
	if err := book.PlaceOffer(offer); err != nil {
		return err
	}

	s.executed = true
	return nil
}

// SetParameter implements market.Strategy.
func (s *Strategy) SetParameter(name string, value float64) error {
	switch name {
	case "trigger_price":
		if value <= 0 {
			return fmt.Errorf("trigger_price must be positive, got %.6f", value)
		}
		s.triggerPrice = value
	case "volume":
		if value <= 0 {
			return fmt.Errorf("volume must be positive, got %.6f", value)
		}
		s.volume = value
	default:
		return fmt.Errorf("%w: %s", market.ErrUnknownParameter, name)
	}
	return nil
}

// GetParameter implements market.Strategy.
func (s *Strategy) GetParameter(name string) (float64, bool) {
	switch name {
	case "trigger_price":
		return s.triggerPrice, true
	case "volume":
		return s.volume, true
	default:
		return 0, false
	}
}
