package market

import (
	"fmt"
	"math"

	"mgvsim/internal/account"
	"mgvsim/internal/feed"
)

// Side is which half-book a resting offer sits on.
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "Bid"
	}
	return "Ask"
}

// Flipped returns the opposite side, used when a strategy reposts
// liquidity after one of its offers is filled.
func (s Side) Flipped() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// TakerSide is the side a market order takes liquidity from: Buy lifts
// asks, Sell hits bids.
type TakerSide int

const (
	Buy TakerSide = iota
	Sell
)

func (s TakerSide) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// Strategy is the capability set every maker/taker strategy implements.
// It is declared here, alongside Offer, because every Offer carries a
// required reference to the strategy that owns it and the matching
// engine invokes PostHook directly on that reference — putting the
// interface in its own package would force an import cycle between the
// book and its strategies.
type Strategy interface {
	Name() string
	Description() string
	// Execute runs once per block per (user, strategy) assignment.
	Execute(pricePoint feed.PricePoint, book *OrderBook, user *account.Account) error
	// PostHook runs after one of this strategy's offers is consumed by
	// a market order, with the settlement already complete.
	PostHook(book *OrderBook, maker *account.Account, filled Offer) error
	SetParameter(name string, value float64) error
	GetParameter(name string) (float64, bool)
}

// NoopPostHook can be embedded by strategies that never repost
// liquidity on fill, satisfying Strategy's PostHook requirement.
type NoopPostHook struct{}

func (NoopPostHook) PostHook(*OrderBook, *account.Account, Offer) error { return nil }

// NoParameters can be embedded by strategies with no runtime-tunable
// scalar parameters.
type NoParameters struct{}

func (NoParameters) SetParameter(name string, _ float64) error {
	return fmt.Errorf("%w: %s", ErrUnknownParameter, name)
}

func (NoParameters) GetParameter(string) (float64, bool) { return 0, false }

// Offer is an immutable-after-placement resting limit order. Its
// identity for matching purposes is its position within a half-book;
// it carries no id of its own.
type Offer struct {
	Maker    *account.Account
	Side     Side
	Price    float64
	Volume   float64
	GasReq   float64
	Strategy Strategy
}

func newOffer(maker *account.Account, side Side, price, volume, gasreq float64, strat Strategy) (Offer, error) {
	if maker == nil {
		return Offer{}, ErrNilMaker
	}
	if strat == nil {
		return Offer{}, ErrNilStrategy
	}
	if !finite(price) || price <= 0 {
		return Offer{}, fmt.Errorf("%w: %.6f", ErrInvalidPrice, price)
	}
	if !finite(volume) || volume <= 0 {
		return Offer{}, fmt.Errorf("%w: %.6f", ErrInvalidVolume, volume)
	}
	return Offer{Maker: maker, Side: side, Price: price, Volume: volume, GasReq: gasreq, Strategy: strat}, nil
}

// NewOffer constructs an Offer, validating price/volume/required
// references. gasreq is native units reserved for execution cost; it is
// not validated, since spec.md treats it as a maker deposit the taker
// side covers, not a placement cost.
func NewOffer(maker *account.Account, side Side, price, volume, gasreq float64, strat Strategy) (Offer, error) {
	return newOffer(maker, side, price, volume, gasreq, strat)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
