package market

import "errors"

var (
	// ErrInsufficientGas is returned when a maker cannot pay the offer
	// write cost, or a taker cannot pay the summed gasreq of a walk.
	ErrInsufficientGas = errors.New("insufficient gas")
	// ErrInsufficientLiquidity is returned when a market order cannot be
	// fully satisfied by the opposing half-book.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	// ErrInsufficientToken is returned when a settlement transfer fails
	// because an account lacks the required token.
	ErrInsufficientToken = errors.New("insufficient token for settlement")
	// ErrNilMaker is returned by PlaceOffer/MarketOrder when no account
	// was supplied.
	ErrNilMaker = errors.New("offer requires a maker account")
	// ErrNilStrategy is returned by PlaceOffer when an offer has no
	// owning strategy; every offer belongs to a strategy even if that
	// strategy's post-hook is a no-op.
	ErrNilStrategy = errors.New("offer requires an owning strategy")
	// ErrInvalidPrice is returned when an offer or order price is not
	// finite and strictly positive.
	ErrInvalidPrice = errors.New("price must be finite and positive")
	// ErrInvalidVolume is returned when an offer or order volume is not
	// finite and strictly positive.
	ErrInvalidVolume = errors.New("volume must be finite and positive")
	// ErrInvalidSide is returned for an unrecognized taker side.
	ErrInvalidSide = errors.New("invalid order side")
	// ErrReentrantMarketOrder is returned when a post-hook attempts to
	// call MarketOrder on a book that is already mid-walk. The source
	// this engine is modeled on left this unchecked; spec.md §9 flags
	// it as a likely bug and recommends a guard.
	ErrReentrantMarketOrder = errors.New("market order invoked re-entrantly from a post-hook")
	// ErrUnknownParameter is the default error strategies without
	// configurable parameters return from SetParameter.
	ErrUnknownParameter = errors.New("unknown strategy parameter")
)
