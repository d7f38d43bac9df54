package market

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"mgvsim/internal/account"
)

// DefaultOfferWriteCost is the native cost debited from a maker at
// placement time, per spec.md §6.
const DefaultOfferWriteCost = 200_000.0

// PriceLevel groups every resting offer at one price, FIFO by arrival
// (insertion-order tie-break, per spec.md §3/§4.B).
type PriceLevel struct {
	Price  float64
	Offers []Offer
}

// Trade is one maker/taker settlement produced by a MarketOrder walk.
// spec.md's data model is silent on a dedicated trade record, but its
// Testable Properties (conservation, determinism) presuppose one; the
// teacher's internal/net/messages.go carries a UUID per order for the
// same reason — addressability across the wire — so we reuse the
// dependency here, one level up, on the settlement rather than the
// resting offer (spec.md §3 explicitly denies Offer its own identity).
type Trade struct {
	ID          string
	Taker       *account.Account
	Maker       *account.Account
	Side        TakerSide
	Price       float64
	BaseVolume  float64
	QuoteVolume float64
}

// OrderBook is a two-sided limit order book for one base/quote pair.
type OrderBook struct {
	Base, Quote    string
	OfferWriteCost float64

	bids *btree.BTreeG[*PriceLevel]
	asks *btree.BTreeG[*PriceLevel]

	// inWalk guards against a post-hook re-entering MarketOrder on the
	// same book mid-walk (spec.md §9 open question).
	inWalk bool

	// onTrade, if set, is invoked once per settled Trade, in settlement
	// order, right after that offer's four balance transfers complete
	// and before its strategy's post-hook runs. The simulator driver
	// uses this to accumulate PerformanceMetrics without every
	// strategy needing to thread trade results back itself.
	onTrade func(Trade)
}

// OnTrade registers fn as the book's trade sink, replacing any
// previously registered callback.
func (b *OrderBook) OnTrade(fn func(Trade)) {
	b.onTrade = fn
}

// NewOrderBook creates an empty book for the given base/quote pair.
func NewOrderBook(base, quote string) *OrderBook {
	return &OrderBook{
		Base:           base,
		Quote:          quote,
		OfferWriteCost: DefaultOfferWriteCost,
		bids:           btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price > b.Price }),
		asks:           btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price < b.Price }),
	}
}

// PlaceOffer debits the offer-write cost from the maker and inserts the
// offer into the matching half-book. No token escrow is taken; the
// maker's tokens are only moved at match time (spec.md §4.C).
func (b *OrderBook) PlaceOffer(o Offer) error {
	if o.Maker == nil {
		return ErrNilMaker
	}
	if o.Strategy == nil {
		return ErrNilStrategy
	}
	if !finite(o.Price) || o.Price <= 0 {
		return fmt.Errorf("%w: %.6f", ErrInvalidPrice, o.Price)
	}
	if !finite(o.Volume) || o.Volume <= 0 {
		return fmt.Errorf("%w: %.6f", ErrInvalidVolume, o.Volume)
	}

	if err := o.Maker.SpendNative(b.OfferWriteCost); err != nil {
		return fmt.Errorf("%w: %w", ErrInsufficientGas, err)
	}

	b.insert(o)
	return nil
}

func (b *OrderBook) levels(side Side) *btree.BTreeG[*PriceLevel] {
	if side == Bid {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) insert(o Offer) {
	levels := b.levels(o.Side)
	probe := &PriceLevel{Price: o.Price}
	if lvl, ok := levels.GetMut(probe); ok {
		lvl.Offers = append(lvl.Offers, o)
		return
	}
	levels.Set(&PriceLevel{Price: o.Price, Offers: []Offer{o}})
}

// BestBid returns the front of the bid half-book, if any.
func (b *OrderBook) BestBid() (Offer, bool) {
	return frontOf(b.bids)
}

// BestAsk returns the front of the ask half-book, if any.
func (b *OrderBook) BestAsk() (Offer, bool) {
	return frontOf(b.asks)
}

func frontOf(levels *btree.BTreeG[*PriceLevel]) (Offer, bool) {
	lvl, ok := levels.Min()
	if !ok || len(lvl.Offers) == 0 {
		return Offer{}, false
	}
	return lvl.Offers[0], true
}

// Bids returns a snapshot of the bid half-book, best price first.
func (b *OrderBook) Bids() []*PriceLevel { return b.bids.Items() }

// Asks returns a snapshot of the ask half-book, best price first.
func (b *OrderBook) Asks() []*PriceLevel { return b.asks.Items() }

// Clear empties both half-books, used by the Active/Delayed Kandel
// variants when recalibrating a fresh grid.
func (b *OrderBook) Clear() {
	b.bids = btree.NewBTreeG(func(a, c *PriceLevel) bool { return a.Price > c.Price })
	b.asks = btree.NewBTreeG(func(a, c *PriceLevel) bool { return a.Price < c.Price })
}

// MarketOrder walks the opposing half-book for a taker, settling every
// matched offer and invoking each filled offer's strategy post-hook
// between settlements (spec.md §4.C).
func (b *OrderBook) MarketOrder(taker *account.Account, side TakerSide, volume float64) ([]Trade, error) {
	if b.inWalk {
		return nil, ErrReentrantMarketOrder
	}
	if taker == nil {
		return nil, ErrNilMaker
	}
	if !finite(volume) || volume <= 0 {
		return nil, fmt.Errorf("%w: %.6f", ErrInvalidVolume, volume)
	}

	var levels *btree.BTreeG[*PriceLevel]
	switch side {
	case Buy:
		levels = b.asks
	case Sell:
		levels = b.bids
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, side)
	}

	// Pass 1: feasibility + gas accumulation. No mutation.
	remaining := volume
	var totalGas float64
	for _, lvl := range levels.Items() {
		for _, o := range lvl.Offers {
			if remaining <= 0 {
				break
			}
			take := math.Min(remaining, o.Volume)
			remaining -= take
			totalGas += o.GasReq
		}
		if remaining <= 0 {
			break
		}
	}
	if remaining > 0 {
		return nil, ErrInsufficientLiquidity
	}
	if err := taker.SpendNative(totalGas); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInsufficientGas, err)
	}

	// Pass 2: settlement, one offer at a time, front of book.
	b.inWalk = true
	defer func() { b.inWalk = false }()

	var trades []Trade
	remaining = volume
	for remaining > 0 {
		lvl, ok := levels.MinMut()
		if !ok {
			return trades, fmt.Errorf("%w: liquidity vanished mid-walk", ErrInsufficientLiquidity)
		}
		if len(lvl.Offers) == 0 {
			levels.Delete(lvl)
			continue
		}

		offer := lvl.Offers[0]
		lvl.Offers = lvl.Offers[1:]
		if len(lvl.Offers) == 0 {
			levels.Delete(lvl)
		}

		baseVolume := math.Min(remaining, offer.Volume)
		quoteVolume := baseVolume * offer.Price
		remaining -= baseVolume

		if err := settle(taker, offer.Maker, side, baseVolume, quoteVolume, b.Base, b.Quote); err != nil {
			return trades, err
		}

		trade := Trade{
			ID:          uuid.New().String(),
			Taker:       taker,
			Maker:       offer.Maker,
			Side:        side,
			Price:       offer.Price,
			BaseVolume:  baseVolume,
			QuoteVolume: quoteVolume,
		}
		trades = append(trades, trade)
		if b.onTrade != nil {
			b.onTrade(trade)
		}

		if err := offer.Strategy.PostHook(b, offer.Maker, offer); err != nil {
			return trades, err
		}
	}
	return trades, nil
}

// settle performs the four balance transfers for one matched offer.
// For Buy (taker lifts asks): taker pays quote, receives base; maker
// gains quote, loses base. For Sell (taker hits bids): taker pays
// base, receives quote; maker gains base, loses quote. Any transfer
// may fail; spec.md §7 treats this as fatal to the simulation with no
// rollback of transfers already applied.
func settle(taker, maker *account.Account, side TakerSide, baseVolume, quoteVolume float64, base, quote string) error {
	switch side {
	case Buy:
		if err := taker.SpendToken(quote, quoteVolume); err != nil {
			return fmt.Errorf("%w: taker quote leg: %v", ErrInsufficientToken, err)
		}
		if err := maker.SpendToken(base, baseVolume); err != nil {
			return fmt.Errorf("%w: maker base leg: %v", ErrInsufficientToken, err)
		}
		if err := taker.AddToken(base, baseVolume); err != nil {
			return err
		}
		if err := maker.AddToken(quote, quoteVolume); err != nil {
			return err
		}
	case Sell:
		if err := taker.SpendToken(base, baseVolume); err != nil {
			return fmt.Errorf("%w: taker base leg: %v", ErrInsufficientToken, err)
		}
		if err := maker.SpendToken(quote, quoteVolume); err != nil {
			return fmt.Errorf("%w: maker quote leg: %v", ErrInsufficientToken, err)
		}
		if err := taker.AddToken(quote, quoteVolume); err != nil {
			return err
		}
		if err := maker.AddToken(base, baseVolume); err != nil {
			return err
		}
	}
	return nil
}

// Render renders the book as the multi-line dump spec.md §6 describes
// for market_state.txt: a "Market:" header, then "Asks:" and "Bids:"
// sections, both high price to low, one "<volume> @ <price> - <maker>"
// line per resting offer.
func (b *OrderBook) Render() string {
	var sb strings.Builder
	sb.WriteString("Market:\n")

	sb.WriteString("Asks:\n")
	asks := b.asks.Items()
	for i := len(asks) - 1; i >= 0; i-- {
		renderLevel(&sb, asks[i])
	}

	sb.WriteString("Bids:\n")
	for _, lvl := range b.bids.Items() {
		renderLevel(&sb, lvl)
	}

	return sb.String()
}

func renderLevel(sb *strings.Builder, lvl *PriceLevel) {
	for _, o := range lvl.Offers {
		fmt.Fprintf(sb, "%.6f @ %.6f - %s\n", o.Volume, o.Price, o.Maker.ID())
	}
}
