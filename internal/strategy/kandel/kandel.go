// Package kandel implements the geometric grid market-making strategy:
// a ladder of bids below and asks above a reference price that reposts
// on the opposite side, at the next grid rung, whenever one of its
// offers is taken.
package kandel

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"mgvsim/internal/account"
	"mgvsim/internal/feed"
	"mgvsim/internal/market"
)

var (
	// ErrParameterCount is returned when construction is not given
	// exactly two of n_points/range_multiplier/gridstep.
	ErrParameterCount = errors.New("exactly two of n_points, range_multiplier, gridstep must be provided")
	ErrInvalidReference = errors.New("reference price must be positive")
	ErrInvalidQuote     = errors.New("initial quote must be positive")
	ErrInvalidRange     = errors.New("range multiplier must be greater than 1")
	ErrInvalidGridstep  = errors.New("gridstep must be greater than 1")
	ErrInvalidNPoints   = errors.New("n_points must be positive")
)

const defaultGasReq = 100_000.0

// Strategy is the geometric grid strategy. It satisfies market.Strategy.
type Strategy struct {
	priceGrid       []float64
	referencePrice  float64
	initialQuote    float64
	initialBase     float64
	nPoints         int
	rangeMultiplier float64
	gridstep        float64
	initialized     bool
}

// New constructs a Kandel strategy around referencePrice. Exactly two
// of nPoints, rangeMultiplier, gridstep must be non-nil; the third is
// derived (see deriveParameters).
func New(referencePrice, initialBase, initialQuote float64, nPoints *int, rangeMultiplier, gridstep *float64) (*Strategy, error) {
	if referencePrice <= 0 {
		return nil, fmt.Errorf("%w: %.6f", ErrInvalidReference, referencePrice)
	}
	if initialQuote <= 0 {
		return nil, fmt.Errorf("%w: %.6f", ErrInvalidQuote, initialQuote)
	}

	n, r, g, err := deriveParameters(nPoints, rangeMultiplier, gridstep)
	if err != nil {
		return nil, err
	}

	return &Strategy{
		priceGrid:       calculateGrid(referencePrice, n, r, g),
		referencePrice:  referencePrice,
		initialQuote:    initialQuote,
		initialBase:     initialBase,
		nPoints:         n,
		rangeMultiplier: r,
		gridstep:        g,
	}, nil
}

// deriveParameters fills in the one omitted grid parameter from the
// other two, per the grid-derivation rules. When (n_points,
// range_multiplier) are supplied, this deliberately computes
// `g = r^(1/n)` rather than the original `g = 2r/(2n)`: the latter is
// dimensionally inconsistent with a geometric grid (see DESIGN.md).
func deriveParameters(nPoints *int, rangeMultiplier, gridstep *float64) (int, float64, float64, error) {
	count := 0
	if nPoints != nil {
		count++
	}
	if rangeMultiplier != nil {
		count++
	}
	if gridstep != nil {
		count++
	}
	if count != 2 {
		return 0, 0, 0, ErrParameterCount
	}

	switch {
	case nPoints == nil:
		r, g := *rangeMultiplier, *gridstep
		if r <= 1 {
			return 0, 0, 0, fmt.Errorf("%w: %.6f", ErrInvalidRange, r)
		}
		if g <= 1 {
			return 0, 0, 0, fmt.Errorf("%w: %.6f", ErrInvalidGridstep, g)
		}
		n := int(math.Ceil(math.Log(r)/math.Log(g))) / 2
		if n <= 0 {
			return 0, 0, 0, fmt.Errorf("%w: derived n=%d from r=%.6f g=%.6f", ErrInvalidNPoints, n, r, g)
		}
		return n, r, g, nil

	case rangeMultiplier == nil:
		n, g := *nPoints, *gridstep
		if n <= 0 {
			return 0, 0, 0, fmt.Errorf("%w: %d", ErrInvalidNPoints, n)
		}
		if g <= 1 {
			return 0, 0, 0, fmt.Errorf("%w: %.6f", ErrInvalidGridstep, g)
		}
		r := math.Pow(g, float64(2*n))
		return n, r, g, nil

	default: // gridstep == nil
		n, r := *nPoints, *rangeMultiplier
		if n <= 0 {
			return 0, 0, 0, fmt.Errorf("%w: %d", ErrInvalidNPoints, n)
		}
		if r <= 1 {
			return 0, 0, 0, fmt.Errorf("%w: %.6f", ErrInvalidRange, r)
		}
		g := math.Pow(r, 1.0/float64(n))
		return n, r, g, nil
	}
}

// calculateGrid builds the 2n+1 price ladder around reference: n
// geometrically-spaced prices below (descending by g, reversed to
// ascending order), the reference itself, then n prices above.
func calculateGrid(reference float64, n int, rangeMultiplier, gridstep float64) []float64 {
	max := reference * rangeMultiplier
	min := reference / rangeMultiplier

	lower := make([]float64, 0, n)
	current := reference
	for i := 0; i < n; i++ {
		current /= gridstep
		if current < min {
			break
		}
		lower = append(lower, current)
	}

	higher := make([]float64, 0, n)
	current = reference
	for i := 0; i < n; i++ {
		current *= gridstep
		if current > max {
			break
		}
		higher = append(higher, current)
	}

	grid := make([]float64, 0, len(lower)+len(higher)+1)
	for i := len(lower) - 1; i >= 0; i-- {
		grid = append(grid, lower[i])
	}
	grid = append(grid, reference)
	grid = append(grid, higher...)
	return grid
}

func (s *Strategy) calculateVolumes() (volumePerBid, volumePerAsk float64) {
	var bids, asks int
	for _, p := range s.priceGrid {
		switch {
		case p < s.referencePrice:
			bids++
		case p > s.referencePrice:
			asks++
		}
	}
	if bids > 0 {
		volumePerBid = s.initialBase / float64(bids)
	}
	if asks > 0 {
		volumePerAsk = s.initialQuote / float64(asks)
	}
	return volumePerBid, volumePerAsk
}

// Name implements market.Strategy.
func (s *Strategy) Name() string { return "Kandel Strategy" }

// Description implements market.Strategy.
func (s *Strategy) Description() string {
	return "Creates a grid of orders that repost on the opposite side when filled"
}

// Execute deploys the grid on its first call; every later call is a
// no-op, since the grid then maintains itself via PostHook.
func (s *Strategy) Execute(_ feed.PricePoint, book *market.OrderBook, user *account.Account) error {
	if s.initialized {
		return nil
	}

	volumePerBid, volumePerAsk := s.calculateVolumes()

	for _, price := range s.priceGrid {
		switch {
		case price < s.referencePrice:
			volume := volumePerBid / s.referencePrice
			offer, err := market.NewOffer(user, market.Bid, price, volume, defaultGasReq, s)
			if err != nil {
				return err
			}
			if err := book.PlaceOffer(offer); err != nil {
				return err
			}
		case price > s.referencePrice:
			offer, err := market.NewOffer(user, market.Ask, price, volumePerAsk, defaultGasReq, s)
			if err != nil {
				return err
			}
			if err := book.PlaceOffer(offer); err != nil {
				return err
			}
		}
	}

	s.initialized = true
	return nil
}

// PostHook reposts the filled offer's volume, converted at the next
// grid rung, on the opposite side.
func (s *Strategy) PostHook(book *market.OrderBook, maker *account.Account, filled market.Offer) error {
	flipped := filled.Side.Flipped()
	nextPrice := s.nextGridPrice(filled)

	quoteAmount := filled.Price * filled.Volume
	var newVolume float64
	if flipped == market.Bid {
		newVolume = quoteAmount / nextPrice
	} else {
		newVolume = quoteAmount / filled.Price
	}

	offer, err := market.NewOffer(maker, flipped, nextPrice, newVolume, defaultGasReq, s)
	if err != nil {
		return err
	}
	return book.PlaceOffer(offer)
}

// nextGridPrice finds the repost price for a filled offer: the nearest
// grid rung above a filled bid, or below a filled ask, falling back to
// the filled price itself if the grid has no such rung.
func (s *Strategy) nextGridPrice(filled market.Offer) float64 {
	if filled.Side == market.Bid {
		for _, p := range s.priceGrid { // ascending
			if p > filled.Price {
				return p
			}
		}
		return filled.Price
	}
	for i := len(s.priceGrid) - 1; i >= 0; i-- { // descending scan
		if s.priceGrid[i] < filled.Price {
			return s.priceGrid[i]
		}
	}
	return filled.Price
}

// SetParameter allows runtime adjustment of the reference price,
// initial base, or initial quote. Changing the grid shape itself
// requires re-deriving two of three parameters together and is not
// expressible through a single scalar; use New to redeploy instead.
func (s *Strategy) SetParameter(name string, value float64) error {
	switch name {
	case "reference_price":
		if value <= 0 {
			return fmt.Errorf("%w: %.6f", ErrInvalidReference, value)
		}
		s.referencePrice = value
	case "initial_base":
		s.initialBase = value
	case "initial_quote":
		if value <= 0 {
			return fmt.Errorf("%w: %.6f", ErrInvalidQuote, value)
		}
		s.initialQuote = value
	default:
		return fmt.Errorf("%w: %s", market.ErrUnknownParameter, name)
	}
	return nil
}

// GetParameter implements market.Strategy.
func (s *Strategy) GetParameter(name string) (float64, bool) {
	switch name {
	case "reference_price":
		return s.referencePrice, true
	case "initial_base":
		return s.initialBase, true
	case "initial_quote":
		return s.initialQuote, true
	case "n_points":
		return float64(s.nPoints), true
	case "range_multiplier":
		return s.rangeMultiplier, true
	case "gridstep":
		return s.gridstep, true
	default:
		return 0, false
	}
}

// NewWithGrid constructs a Kandel strategy from an already-computed
// price grid, bypassing the two-of-three parameter derivation. Used by
// the Delayed variant, which derives its grid from the volatility of a
// rolling price window rather than from fixed (n, r, g) parameters.
func NewWithGrid(referencePrice, initialBase, initialQuote float64, grid []float64) (*Strategy, error) {
	if referencePrice <= 0 {
		return nil, fmt.Errorf("%w: %.6f", ErrInvalidReference, referencePrice)
	}
	if initialQuote <= 0 {
		return nil, fmt.Errorf("%w: %.6f", ErrInvalidQuote, initialQuote)
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("price grid must not be empty")
	}

	out := make([]float64, len(grid))
	copy(out, grid)
	return &Strategy{
		priceGrid:      out,
		referencePrice: referencePrice,
		initialQuote:   initialQuote,
		initialBase:    initialBase,
		nPoints:        (len(grid) - 1) / 2,
	}, nil
}

// PriceGrid returns a copy of the deployed grid, sorted ascending.
func (s *Strategy) PriceGrid() []float64 {
	out := make([]float64, len(s.priceGrid))
	copy(out, s.priceGrid)
	sort.Float64s(out)
	return out
}
