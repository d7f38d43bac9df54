package kandel

import (
	"fmt"

	"mgvsim/internal/account"
	"mgvsim/internal/feed"
	"mgvsim/internal/market"
)

// Active deploys a fixed-shape Kandel grid once a rolling window of
// prices has filled, recalibrating around the window's mean every
// recalibrationInterval blocks thereafter. Unlike the source, the
// reference price used at each deployment is the window average
// rather than a field that is declared but never assigned — the source's ActiveKandelStrategy never sets
// kandel_params.reference_price away from its zero default, which
// would fail construction outright.
type Active struct {
	market.NoopPostHook

	windowSize             int
	recalibrationInterval  uint64
	priceHistory           []float64
	lastCalibration        uint64
	initialized            bool

	nPoints         int
	rangeMultiplier *float64
	gridstep        *float64
	baseAmount      float64
	quoteAmount     float64
}

// NewActive constructs an Active Kandel strategy. Exactly one of
// rangeMultiplier or gridstep should be provided alongside nPoints, as
// for the base Kandel strategy; the other is derived by New at every
// recalibration, from nPoints and the supplied parameter.
func NewActive(windowSize int, recalibrationInterval uint64, baseAmount, quoteAmount float64, nPoints int, rangeMultiplier, gridstep *float64) (*Active, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: window_size must be positive", ErrInvalidNPoints)
	}
	if nPoints <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNPoints, nPoints)
	}
	if quoteAmount <= 0 {
		return nil, fmt.Errorf("%w: %.6f", ErrInvalidQuote, quoteAmount)
	}
	return &Active{
		windowSize:            windowSize,
		recalibrationInterval: recalibrationInterval,
		nPoints:               nPoints,
		rangeMultiplier:       rangeMultiplier,
		gridstep:              gridstep,
		baseAmount:            baseAmount,
		quoteAmount:           quoteAmount,
	}, nil
}

// Name implements market.Strategy.
func (a *Active) Name() string { return "Active Kandel Strategy" }

// Description implements market.Strategy.
func (a *Active) Description() string {
	return "Deploys Kandel strategy after collecting price data and recalibrates periodically"
}

// Execute accumulates price_point.Price into a rolling window; once
// full, it (re)deploys a fresh Kandel grid around the window's mean
// whenever uninitialized or the recalibration interval has elapsed.
func (a *Active) Execute(pricePoint feed.PricePoint, book *market.OrderBook, user *account.Account) error {
	a.priceHistory = append(a.priceHistory, pricePoint.Price)
	if len(a.priceHistory) > a.windowSize {
		a.priceHistory = a.priceHistory[1:]
	}
	if len(a.priceHistory) < a.windowSize {
		return nil
	}

	due := !a.initialized || pricePoint.Block-a.lastCalibration >= a.recalibrationInterval
	if !due {
		return nil
	}

	book.Clear()
	reference := average(a.priceHistory)

	deployed, err := New(reference, a.baseAmount, a.quoteAmount, &a.nPoints, a.rangeMultiplier, a.gridstep)
	if err != nil {
		return err
	}
	if err := deployed.Execute(feed.PricePoint{Block: pricePoint.Block, Price: reference}, book, user); err != nil {
		return err
	}

	a.lastCalibration = pricePoint.Block
	a.initialized = true
	return nil
}

// SetParameter implements market.Strategy.
func (a *Active) SetParameter(name string, value float64) error {
	switch name {
	case "base_amount":
		a.baseAmount = value
	case "quote_amount":
		if value <= 0 {
			return fmt.Errorf("%w: %.6f", ErrInvalidQuote, value)
		}
		a.quoteAmount = value
	case "recalibration_interval":
		a.recalibrationInterval = uint64(value)
	default:
		return fmt.Errorf("%w: %s", market.ErrUnknownParameter, name)
	}
	return nil
}

// GetParameter implements market.Strategy.
func (a *Active) GetParameter(name string) (float64, bool) {
	switch name {
	case "base_amount":
		return a.baseAmount, true
	case "quote_amount":
		return a.quoteAmount, true
	case "recalibration_interval":
		return float64(a.recalibrationInterval), true
	case "window_size":
		return float64(a.windowSize), true
	default:
		return 0, false
	}
}

func average(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
