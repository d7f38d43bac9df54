package kandel

import (
	"fmt"
	"math"

	"mgvsim/internal/account"
	"mgvsim/internal/feed"
	"mgvsim/internal/market"
)

const (
	annualizationDays = 365.0
	volatilityZScore  = 1.645 // 90% two-sided (95% one-sided) confidence interval
)

// Delayed deploys a Kandel grid sized from the realized volatility of
// its rolling price window rather than a fixed range multiplier: wider
// recent swings produce a wider grid. Capital is split between base
// and quote via AllocateInventory at each (re)deployment.
type Delayed struct {
	market.NoopPostHook

	windowSize            int
	recalibrationInterval uint64
	priceHistory          []float64
	lastCalibration        uint64
	initialized            bool

	numLevels int
	capital   float64
}

// NewDelayed constructs a Delayed Kandel strategy with numLevels grid
// rungs on each side of the reference, funded from capital (quote
// terms).
func NewDelayed(windowSize int, recalibrationInterval uint64, numLevels int, capital float64) (*Delayed, error) {
	if windowSize < 2 {
		return nil, fmt.Errorf("%w: window_size must be at least 2 to compute a volatility estimate", ErrInvalidNPoints)
	}
	if numLevels <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNPoints, numLevels)
	}
	if capital <= 0 {
		return nil, fmt.Errorf("%w: %.6f", ErrInvalidQuote, capital)
	}
	return &Delayed{
		windowSize:            windowSize,
		recalibrationInterval: recalibrationInterval,
		numLevels:             numLevels,
		capital:               capital,
	}, nil
}

// Name implements market.Strategy.
func (d *Delayed) Name() string { return "Delayed Kandel Strategy" }

// Description implements market.Strategy.
func (d *Delayed) Description() string {
	return "Deploys Kandel strategy after collecting price data and recalibrates periodically"
}

// Execute accumulates price history and, once the window is full and
// recalibration is due, builds a volatility-scaled grid around the
// window's mean and redeploys.
func (d *Delayed) Execute(pricePoint feed.PricePoint, book *market.OrderBook, user *account.Account) error {
	d.priceHistory = append(d.priceHistory, pricePoint.Price)
	if len(d.priceHistory) > d.windowSize {
		d.priceHistory = d.priceHistory[1:]
	}
	if len(d.priceHistory) < d.windowSize {
		return nil
	}

	due := !d.initialized || pricePoint.Block-d.lastCalibration >= d.recalibrationInterval
	if !due {
		return nil
	}

	spot := average(d.priceHistory)
	grid := volatilityGrid(d.priceHistory, spot, d.numLevels)
	baseAmount, quoteAmount := AllocateInventory(spot, grid[0], grid[len(grid)-1], d.capital)

	book.Clear()
	deployed, err := NewWithGrid(spot, baseAmount, quoteAmount, grid)
	if err != nil {
		return err
	}
	if err := deployed.Execute(feed.PricePoint{Block: pricePoint.Block, Price: spot}, book, user); err != nil {
		return err
	}

	d.lastCalibration = pricePoint.Block
	d.initialized = true
	return nil
}

// SetParameter implements market.Strategy.
func (d *Delayed) SetParameter(name string, value float64) error {
	switch name {
	case "capital":
		if value <= 0 {
			return fmt.Errorf("%w: %.6f", ErrInvalidQuote, value)
		}
		d.capital = value
	case "recalibration_interval":
		d.recalibrationInterval = uint64(value)
	default:
		return fmt.Errorf("%w: %s", market.ErrUnknownParameter, name)
	}
	return nil
}

// GetParameter implements market.Strategy.
func (d *Delayed) GetParameter(name string) (float64, bool) {
	switch name {
	case "capital":
		return d.capital, true
	case "recalibration_interval":
		return float64(d.recalibrationInterval), true
	case "window_size":
		return float64(d.windowSize), true
	case "num_levels":
		return float64(d.numLevels), true
	default:
		return 0, false
	}
}

// volatilityGrid builds a 2*numLevels+1 grid around spot, spaced by a
// gridstep derived from the sample standard deviation of log returns
// across priceHistory, divided by sqrt(annualizationDays).
func volatilityGrid(priceHistory []float64, spot float64, numLevels int) []float64 {
	logReturns := make([]float64, 0, len(priceHistory)-1)
	for i := 1; i < len(priceHistory); i++ {
		logReturns = append(logReturns, math.Log(priceHistory[i]/priceHistory[i-1]))
	}

	mean := average(logReturns)
	var sumSq float64
	for _, r := range logReturns {
		sumSq += (r - mean) * (r - mean)
	}
	variance := sumSq / float64(len(logReturns)-1)
	sigma := math.Sqrt(variance) / math.Sqrt(annualizationDays)

	rangeMultiplier := math.Exp(volatilityZScore * sigma)
	gridStep := math.Pow(rangeMultiplier, 1.0/float64(numLevels))

	grid := make([]float64, 0, 2*numLevels+1)
	for i := numLevels; i >= 1; i-- {
		grid = append(grid, spot/math.Pow(gridStep, float64(i)))
	}
	grid = append(grid, spot)
	for i := 1; i <= numLevels; i++ {
		grid = append(grid, spot*math.Pow(gridStep, float64(i)))
	}
	return grid
}
