package kandel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mgvsim/internal/account"
	"mgvsim/internal/feed"
	"mgvsim/internal/market"
)

func TestDelayedDeploysOnceWindowFills(t *testing.T) {
	d, err := NewDelayed(3, 10, 2, 1000)
	require.NoError(t, err)

	book := market.NewOrderBook("BASE", "QUOTE")
	maker := account.New("maker", 1_000_000)

	prices := []float64{100, 102, 101}
	for i, p := range prices {
		if i < len(prices)-1 {
			require.NoError(t, d.Execute(feed.PricePoint{Block: uint64(i), Price: p}, book, maker))
			assert.Empty(t, book.Bids(), "grid should not deploy before the window fills")
			continue
		}
		require.NoError(t, d.Execute(feed.PricePoint{Block: uint64(i), Price: p}, book, maker))
	}

	assert.Len(t, book.Bids(), 2)
	assert.Len(t, book.Asks(), 2)

	bestBid, ok := book.BestBid()
	require.True(t, ok)
	bestAsk, ok := book.BestAsk()
	require.True(t, ok)

	spot := (prices[0] + prices[1] + prices[2]) / 3
	assert.Less(t, bestBid.Price, spot)
	assert.Greater(t, bestAsk.Price, spot)
}

func TestDelayedRecalibratesAfterInterval(t *testing.T) {
	d, err := NewDelayed(3, 5, 1, 1000)
	require.NoError(t, err)

	book := market.NewOrderBook("BASE", "QUOTE")
	maker := account.New("maker", 1_000_000)

	for i, p := range []float64{100, 102, 101} {
		require.NoError(t, d.Execute(feed.PricePoint{Block: uint64(i), Price: p}, book, maker))
	}
	firstBestAsk, ok := book.BestAsk()
	require.True(t, ok)

	// recalibration_interval=5, last calibration at block 2: not due again
	// until block 7.
	for _, block := range []uint64{3, 4, 5, 6} {
		require.NoError(t, d.Execute(feed.PricePoint{Block: block, Price: 101}, book, maker))
	}
	stillBestAsk, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, firstBestAsk.Price, stillBestAsk.Price, "should not recalibrate before the interval elapses")

	require.NoError(t, d.Execute(feed.PricePoint{Block: 7, Price: 150}, book, maker))
	newBestAsk, ok := book.BestAsk()
	require.True(t, ok)
	assert.NotEqual(t, firstBestAsk.Price, newBestAsk.Price, "should redeploy around the shifted window")
}

func TestNewDelayedRejectsInvalidParameters(t *testing.T) {
	_, err := NewDelayed(1, 5, 1, 1000)
	assert.Error(t, err, "window_size below 2 cannot estimate volatility")
	_, err = NewDelayed(3, 5, 0, 1000)
	assert.Error(t, err)
	_, err = NewDelayed(3, 5, 1, 0)
	assert.Error(t, err)
}
