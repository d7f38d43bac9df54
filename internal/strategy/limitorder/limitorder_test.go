package limitorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mgvsim/internal/account"
	"mgvsim/internal/feed"
	"mgvsim/internal/market"
)

func TestExecutePlacesOnceTriggerCrossedBid(t *testing.T) {
	strat, err := New(100, 2, market.Bid)
	require.NoError(t, err)

	book := market.NewOrderBook("BASE", "QUOTE")
	user := account.New("u1", 1_000_000)

	require.NoError(t, strat.Execute(feed.PricePoint{Block: 0, Price: 110}, book, user))
	_, ok := book.BestBid()
	assert.False(t, ok, "should not place before price crosses trigger")

	require.NoError(t, strat.Execute(feed.PricePoint{Block: 1, Price: 99}, book, user))
	best, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, 100.0, best.Price)
	assert.Equal(t, 2.0, best.Volume)

	require.NoError(t, strat.Execute(feed.PricePoint{Block: 2, Price: 50}, book, user))
	assert.Len(t, book.Bids(), 1, "second crossing must not place a second offer")
}

func TestExecutePlacesOnceTriggerCrossedAsk(t *testing.T) {
	strat, err := New(100, 2, market.Ask)
	require.NoError(t, err)

	book := market.NewOrderBook("BASE", "QUOTE")
	user := account.New("u1", 1_000_000)

	require.NoError(t, strat.Execute(feed.PricePoint{Block: 0, Price: 90}, book, user))
	_, ok := book.BestAsk()
	assert.False(t, ok)

	require.NoError(t, strat.Execute(feed.PricePoint{Block: 1, Price: 101}, book, user))
	best, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 100.0, best.Price)
}

func TestSetGetParameter(t *testing.T) {
	strat, err := New(100, 2, market.Bid)
	require.NoError(t, err)

	require.NoError(t, strat.SetParameter("trigger_price", 150))
	v, ok := strat.GetParameter("trigger_price")
	require.True(t, ok)
	assert.Equal(t, 150.0, v)

	_, ok = strat.GetParameter("side")
	assert.False(t, ok)

	assert.Error(t, strat.SetParameter("side", 1))
}
