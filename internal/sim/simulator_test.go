package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mgvsim/internal/feed"
	"mgvsim/internal/market"
	"mgvsim/internal/strategy/arbitrage"
	"mgvsim/internal/strategy/limitorder"
)

func TestAssignStrategyRejectsUnknownIDs(t *testing.T) {
	book := market.NewOrderBook("BASE", "QUOTE")
	s, err := New(book, []feed.PricePoint{{Block: 0, Price: 100}}, t.TempDir())
	require.NoError(t, err)

	s.AddUser("alice", 1000)
	assert.ErrorIs(t, s.AssignStrategy("alice", "missing"), ErrUnknownStrategyID)
	assert.ErrorIs(t, s.AssignStrategy("missing", "also-missing"), ErrUnknownUser)
}

func TestRunSimulationJournalsEveryBlock(t *testing.T) {
	book := market.NewOrderBook("BASE", "QUOTE")
	dir := t.TempDir()

	points := []feed.PricePoint{
		{Block: 0, Price: 100},
		{Block: 1, Price: 100}, // identical, should skip strategy execution
		{Block: 2, Price: 101},
	}
	s, err := New(book, points, dir)
	require.NoError(t, err)

	s.AddUser("alice", 1_000_000)
	strat, err := limitorder.New(101, 1, market.Ask)
	require.NoError(t, err)
	s.AddStrategy("touch", strat)
	require.NoError(t, s.AssignStrategy("alice", "touch"))

	require.NoError(t, s.RunSimulation(false, false))

	data, err := os.ReadFile(filepath.Join(dir, "alice.txt"))
	require.NoError(t, err)
	lines := splitLines(string(data))
	assert.Len(t, lines, 3)

	marketData, err := os.ReadFile(filepath.Join(dir, "market_state.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(marketData), "2,101.000000")

	best, ok := book.BestAsk()
	require.True(t, ok, "limit order should have triggered by block 2")
	assert.Equal(t, 101.0, best.Price)
}

func TestDeterministicAcrossIdenticalRuns(t *testing.T) {
	points := []feed.PricePoint{{Block: 0, Price: 2000}, {Block: 1, Price: 1900}}

	run := func(dir string) {
		book := market.NewOrderBook("BASE", "QUOTE")
		s, err := New(book, points, dir)
		require.NoError(t, err)

		s.AddUser("maker", 1_000_000)
		strat, err := limitorder.New(1950, 1, market.Bid)
		require.NoError(t, err)
		s.AddStrategy("s1", strat)
		require.NoError(t, s.AssignStrategy("maker", "s1"))
		require.NoError(t, s.RunSimulation(false, false))
	}

	dirA, dirB := t.TempDir(), t.TempDir()
	run(dirA)
	run(dirB)

	a, err := os.ReadFile(filepath.Join(dirA, "maker.txt"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dirB, "maker.txt"))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRunSimulationAccumulatesPerformanceMetrics(t *testing.T) {
	book := market.NewOrderBook("BASE", "QUOTE")
	dir := t.TempDir()

	points := []feed.PricePoint{
		{Block: 0, Price: 2000},
		{Block: 1, Price: 1900}, // bid now sits well above reference; arbitrage hits it
	}
	s, err := New(book, points, dir)
	require.NoError(t, err)

	maker := s.AddUser("maker", 1_000_000)
	require.NoError(t, maker.AddToken("QUOTE", 10_000))
	makerStrat, err := limitorder.New(2000, 1, market.Bid)
	require.NoError(t, err)
	s.AddStrategy("maker-strat", makerStrat)
	require.NoError(t, s.AssignStrategy("maker", "maker-strat"))

	s.AddUser("taker", 1_000_000)
	arbStrat, err := arbitrage.New(0, 10)
	require.NoError(t, err)
	s.AddStrategy("arb", arbStrat)
	require.NoError(t, s.AssignStrategy("taker", "arb"))

	require.NoError(t, s.RunSimulation(false, false))

	metrics := s.Metrics()
	makerMetrics := metrics["maker"]
	takerMetrics := metrics["taker"]

	assert.Equal(t, uint64(1), makerMetrics.TotalTrades)
	assert.Equal(t, uint64(1), takerMetrics.TotalTrades)
	assert.InDelta(t, 1.0, makerMetrics.TotalVolume, 1e-9)
	assert.InDelta(t, 1.0, takerMetrics.TotalVolume, 1e-9)
	assert.InDelta(t, 2000.0, takerMetrics.TotalProfitLoss, 1e-9)
	assert.InDelta(t, -2000.0, makerMetrics.TotalProfitLoss, 1e-9)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	return lines
}
