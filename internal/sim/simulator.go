// Package sim drives a single-threaded, block-by-block replay of a
// price feed against an order book, invoking each user's assigned
// strategies and journaling balances after every block.
package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"mgvsim/internal/account"
	"mgvsim/internal/feed"
	"mgvsim/internal/journal"
	"mgvsim/internal/market"
)

var (
	// ErrUnknownUser is returned by assignment/lookup calls for an id
	// never passed to AddUser.
	ErrUnknownUser = errors.New("unknown user")
	// ErrUnknownStrategyID is returned by AssignStrategy for a
	// strategy id never passed to AddStrategy.
	ErrUnknownStrategyID = errors.New("unknown strategy id")
)

// PerformanceMetrics accumulates per-user counters across a run.
type PerformanceMetrics struct {
	TotalTrades     uint64
	TotalVolume     float64
	TotalProfitLoss float64
	InitialBalance  float64
	CurrentBalance  float64
}

type assignment struct {
	userID     string
	strategyID string
}

// Simulator is the block-stepping driver: it owns the book, the price
// feed, the user and strategy registries, and the assignment mapping
// between them.
type Simulator struct {
	book     *market.OrderBook
	feed     []feed.PricePoint
	block    uint64
	journal  *journal.Writer

	users          map[string]*account.Account
	strategies     map[string]market.Strategy
	assignments    []assignment
	metrics        map[string]*PerformanceMetrics
}

// New constructs a Simulator over book, replaying priceFeed, journaling
// to outDir.
func New(book *market.OrderBook, priceFeed []feed.PricePoint, outDir string) (*Simulator, error) {
	w, err := journal.NewWriter(outDir)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		book:       book,
		feed:       priceFeed,
		journal:    w,
		users:      make(map[string]*account.Account),
		strategies: make(map[string]market.Strategy),
		metrics:    make(map[string]*PerformanceMetrics),
	}
	book.OnTrade(s.recordTrade)
	return s, nil
}

// AddUser creates a fresh Account with the given id and initial native
// balance, records default metrics for it, and returns the shared
// handle every strategy execution for this user will receive.
func (s *Simulator) AddUser(id string, initialNative float64) *account.Account {
	acc := account.New(id, initialNative)
	s.users[id] = acc
	s.metrics[id] = &PerformanceMetrics{InitialBalance: initialNative, CurrentBalance: initialNative}
	return acc
}

// AddStrategy registers an owned strategy instance under id.
func (s *Simulator) AddStrategy(id string, strat market.Strategy) {
	s.strategies[id] = strat
}

// AssignStrategy appends strategyID to userID's strategy list. The
// order assignments are made in is the order they execute in every
// block (see spec: "defined order is insertion order into the
// user_strategies mapping").
func (s *Simulator) AssignStrategy(userID, strategyID string) error {
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	if _, ok := s.strategies[strategyID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStrategyID, strategyID)
	}
	s.assignments = append(s.assignments, assignment{userID: userID, strategyID: strategyID})
	return nil
}

// Metrics returns a copy of the current per-user performance metrics.
func (s *Simulator) Metrics() map[string]PerformanceMetrics {
	out := make(map[string]PerformanceMetrics, len(s.metrics))
	for id, m := range s.metrics {
		out[id] = *m
	}
	return out
}

// Book exposes the underlying order book, primarily for callers that
// want to render a final snapshot after RunSimulation returns.
func (s *Simulator) Book() *market.OrderBook { return s.book }

// RunSimulation steps through the entire price feed. Identical
// consecutive prices skip strategy invocation for that block (the feed
// carries no new information), but journaling still happens every
// block. verbose enables per-block structured log lines; showProgress
// enables a coarser periodic progress line, for long runs where
// per-block logging would be too noisy, and is ignored when verbose is
// set.
func (s *Simulator) RunSimulation(showProgress, verbose bool) error {
	total := len(s.feed)
	if verbose {
		log.Info().Int("blocks", total).Int("users", len(s.users)).Msg("starting simulation")
	}

	progressStep := total / 20
	if progressStep == 0 {
		progressStep = 1
	}

	for s.block = 0; int(s.block) < total; s.block++ {
		point := s.feed[s.block]

		skip := s.block > 0 && pricesEqual(point.Price, s.feed[s.block-1].Price)
		if !skip {
			if verbose {
				log.Info().Uint64("block", s.block).Float64("price", point.Price).Msg("executing block")
			}
			if err := s.executeBlock(point); err != nil {
				return fmt.Errorf("block %d: %w", s.block, err)
			}
		}

		if err := s.journalBlock(s.block, point); err != nil {
			return err
		}

		if showProgress && !verbose && int(s.block)%progressStep == 0 {
			log.Info().Uint64("block", s.block).Int("of", total).Msg("simulation progress")
		}
	}

	return nil
}

func (s *Simulator) executeBlock(point feed.PricePoint) error {
	for _, a := range s.assignments {
		user := s.users[a.userID]
		strat := s.strategies[a.strategyID]
		if err := strat.Execute(point, s.book, user); err != nil {
			return fmt.Errorf("strategy %s for user %s: %w", a.strategyID, a.userID, err)
		}
		if m, ok := s.metrics[a.userID]; ok {
			m.CurrentBalance = user.GetNative()
		}
	}
	return nil
}

// recordTrade is registered with the order book via OnTrade and
// accumulates PerformanceMetrics for both sides of a settlement.
// Profit/loss is tracked as realized quote cash flow: a side that
// receives quote on this trade gains it, a side that pays quote loses
// it.
func (s *Simulator) recordTrade(t market.Trade) {
	s.accrueTrade(t.Taker, t.BaseVolume, takerQuoteFlow(t))
	s.accrueTrade(t.Maker, t.BaseVolume, -takerQuoteFlow(t))
}

func (s *Simulator) accrueTrade(acc *account.Account, baseVolume, quoteFlow float64) {
	m, ok := s.metrics[acc.ID()]
	if !ok {
		return
	}
	m.TotalTrades++
	m.TotalVolume += baseVolume
	m.TotalProfitLoss += quoteFlow
	m.CurrentBalance = acc.GetNative()
}

// takerQuoteFlow returns the taker's realized quote cash flow for t:
// negative when the taker paid quote (Buy), positive when the taker
// received quote (Sell). The maker's flow is the opposite sign.
func takerQuoteFlow(t market.Trade) float64 {
	if t.Side == market.Buy {
		return -t.QuoteVolume
	}
	return t.QuoteVolume
}

func (s *Simulator) journalBlock(block uint64, point feed.PricePoint) error {
	for id, user := range s.users {
		if err := s.journal.WriteUserBalance(id, block, user.BalanceList()); err != nil {
			return err
		}
	}
	return s.journal.WriteMarketState(block, point.Price, s.book.Render())
}

func pricesEqual(a, b float64) bool {
	return math.Abs(a-b) < 0x1p-52 // float64 machine epsilon
}
