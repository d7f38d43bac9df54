package kandel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocateInventoryBelowRangeGoesAllBase(t *testing.T) {
	baseQty, quoteQty := AllocateInventory(50, 100, 200, 1000)
	assert.InDelta(t, 1000.0/50.0, baseQty, 1e-9)
	assert.Equal(t, 0.0, quoteQty)
}

func TestAllocateInventoryAboveRangeGoesAllQuote(t *testing.T) {
	baseQty, quoteQty := AllocateInventory(300, 100, 200, 1000)
	assert.Equal(t, 0.0, baseQty)
	assert.InDelta(t, 1000.0, quoteQty, 1e-9)
}

func TestAllocateInventoryWithinRangeConservesValue(t *testing.T) {
	pMin, pMax := 100.0, 400.0
	spot := math.Sqrt(pMin * pMax) // geometric mid of the range
	capital := 1000.0

	baseQty, quoteQty := AllocateInventory(spot, pMin, pMax, capital)

	assert.Greater(t, baseQty, 0.0)
	assert.Greater(t, quoteQty, 0.0)
	assert.InDelta(t, capital, baseQty*spot+quoteQty, 1e-6)
}

func TestAllocateInventoryNearBoundsSkewsToward(t *testing.T) {
	pMin, pMax := 100.0, 400.0
	capital := 1000.0

	lowBase, lowQuote := AllocateInventory(110, pMin, pMax, capital)
	highBase, highQuote := AllocateInventory(390, pMin, pMax, capital)

	// Near pMin, the position should be mostly base; near pMax, mostly quote.
	assert.Greater(t, lowBase*110, lowQuote)
	assert.Greater(t, highQuote, highBase*390)
}
