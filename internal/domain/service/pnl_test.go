package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"xcarry/internal/domain/model"
)

func openPosition() *model.Position {
	return &model.Position{
		ID:               "p1",
		EntryTime:        time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		PerpSymbol:       "BTCUSDT",
		FutureSymbol:     "BTCUSDT_250926",
		EntryPricePerp:   100,
		EntryPriceFuture: 101,
		NotionalUSD:      1000,
		OpeningFee:       LegFee(1000, DefaultFeeRate),
		Status:           model.StatusOpen,
	}
}

func TestLegFee(t *testing.T) {
	assert.Equal(t, 0.8, LegFee(1000, 0.0004))
	assert.Equal(t, 1.23, LegFee(1234.56, 0.0005))
	assert.Equal(t, 0.0, LegFee(1, 0.0004))
}

func TestComputePnLAtEntryEqualsNegativeFee(t *testing.T) {
	pos := openPosition()
	pnl := ComputePnL(pos, pos.EntryPricePerp, pos.EntryPriceFuture, nil)

	assert.Equal(t, 0.0, pnl.FundingPnL)
	assert.Equal(t, 0.0, pnl.BasisPnL)
	assert.InDelta(t, -pos.OpeningFee, pnl.TotalPnL, 1e-12)
	assert.Equal(t, 0.0, pnl.APR)
}

func TestComputePnLDecomposition(t *testing.T) {
	pos := openPosition()
	funding := []float64{0.0001, 0.0002, 0.0001}

	pnl := ComputePnL(pos, 110, 112, funding)

	// qty = 10
	assert.InDelta(t, 110.0, pnl.FuturePnL, 1e-9)
	assert.InDelta(t, -100.0, pnl.PerpPnL, 1e-9)
	assert.InDelta(t, 10.0, pnl.BasisPnL, 1e-9)
	assert.InDelta(t, 0.4, pnl.FundingPnL, 1e-9)
	assert.InDelta(t, 0.8, pnl.Fee, 1e-12)
	assert.InDelta(t, 0.4+10-0.8, pnl.TotalPnL, 1e-9)
	assert.Greater(t, pnl.APR, 0.0)
}

func TestComputePnLIncludesRollFees(t *testing.T) {
	pos := openPosition()
	pos.Rolls = []model.Roll{{Fee: 0.8}, {Fee: 0.8}}
	pos.RollFee = 0.8

	pnl := ComputePnL(pos, 100, 101, nil)
	assert.InDelta(t, 2.4, pnl.Fee, 1e-12)

	legacy := openPosition()
	legacy.RollFee = 0.8
	assert.InDelta(t, 1.6, ComputePnL(legacy, 100, 101, nil).Fee, 1e-12)
}

func TestExitPrices(t *testing.T) {
	pos := openPosition()
	_, _, ok := ExitPrices(pos)
	assert.False(t, ok)

	pos.Status = model.StatusClosed
	pos.ExitPricePerp, pos.ExitPriceFuture = 98, 99
	perp, fut, ok := ExitPrices(pos)
	assert.True(t, ok)
	assert.Equal(t, 98.0, perp)
	assert.Equal(t, 99.0, fut)
}
