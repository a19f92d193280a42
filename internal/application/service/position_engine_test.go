package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xcarry/internal/domain/model"
	domainsvc "xcarry/internal/domain/service"
)

var t0 = time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)

type engineFixture struct {
	engine *PositionEngine
	market *fakeMarket
	orders *fakeOrders
	store  *memStore
	pub    *recordingPublisher
	clock  time.Time
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		market: newFakeMarket(),
		orders: &fakeOrders{},
		store:  &memStore{},
		pub:    &recordingPublisher{},
		clock:  t0,
	}
	f.engine = NewPositionEngine(f.market, f.orders, f.store, f.pub, nil, EngineConfig{FeeRate: 0.0004})
	f.engine.now = func() time.Time { return f.clock }
	seq := 0
	f.engine.newID = func() string {
		seq++
		return fmt.Sprintf("pos-%d", seq)
	}
	return f
}

func TestOpenPersistsPosition(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	pos, err := f.engine.Open(ctx, "BTCUSDT", "BTCUSDT", 1000)
	require.NoError(t, err)

	assert.Equal(t, "pos-1", pos.ID)
	assert.Equal(t, model.StatusOpen, pos.Status)
	assert.Equal(t, "BTCUSDT_250926", pos.FutureSymbol)
	assert.Equal(t, 100.0, pos.EntryPricePerp)
	assert.Equal(t, 101.0, pos.EntryPriceFuture)
	assert.Equal(t, 0.8, pos.OpeningFee)
	assert.Equal(t, t0, pos.EntryTime)

	require.Len(t, f.orders.orders, 2)
	assert.Equal(t, submitted{"BTCUSDT", model.SideSell, 10}, f.orders.orders[0])
	assert.Equal(t, "BTCUSDT_250926", f.orders.orders[1].symbol)
	assert.Equal(t, model.SideBuy, f.orders.orders[1].side)
	assert.InDelta(t, 9.9, f.orders.orders[1].qty, 1e-12)

	stored, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, pos, stored[0])
	assert.Equal(t, []model.EventType{model.EventOpened}, f.pub.types())
}

func TestOpenThenPnLAtEntryIsNegativeFee(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	pos, err := f.engine.Open(ctx, "BTCUSDT", "BTCUSDT", 1000)
	require.NoError(t, err)

	row, err := f.engine.PositionPnL(ctx, pos)
	require.NoError(t, err)
	assert.True(t, row.OK)
	assert.InDelta(t, -pos.OpeningFee, row.PnL.TotalPnL, 1e-12)
}

func TestOpenUsesFillPrices(t *testing.T) {
	f := newEngineFixture()
	f.orders.fills = map[string]float64{"BTCUSDT": 99.5}

	pos, err := f.engine.Open(context.Background(), "BTCUSDT", "BTCUSDT", 1000)
	require.NoError(t, err)
	assert.Equal(t, 99.5, pos.EntryPricePerp)
	assert.Equal(t, 101.0, pos.EntryPriceFuture, "falls back to quote")
}

func TestOpenSnapshotsEntryFunding(t *testing.T) {
	f := newEngineFixture()
	f.market.funding = []model.FundingRate{{Rate: 0.5}, {Rate: 0.0001}, {Rate: 0.0002}, {Rate: 0.0001}}

	pos, err := f.engine.Open(context.Background(), "BTCUSDT", "BTCUSDT", 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.0004, pos.EntryFundingDaily, 1e-12)
}

func TestOpenRejectsInvalidNotional(t *testing.T) {
	f := newEngineFixture()
	_, err := f.engine.Open(context.Background(), "BTCUSDT", "BTCUSDT", 0)
	assert.ErrorIs(t, err, model.ErrInvalidNotional)
	assert.Zero(t, f.orders.count())
}

func TestOpenWithoutContract(t *testing.T) {
	f := newEngineFixture()
	delete(f.market.contracts, model.CurrentQuarter)

	_, err := f.engine.Open(context.Background(), "BTCUSDT", "BTCUSDT", 1000)
	assert.ErrorIs(t, err, model.ErrNoContractFound)
	assert.Zero(t, f.orders.count())
	assert.Zero(t, f.store.saves)
}

func TestOpenFirstLegFailureChangesNothing(t *testing.T) {
	f := newEngineFixture()
	f.orders.failAt = 1

	_, err := f.engine.Open(context.Background(), "BTCUSDT", "BTCUSDT", 1000)
	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, model.ErrPartialExecution)
	assert.Zero(t, f.orders.count())
	assert.Zero(t, f.store.saves)
	assert.Empty(t, f.pub.types())
}

func TestOpenSecondLegFailureIsPartialExecution(t *testing.T) {
	f := newEngineFixture()
	f.orders.failAt = 2

	_, err := f.engine.Open(context.Background(), "BTCUSDT", "BTCUSDT", 1000)
	require.ErrorIs(t, err, model.ErrPartialExecution)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, f.orders.count())
	assert.Zero(t, f.store.saves)
}

func TestOpenPersistenceFailure(t *testing.T) {
	f := newEngineFixture()
	f.store.failSave = true

	_, err := f.engine.Open(context.Background(), "BTCUSDT", "BTCUSDT", 1000)
	require.ErrorIs(t, err, model.ErrPersistenceFailure)
	assert.Equal(t, 2, f.orders.count())
	assert.Empty(t, f.pub.types())
}

func TestCloseTwiceIsRejected(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	pos, err := f.engine.Open(ctx, "BTCUSDT", "BTCUSDT", 1000)
	require.NoError(t, err)

	f.clock = t0.Add(48 * time.Hour)
	closed, err := f.engine.Close(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, closed.Status)
	require.NotNil(t, closed.CloseTime)
	assert.Equal(t, f.clock, *closed.CloseTime)

	before, _ := f.store.Load(ctx)
	orders := f.orders.count()
	saves := f.store.saves

	_, err = f.engine.Close(ctx, pos.ID)
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)

	after, _ := f.store.Load(ctx)
	assert.Equal(t, before, after)
	assert.Equal(t, orders, f.orders.count())
	assert.Equal(t, saves, f.store.saves)
}

func TestCloseUsesEntryPricesForQuantity(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	pos, err := f.engine.Open(ctx, "BTCUSDT", "BTCUSDT", 1000)
	require.NoError(t, err)

	f.market.setPrice("BTCUSDT", 200)
	f.market.setPrice("BTCUSDT_250926", 202)

	closed, err := f.engine.Close(ctx, pos.ID)
	require.NoError(t, err)

	require.Len(t, f.orders.orders, 4)
	assert.Equal(t, submitted{"BTCUSDT", model.SideBuy, 10}, f.orders.orders[2])
	assert.Equal(t, model.SideSell, f.orders.orders[3].side)
	assert.InDelta(t, 9.9, f.orders.orders[3].qty, 1e-12)
	assert.Equal(t, 200.0, closed.ExitPricePerp)
	assert.Equal(t, 202.0, closed.ExitPriceFuture)
	assert.Equal(t, []model.EventType{model.EventOpened, model.EventClosed}, f.pub.types())
}

func TestCloseUnknownPosition(t *testing.T) {
	f := newEngineFixture()
	_, err := f.engine.Close(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrPositionNotFound)
}

func TestRollThenCloseUsesNewEntryPrice(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.market.setPrice("BTCUSDT_250926", 100)

	pos, err := f.engine.Open(ctx, "BTCUSDT", "BTCUSDT", 1000)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pos.EntryPriceFuture)

	f.market.setPrice("BTCUSDT_250926", 105)
	f.market.setPrice("BTCUSDT_251226", 102)
	f.clock = t0.Add(24 * time.Hour)

	rolled, err := f.engine.Roll(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT_251226", rolled.FutureSymbol)
	assert.Equal(t, "BTCUSDT_250926", rolled.PreviousFutureSymbol)
	assert.Equal(t, 105.0, rolled.ExitPriceFutureBeforeRoll)
	assert.Equal(t, 102.0, rolled.EntryPriceFuture)
	assert.Equal(t, 0.8, rolled.RollFee)
	require.NotNil(t, rolled.RollTime)
	require.Len(t, rolled.Rolls, 1)
	assert.Equal(t, model.Roll{
		FromSymbol: "BTCUSDT_250926",
		ToSymbol:   "BTCUSDT_251226",
		ExitPrice:  105,
		EntryPrice: 102,
		Time:       f.clock,
		Fee:        0.8,
	}, rolled.Rolls[0])

	// 展期订单：卖旧买新
	require.Len(t, f.orders.orders, 4)
	assert.Equal(t, "BTCUSDT_250926", f.orders.orders[2].symbol)
	assert.Equal(t, model.SideSell, f.orders.orders[2].side)
	assert.InDelta(t, 9.523, f.orders.orders[2].qty, 1e-12)
	assert.Equal(t, "BTCUSDT_251226", f.orders.orders[3].symbol)
	assert.InDelta(t, 9.803, f.orders.orders[3].qty, 1e-12)

	closed, err := f.engine.Close(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, 102.0, closed.ExitPriceFuture)

	row, err := f.engine.PositionPnL(ctx, closed)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, row.PnL.FuturePnL, 1e-12)
	assert.InDelta(t, 1.6, row.PnL.Fee, 1e-12)
	assert.InDelta(t, -1.6, row.PnL.TotalPnL, 1e-12)
}

func TestRollWithoutNextContract(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	pos, err := f.engine.Open(ctx, "BTCUSDT", "BTCUSDT", 1000)
	require.NoError(t, err)

	f.market.contracts[model.NextQuarter] = pos.FutureSymbol
	_, err = f.engine.Roll(ctx, pos.ID)
	assert.ErrorIs(t, err, model.ErrNoNextContractFound)

	delete(f.market.contracts, model.NextQuarter)
	_, err = f.engine.Roll(ctx, pos.ID)
	assert.ErrorIs(t, err, model.ErrNoNextContractFound)
	assert.Equal(t, 2, f.orders.count())
}

func TestRollClosedPositionIsRejected(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	pos, err := f.engine.Open(ctx, "BTCUSDT", "BTCUSDT", 1000)
	require.NoError(t, err)
	_, err = f.engine.Close(ctx, pos.ID)
	require.NoError(t, err)

	_, err = f.engine.Roll(ctx, pos.ID)
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
}

func TestRollSecondLegFailureLeavesStoreUntouched(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	pos, err := f.engine.Open(ctx, "BTCUSDT", "BTCUSDT", 1000)
	require.NoError(t, err)
	f.orders.failAt = 4

	_, err = f.engine.Roll(ctx, pos.ID)
	require.ErrorIs(t, err, model.ErrPartialExecution)

	stored, _ := f.store.Load(ctx)
	assert.Equal(t, pos, stored[0])
}

func TestClosedPositionFundingWindowEndsAtCloseTime(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	f.market.funding = []model.FundingRate{{Rate: 0.0001}, {Rate: 0.0001}}

	pos, err := f.engine.Open(ctx, "BTCUSDT", "BTCUSDT", 1000)
	require.NoError(t, err)
	f.clock = t0.Add(24 * time.Hour)
	closed, err := f.engine.Close(ctx, pos.ID)
	require.NoError(t, err)

	f.clock = t0.Add(240 * time.Hour)
	row, err := f.engine.PositionPnL(ctx, closed)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, row.PnL.FundingPnL, 1e-12)

	last := f.market.fundingCalls[len(f.market.fundingCalls)-1]
	assert.Equal(t, t0, last.start)
	assert.Equal(t, t0.Add(24*time.Hour), last.end)
}

func seedPosition(id, perp, future string) *model.Position {
	return &model.Position{
		ID:               id,
		EntryTime:        t0,
		PerpSymbol:       perp,
		FutureSymbol:     future,
		EntryPricePerp:   10,
		EntryPriceFuture: 11,
		NotionalUSD:      100,
		OpeningFee:       domainsvc.LegFee(100, 0.0004),
		Status:           model.StatusOpen,
	}
}

func TestReportIsolatesFailures(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.store.positions = []*model.Position{
		seedPosition("a", "AAAUSDT", "AAAUSDT_250926"),
		seedPosition("b", "BBBUSDT", "BBBUSDT_250926"),
		seedPosition("c", "CCCUSDT", "CCCUSDT_250926"),
	}
	f.market.setPrice("AAAUSDT", 10)
	f.market.setPrice("AAAUSDT_250926", 11)
	f.market.setPrice("BBBUSDT", 10)
	f.market.setPrice("CCCUSDT", 10)
	f.market.setPrice("CCCUSDT_250926", 11)

	rep, err := f.engine.Report(ctx, ReportFilter{})
	require.NoError(t, err)
	require.Len(t, rep.Entries, 3)

	assert.True(t, rep.Entries[0].OK)
	assert.False(t, rep.Entries[1].OK)
	assert.Equal(t, model.PnL{}, rep.Entries[1].PnL)
	assert.True(t, rep.Entries[2].OK)
	assert.Equal(t, "a", rep.Entries[0].Position.ID)
	assert.Equal(t, "c", rep.Entries[2].Position.ID)

	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "BBBUSDT")

	open := rep.ByStatus[model.StatusOpen]
	assert.Equal(t, 3, open.Count)
	assert.InDelta(t, 300.0, open.NotionalUSD, 1e-12)
	assert.InDelta(t, -0.16, open.TotalPnL, 1e-12)
}

func TestReportFilter(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	closed := seedPosition("b", "BTCUSDT", "BTCUSDT_250926")
	closed.Status = model.StatusClosed
	closed.ExitPricePerp, closed.ExitPriceFuture = 10, 11
	ct := t0.Add(time.Hour)
	closed.CloseTime = &ct
	f.store.positions = []*model.Position{seedPosition("a", "BTCUSDT", "BTCUSDT_250926"), closed}

	rep, err := f.engine.Report(ctx, ReportFilter{Status: model.StatusClosed})
	require.NoError(t, err)
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, "b", rep.Entries[0].Position.ID)
	assert.Equal(t, 1, rep.ByStatus[model.StatusClosed].Count)
	assert.Zero(t, rep.ByStatus[model.StatusOpen].Count)

	all, err := f.engine.Positions(ctx, ReportFilter{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byFuture, err := f.engine.Positions(ctx, ReportFilter{Symbol: "BTCUSDT_250926"})
	require.NoError(t, err)
	assert.Len(t, byFuture, 2)

	none, err := f.engine.Positions(ctx, ReportFilter{Symbol: "ETHUSDT"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
