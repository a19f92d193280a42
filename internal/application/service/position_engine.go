package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
	domainsvc "xcarry/internal/domain/service"
)

// EngineConfig 引擎参数
type EngineConfig struct {
	FeeRate           float64
	FundingWindow     int // 入场时记录的最近资金费期数
	FundingPageLimit  int // 单页上限，Binance 为 1000
	ReportConcurrency int
}

func (c *EngineConfig) applyDefaults() {
	if c.FeeRate <= 0 {
		c.FeeRate = domainsvc.DefaultFeeRate
	}
	if c.FundingWindow <= 0 {
		c.FundingWindow = domainsvc.DefaultFundingWindow
	}
	if c.FundingPageLimit <= 0 {
		c.FundingPageLimit = 1000
	}
	if c.ReportConcurrency <= 0 {
		c.ReportConcurrency = 4
	}
}

// ReportFilter 报表过滤条件，零值表示全部
type ReportFilter struct {
	Status model.PositionStatus
	Symbol string
}

func (f ReportFilter) match(p *model.Position) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Symbol != "" && p.PerpSymbol != f.Symbol && p.FutureSymbol != f.Symbol {
		return false
	}
	return true
}

// PositionEngine 期现套利持仓引擎：开仓 / 展期 / 平仓 / 盈亏
// 所有变更在 mu 下完成 读取-下单-持久化 全流程
type PositionEngine struct {
	mu sync.Mutex

	market     port.MarketData
	orders     port.OrderExecutor
	store      port.PositionStore
	publisher  port.EventPublisher
	normalizer *domainsvc.QuantityNormalizer
	cfg        EngineConfig

	now   func() time.Time
	newID func() string
}

func NewPositionEngine(
	market port.MarketData,
	orders port.OrderExecutor,
	store port.PositionStore,
	publisher port.EventPublisher,
	normalizer *domainsvc.QuantityNormalizer,
	cfg EngineConfig,
) *PositionEngine {
	cfg.applyDefaults()
	if normalizer == nil {
		normalizer = domainsvc.NewQuantityNormalizer(market, domainsvc.DefaultLotStep)
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &PositionEngine{
		market:     market,
		orders:     orders,
		store:      store,
		publisher:  publisher,
		normalizer: normalizer,
		cfg:        cfg,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Open 开仓：做空永续 + 做多当季合约
func (e *PositionEngine) Open(ctx context.Context, perpSymbol, futurePrefix string, notional float64) (*model.Position, error) {
	if notional <= 0 {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidNotional, notional)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	future, err := e.market.ResolveContract(ctx, futurePrefix, model.CurrentQuarter)
	if err != nil {
		return nil, fmt.Errorf("resolve %s %s: %w", futurePrefix, model.CurrentQuarter, err)
	}

	perpPx, futPx, err := e.quotePair(ctx, perpSymbol, future)
	if err != nil {
		return nil, err
	}

	qtyPerp, err := e.normalizer.Normalize(ctx, notional, perpPx, perpSymbol)
	if err != nil {
		return nil, err
	}
	qtyFut, err := e.normalizer.Normalize(ctx, notional, futPx, future)
	if err != nil {
		return nil, err
	}

	// 先读存储，存储不可用时不下单
	positions, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	fillPerp, fillFut, err := e.submitPair(ctx,
		leg{symbol: perpSymbol, side: model.SideSell, qty: qtyPerp.Value},
		leg{symbol: future, side: model.SideBuy, qty: qtyFut.Value},
	)
	if err != nil {
		return nil, err
	}

	fundingDaily := 0.0
	if rates, ferr := e.market.RecentFundingRates(ctx, perpSymbol, e.cfg.FundingWindow); ferr != nil {
		log.Warn().Err(ferr).Str("symbol", perpSymbol).Msg("entry funding snapshot unavailable")
	} else {
		fundingDaily = model.SumRates(rates)
	}

	pos := &model.Position{
		ID:                e.newID(),
		EntryTime:         e.now().UTC(),
		PerpSymbol:        perpSymbol,
		FutureSymbol:      future,
		EntryPricePerp:    fillPerp.PriceOr(perpPx),
		EntryPriceFuture:  fillFut.PriceOr(futPx),
		NotionalUSD:       notional,
		EntryFundingDaily: fundingDaily,
		OpeningFee:        domainsvc.LegFee(notional, e.cfg.FeeRate),
		Status:            model.StatusOpen,
	}

	positions = append(positions, pos)
	if err := e.save(ctx, positions, pos); err != nil {
		return nil, err
	}

	log.Info().
		Str("id", pos.ID).
		Str("perp", perpSymbol).
		Str("future", future).
		Float64("qty_perp", qtyPerp.Value).
		Float64("qty_future", qtyFut.Value).
		Float64("entry_perp", pos.EntryPricePerp).
		Float64("entry_future", pos.EntryPriceFuture).
		Float64("notional", notional).
		Msg("position opened")

	e.publish(ctx, model.EventOpened, pos)
	return pos.Clone(), nil
}

// Roll 展期：卖出当前季度合约，买入下一季度合约
func (e *PositionEngine) Roll(ctx context.Context, id string) (*model.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	positions, idx, pos, err := e.loadOpen(ctx, id)
	if err != nil {
		return nil, err
	}

	prefix := domainsvc.ContractPrefix(pos.FutureSymbol)
	next, err := e.market.ResolveContract(ctx, prefix, model.NextQuarter)
	if err != nil {
		if errors.Is(err, model.ErrNoContractFound) {
			return nil, fmt.Errorf("%w: %s", model.ErrNoNextContractFound, prefix)
		}
		return nil, fmt.Errorf("resolve %s %s: %w", prefix, model.NextQuarter, err)
	}
	if next == "" || next == pos.FutureSymbol {
		return nil, fmt.Errorf("%w: %s", model.ErrNoNextContractFound, prefix)
	}

	oldPx, newPx, err := e.quotePair(ctx, pos.FutureSymbol, next)
	if err != nil {
		return nil, err
	}

	qtyOld, err := e.normalizer.Normalize(ctx, pos.NotionalUSD, oldPx, pos.FutureSymbol)
	if err != nil {
		return nil, err
	}
	qtyNew, err := e.normalizer.Normalize(ctx, pos.NotionalUSD, newPx, next)
	if err != nil {
		return nil, err
	}

	fillOld, fillNew, err := e.submitPair(ctx,
		leg{symbol: pos.FutureSymbol, side: model.SideSell, qty: qtyOld.Value},
		leg{symbol: next, side: model.SideBuy, qty: qtyNew.Value},
	)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	fee := domainsvc.LegFee(pos.NotionalUSD, e.cfg.FeeRate)
	exitPx := fillOld.PriceOr(oldPx)
	entryPx := fillNew.PriceOr(newPx)

	updated := pos.Clone()
	updated.PreviousFutureSymbol = pos.FutureSymbol
	updated.ExitPriceFutureBeforeRoll = exitPx
	updated.FutureSymbol = next
	updated.EntryPriceFuture = entryPx
	updated.RollTime = &now
	updated.RollFee = fee
	updated.Rolls = append(updated.Rolls, model.Roll{
		FromSymbol: pos.FutureSymbol,
		ToSymbol:   next,
		ExitPrice:  exitPx,
		EntryPrice: entryPx,
		Time:       now,
		Fee:        fee,
	})

	positions[idx] = updated
	if err := e.save(ctx, positions, updated); err != nil {
		return nil, err
	}

	log.Info().
		Str("id", updated.ID).
		Str("from", updated.PreviousFutureSymbol).
		Str("to", next).
		Float64("exit", exitPx).
		Float64("entry", entryPx).
		Float64("fee", fee).
		Msg("position rolled")

	e.publish(ctx, model.EventRolled, updated)
	return updated.Clone(), nil
}

// Close 平仓：买回永续，卖出季度合约
// 数量按入场价计算，与开仓数量一致
func (e *PositionEngine) Close(ctx context.Context, id string) (*model.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	positions, idx, pos, err := e.loadOpen(ctx, id)
	if err != nil {
		return nil, err
	}

	perpPx, futPx, err := e.quotePair(ctx, pos.PerpSymbol, pos.FutureSymbol)
	if err != nil {
		return nil, err
	}

	qtyPerp, err := e.normalizer.Normalize(ctx, pos.NotionalUSD, pos.EntryPricePerp, pos.PerpSymbol)
	if err != nil {
		return nil, err
	}
	qtyFut, err := e.normalizer.Normalize(ctx, pos.NotionalUSD, pos.EntryPriceFuture, pos.FutureSymbol)
	if err != nil {
		return nil, err
	}

	fillPerp, fillFut, err := e.submitPair(ctx,
		leg{symbol: pos.PerpSymbol, side: model.SideBuy, qty: qtyPerp.Value},
		leg{symbol: pos.FutureSymbol, side: model.SideSell, qty: qtyFut.Value},
	)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	updated := pos.Clone()
	updated.ExitPricePerp = fillPerp.PriceOr(perpPx)
	updated.ExitPriceFuture = fillFut.PriceOr(futPx)
	updated.CloseTime = &now
	updated.Status = model.StatusClosed

	positions[idx] = updated
	if err := e.save(ctx, positions, updated); err != nil {
		return nil, err
	}

	log.Info().
		Str("id", updated.ID).
		Float64("exit_perp", updated.ExitPricePerp).
		Float64("exit_future", updated.ExitPriceFuture).
		Msg("position closed")

	e.publish(ctx, model.EventClosed, updated)
	return updated.Clone(), nil
}

// Positions 当前存储中的持仓（副本）
func (e *PositionEngine) Positions(ctx context.Context, filter ReportFilter) ([]*model.Position, error) {
	positions, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Position, 0, len(positions))
	for _, p := range positions {
		if p != nil && filter.match(p) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// PositionPnL 单个持仓的盈亏
// 未平仓用实时报价，已平仓用记录的平仓价；资金费区间 [entry_time, now|close_time]
func (e *PositionEngine) PositionPnL(ctx context.Context, pos *model.Position) (model.PositionPnL, error) {
	perpPx, futPx, closed := domainsvc.ExitPrices(pos)
	if !closed {
		var err error
		perpPx, futPx, err = e.quotePair(ctx, pos.PerpSymbol, pos.FutureSymbol)
		if err != nil {
			return model.PositionPnL{Position: pos}, err
		}
	}

	end := pos.FundingWindowEnd(e.now().UTC())
	rates, err := e.market.FundingRates(ctx, pos.PerpSymbol, pos.EntryTime, end, e.cfg.FundingPageLimit)
	if err != nil {
		return model.PositionPnL{Position: pos}, fmt.Errorf("funding %s: %w", pos.PerpSymbol, err)
	}

	return model.PositionPnL{
		Position:    pos,
		PerpPrice:   perpPx,
		FuturePrice: futPx,
		PnL:         domainsvc.ComputePnL(pos, perpPx, futPx, model.Rates(rates)),
		OK:          true,
	}, nil
}

// Report 批量盈亏报表，单个持仓失败不影响整体
func (e *PositionEngine) Report(ctx context.Context, filter ReportFilter) (*model.Report, error) {
	positions, err := e.Positions(ctx, filter)
	if err != nil {
		return nil, err
	}

	entries := make([]model.PositionPnL, len(positions))
	var g errgroup.Group
	g.SetLimit(e.cfg.ReportConcurrency)
	for i, pos := range positions {
		i, pos := i, pos
		g.Go(func() error {
			row, err := e.PositionPnL(ctx, pos)
			if err != nil {
				log.Warn().Err(err).Str("id", pos.ID).Str("symbol", pos.PerpSymbol).Msg("pnl unavailable")
				row = model.PositionPnL{
					Position: pos,
					Warning:  fmt.Sprintf("%s %s: %v", pos.ID, pos.PerpSymbol, err),
				}
			}
			entries[i] = row
			return nil
		})
	}
	_ = g.Wait()

	rep := &model.Report{
		GeneratedAt: e.now().UTC(),
		Entries:     entries,
		ByStatus:    make(map[model.PositionStatus]model.Totals),
	}
	for _, row := range entries {
		t := rep.ByStatus[row.Position.Status]
		t.Add(row)
		rep.ByStatus[row.Position.Status] = t
		rep.Total.Add(row)
		if !row.OK {
			rep.Warnings = append(rep.Warnings, row.Warning)
		}
	}
	return rep, nil
}

type leg struct {
	symbol string
	side   model.Side
	qty    float64
}

// submitPair 顺序提交两腿；第二腿失败时第一腿已成交，需要人工对账
func (e *PositionEngine) submitPair(ctx context.Context, first, second leg) (model.Fill, model.Fill, error) {
	f1, err := e.orders.SubmitMarketOrder(ctx, first.symbol, first.side, first.qty)
	if err != nil {
		return model.Fill{}, model.Fill{}, fmt.Errorf("%s %s %v: %w", first.side, first.symbol, first.qty, err)
	}

	f2, err := e.orders.SubmitMarketOrder(ctx, second.symbol, second.side, second.qty)
	if err != nil {
		log.Error().
			Err(err).
			Str("filled_symbol", first.symbol).
			Str("filled_side", string(first.side)).
			Float64("filled_qty", f1.Quantity).
			Str("filled_order_id", f1.OrderID).
			Str("client_order_id", f1.ClientOrderID).
			Str("failed_symbol", second.symbol).
			Str("failed_side", string(second.side)).
			Msg("second leg failed, manual reconciliation required")
		return f1, model.Fill{}, fmt.Errorf("%w: %s %s filled, %s %s failed: %w",
			model.ErrPartialExecution, first.side, first.symbol, second.side, second.symbol, err)
	}
	return f1, f2, nil
}

func (e *PositionEngine) quotePair(ctx context.Context, a, b string) (float64, float64, error) {
	pa, err := e.market.Price(ctx, a)
	if err != nil {
		return 0, 0, fmt.Errorf("quote %s: %w", a, err)
	}
	pb, err := e.market.Price(ctx, b)
	if err != nil {
		return 0, 0, fmt.Errorf("quote %s: %w", b, err)
	}
	return pa, pb, nil
}

func (e *PositionEngine) load(ctx context.Context) ([]*model.Position, error) {
	positions, err := e.store.Load(ctx)
	if err != nil {
		if errors.Is(err, model.ErrPersistenceFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load: %w", model.ErrPersistenceFailure, err)
	}
	return positions, nil
}

func (e *PositionEngine) loadOpen(ctx context.Context, id string) ([]*model.Position, int, *model.Position, error) {
	positions, err := e.load(ctx)
	if err != nil {
		return nil, -1, nil, err
	}
	idx, pos := model.FindPosition(positions, id)
	if pos == nil {
		return nil, -1, nil, fmt.Errorf("%w: %s", model.ErrPositionNotFound, id)
	}
	if !pos.IsOpen() {
		return nil, -1, nil, fmt.Errorf("%w: %s is %s", model.ErrInvalidStateTransition, id, pos.Status)
	}
	return positions, idx, pos, nil
}

// save 订单已成交，持久化失败时必须提示人工补录
func (e *PositionEngine) save(ctx context.Context, positions []*model.Position, changed *model.Position) error {
	if err := e.store.Save(ctx, positions); err != nil {
		log.Error().
			Err(err).
			Str("id", changed.ID).
			Str("perp", changed.PerpSymbol).
			Str("future", changed.FutureSymbol).
			Str("status", string(changed.Status)).
			Msg("orders filled but position not persisted, manual reconciliation required")
		if errors.Is(err, model.ErrPersistenceFailure) {
			return err
		}
		return fmt.Errorf("%w: save: %w", model.ErrPersistenceFailure, err)
	}
	return nil
}

func (e *PositionEngine) publish(ctx context.Context, typ model.EventType, pos *model.Position) {
	ev := model.PositionEvent{
		Type:       typ,
		PositionID: pos.ID,
		Symbol:     pos.PerpSymbol,
		Payload:    mustJSON(pos),
		Timestamp:  e.now().UnixMilli(),
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("id", pos.ID).Str("type", string(typ)).Msg("publish event failed")
	}
}
