package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"xcarry/internal/domain/model"
)

var errBoom = errors.New("boom")

type fakeMarket struct {
	mu        sync.Mutex
	prices    map[string]float64
	priceErr  map[string]error
	contracts map[model.ContractClass]string
	funding   []model.FundingRate
	step      float64

	fundingCalls []fundingCall
}

type fundingCall struct {
	symbol     string
	start, end time.Time
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		prices: map[string]float64{
			"BTCUSDT":        100,
			"BTCUSDT_250926": 101,
			"BTCUSDT_251226": 102,
		},
		priceErr: map[string]error{},
		contracts: map[model.ContractClass]string{
			model.CurrentQuarter: "BTCUSDT_250926",
			model.NextQuarter:    "BTCUSDT_251226",
		},
		step: 0.001,
	}
}

func (m *fakeMarket) setPrice(symbol string, px float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = px
}

func (m *fakeMarket) Price(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.priceErr[symbol]; err != nil {
		return 0, err
	}
	px, ok := m.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: no price for %s", model.ErrGatewayUnavailable, symbol)
	}
	return px, nil
}

func (m *fakeMarket) FundingRates(ctx context.Context, symbol string, start, end time.Time, limit int) ([]model.FundingRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fundingCalls = append(m.fundingCalls, fundingCall{symbol: symbol, start: start, end: end})
	return append([]model.FundingRate(nil), m.funding...), nil
}

func (m *fakeMarket) RecentFundingRates(ctx context.Context, symbol string, n int) ([]model.FundingRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.funding) <= n {
		return append([]model.FundingRate(nil), m.funding...), nil
	}
	return append([]model.FundingRate(nil), m.funding[len(m.funding)-n:]...), nil
}

func (m *fakeMarket) ResolveContract(ctx context.Context, prefix string, class model.ContractClass) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.contracts[class]
	if !ok {
		return "", fmt.Errorf("%w: %s %s", model.ErrNoContractFound, prefix, class)
	}
	return s, nil
}

func (m *fakeMarket) LotStep(ctx context.Context, symbol string) (float64, error) {
	return m.step, nil
}

type submitted struct {
	symbol string
	side   model.Side
	qty    float64
}

type fakeOrders struct {
	mu     sync.Mutex
	orders []submitted
	failAt int // 第 N 次（从 1 开始）失败，0 不失败
	fills  map[string]float64
}

func (o *fakeOrders) SubmitMarketOrder(ctx context.Context, symbol string, side model.Side, qty float64) (model.Fill, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failAt > 0 && len(o.orders)+1 == o.failAt {
		o.failAt = 0
		return model.Fill{}, errBoom
	}
	o.orders = append(o.orders, submitted{symbol: symbol, side: side, qty: qty})
	return model.Fill{
		OrderID:  fmt.Sprintf("%d", len(o.orders)),
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		AvgPrice: o.fills[symbol],
		Status:   "FILLED",
	}, nil
}

func (o *fakeOrders) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.orders)
}

type memStore struct {
	mu        sync.Mutex
	saves     int
	failSave  bool
	positions []*model.Position
}

func (s *memStore) Load(ctx context.Context) ([]*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (s *memStore) Save(ctx context.Context, positions []*model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errBoom
	}
	s.saves++
	s.positions = s.positions[:0:0]
	for _, p := range positions {
		s.positions = append(s.positions, p.Clone())
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.PositionEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev model.PositionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeAccount struct {
	total float64
	err   error
}

func (a *fakeAccount) Balance(ctx context.Context) (model.AccountBalance, error) {
	if a.err != nil {
		return model.AccountBalance{}, a.err
	}
	return model.AccountBalance{TotalWalletBalance: a.total, AvailableBalance: a.total / 2}, nil
}

type memBalances struct {
	mu      sync.Mutex
	records []model.BalanceRecord
}

func (b *memBalances) Load(ctx context.Context) ([]model.BalanceRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.BalanceRecord(nil), b.records...), nil
}

func (b *memBalances) Append(ctx context.Context, rec model.BalanceRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, rec)
	return nil
}
