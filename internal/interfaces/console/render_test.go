package console

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xcarry/internal/application/service"
	"xcarry/internal/domain/model"
)

func TestSinkWritesLiveAndSnapshot(t *testing.T) {
	var buf bytes.Buffer
	s := NewSinkTo(&buf)

	require.NoError(t, s.WriteLive("\rline"))
	require.NoError(t, s.WriteSnapshot(time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC), "BTC ENTER"))
	require.NoError(t, s.NewLine())

	assert.Equal(t, "\rline\n2025-07-01 08:00:00 BTC ENTER\n\n\n", buf.String())
}

func TestRenderSignals(t *testing.T) {
	var buf bytes.Buffer
	results := []service.SignalResult{
		{
			Pair: service.Pair{Coin: "BTC", PerpSymbol: "BTCUSDT"},
			Signal: model.EntrySignal{
				PerpSymbol: "BTCUSDT", FutureSymbol: "BTCUSDT_251226",
				PerpPrice: 100, FuturePrice: 102, DaysToExpiry: 90,
				BasisDaily: 0.0001, FundingDaily: 0.0004, Ratio: 4, Triggered: true,
			},
		},
		{Pair: service.Pair{Coin: "ETH", PerpSymbol: "ETHUSDT"}, Err: errors.New("no contract")},
	}
	require.NoError(t, RenderSignals(&buf, results))

	out := buf.String()
	assert.Contains(t, out, "BTCUSDT_251226")
	assert.Contains(t, out, "ENTER")
	assert.Contains(t, out, "error: no contract")
}

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	open := &model.Position{ID: "abcd-1234", PerpSymbol: "BTCUSDT", FutureSymbol: "BTCUSDT_251226", NotionalUSD: 12500, Status: model.StatusOpen}
	bad := &model.Position{ID: "ffff-0000", PerpSymbol: "ETHUSDT", FutureSymbol: "ETHUSDT_251226", NotionalUSD: 500, Status: model.StatusOpen}

	rep := &model.Report{
		Entries: []model.PositionPnL{
			{Position: open, OK: true, PnL: model.PnL{FundingPnL: 10, BasisPnL: -2, Fee: 5, TotalPnL: 3, APR: 0.1}},
			{Position: bad, Warning: "ETHUSDT: gateway unavailable"},
		},
		ByStatus: map[model.PositionStatus]model.Totals{
			model.StatusOpen: {Count: 2, NotionalUSD: 13000, TotalPnL: 3},
		},
		Total:    model.Totals{Count: 2, NotionalUSD: 13000, TotalPnL: 3},
		Warnings: []string{"ETHUSDT: gateway unavailable"},
	}
	bal := &model.AccountBalance{TotalWalletBalance: 20000.5, AvailableBalance: 7000}
	require.NoError(t, RenderReport(&buf, rep, bal))

	out := buf.String()
	assert.Contains(t, out, "abcd")
	assert.Contains(t, out, "12,500")
	assert.Contains(t, out, "10.00%")
	assert.Contains(t, out, "warning: ETHUSDT: gateway unavailable")
	assert.Contains(t, out, "balance: total 20,000.5 USDT")
}

func TestRenderBalanceChange(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, RenderBalance(&buf, []model.BalanceRecord{
		{Timestamp: ts, Total: 1000},
		{Timestamp: ts.Add(time.Hour), Total: 1012.5},
	}))
	assert.Contains(t, buf.String(), "+12.50")

	buf.Reset()
	require.NoError(t, RenderBalance(&buf, nil))
	assert.Equal(t, "no balance history\n", buf.String())
}

func TestRenderHistoryAndPosition(t *testing.T) {
	var buf bytes.Buffer
	ct := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	p := &model.Position{
		ID: "id-1", PerpSymbol: "BTCUSDT", FutureSymbol: "BTCUSDT_251226", NotionalUSD: 1000,
		Status: model.StatusClosed, CloseTime: &ct, ExitPricePerp: 110, ExitPriceFuture: 111,
		Rolls: []model.Roll{{FromSymbol: "BTCUSDT_250926", ToSymbol: "BTCUSDT_251226", ExitPrice: 105, EntryPrice: 102, Time: ct}},
	}
	require.NoError(t, RenderHistory(&buf, []*model.Position{p}))
	assert.Contains(t, buf.String(), "closed")

	buf.Reset()
	require.NoError(t, RenderPosition(&buf, p))
	assert.Contains(t, buf.String(), "BTCUSDT_250926 @ 105.0000 -> BTCUSDT_251226 @ 102.0000")
}
