package console

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"xcarry/internal/application/service"
	"xcarry/internal/domain/model"
)

const timeLayout = "2006-01-02 15:04"

func usd(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func pct(v float64) string {
	return fmt.Sprintf("%.4f%%", v*100)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// RenderSignals signal 命令输出
func RenderSignals(w io.Writer, results []service.SignalResult) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "COIN\tPERP\tFUTURE\tPERP PX\tFUT PX\tDAYS\tBASIS/D\tFUNDING/D\tRATIO\tSIGNAL")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-\t-\t-\terror: %v\n", r.Pair.Coin, r.Pair.PerpSymbol, r.Err)
			continue
		}
		s := r.Signal
		days := fmt.Sprintf("%d", s.DaysToExpiry)
		if s.ExpiryEstimated {
			days += "~"
		}
		verdict := "WAIT"
		if s.Triggered {
			verdict = "ENTER"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%s\t%s\t%s\t%.2f\t%s\n",
			r.Pair.Coin, s.PerpSymbol, s.FutureSymbol, s.PerpPrice, s.FuturePrice,
			days, pct(s.BasisDaily), pct(s.FundingDaily), s.Ratio, verdict)
	}
	return tw.Flush()
}

// RenderPosition 单个持仓（open / roll / close 结果）
func RenderPosition(w io.Writer, p *model.Position) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "id\t%s\n", p.ID)
	fmt.Fprintf(tw, "status\t%s\n", p.Status)
	fmt.Fprintf(tw, "entry\t%s\n", p.EntryTime.Local().Format(timeLayout))
	fmt.Fprintf(tw, "perp (short)\t%s @ %.4f\n", p.PerpSymbol, p.EntryPricePerp)
	fmt.Fprintf(tw, "future (long)\t%s @ %.4f\n", p.FutureSymbol, p.EntryPriceFuture)
	fmt.Fprintf(tw, "notional\t%s USD\n", usd(p.NotionalUSD))
	fmt.Fprintf(tw, "opening fee\t%s\n", usd(p.OpeningFee))
	if p.EntryFundingDaily != 0 {
		fmt.Fprintf(tw, "funding/d at entry\t%s\n", pct(p.EntryFundingDaily))
	}
	for _, r := range p.Rolls {
		fmt.Fprintf(tw, "roll\t%s %s @ %.4f -> %s @ %.4f fee %s\n",
			r.Time.Local().Format(timeLayout), r.FromSymbol, r.ExitPrice, r.ToSymbol, r.EntryPrice, usd(r.Fee))
	}
	if p.CloseTime != nil {
		fmt.Fprintf(tw, "closed\t%s perp %.4f future %.4f\n",
			p.CloseTime.Local().Format(timeLayout), p.ExitPricePerp, p.ExitPriceFuture)
	}
	return tw.Flush()
}

// RenderReport 每个持仓一行 + 按状态汇总
func RenderReport(w io.Writer, rep *model.Report, bal *model.AccountBalance) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTATUS\tPERP\tFUTURE\tNOTIONAL\tFUNDING\tBASIS\tFEES\tTOTAL\tAPR")
	for _, e := range rep.Entries {
		p := e.Position
		if !e.OK {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t-\t-\t-\t-\t%s\n",
				shortID(p.ID), p.Status, p.PerpSymbol, p.FutureSymbol, usd(p.NotionalUSD), e.Warning)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f%%\n",
			shortID(p.ID), p.Status, p.PerpSymbol, p.FutureSymbol, usd(p.NotionalUSD),
			usd(e.PnL.FundingPnL), usd(e.PnL.BasisPnL), usd(e.PnL.Fee), usd(e.PnL.TotalPnL), e.PnL.APR*100)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintln(tw, "STATUS\tCOUNT\tNOTIONAL\tFUNDING\tBASIS\tFEES\tTOTAL")
	for _, st := range []model.PositionStatus{model.StatusOpen, model.StatusClosed} {
		t, ok := rep.ByStatus[st]
		if !ok {
			continue
		}
		writeTotals(tw, string(st), t)
	}
	writeTotals(tw, "all", rep.Total)
	if err := tw.Flush(); err != nil {
		return err
	}

	if bal != nil {
		fmt.Fprintf(w, "\nbalance: total %s USDT, available %s USDT\n",
			usd(bal.TotalWalletBalance), usd(bal.AvailableBalance))
	}
	for _, warn := range rep.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}

func writeTotals(w io.Writer, label string, t model.Totals) {
	fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
		label, t.Count, usd(t.NotionalUSD), usd(t.FundingPnL), usd(t.BasisPnL), usd(t.Fee), usd(t.TotalPnL))
}

// RenderHistory 全部持仓（含已平仓）
func RenderHistory(w io.Writer, positions []*model.Position) error {
	if len(positions) == 0 {
		_, err := fmt.Fprintln(w, "no positions")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTATUS\tENTRY\tPERP\tFUTURE\tNOTIONAL\tROLLS\tCLOSED")
	for _, p := range positions {
		closed := "-"
		if p.CloseTime != nil {
			closed = p.CloseTime.Local().Format(timeLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Status, p.EntryTime.Local().Format(timeLayout), p.PerpSymbol, p.FutureSymbol,
			usd(p.NotionalUSD), len(p.Rolls), closed)
	}
	return tw.Flush()
}

// RenderBalance 余额历史，附带与上一条的变化
func RenderBalance(w io.Writer, records []model.BalanceRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no balance history")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "TIME\tTOTAL\tCHANGE")
	for i, r := range records {
		change := "-"
		if i > 0 {
			change = fmt.Sprintf("%+.2f", r.Total-records[i-1].Total)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Timestamp.Local().Format(timeLayout), usd(r.Total), change)
	}
	return tw.Flush()
}

// RenderEvents 最近事件
func RenderEvents(w io.Writer, events []model.PositionEvent) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "TIME\tTYPE\tPOSITION\tSYMBOL")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			time.UnixMilli(ev.Timestamp).Local().Format(timeLayout), ev.Type, shortID(ev.PositionID), ev.Symbol)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if id == "" {
		return "-"
	}
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
