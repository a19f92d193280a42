package watch

import (
	"fmt"
	"strings"

	"xcarry/internal/domain/model"
	dsvc "xcarry/internal/domain/service"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

func dirColor(d Dir) string {
	switch d {
	case DirUp:
		return ansiGreen
	case DirDown:
		return ansiRed
	default:
		return ansiYellow
	}
}

// Formatter 渲染实时行与评估结果行
type Formatter struct {
	BasisThreshold float64
}

func NewFormatter(threshold float64) *Formatter {
	return &Formatter{BasisThreshold: threshold}
}

// pairView 一组合约当前的显示数据
type pairView struct {
	Coin   string
	Perp   string
	Future string
}

// RenderLive 覆盖当前行：永续价 / 季度价 / 基差
func (f *Formatter) RenderLive(st *State, pairs []pairView) string {
	var sb strings.Builder
	sb.WriteString("\r")
	sb.WriteString(colorize("[XCARRY] ", ansiDim))

	for i, p := range pairs {
		if i > 0 {
			sb.WriteString(colorize("  ||  ", ansiDim))
		}
		pp, pd, pok := st.Price(p.Perp)
		fp, fd, fok := st.Price(p.Future)

		perp, fut := "--", "--"
		if pok {
			perp = fmt.Sprintf("%.2f", pp)
		}
		if fok {
			fut = fmt.Sprintf("%.2f", fp)
		}

		basis := "basis=--"
		bCol := ansiYellow
		if pok && fok {
			b := dsvc.BasisPct(pp, fp)
			basis = fmt.Sprintf("basis=%+.3f%%", b*100)
			switch dsvc.SignColor(b, f.BasisThreshold) {
			case +1:
				bCol = ansiGreen
			case -1:
				bCol = ansiRed
			}
		}

		sb.WriteString(p.Coin)
		sb.WriteString(" ")
		sb.WriteString(colorize("P:"+perp, dirColor(pd)))
		sb.WriteString(" ")
		sb.WriteString(colorize("F:"+fut, dirColor(fd)))
		sb.WriteString(" ")
		sb.WriteString(colorize(basis, bCol))
	}

	sb.WriteString(ansiClearEOL)
	return sb.String()
}

// RenderSignal 一行评估结果
func (f *Formatter) RenderSignal(coin string, sig model.EntrySignal, err error) string {
	if err != nil {
		return fmt.Sprintf("%-5s %s", coin, colorize("error: "+err.Error(), ansiRed))
	}

	days := fmt.Sprintf("%dd", sig.DaysToExpiry)
	if sig.ExpiryEstimated {
		days += "~"
	}
	verdict := colorize("WAIT", ansiYellow)
	if sig.Triggered {
		verdict = colorize("ENTER", ansiGreen)
	}
	return fmt.Sprintf("%-5s %s %.2f / %s %.2f (%s)  basis/d=%.5f%%  funding/d=%.5f%%  ratio=%.2f  %s",
		coin,
		sig.PerpSymbol, sig.PerpPrice,
		sig.FutureSymbol, sig.FuturePrice,
		days,
		sig.BasisDaily*100,
		sig.FundingDaily*100,
		sig.Ratio,
		verdict,
	)
}
