// Package report prints backtest reports to a terminal.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/rxtech-lab/argo-dca/internal/backtest"
)

const (
	DefaultTradeLimit  = 20
	DefaultChartWidth  = 60
	DefaultChartHeight = 12
)

// Presenter renders a backtest report as tables and an equity chart.
type Presenter struct {
	out         io.Writer
	tradeLimit  int
	chartWidth  int
	chartHeight int
}

type Option func(*Presenter)

// WithTradeLimit caps the trade log to the last n trades.
func WithTradeLimit(n int) Option {
	return func(p *Presenter) {
		p.tradeLimit = n
	}
}

// WithChartSize sets the equity chart dimensions in characters.
func WithChartSize(width, height int) Option {
	return func(p *Presenter) {
		p.chartWidth = width
		p.chartHeight = height
	}
}

func NewPresenter(out io.Writer, opts ...Option) *Presenter {
	p := &Presenter{
		out:         out,
		tradeLimit:  DefaultTradeLimit,
		chartWidth:  DefaultChartWidth,
		chartHeight: DefaultChartHeight,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Render prints the summary, trade log and equity chart of r.
func (p *Presenter) Render(r *backtest.Report) error {
	if r == nil {
		return nil
	}

	fmt.Fprintf(p.out, "\n%s\n", TitleStyle.Render(fmt.Sprintf("Backtest %s %s", r.Strategy, r.Symbol)))
	fmt.Fprintf(p.out, "%s\n\n", MutedStyle.Render(fmt.Sprintf("%s to %s (%d bars)",
		r.StartTime.Format("2006-01-02 15:04"), r.EndTime.Format("2006-01-02 15:04"), r.Bars)))

	if err := p.renderSummary(r); err != nil {
		return err
	}

	if len(r.Trades) > 0 {
		fmt.Fprintf(p.out, "\n%s\n", TitleStyle.Render("Trades"))

		if err := p.renderTrades(r); err != nil {
			return err
		}
	}

	if len(r.EquityCurve) > 1 {
		fmt.Fprintf(p.out, "\n%s\n", TitleStyle.Render("Equity"))
		fmt.Fprintln(p.out, EquityChart(r.EquityCurve, p.chartWidth, p.chartHeight))
	}

	if r.Error != "" {
		fmt.Fprintf(p.out, "\n%s %s\n", ErrorStyle.Render("Stopped early:"), r.Error)
	}

	return nil
}

func (p *Presenter) renderSummary(r *backtest.Report) error {
	tbl := tablewriter.NewWriter(p.out)
	tbl.Header("Metric", "Value")

	rows := [][]string{
		{"Initial cash", fmt.Sprintf("%.2f", r.InitialCash)},
		{"Final equity", fmt.Sprintf("%.2f", r.FinalEquity)},
		{"Total return", FormatPnL(r.TotalReturn)},
		{"Total return %", FormatPct(r.TotalReturnPct)},
		{"Buy and hold", FormatPnL(r.BuyAndHoldPnl)},
		{"Max drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdownPct)},
		{"Win rate", fmt.Sprintf("%.1f%%", r.WinRate*100)},
		{"Avg win", fmt.Sprintf("%.2f", r.AvgWin)},
		{"Avg loss", fmt.Sprintf("%.2f", r.AvgLoss)},
		{"Buys", fmt.Sprintf("%d", r.BuyCount)},
		{"Sells", fmt.Sprintf("%d", r.SellCount)},
		{"Skipped entries", fmt.Sprintf("%d", r.SkippedEntries)},
		{"Open purchases", fmt.Sprintf("%d", len(r.OpenPurchases))},
		{"Total fees", fmt.Sprintf("%.2f", r.TotalFees)},
		{"Cost-basis reduction", fmt.Sprintf("%.2f", r.TotalReduction)},
	}

	for _, row := range rows {
		if err := tbl.Append(row[0], row[1]); err != nil {
			return err
		}
	}

	return tbl.Render()
}

func (p *Presenter) renderTrades(r *backtest.Report) error {
	trades := r.Trades
	if p.tradeLimit > 0 && len(trades) > p.tradeLimit {
		fmt.Fprintf(p.out, "%s\n", MutedStyle.Render(fmt.Sprintf("last %d of %d", p.tradeLimit, len(trades))))
		trades = trades[len(trades)-p.tradeLimit:]
	}

	tbl := tablewriter.NewWriter(p.out)
	tbl.Header("Opened", "Closed", "Entry", "Exit", "Qty", "Basis", "P/L", "P/L %")

	for _, t := range trades {
		err := tbl.Append(
			t.Trade.Purchase.EntryTime.Format("01-02 15:04"),
			t.Trade.SaleTime.Format("01-02 15:04"),
			fmt.Sprintf("%.4f", t.Trade.Purchase.EntryPrice),
			fmt.Sprintf("%.4f", t.Trade.SalePrice),
			fmt.Sprintf("%.6f", t.Trade.Purchase.Quantity),
			fmt.Sprintf("%.2f", t.Trade.CostBasis),
			FormatPnL(t.Trade.RealizedProfit),
			FormatPct(t.Trade.RealizedProfitPct*100),
		)
		if err != nil {
			return err
		}
	}

	return tbl.Render()
}

// EquityChart draws the equity curve as an ASCII chart of width columns and
// height rows. Each column shows the last sample of its bucket.
func EquityChart(curve []backtest.EquityPoint, width, height int) string {
	if len(curve) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	columns := min(width, len(curve))
	values := make([]float64, columns)

	for c := range columns {
		idx := (c+1)*len(curve)/columns - 1
		values[c] = curve[idx].Equity
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	grid := make([][]byte, height)
	for row := range grid {
		grid[row] = []byte(strings.Repeat(" ", columns))
	}

	for c, v := range values {
		row := height - 1
		if hi > lo {
			row = height - 1 - int(math.Round((v-lo)/(hi-lo)*float64(height-1)))
		}

		grid[row][c] = '*'
	}

	labelWidth := max(len(fmt.Sprintf("%.2f", hi)), len(fmt.Sprintf("%.2f", lo)))
	var sb strings.Builder

	for row, line := range grid {
		label := strings.Repeat(" ", labelWidth)

		switch row {
		case 0:
			label = fmt.Sprintf("%*.2f", labelWidth, hi)
		case height - 1:
			label = fmt.Sprintf("%*.2f", labelWidth, lo)
		}

		sb.WriteString(label)
		sb.WriteString(" |")
		sb.Write(line)

		if row < height-1 {
			sb.WriteByte('\n')
		}
	}

	return sb.String()
}
