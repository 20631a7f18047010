package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-dca/internal/types"
)

// EquityPoint is one equity-curve sample, taken at the close of a bar.
type EquityPoint struct {
	Index         int       `json:"index" yaml:"index"`
	Time          time.Time `json:"time" yaml:"time"`
	Price         float64   `json:"price" yaml:"price"`
	Cash          float64   `json:"cash" yaml:"cash"`
	PositionValue float64   `json:"position_value" yaml:"position_value"`
	Equity        float64   `json:"equity" yaml:"equity"`
}

// TradeRecord is a closed trade with the bars that opened and closed it.
type TradeRecord struct {
	Trade      types.ClosedTrade `json:"trade" yaml:"trade"`
	OpenIndex  int               `json:"open_index" yaml:"open_index"`
	CloseIndex int               `json:"close_index" yaml:"close_index"`
}

// Report is the result of a backtest run. Percentages are in percent,
// WinRate is a fraction.
type Report struct {
	ID        string    `json:"id" yaml:"id"`
	Symbol    string    `json:"symbol" yaml:"symbol"`
	Strategy  string    `json:"strategy" yaml:"strategy"`
	StartTime time.Time `json:"start_time" yaml:"start_time"`
	EndTime   time.Time `json:"end_time" yaml:"end_time"`
	// Bars is the number of bars processed, equal to len(EquityCurve).
	Bars           int     `json:"bars" yaml:"bars"`
	LastPrice      float64 `json:"last_price" yaml:"last_price"`
	InitialCash    float64 `json:"initial_cash" yaml:"initial_cash"`
	FinalEquity    float64 `json:"final_equity" yaml:"final_equity"`
	TotalReturn    float64 `json:"total_return" yaml:"total_return"`
	TotalReturnPct float64 `json:"total_return_pct" yaml:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	WinRate        float64 `json:"win_rate" yaml:"win_rate"`
	// AvgWin and AvgLoss are magnitudes of realized profit.
	AvgWin         float64 `json:"avg_win" yaml:"avg_win"`
	AvgLoss        float64 `json:"avg_loss" yaml:"avg_loss"`
	BuyCount       int     `json:"buy_count" yaml:"buy_count"`
	SellCount      int     `json:"sell_count" yaml:"sell_count"`
	SkippedEntries int     `json:"skipped_entries" yaml:"skipped_entries"`
	TotalFees      float64 `json:"total_fees" yaml:"total_fees"`
	TotalReduction float64 `json:"total_reduction" yaml:"total_reduction"`
	RealizedProfit float64 `json:"realized_profit" yaml:"realized_profit"`
	// BuyAndHoldPnl is what spending the initial cash on the first bar would have made.
	BuyAndHoldPnl float64                `json:"buy_and_hold_pnl" yaml:"buy_and_hold_pnl"`
	OpenPurchases []types.Purchase       `json:"open_purchases" yaml:"open_purchases"`
	EquityCurve   []EquityPoint          `json:"equity_curve" yaml:"equity_curve"`
	Trades        []TradeRecord          `json:"trades" yaml:"trades"`
	Events        []types.DecisionEvent  `json:"events" yaml:"events"`
	Reductions    []types.ReductionEvent `json:"reductions" yaml:"reductions"`
	// Error is set when the run stopped early.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// summarize fills the derived fields from the curve and trades.
func (r *Report) summarize() {
	initial := decimal.NewFromFloat(r.InitialCash)
	ret := decimal.NewFromFloat(r.FinalEquity).Sub(initial)
	r.TotalReturn = ret.InexactFloat64()

	if initial.IsPositive() {
		r.TotalReturnPct = ret.Div(initial).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}

	r.MaxDrawdownPct = MaxDrawdownPct(r.EquityCurve)

	wins, losses := 0, 0
	winSum, lossSum := decimal.Zero, decimal.Zero

	for _, t := range r.Trades {
		profit := decimal.NewFromFloat(t.Trade.RealizedProfit)

		switch {
		case profit.IsPositive():
			wins++
			winSum = winSum.Add(profit)
		case profit.IsNegative():
			losses++
			lossSum = lossSum.Add(profit.Abs())
		}
	}

	if len(r.Trades) > 0 {
		r.WinRate = float64(wins) / float64(len(r.Trades))
	}

	if wins > 0 {
		r.AvgWin = winSum.Div(decimal.NewFromInt(int64(wins))).InexactFloat64()
	}

	if losses > 0 {
		r.AvgLoss = lossSum.Div(decimal.NewFromInt(int64(losses))).InexactFloat64()
	}
}

// MaxDrawdownPct is the largest peak-to-trough decline of the curve in percent.
func MaxDrawdownPct(curve []EquityPoint) float64 {
	peak := decimal.Zero
	worst := decimal.Zero
	hundred := decimal.NewFromInt(100)

	for _, point := range curve {
		equity := decimal.NewFromFloat(point.Equity)
		if equity.GreaterThan(peak) {
			peak = equity
		}

		if !peak.IsPositive() {
			continue
		}

		drawdown := peak.Sub(equity).Div(peak).Mul(hundred)
		if drawdown.GreaterThan(worst) {
			worst = drawdown
		}
	}

	return worst.InexactFloat64()
}

// UnrealizedPnL marks the open purchases at the last price against their cost basis.
func (r *Report) UnrealizedPnL() float64 {
	total := decimal.Zero

	for _, p := range r.OpenPurchases {
		value := decimal.NewFromFloat(p.MarketValue(r.LastPrice))
		total = total.Add(value.Sub(decimal.NewFromFloat(p.CostBasis())))
	}

	return total.InexactFloat64()
}

// Stats converts the report into the serializable run summary.
func (r *Report) Stats() types.BacktestStats {
	wins, losses := 0, 0
	maxProfit, maxLoss := 0.0, 0.0
	holding := types.TradeHoldingTime{}
	holdingSum := int64(0)

	for i, t := range r.Trades {
		profit := t.Trade.RealizedProfit

		switch {
		case profit > 0:
			wins++
		case profit < 0:
			losses++
		}

		seconds := int(t.Trade.HoldingTime() / time.Second)
		holdingSum += int64(seconds)

		if i == 0 {
			maxProfit, maxLoss = profit, profit
			holding.Min, holding.Max = seconds, seconds

			continue
		}

		maxProfit = max(maxProfit, profit)
		maxLoss = min(maxLoss, profit)
		holding.Min = min(holding.Min, seconds)
		holding.Max = max(holding.Max, seconds)
	}

	if len(r.Trades) > 0 {
		holding.Avg = int(holdingSum / int64(len(r.Trades)))
	}

	unrealized := r.UnrealizedPnL()

	return types.BacktestStats{
		ID:             r.ID,
		Timestamp:      r.EndTime,
		Symbol:         r.Symbol,
		Strategy:       r.Strategy,
		InitialCash:    r.InitialCash,
		FinalEquity:    r.FinalEquity,
		TotalReturn:    r.TotalReturn,
		TotalReturnPct: r.TotalReturnPct,
		TradeResult: types.TradeResult{
			NumberOfBuys:           r.BuyCount,
			NumberOfSells:          r.SellCount,
			NumberOfWinningTrades:  wins,
			NumberOfLosingTrades:   losses,
			NumberOfSkippedEntries: r.SkippedEntries,
			WinRate:                r.WinRate,
			MaxDrawdownPct:         r.MaxDrawdownPct,
		},
		TotalFees:        r.TotalFees,
		TotalReduction:   r.TotalReduction,
		TradeHoldingTime: holding,
		TradePnl: types.TradePnl{
			RealizedPnL:   r.RealizedProfit,
			UnrealizedPnL: unrealized,
			TotalPnL:      decimal.NewFromFloat(r.RealizedProfit).Add(decimal.NewFromFloat(unrealized)).InexactFloat64(),
			AverageWin:    r.AvgWin,
			AverageLoss:   r.AvgLoss,
			MaximumLoss:   maxLoss,
			MaximumProfit: maxProfit,
		},
		BuyAndHoldPnl: r.BuyAndHoldPnl,
		Error:         r.Error,
	}
}
