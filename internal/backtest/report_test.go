package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-dca/internal/types"
)

type ReportTestSuite struct {
	suite.Suite
}

func TestReportSuite(t *testing.T) {
	suite.Run(t, new(ReportTestSuite))
}

func curve(equities ...float64) []EquityPoint {
	points := make([]EquityPoint, len(equities))
	for i, e := range equities {
		points[i] = EquityPoint{Index: i, Equity: e}
	}

	return points
}

func (suite *ReportTestSuite) TestMaxDrawdownPct() {
	tests := []struct {
		name     string
		equities []float64
		expected float64
	}{
		{"empty curve", nil, 0},
		{"only rising", []float64{100, 110, 120}, 0},
		{"largest of two drawdowns", []float64{100, 120, 90, 130, 117}, 25},
		{"drawdown to the end", []float64{200, 150, 100}, 50},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.InDelta(tc.expected, MaxDrawdownPct(curve(tc.equities...)), 1e-9)
		})
	}
}

func (suite *ReportTestSuite) TestSummarizeAndStats() {
	entry := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	trade := func(profit float64, held time.Duration) TradeRecord {
		return TradeRecord{
			Trade: types.ClosedTrade{
				Purchase:       types.Purchase{ID: "p", EntryTime: entry},
				SaleTime:       entry.Add(held),
				RealizedProfit: profit,
			},
		}
	}

	report := &Report{
		InitialCash:    1000,
		FinalEquity:    1100,
		LastPrice:      20,
		RealizedProfit: 12,
		BuyCount:       4,
		SellCount:      3,
		SkippedEntries: 2,
		EquityCurve:    curve(1000, 1200, 900, 1100),
		Trades: []TradeRecord{
			trade(10, time.Hour),
			trade(-4, 3*time.Hour),
			trade(6, 2*time.Hour),
		},
		OpenPurchases: []types.Purchase{
			{ID: "open", Quantity: 2, EntryCost: 30},
		},
	}

	report.summarize()

	suite.InDelta(100, report.TotalReturn, 1e-9)
	suite.InDelta(10, report.TotalReturnPct, 1e-9)
	suite.InDelta(25, report.MaxDrawdownPct, 1e-9)
	suite.InDelta(2.0/3.0, report.WinRate, 1e-12)
	suite.InDelta(8, report.AvgWin, 1e-12)
	suite.InDelta(4, report.AvgLoss, 1e-12)

	stats := report.Stats()
	suite.Equal(4, stats.TradeResult.NumberOfBuys)
	suite.Equal(3, stats.TradeResult.NumberOfSells)
	suite.Equal(2, stats.TradeResult.NumberOfWinningTrades)
	suite.Equal(1, stats.TradeResult.NumberOfLosingTrades)
	suite.Equal(2, stats.TradeResult.NumberOfSkippedEntries)
	suite.Equal(3600, stats.TradeHoldingTime.Min)
	suite.Equal(10800, stats.TradeHoldingTime.Max)
	suite.Equal(7200, stats.TradeHoldingTime.Avg)
	suite.Equal(10.0, stats.TradePnl.MaximumProfit)
	suite.Equal(-4.0, stats.TradePnl.MaximumLoss)
	suite.InDelta(10, stats.TradePnl.UnrealizedPnL, 1e-9)
	suite.InDelta(22, stats.TradePnl.TotalPnL, 1e-9)
}

func (suite *ReportTestSuite) TestSummarizeWithoutTrades() {
	report := &Report{InitialCash: 0, FinalEquity: 0}
	report.summarize()

	suite.Equal(0.0, report.WinRate)
	suite.Equal(0.0, report.TotalReturnPct)

	stats := report.Stats()
	suite.Equal(0, stats.TradeHoldingTime.Avg)
}
