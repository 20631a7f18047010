package types

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"
)

type StatisticsTestSuite struct {
	suite.Suite
	tempDir string
}

func TestStatisticsSuite(t *testing.T) {
	suite.Run(t, new(StatisticsTestSuite))
}

func (suite *StatisticsTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *StatisticsTestSuite) TestWriteBacktestStats() {
	stats := []BacktestStats{
		{
			ID:          "run-1",
			Symbol:      "BTCUSDT",
			Strategy:    "advanced_dca",
			InitialCash: 10000,
			FinalEquity: 10350,
			TradeResult: TradeResult{
				NumberOfBuys:          12,
				NumberOfSells:         10,
				NumberOfWinningTrades: 10,
				NumberOfLosingTrades:  0,
				WinRate:               1,
				MaxDrawdownPct:        4.2,
			},
			TotalFees:      24.5,
			TotalReduction: 61.3,
			TradeHoldingTime: TradeHoldingTime{
				Min: 3600,
				Max: 86400,
				Avg: 14400,
			},
			TradePnl: TradePnl{
				RealizedPnL:   310.0,
				UnrealizedPnL: 40.0,
				TotalPnL:      350.0,
				AverageWin:    31.0,
				MaximumProfit: 80.0,
			},
			BuyAndHoldPnl: -200.0,
		},
	}

	filePath := filepath.Join(suite.tempDir, "stats.yaml")
	err := WriteBacktestStats(filePath, stats)
	suite.NoError(err)

	data, err := os.ReadFile(filePath)
	suite.NoError(err)

	var readStats []BacktestStats
	err = yaml.Unmarshal(data, &readStats)
	suite.NoError(err)

	suite.Len(readStats, 1)
	suite.Equal("BTCUSDT", readStats[0].Symbol)
	suite.Equal("advanced_dca", readStats[0].Strategy)
	suite.Equal(12, readStats[0].TradeResult.NumberOfBuys)
	suite.Equal(10, readStats[0].TradeResult.NumberOfSells)
	suite.Equal(1.0, readStats[0].TradeResult.WinRate)
	suite.Equal(4.2, readStats[0].TradeResult.MaxDrawdownPct)
	suite.Equal(24.5, readStats[0].TotalFees)
	suite.Equal(61.3, readStats[0].TotalReduction)
	suite.Equal(14400, readStats[0].TradeHoldingTime.Avg)
	suite.Equal(350.0, readStats[0].TradePnl.TotalPnL)
	suite.Equal(-200.0, readStats[0].BuyAndHoldPnl)
}

func (suite *StatisticsTestSuite) TestWriteBacktestStatsEmpty() {
	filePath := filepath.Join(suite.tempDir, "empty_stats.yaml")
	err := WriteBacktestStats(filePath, []BacktestStats{})
	suite.NoError(err)

	data, err := os.ReadFile(filePath)
	suite.NoError(err)

	var readStats []BacktestStats
	err = yaml.Unmarshal(data, &readStats)
	suite.NoError(err)
	suite.Empty(readStats)
}

func (suite *StatisticsTestSuite) TestWriteBacktestStatsInvalidPath() {
	stats := []BacktestStats{{Symbol: "BTCUSDT"}}

	// Try to write to a non-existent directory
	filePath := filepath.Join(suite.tempDir, "nonexistent", "dir", "stats.yaml")
	err := WriteBacktestStats(filePath, stats)
	suite.Error(err)
}
