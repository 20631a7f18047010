package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type TradeHoldingTime struct {
	// Minimum holding time of a trade in seconds
	Min int `yaml:"min" json:"min"`
	// Maximum holding time of a trade in seconds
	Max int `yaml:"max" json:"max"`
	// Average holding time of a trade in seconds
	Avg int `yaml:"avg" json:"avg"`
}

type TradePnl struct {
	// Realized PnL. Sum of realized profit over all closed purchases.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`
	// Unrealized PnL. Open purchases marked at the last close minus their cost basis.
	UnrealizedPnL float64 `yaml:"unrealized_pnl" json:"unrealized_pnl"`
	// Total PnL. RealizedPnL + UnrealizedPnL.
	TotalPnL float64 `yaml:"total_pnl" json:"total_pnl"`
	// Average realized profit of winning trades.
	AverageWin float64 `yaml:"average_win" json:"average_win"`
	// Average magnitude of realized loss over losing trades.
	AverageLoss float64 `yaml:"average_loss" json:"average_loss"`
	// Maximum loss. Minimum realized profit over all closed purchases.
	MaximumLoss float64 `yaml:"maximum_loss" json:"maximum_loss"`
	// Maximum profit. Maximum realized profit over all closed purchases.
	MaximumProfit float64 `yaml:"maximum_profit" json:"maximum_profit"`
}

type TradeResult struct {
	// Count of buy fills.
	NumberOfBuys int `yaml:"number_of_buys" json:"number_of_buys"`
	// Count of sell fills.
	NumberOfSells int `yaml:"number_of_sells" json:"number_of_sells"`
	// Count of closed trades with positive realized profit.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades" json:"number_of_winning_trades"`
	// Count of closed trades with negative realized profit.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades" json:"number_of_losing_trades"`
	// Entries skipped because cash was below the allocation.
	NumberOfSkippedEntries int `yaml:"number_of_skipped_entries" json:"number_of_skipped_entries"`
	// Win rate, winning trades / closed trades, in [0, 1].
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// Maximum drawdown of the equity curve in percent.
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct" json:"max_drawdown_pct"`
}

// BacktestStats is the serializable summary of one backtest run.
type BacktestStats struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is the time of the last bar in the run.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Symbol of the trading pair.
	Symbol string `yaml:"symbol" json:"symbol"`
	// Strategy is the name of the strategy that produced the run.
	Strategy       string  `yaml:"strategy" json:"strategy"`
	InitialCash    float64 `yaml:"initial_cash" json:"initial_cash"`
	FinalEquity    float64 `yaml:"final_equity" json:"final_equity"`
	TotalReturn    float64 `yaml:"total_return" json:"total_return"`
	TotalReturnPct float64 `yaml:"total_return_pct" json:"total_return_pct"`
	// Result of all trades.
	TradeResult TradeResult `yaml:"trade_result" json:"trade_result"`
	// Total fees paid on both sides.
	TotalFees float64 `yaml:"total_fees" json:"total_fees"`
	// Total cost-basis reduction applied from excess profit.
	TotalReduction float64 `yaml:"total_reduction" json:"total_reduction"`
	// Holding time of all closed trades.
	TradeHoldingTime TradeHoldingTime `yaml:"trade_holding_time" json:"trade_holding_time"`
	// PnL of all trades.
	TradePnl TradePnl `yaml:"trade_pnl" json:"trade_pnl"`
	// Buy and hold PnL of the initial cash over the same bars.
	BuyAndHoldPnl float64 `yaml:"buy_and_hold_pnl" json:"buy_and_hold_pnl"`
	// TradesFilePath is the path to the trades parquet file.
	TradesFilePath string `yaml:"trades_file_path,omitempty" json:"trades_file_path,omitempty"`
	// EquityFilePath is the path to the equity curve parquet file.
	EquityFilePath string `yaml:"equity_file_path,omitempty" json:"equity_file_path,omitempty"`
	// DataPath is the path to the market data file used for this backtest.
	DataPath string `yaml:"data_path,omitempty" json:"data_path,omitempty"`
	// Error describes the fatal error that stopped the run early, if any.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

func WriteBacktestStats(path string, stats []BacktestStats) error {
	// Marshal the struct to YAML
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest stats to YAML: %w", err)
	}

	// Write the YAML data to the file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest stats to file: %w", err)
	}

	return nil
}
