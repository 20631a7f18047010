// Package config loads the YAML run configuration of the DCA engine.
//
// Percentages in the file are human percentages (0.5 means 0.5%). They are
// converted to fractions when the strategy and ledger configs are built.
package config

import (
	"bytes"
	"math"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/persistence"
	"github.com/rxtech-lab/argo-dca/internal/strategy"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/provider"
)

// Environment variables that override file values.
const (
	EnvLogLevel      = "DCA_LOG_LEVEL"
	EnvPolygonAPIKey = "POLYGON_API_KEY"
	EnvStatePath     = "DCA_STATE_PATH"
)

// Config is the complete run configuration.
type Config struct {
	Strategy    StrategyConfig    `yaml:"strategy" json:"strategy"`
	Fees        FeesConfig        `yaml:"fees" json:"fees"`
	Backtest    BacktestConfig    `yaml:"backtest" json:"backtest"`
	Market      MarketConfig      `yaml:"market" json:"market"`
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`
	Paper       PaperConfig       `yaml:"paper" json:"paper"`
	Log         LogConfig         `yaml:"log" json:"log"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
}

// StrategyConfig selects and parameterizes the strategy.
type StrategyConfig struct {
	Type   strategy.Name `yaml:"type" json:"type" validate:"required,oneof=advanced_dca dca grid" jsonschema:"title=Strategy,enum=advanced_dca,enum=dca,enum=grid"`
	Symbol string        `yaml:"symbol" json:"symbol" validate:"required" jsonschema:"title=Symbol,description=Trading pair or ticker such as BTCUSDT"`
	// AmountUSD is spent on every purchase, fees included.
	AmountUSD float64 `yaml:"amount_usd" json:"amount_usd" validate:"gte=0" jsonschema:"title=Amount per purchase,minimum=0"`
	// MinProfitPct is the profit target of each purchase in percent.
	MinProfitPct float64 `yaml:"min_profit_pct" json:"min_profit_pct" validate:"gte=0,lt=100" jsonschema:"title=Minimum profit (%),minimum=0"`
	// ReductionPoolPct is the share of excess profit, in percent, used to lower the latest purchase's cost.
	ReductionPoolPct *float64 `yaml:"reduction_pool_pct,omitempty" json:"reduction_pool_pct,omitempty" validate:"omitempty,gte=0,lte=100" jsonschema:"title=Reduction pool (%),minimum=0,maximum=100"`
	// MaxPurchases bounds open purchases, -1 means unlimited.
	MaxPurchases int            `yaml:"max_purchases" json:"max_purchases" validate:"gte=-1" jsonschema:"title=Max open purchases,minimum=-1"`
	StepDown     StepDownConfig `yaml:"step_down" json:"step_down"`
	// IndicatorAgreement is the fraction of enabled indicators that must signal a buy.
	IndicatorAgreement *float64         `yaml:"indicator_agreement,omitempty" json:"indicator_agreement,omitempty" validate:"omitempty,gte=0,lte=1" jsonschema:"title=Indicator agreement,minimum=0,maximum=1"`
	Indicators         IndicatorsConfig `yaml:"indicators" json:"indicators"`
	TrailingExitPct    float64          `yaml:"trailing_exit_pct" json:"trailing_exit_pct" validate:"gte=0,lt=100" jsonschema:"title=Trailing exit (%),minimum=0"`
	TrailingEntryPct   float64          `yaml:"trailing_entry_pct" json:"trailing_entry_pct" validate:"gte=0,lt=100" jsonschema:"title=Trailing entry (%),minimum=0"`

	// IntervalHours, MinPrice and MaxPrice only apply to the dca strategy.
	IntervalHours float64  `yaml:"interval_hours" json:"interval_hours" validate:"gte=0" jsonschema:"title=Buy interval (hours),minimum=0"`
	MinPrice      *float64 `yaml:"min_price,omitempty" json:"min_price,omitempty" validate:"omitempty,gt=0"`
	MaxPrice      *float64 `yaml:"max_price,omitempty" json:"max_price,omitempty" validate:"omitempty,gt=0"`

	// GridSpacingPct and GridLevels only apply to the grid strategy.
	GridSpacingPct float64 `yaml:"grid_spacing_pct" json:"grid_spacing_pct" validate:"gte=0,lt=100" jsonschema:"title=Grid spacing (%),minimum=0"`
	GridLevels     int     `yaml:"grid_levels" json:"grid_levels" validate:"gte=0" jsonschema:"title=Grid levels,minimum=0"`
}

// StepDownConfig is the progressive spacing between purchases, in percent.
// BasePct defaults to the minimum profit, capped at 5.
type StepDownConfig struct {
	BasePct    *float64 `yaml:"base_pct,omitempty" json:"base_pct,omitempty" validate:"omitempty,gte=0,lt=100"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier" validate:"gte=0"`
	MaxPct     float64 `yaml:"max_pct" json:"max_pct" validate:"gte=0,lt=100"`
}

// IndicatorsConfig enables and tunes the entry indicators. Every indicator
// except price_drop is enabled unless switched off.
type IndicatorsConfig struct {
	RSI       RSIConfig       `yaml:"rsi" json:"rsi"`
	StochRSI  StochConfig     `yaml:"stoch_rsi" json:"stoch_rsi"`
	EMA       EMAConfig       `yaml:"ema" json:"ema"`
	MACD      MACDConfig      `yaml:"macd" json:"macd"`
	MFI       MFIConfig       `yaml:"mfi" json:"mfi"`
	PriceDrop PriceDropConfig `yaml:"price_drop" json:"price_drop"`
}

type RSIConfig struct {
	Enabled  *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Period   int     `yaml:"period" json:"period" validate:"gte=0"`
	Oversold float64 `yaml:"oversold" json:"oversold" validate:"gte=0,lte=100"`
}

type StochConfig struct {
	Enabled  *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Period   int     `yaml:"period" json:"period" validate:"gte=0"`
	Smooth   int     `yaml:"smooth" json:"smooth" validate:"gte=0"`
	Oversold float64 `yaml:"oversold" json:"oversold" validate:"gte=0,lte=100"`
}

type EMAConfig struct {
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Length  int   `yaml:"length" json:"length" validate:"gte=0"`
}

type MACDConfig struct {
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Fast    int   `yaml:"fast" json:"fast" validate:"gte=0"`
	Slow    int   `yaml:"slow" json:"slow" validate:"gte=0"`
	Signal  int   `yaml:"signal" json:"signal" validate:"gte=0"`
}

type MFIConfig struct {
	Enabled  *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Period   int     `yaml:"period" json:"period" validate:"gte=0"`
	Oversold float64 `yaml:"oversold" json:"oversold" validate:"gte=0,lte=100"`
}

type PriceDropConfig struct {
	Enabled  *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Lookback int     `yaml:"lookback" json:"lookback" validate:"gte=0"`
	DropPct  float64 `yaml:"drop_pct" json:"drop_pct" validate:"gte=0,lt=100"`
}

// FeesConfig is the fee schedule in percent. Exchange picks a preset, explicit
// maker or taker values override it.
type FeesConfig struct {
	Exchange fee.Exchange `yaml:"exchange,omitempty" json:"exchange,omitempty" validate:"omitempty,oneof=binance coinbase kraken zero_fee"`
	MakerPct *float64     `yaml:"maker_pct,omitempty" json:"maker_pct,omitempty" validate:"omitempty,gte=0"`
	TakerPct *float64     `yaml:"taker_pct,omitempty" json:"taker_pct,omitempty" validate:"omitempty,gte=0"`
}

// BacktestConfig configures the simulator and its inputs and outputs.
type BacktestConfig struct {
	InitialCash float64 `yaml:"initial_cash" json:"initial_cash" validate:"gte=0"`
	MinLookback int     `yaml:"min_lookback" json:"min_lookback" validate:"gte=0"`
	WindowSize  int     `yaml:"window_size" json:"window_size" validate:"gte=0"`
	// DecimalPrecision rounds buy quantities down, omit it to keep full precision.
	DecimalPrecision *int       `yaml:"decimal_precision,omitempty" json:"decimal_precision,omitempty" validate:"omitempty,gte=0"`
	DataPath         string     `yaml:"data_path" json:"data_path"`
	OutputDir        string     `yaml:"output_dir" json:"output_dir"`
	StartTime        *time.Time `yaml:"start_time,omitempty" json:"start_time,omitempty"`
	EndTime          *time.Time `yaml:"end_time,omitempty" json:"end_time,omitempty"`
}

// MarketConfig selects the market data provider.
type MarketConfig struct {
	Provider          provider.ProviderType `yaml:"provider" json:"provider" validate:"required,oneof=polygon binance"`
	Timeframe         provider.Timeframe    `yaml:"timeframe" json:"timeframe" validate:"required,oneof=1m 5m 15m 1h 4h 1d"`
	Writer            string                `yaml:"writer" json:"writer" validate:"required,oneof=duckdb csv"`
	DataDir           string                `yaml:"data_dir" json:"data_dir"`
	PolygonApiKey     string                `yaml:"polygon_api_key,omitempty" json:"polygon_api_key,omitempty"`
	RequestsPerSecond float64               `yaml:"requests_per_second" json:"requests_per_second" validate:"gte=0"`
	// BaseURL points the binance provider at another REST endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" validate:"omitempty,url"`
}

// PersistenceConfig selects where paper trading state is kept.
type PersistenceConfig struct {
	Backend      persistence.Backend `yaml:"backend" json:"backend" validate:"required,oneof=file sqlite"`
	Path         string              `yaml:"path" json:"path" validate:"required"`
	HistoryLimit int                 `yaml:"history_limit" json:"history_limit" validate:"gte=0"`
}

// PaperConfig configures the paper trading loop.
type PaperConfig struct {
	InitialCash  float64       `yaml:"initial_cash" json:"initial_cash" validate:"gte=0"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" validate:"gte=0"`
	// SaveEvery persists the state every N cycles on top of every ledger mutation.
	SaveEvery int    `yaml:"save_every" json:"save_every" validate:"gte=0"`
	Listen    string `yaml:"listen" json:"listen"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
}

type MetricsConfig struct {
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Load reads path, applies .env and environment overrides, fills defaults and
// validates the result. A missing .env file is ignored.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %q", path)
	}

	return Parse(data)
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a fully defaulted configuration for symbol.
func Default(symbol string) *Config {
	cfg := &Config{}
	cfg.Strategy.Type = strategy.NameAdvancedDCA
	cfg.Strategy.Symbol = symbol

	setDefaults(cfg)

	return cfg
}

// Validate checks the struct tags and then the derived core configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if c.Market.Provider == provider.ProviderPolygon && c.Market.PolygonApiKey == "" {
		return errors.Newf(errors.ErrCodeMissingParameter, "polygon provider needs an api key, set %s", EnvPolygonAPIKey)
	}

	if _, err := c.FeeSchedule(); err != nil {
		return err
	}

	switch c.Strategy.Type {
	case strategy.NameIntervalDCA:
		cfg, err := c.IntervalConfig()
		if err != nil {
			return err
		}

		return cfg.Validate()
	case strategy.NameGrid:
		cfg, err := c.GridConfig()
		if err != nil {
			return err
		}

		return cfg.Validate()
	default:
		cfg, err := c.AdvancedConfig()
		if err != nil {
			return err
		}

		return cfg.Validate()
	}
}

// MetricsEnabled reports whether the prometheus recorder should be attached.
func (c *Config) MetricsEnabled() bool {
	return enabled(c.Metrics.Enabled, true)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv(EnvPolygonAPIKey); v != "" {
		cfg.Market.PolygonApiKey = v
	}

	if v := os.Getenv(EnvStatePath); v != "" {
		cfg.Persistence.Path = v
	}
}

func setDefaults(cfg *Config) {
	s := &cfg.Strategy

	if s.Type == "" {
		s.Type = strategy.NameAdvancedDCA
	}

	if s.AmountUSD <= 0 {
		s.AmountUSD = 100
	}

	if s.MinProfitPct <= 0 {
		s.MinProfitPct = 0.5
	}

	if s.ReductionPoolPct == nil {
		s.ReductionPoolPct = floatPtr(100)
	}

	if s.MaxPurchases == 0 {
		s.MaxPurchases = -1
	}

	if s.StepDown.BasePct == nil {
		s.StepDown.BasePct = floatPtr(math.Min(s.MinProfitPct, 5))
	}

	if s.StepDown.Multiplier <= 0 {
		s.StepDown.Multiplier = 1.5
	}

	if s.StepDown.MaxPct <= 0 {
		s.StepDown.MaxPct = 5
	}

	if s.IndicatorAgreement == nil {
		s.IndicatorAgreement = floatPtr(0.5)
	}

	if s.IntervalHours <= 0 {
		s.IntervalHours = 24
	}

	if s.GridSpacingPct <= 0 {
		s.GridSpacingPct = 2.5
	}

	if s.GridLevels <= 0 {
		s.GridLevels = 10
	}

	setIndicatorDefaults(&s.Indicators)

	if cfg.Fees.Exchange == "" && cfg.Fees.MakerPct == nil && cfg.Fees.TakerPct == nil {
		cfg.Fees.Exchange = fee.ExchangeBinance
	}

	b := &cfg.Backtest
	if b.InitialCash <= 0 {
		b.InitialCash = 10000
	}

	if b.MinLookback <= 0 {
		b.MinLookback = 100
	}

	if b.WindowSize <= 0 {
		b.WindowSize = 200
	}

	if b.OutputDir == "" {
		b.OutputDir = "results"
	}

	m := &cfg.Market
	if m.Provider == "" {
		m.Provider = provider.ProviderBinance
	}

	if m.Timeframe == "" {
		m.Timeframe = provider.Timeframe1h
	}

	if m.Writer == "" {
		m.Writer = "duckdb"
	}

	if m.DataDir == "" {
		m.DataDir = "data"
	}

	p := &cfg.Persistence
	if p.Backend == "" {
		p.Backend = persistence.BackendFile
	}

	if p.Path == "" {
		p.Path = "state/" + s.Symbol + ".json"
		if p.Backend == persistence.BackendSQLite {
			p.Path = "state/" + s.Symbol + ".db"
		}
	}

	if p.HistoryLimit <= 0 {
		p.HistoryLimit = 100
	}

	paper := &cfg.Paper
	if paper.InitialCash <= 0 {
		paper.InitialCash = b.InitialCash
	}

	if paper.PollInterval <= 0 {
		paper.PollInterval = time.Minute
	}

	if paper.SaveEvery <= 0 {
		paper.SaveEvery = 10
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func setIndicatorDefaults(ind *IndicatorsConfig) {
	if ind.RSI.Period <= 0 {
		ind.RSI.Period = 14
	}

	if ind.RSI.Oversold <= 0 {
		ind.RSI.Oversold = 35
	}

	if ind.StochRSI.Period <= 0 {
		ind.StochRSI.Period = 14
	}

	if ind.StochRSI.Smooth <= 0 {
		ind.StochRSI.Smooth = 3
	}

	if ind.StochRSI.Oversold <= 0 {
		ind.StochRSI.Oversold = 33
	}

	if ind.EMA.Length <= 0 {
		ind.EMA.Length = 25
	}

	if ind.MACD.Fast <= 0 {
		ind.MACD.Fast = 12
	}

	if ind.MACD.Slow <= 0 {
		ind.MACD.Slow = 26
	}

	if ind.MACD.Signal <= 0 {
		ind.MACD.Signal = 9
	}

	if ind.MFI.Period <= 0 {
		ind.MFI.Period = 14
	}

	if ind.MFI.Oversold <= 0 {
		ind.MFI.Oversold = 25
	}

	if ind.PriceDrop.Lookback <= 0 {
		ind.PriceDrop.Lookback = 24
	}

	if ind.PriceDrop.DropPct <= 0 {
		ind.PriceDrop.DropPct = 1
	}

	if ind.PriceDrop.Enabled == nil {
		ind.PriceDrop.Enabled = boolPtr(false)
	}
}

func enabled(v *bool, def bool) bool {
	if v == nil {
		return def
	}

	return *v
}

func boolPtr(v bool) *bool {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}
