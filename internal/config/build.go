package config

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-dca/internal/backtest"
	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/indicator"
	"github.com/rxtech-lab/argo-dca/internal/ledger"
	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/strategy"
	"github.com/rxtech-lab/argo-dca/internal/trading"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// fraction converts a human percentage to a fraction.
func fraction(pct float64) float64 {
	return decimal.NewFromFloat(pct).Div(hundred).InexactFloat64()
}

func optionalFloat(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}

	return *v
}

// FeeSchedule resolves the exchange preset and explicit overrides into fractions.
func (c *Config) FeeSchedule() (fee.Schedule, error) {
	schedule := fee.GetSchedule(c.Fees.Exchange)

	if c.Fees.MakerPct != nil {
		schedule.Maker = fraction(*c.Fees.MakerPct)
	}

	if c.Fees.TakerPct != nil {
		schedule.Taker = fraction(*c.Fees.TakerPct)
	}

	if err := schedule.Validate(); err != nil {
		return fee.Schedule{}, err
	}

	return schedule, nil
}

// EnabledIndicators lists the voting indicators in evaluation order.
func (c *Config) EnabledIndicators() []types.IndicatorType {
	ind := c.Strategy.Indicators
	toggles := map[types.IndicatorType]bool{
		types.IndicatorTypeRSI:       enabled(ind.RSI.Enabled, true),
		types.IndicatorTypeStochRSI:  enabled(ind.StochRSI.Enabled, true),
		types.IndicatorTypeEMA:       enabled(ind.EMA.Enabled, true),
		types.IndicatorTypeMACD:      enabled(ind.MACD.Enabled, true),
		types.IndicatorTypeMFI:       enabled(ind.MFI.Enabled, true),
		types.IndicatorTypePriceDrop: enabled(ind.PriceDrop.Enabled, false),
	}

	names := make([]types.IndicatorType, 0, len(toggles))

	for _, name := range types.AllIndicatorTypes {
		if toggles[name] {
			names = append(names, name)
		}
	}

	return names
}

// IndicatorRegistry registers the enabled indicators with their configured parameters.
// Only advanced_dca votes, the other strategies get an empty registry.
func (c *Config) IndicatorRegistry() (indicator.IndicatorRegistry, error) {
	registry := indicator.NewIndicatorRegistry()
	if c.Strategy.Type == strategy.NameIntervalDCA || c.Strategy.Type == strategy.NameGrid {
		return registry, nil
	}

	ind := c.Strategy.Indicators
	params := map[types.IndicatorType][]any{
		types.IndicatorTypeRSI:       {ind.RSI.Period, ind.RSI.Oversold},
		types.IndicatorTypeStochRSI:  {ind.StochRSI.Period, ind.StochRSI.Smooth, ind.StochRSI.Oversold},
		types.IndicatorTypeEMA:       {ind.EMA.Length},
		types.IndicatorTypeMACD:      {ind.MACD.Fast, ind.MACD.Slow, ind.MACD.Signal},
		types.IndicatorTypeMFI:       {ind.MFI.Period, ind.MFI.Oversold},
		types.IndicatorTypePriceDrop: {ind.PriceDrop.Lookback, fraction(ind.PriceDrop.DropPct)},
	}

	for _, name := range c.EnabledIndicators() {
		instance, err := indicator.New(name)
		if err != nil {
			return nil, err
		}

		if err := instance.Config(params[name]...); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid %s parameters", name)
		}

		if err := registry.RegisterIndicator(instance); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// IndicatorProvider wraps IndicatorRegistry in a snapshot provider.
func (c *Config) IndicatorProvider(log *logger.Logger) (*indicator.Provider, error) {
	registry, err := c.IndicatorRegistry()
	if err != nil {
		return nil, err
	}

	return indicator.NewProvider(registry, log), nil
}

// AdvancedConfig builds the advanced_dca configuration in fractions.
func (c *Config) AdvancedConfig() (strategy.AdvancedConfig, error) {
	fees, err := c.FeeSchedule()
	if err != nil {
		return strategy.AdvancedConfig{}, err
	}

	s := c.Strategy

	pool := 1.0
	if s.ReductionPoolPct != nil {
		pool = fraction(*s.ReductionPoolPct)
	}

	maxPurchases := s.MaxPurchases
	if maxPurchases < 0 {
		maxPurchases = ledger.Unlimited
	}

	return strategy.AdvancedConfig{
		Symbol:           s.Symbol,
		AmountUSD:        s.AmountUSD,
		MinProfitPct:     fraction(s.MinProfitPct),
		ReductionPoolPct: pool,
		MaxPurchases:     maxPurchases,
		Fees:             fees,
		StepDown: ledger.StepDown{
			BasePct:    fraction(optionalFloat(s.StepDown.BasePct, 0)),
			Multiplier: s.StepDown.Multiplier,
			MaxPct:     fraction(s.StepDown.MaxPct),
		},
		IndicatorAgreement: optionalFloat(s.IndicatorAgreement, 0.5),
		Indicators:         c.EnabledIndicators(),
		TrailingExitPct:    fraction(s.TrailingExitPct),
		TrailingEntryPct:   fraction(s.TrailingEntryPct),
	}, nil
}

// IntervalConfig builds the dca configuration.
func (c *Config) IntervalConfig() (strategy.IntervalConfig, error) {
	fees, err := c.FeeSchedule()
	if err != nil {
		return strategy.IntervalConfig{}, err
	}

	s := c.Strategy

	return strategy.IntervalConfig{
		Symbol:    s.Symbol,
		AmountUSD: s.AmountUSD,
		Interval:  time.Duration(s.IntervalHours * float64(time.Hour)),
		MinPrice:  optional.FromNillable(s.MinPrice),
		MaxPrice:  optional.FromNillable(s.MaxPrice),
		Fees:      fees,
	}, nil
}

// GridConfig builds the grid configuration in fractions.
func (c *Config) GridConfig() (strategy.GridConfig, error) {
	fees, err := c.FeeSchedule()
	if err != nil {
		return strategy.GridConfig{}, err
	}

	s := c.Strategy

	return strategy.GridConfig{
		Symbol:     s.Symbol,
		AmountUSD:  s.AmountUSD,
		SpacingPct: fraction(s.GridSpacingPct),
		Levels:     s.GridLevels,
		Fees:       fees,
	}, nil
}

// NewStrategy creates the configured strategy. It satisfies backtest.Factory.
func (c *Config) NewStrategy(opts ...strategy.Option) (strategy.Strategy, error) {
	switch c.Strategy.Type {
	case strategy.NameIntervalDCA:
		cfg, err := c.IntervalConfig()
		if err != nil {
			return nil, err
		}

		return strategy.NewIntervalDCA(cfg, opts...)
	case strategy.NameAdvancedDCA:
		cfg, err := c.AdvancedConfig()
		if err != nil {
			return nil, err
		}

		return strategy.NewAdvancedDCA(cfg, opts...)
	case strategy.NameGrid:
		cfg, err := c.GridConfig()
		if err != nil {
			return nil, err
		}

		return strategy.NewGrid(cfg, opts...)
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedStrategy, "unsupported strategy %q", c.Strategy.Type)
	}
}

// RunParams converts the backtest section into simulator parameters.
func (c *Config) RunParams(onProgress backtest.OnProgressCallback) backtest.RunParams {
	precision := trading.NoRounding
	if c.Backtest.DecimalPrecision != nil {
		precision = *c.Backtest.DecimalPrecision
	}

	return backtest.RunParams{
		InitialCash:      c.Backtest.InitialCash,
		MinLookback:      c.Backtest.MinLookback,
		WindowSize:       c.Backtest.WindowSize,
		DecimalPrecision: precision,
		OnProgress:       onProgress,
	}
}

// BacktestRange returns the optional time range bars are filtered to.
func (c *Config) BacktestRange() (optional.Option[time.Time], optional.Option[time.Time]) {
	return optional.FromNillable(c.Backtest.StartTime), optional.FromNillable(c.Backtest.EndTime)
}
