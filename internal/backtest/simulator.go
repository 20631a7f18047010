// Package backtest replays historical bars through a strategy with immediate
// fills and produces a report of the run.
package backtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/datasource"
	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/indicator"
	"github.com/rxtech-lab/argo-dca/internal/ledger"
	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/strategy"
	"github.com/rxtech-lab/argo-dca/internal/trading"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

const (
	DefaultWindowSize  = 200
	DefaultMinLookback = 100
)

// Status is the lifecycle of a Simulator.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusFinalized Status = "finalized"
)

// Factory builds the strategy of one run. The simulator passes its own event
// sink, logger and deterministic id generator through opts.
type Factory func(opts ...strategy.Option) (strategy.Strategy, error)

// OnProgressCallback is called after every processed bar.
type OnProgressCallback func(current int, total int)

// RunParams configures one run.
type RunParams struct {
	InitialCash float64
	// MinLookback bars at the start are warm-up: exits run, entries hold.
	// The indicators' own lookback is used when it is larger.
	MinLookback int
	// WindowSize is the number of closed bars handed to the indicators.
	WindowSize int
	// DecimalPrecision rounds buy quantities, trading.NoRounding disables it.
	DecimalPrecision int
	OnProgress       OnProgressCallback
}

// Simulator runs a single backtest. Independent runs need independent simulators.
type Simulator struct {
	mu       sync.Mutex
	factory  Factory
	provider *indicator.Provider
	sinks    []strategy.EventSink
	logger   *logger.Logger
	status   Status
}

// NewSimulator creates an idle simulator. Extra sinks receive every decision
// event next to the report's own recording.
func NewSimulator(factory Factory, provider *indicator.Provider, log *logger.Logger, sinks ...strategy.EventSink) (*Simulator, error) {
	if factory == nil {
		return nil, errors.New(errors.ErrCodeBacktestInitFailed, "strategy factory is required")
	}

	if provider == nil {
		return nil, errors.New(errors.ErrCodeBacktestInitFailed, "indicator provider is required")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Simulator{
		mu:       sync.Mutex{},
		factory:  factory,
		provider: provider,
		sinks:    sinks,
		logger:   log,
		status:   StatusIdle,
	}, nil
}

// Status returns the lifecycle state.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// NewIDGenerator returns a generator of name-based UUIDs numbered from 1, so
// replays of the same run produce the same ids.
func NewIDGenerator(namespace string) func() string {
	var n uint64

	return func() string {
		n++

		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", namespace, n))).String()
	}
}

// Run replays bars. A fatal error still returns the report built up to that
// bar with Report.Error set. Cancelling ctx stops the run the same way.
func (s *Simulator) Run(ctx context.Context, bars []types.MarketData, params RunParams) (*Report, error) {
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()

		return nil, errors.Newf(errors.ErrCodeBacktestFinalized, "simulator is %s, create a new one for another run", s.status)
	}

	s.status = StatusRunning
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.status = StatusFinalized
		s.mu.Unlock()
	}()

	params = withDefaults(params)

	symbol := ""
	if len(bars) > 0 {
		symbol = bars[0].Symbol
	}

	recorder := &strategy.RecordingSink{}
	sinks := append(strategy.MultiSink{recorder, strategy.NewLogSink(s.logger.Named("decisions"), true)}, s.sinks...)

	strat, err := s.factory(
		strategy.WithEventSink(sinks),
		strategy.WithLogger(s.logger),
		strategy.WithIDGenerator(NewIDGenerator(symbol+"/purchase")),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create strategy", err)
	}

	account, err := trading.NewAccount(trading.AccountConfig{
		InitialCash:      params.InitialCash,
		Fees:             strat.Ledger().Config().Fees,
		DecimalPrecision: params.DecimalPrecision,
		NewOrderID:       NewIDGenerator(symbol + "/order"),
	}, s.logger.Named("account"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to create account", err)
	}

	run := newRun(strat, account, recorder, bars, params)

	if err := validateBars(bars); err != nil {
		return run.finalize(err), err
	}

	lookback := params.MinLookback
	if required := s.provider.RequiredBars(); required > lookback {
		lookback = required
	}

	if len(bars) == 0 || len(bars) < lookback {
		err := errors.NewInsufficientDataErrorf(lookback, len(bars), symbol,
			"backtest needs at least %d bars, got %d", lookback, len(bars))

		return run.finalize(err), err
	}

	window := params.WindowSize
	if window < lookback {
		window = lookback
	}

	s.logger.Info("Backtest started",
		zap.String("symbol", symbol),
		zap.String("strategy", string(strat.Name())),
		zap.Int("bars", len(bars)),
		zap.Int("lookback", lookback),
		zap.Int("window", window),
		zap.Float64("initial_cash", params.InitialCash),
	)

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			cancelled := errors.Wrapf(errors.ErrCodeBacktestCancelled, err, "backtest cancelled at bar %d", i)

			return run.finalize(cancelled), cancelled
		}

		tick := strategy.Tick{
			Time:     bar.Time,
			Price:    bar.Close,
			Snapshot: types.NewIndicatorSnapshot(bar.Time),
			Warmup:   i < lookback,
		}

		if !tick.Warmup {
			tick.Snapshot = s.provider.Snapshot(datasource.Previous(bars, i, window))
		}

		if err := run.step(i, tick); err != nil {
			return run.finalize(err), err
		}

		if params.OnProgress != nil {
			params.OnProgress(i+1, len(bars))
		}
	}

	report := run.finalize(nil)

	s.logger.Info("Backtest finished",
		zap.String("symbol", symbol),
		zap.Float64("final_equity", report.FinalEquity),
		zap.Float64("total_return_pct", report.TotalReturnPct),
		zap.Float64("max_drawdown_pct", report.MaxDrawdownPct),
		zap.Int("buys", report.BuyCount),
		zap.Int("sells", report.SellCount),
		zap.Int("skipped_entries", report.SkippedEntries),
	)

	return report, nil
}

// RunDCA replays bars through an advanced DCA strategy with the default
// indicators, Binance fees and the default step-down. allocation is spent per
// purchase and minProfitPct is a fraction.
func RunDCA(ctx context.Context, bars []types.MarketData, initialCash, allocation, minProfitPct float64, log *logger.Logger) (*Report, error) {
	if len(bars) == 0 {
		return nil, errors.NewInsufficientDataError(1, 0, "", "no bars to replay")
	}

	cfg := strategy.AdvancedConfig{
		Symbol:             bars[0].Symbol,
		AmountUSD:          allocation,
		MinProfitPct:       minProfitPct,
		ReductionPoolPct:   1,
		MaxPurchases:       ledger.Unlimited,
		Fees:               fee.GetSchedule(fee.ExchangeBinance),
		StepDown:           ledger.StepDown{BasePct: 0.005, Multiplier: 1.5, MaxPct: 0.05},
		IndicatorAgreement: 0.5,
	}

	// price drop is opt-in
	for _, name := range types.AllIndicatorTypes {
		if name != types.IndicatorTypePriceDrop {
			cfg.Indicators = append(cfg.Indicators, name)
		}
	}

	registry := indicator.NewIndicatorRegistry()
	for _, name := range cfg.Indicators {
		ind, err := indicator.New(name)
		if err != nil {
			return nil, err
		}

		if err := registry.RegisterIndicator(ind); err != nil {
			return nil, err
		}
	}

	factory := func(opts ...strategy.Option) (strategy.Strategy, error) {
		return strategy.NewAdvancedDCA(cfg, opts...)
	}

	sim, err := NewSimulator(factory, indicator.NewProvider(registry, log), log)
	if err != nil {
		return nil, err
	}

	return sim.Run(ctx, bars, RunParams{
		InitialCash:      initialCash,
		MinLookback:      DefaultMinLookback,
		WindowSize:       DefaultWindowSize,
		DecimalPrecision: trading.NoRounding,
		OnProgress:       nil,
	})
}

func withDefaults(params RunParams) RunParams {
	if params.WindowSize <= 0 {
		params.WindowSize = DefaultWindowSize
	}

	if params.MinLookback < 0 {
		params.MinLookback = 0
	}

	return params
}

func validateBars(bars []types.MarketData) error {
	for i, bar := range bars {
		if i > 0 && !bar.Time.After(bars[i-1].Time) {
			return errors.Newf(errors.ErrCodeInvalidParameter, "bars must be strictly increasing in time, bar %d is at %s after %s",
				i, bar.Time, bars[i-1].Time)
		}
	}

	return nil
}
