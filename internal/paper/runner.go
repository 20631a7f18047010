// Package paper runs a strategy against live market data with simulated,
// immediate fills. State is persisted so a restarted runner resumes where it
// stopped.
package paper

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rxtech-lab/argo-dca/internal/indicator"
	"github.com/rxtech-lab/argo-dca/internal/ledger"
	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/metrics"
	"github.com/rxtech-lab/argo-dca/internal/persistence"
	"github.com/rxtech-lab/argo-dca/internal/strategy"
	"github.com/rxtech-lab/argo-dca/internal/trading"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/provider"
)

// Factory builds the strategy the runner drives.
type Factory func(opts ...strategy.Option) (strategy.Strategy, error)

// Config configures a Runner.
type Config struct {
	Timeframe    provider.Timeframe
	PollInterval time.Duration
	InitialCash  float64
	// SaveEvery persists the state every N cycles even without ledger changes.
	SaveEvery   int
	WindowSize  int
	MinLookback int
	// DecimalPrecision rounds buy quantities, trading.NoRounding disables it.
	DecimalPrecision int
}

// Status describes the most recent cycles.
type Status struct {
	Cycles      int       `json:"cycles"`
	LastCycle   time.Time `json:"last_cycle"`
	LastBarTime time.Time `json:"last_bar_time"`
	LastPrice   float64   `json:"last_price"`
	LastError   string    `json:"last_error,omitempty"`
	Restored    bool      `json:"restored"`
}

// Runner is the paper trading loop for one strategy.
type Runner struct {
	cfg        Config
	strategy   strategy.Strategy
	indicators *indicator.Provider
	market     provider.Provider
	store      persistence.Store
	account    *trading.Account
	recorder   *metrics.Recorder
	limiter    *rate.Limiter
	logger     *logger.Logger

	mu         sync.RWMutex
	status     Status
	sinceSave  int
	lastBarSet bool
}

// Option configures optional Runner collaborators.
type Option func(*Runner)

// WithRecorder attaches a metrics recorder. It receives every decision event.
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(r *Runner) {
		r.recorder = recorder
	}
}

// NewRunner creates a runner. The strategy is built by factory with the
// runner's logger and event sinks.
func NewRunner(cfg Config, factory Factory, indicators *indicator.Provider, market provider.Provider, store persistence.Store, log *logger.Logger, opts ...Option) (*Runner, error) {
	if factory == nil || indicators == nil || market == nil || store == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "paper runner needs a strategy factory, indicators, a market data provider and a store")
	}

	if !cfg.Timeframe.Valid() {
		return nil, errors.Newf(errors.ErrCodeInvalidTimeframe, "invalid timeframe %q", cfg.Timeframe)
	}

	if cfg.PollInterval <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "poll interval must be positive, got %s", cfg.PollInterval)
	}

	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = 1
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	r := &Runner{
		cfg:        cfg,
		indicators: indicators,
		market:     market,
		store:      store,
		// one cycle per poll interval at most, however often Cycle is called
		limiter: rate.NewLimiter(rate.Every(cfg.PollInterval), 1),
		logger:  log,
	}

	for _, opt := range opts {
		opt(r)
	}

	sinks := strategy.MultiSink{strategy.NewLogSink(log.Named("decisions"), false)}
	if r.recorder != nil {
		sinks = append(sinks, r.recorder)
	}

	strat, err := factory(strategy.WithEventSink(sinks), strategy.WithLogger(log.Named("strategy")))
	if err != nil {
		return nil, err
	}

	account, err := trading.NewAccount(trading.AccountConfig{
		InitialCash:      cfg.InitialCash,
		Fees:             strat.Ledger().Config().Fees,
		DecimalPrecision: cfg.DecimalPrecision,
		NewOrderID:       nil,
	}, log.Named("account"))
	if err != nil {
		return nil, err
	}

	r.strategy = strat
	r.account = account

	return r, nil
}

// Strategy returns the driven strategy.
func (r *Runner) Strategy() strategy.Strategy {
	return r.strategy
}

// Account returns the simulated cash account.
func (r *Runner) Account() *trading.Account {
	return r.account
}

// Status returns a copy of the runner status.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.status
}

// Restore loads the persisted state, if any, and rebuilds the cash balance
// from the restored ledger.
func (r *Runner) Restore(ctx context.Context) error {
	state, err := r.store.Load(ctx)
	if err != nil {
		return err
	}

	if state.IsNone() {
		r.logger.Info("No saved state, starting fresh",
			zap.String("symbol", r.strategy.Symbol()),
			zap.Float64("cash", r.cfg.InitialCash),
		)

		return nil
	}

	saved := state.Unwrap()
	if err := r.strategy.Restore(saved); err != nil {
		return err
	}

	cash, fees := CashFromLedger(r.cfg.InitialCash, saved.Ledger)
	r.account.SetCash(cash, fees)

	r.mu.Lock()
	r.status.Restored = true
	r.mu.Unlock()

	r.logger.Info("Strategy state restored",
		zap.String("symbol", saved.Symbol),
		zap.Int("open_purchases", len(saved.Ledger.Open)),
		zap.Int("closed_trades", len(saved.Ledger.Closed)),
		zap.Float64("cash", cash),
		zap.Float64("total_profit", saved.Ledger.TotalProfit),
	)

	return nil
}

// Run restores the state and evaluates one cycle per poll interval until ctx
// is cancelled. A failed cycle is logged and retried on the next tick.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Restore(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := r.Cycle(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("Paper cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return r.shutdown()
		case <-ticker.C:
		}
	}
}

func (r *Runner) shutdown() error {
	// the run context is gone, the final save gets its own
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.save(ctx); err != nil {
		return err
	}

	r.logger.Info("Paper trading stopped", zap.Int("cycles", r.Status().Cycles))

	return nil
}

// Cycle fetches recent closed bars and evaluates the newest one. The ledger
// is untouched when fetching fails. A bar that was already evaluated is skipped.
func (r *Runner) Cycle(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	window := r.cfg.WindowSize
	if window < r.lookback() {
		window = r.lookback()
	}

	bars, err := r.market.RecentBars(ctx, r.strategy.Symbol(), r.cfg.Timeframe, window+1)
	if err != nil {
		r.fail(err)

		return err
	}

	if len(bars) == 0 {
		err := errors.NewInsufficientDataError(1, 0, r.strategy.Symbol(), "no closed bars returned")
		r.fail(err)

		return err
	}

	current := bars[len(bars)-1]

	r.mu.RLock()
	seen := r.lastBarSet && !current.Time.After(r.status.LastBarTime)
	r.mu.RUnlock()

	if seen {
		r.logger.Debug("No new bar", zap.Time("bar_time", current.Time))

		return nil
	}

	history := bars[:len(bars)-1]
	tick := strategy.Tick{
		Time:     current.Time,
		Price:    current.Close,
		Snapshot: types.NewIndicatorSnapshot(current.Time),
		Warmup:   len(history) < r.lookback(),
	}

	if !tick.Warmup {
		tick.Snapshot = r.indicators.Snapshot(history)
	}

	mutated, err := r.apply(tick)
	if err != nil {
		r.fail(err)

		return err
	}

	r.mu.Lock()
	r.status.Cycles++
	r.status.LastCycle = time.Now()
	r.status.LastBarTime = current.Time
	r.status.LastPrice = current.Close
	r.status.LastError = ""
	r.lastBarSet = true
	r.sinceSave++
	due := r.sinceSave >= r.cfg.SaveEvery
	r.mu.Unlock()

	r.observe(current.Close)

	if mutated || due {
		return r.save(ctx)
	}

	return nil
}

// apply executes the tick's decisions and reports whether the strategy state
// changed. Trailing updates and pending-sale flags count as changes even
// without a fill.
func (r *Runner) apply(tick strategy.Tick) (mutated bool, err error) {
	revision := r.strategy.Revision()

	defer func() {
		if r.strategy.Revision() != revision {
			mutated = true
		}
	}()

	for _, decision := range r.strategy.Evaluate(tick) {
		if decision.Action == types.DecisionActionHold {
			continue
		}

		fill, err := r.account.Execute(decision, tick.Time)
		if err != nil {
			r.strategy.Reject(tick, decision, err)

			continue
		}

		if err := r.strategy.OnFill(fill); err != nil {
			return false, errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to apply %s fill", fill.Side)
		}

		if r.recorder != nil {
			r.recorder.ObserveFill(fill)
		}
	}

	return false, nil
}

func (r *Runner) save(ctx context.Context) error {
	if err := r.store.Save(ctx, r.strategy.Snapshot()); err != nil {
		r.fail(err)

		return err
	}

	r.mu.Lock()
	r.sinceSave = 0
	r.mu.Unlock()

	return nil
}

func (r *Runner) observe(price float64) {
	if r.recorder == nil {
		return
	}

	l := r.strategy.Ledger()
	r.recorder.ObserveEquity(r.account.Cash(), l.MarketValue(price), l.OpenCount())
}

func (r *Runner) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.LastError = err.Error()
}

func (r *Runner) lookback() int {
	lookback := r.cfg.MinLookback
	if required := r.indicators.RequiredBars(); required > lookback {
		lookback = required
	}

	return lookback
}

// CashFromLedger rebuilds the cash balance and total fees of an account that
// started with initialCash and produced the ledger snapshot. Reductions move
// cost basis only, so they do not affect cash.
func CashFromLedger(initialCash float64, snapshot ledger.Snapshot) (cash float64, fees float64) {
	balance := decimal.NewFromFloat(initialCash)
	paid := decimal.Zero

	spend := func(p types.Purchase) {
		cost := decimal.NewFromFloat(p.EntryCost)
		notional := decimal.NewFromFloat(p.EntryPrice).Mul(decimal.NewFromFloat(p.Quantity))

		balance = balance.Sub(cost)
		paid = paid.Add(cost.Sub(notional))
	}

	for _, p := range snapshot.Open {
		spend(p)
	}

	for _, t := range snapshot.Closed {
		spend(t.Purchase)

		balance = balance.Add(decimal.NewFromFloat(t.SaleProceeds))
		paid = paid.Add(decimal.NewFromFloat(t.SaleFee))
	}

	if balance.IsNegative() {
		balance = decimal.Zero
	}

	return balance.InexactFloat64(), paid.InexactFloat64()
}
