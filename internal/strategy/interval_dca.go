package strategy

import (
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/ledger"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// IntervalConfig configures IntervalDCA.
type IntervalConfig struct {
	Symbol    string
	AmountUSD float64
	Interval  time.Duration
	MinPrice  optional.Option[float64]
	MaxPrice  optional.Option[float64]
	Fees      fee.Schedule
}

// Validate checks the configuration.
func (c IntervalConfig) Validate() error {
	if c.Symbol == "" {
		return errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	}

	if !validPrice(c.AmountUSD) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "amount must be positive, got %v", c.AmountUSD)
	}

	if c.Interval <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "interval must be positive, got %s", c.Interval)
	}

	if c.MinPrice.IsSome() && c.MaxPrice.IsSome() && c.MinPrice.Unwrap() > c.MaxPrice.Unwrap() {
		return errors.Newf(errors.ErrCodeInvalidParameter, "min price %v is above max price %v", c.MinPrice.Unwrap(), c.MaxPrice.Unwrap())
	}

	return c.Fees.Validate()
}

// IntervalDCA buys a fixed amount every Interval of market time, optionally
// only inside a price band. It never sells on its own.
type IntervalDCA struct {
	base
	cfg IntervalConfig
}

// NewIntervalDCA creates an IntervalDCA strategy.
func NewIntervalDCA(cfg IntervalConfig, opts ...Option) (*IntervalDCA, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)

	l, err := ledger.New(ledger.Config{
		Symbol:          cfg.Symbol,
		MaxPurchases:    ledger.Unlimited,
		Fees:            cfg.Fees,
		ProfitTargetPct: 0,
		NewID:           o.newID,
	}, o.logger.Named("ledger"))
	if err != nil {
		return nil, err
	}

	s := &IntervalDCA{
		base: newBase(NameIntervalDCA, cfg.Symbol, l, o),
		cfg:  cfg,
	}

	s.logger.Info("DCA strategy initialized",
		zap.String("symbol", cfg.Symbol),
		zap.Duration("interval", cfg.Interval),
		zap.Float64("amount", cfg.AmountUSD),
	)

	return s, nil
}

// Evaluate implements Strategy.
func (s *IntervalDCA) Evaluate(tick Tick) []types.Decision {
	return s.publish(tick, []types.Decision{s.decide(tick)})
}

func (s *IntervalDCA) decide(tick Tick) types.Decision {
	if !validPrice(tick.Price) {
		return hold(tick.Price, types.ReasonNoPrice)
	}

	if tick.Warmup {
		return hold(tick.Price, types.ReasonWarmup)
	}

	if !s.lastBuyTime.IsZero() && tick.Time.Sub(s.lastBuyTime) < s.cfg.Interval {
		return hold(tick.Price, types.ReasonIntervalPending)
	}

	if s.cfg.MaxPrice.IsSome() && tick.Price > s.cfg.MaxPrice.Unwrap() {
		return hold(tick.Price, types.ReasonPriceOutOfBand)
	}

	if s.cfg.MinPrice.IsSome() && tick.Price < s.cfg.MinPrice.Unwrap() {
		return hold(tick.Price, types.ReasonPriceOutOfBand)
	}

	quantity, err := s.cfg.Fees.QuantityFor(s.cfg.AmountUSD, tick.Price)
	if err != nil {
		return hold(tick.Price, types.ReasonInvalidParameter)
	}

	return types.Decision{
		Action:   types.DecisionActionBuy,
		Price:    tick.Price,
		Quantity: quantity,
		Notional: s.cfg.AmountUSD,
		Reasons:  []types.ReasonCode{types.ReasonIntervalElapsed},
	}
}

// OnFill implements Strategy. Sells come from outside the strategy and simply close the purchase.
func (s *IntervalDCA) OnFill(fill types.Fill) error {
	switch fill.Side {
	case types.SideBuy:
		return s.openFromFill(fill)
	case types.SideSell:
		_, err := s.closeFromFill(fill)

		return err
	default:
		return errors.Newf(errors.ErrCodeInvalidFill, "unknown fill side %q", fill.Side)
	}
}

// Snapshot implements Strategy.
func (s *IntervalDCA) Snapshot() State {
	return s.snapshotState()
}

// Restore implements Strategy.
func (s *IntervalDCA) Restore(state State) error {
	return s.restoreState(state)
}
