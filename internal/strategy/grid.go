package strategy

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/ledger"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// GridConfig configures Grid. SpacingPct is a fraction.
type GridConfig struct {
	Symbol string
	// AmountUSD is the fee-inclusive amount bought at each level.
	AmountUSD  float64
	SpacingPct float64
	// Levels is the number of buy levels below the anchor price.
	Levels int
	Fees   fee.Schedule
}

// Validate checks the configuration.
func (c GridConfig) Validate() error {
	if c.Symbol == "" {
		return errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	}

	if !validPrice(c.AmountUSD) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "amount must be positive, got %v", c.AmountUSD)
	}

	if c.SpacingPct <= 0 || c.SpacingPct >= 1 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "grid spacing must be in (0, 1), got %v", c.SpacingPct)
	}

	if c.Levels < 1 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "grid needs at least one level, got %d", c.Levels)
	}

	if c.SpacingPct*float64(c.Levels) >= 1 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "%d levels spaced %v apart reach a zero price", c.Levels, c.SpacingPct)
	}

	return c.Fees.Validate()
}

// GridState is the persisted grid layout.
type GridState struct {
	Anchor float64 `json:"anchor" yaml:"anchor"`
	// Held maps a buy level to the purchase bought there.
	Held map[int]string `json:"held,omitempty" yaml:"held,omitempty"`
}

// Grid spreads buy levels below an anchor price, SpacingPct apart. A level
// buys once when the price reaches it and sells one level higher, after fees,
// which frees the level again. The grid re-centres on the price once it is
// flat and the price has risen past the grid's span above the anchor.
type Grid struct {
	base
	cfg    GridConfig
	anchor float64
	held   map[int]string
	// level of the buy decision waiting for its fill
	pending int
}

// NewGrid creates a Grid strategy.
func NewGrid(cfg GridConfig, opts ...Option) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)

	l, err := ledger.New(ledger.Config{
		Symbol:          cfg.Symbol,
		MaxPurchases:    cfg.Levels,
		Fees:            cfg.Fees,
		ProfitTargetPct: cfg.SpacingPct,
		NewID:           o.newID,
	}, o.logger.Named("ledger"))
	if err != nil {
		return nil, err
	}

	s := &Grid{
		base: newBase(NameGrid, cfg.Symbol, l, o),
		cfg:  cfg,
		held: make(map[int]string),
	}

	s.logger.Info("Grid strategy initialized",
		zap.String("symbol", cfg.Symbol),
		zap.Float64("amount", cfg.AmountUSD),
		zap.Float64("spacing_pct", cfg.SpacingPct),
		zap.Int("levels", cfg.Levels),
	)

	return s, nil
}

// LevelPrice is the price of buy level i, counted from 1 below the anchor.
func (s *Grid) LevelPrice(i int) float64 {
	step := decimal.NewFromFloat(s.cfg.SpacingPct).Mul(decimal.NewFromInt(int64(i)))

	return decimal.NewFromFloat(s.anchor).Mul(decimal.NewFromInt(1).Sub(step)).InexactFloat64()
}

// Anchor returns the price the grid is centred on, zero before the first tick.
func (s *Grid) Anchor() float64 {
	return s.anchor
}

// Evaluate implements Strategy.
func (s *Grid) Evaluate(tick Tick) []types.Decision {
	s.pending = 0

	if !validPrice(tick.Price) {
		return s.publish(tick, []types.Decision{hold(tick.Price, types.ReasonNoPrice)})
	}

	decisions := make([]types.Decision, 0)
	for _, p := range s.ledger.OpenPurchases() {
		if p.PendingSale || tick.Price < p.TargetSalePrice {
			continue
		}

		// the ledger only knows the purchase, so this cannot fail
		_ = s.ledger.SetPendingSale(p.ID, true)
		decisions = append(decisions, sell(p, tick.Price, types.ReasonProfitTarget))
	}

	if len(decisions) > 0 {
		return s.publish(tick, decisions)
	}

	return s.publish(tick, []types.Decision{s.entryDecision(tick)})
}

func (s *Grid) entryDecision(tick Tick) types.Decision {
	if tick.Warmup {
		return hold(tick.Price, types.ReasonWarmup)
	}

	if s.anchor == 0 {
		s.place(tick.Price)

		return hold(tick.Price, types.ReasonGridPlaced)
	}

	top := decimal.NewFromFloat(s.anchor).
		Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(s.cfg.SpacingPct).Mul(decimal.NewFromInt(int64(s.cfg.Levels))))).
		InexactFloat64()
	if s.ledger.OpenCount() == 0 && tick.Price > top {
		s.place(tick.Price)

		return hold(tick.Price, types.ReasonGridRecentered)
	}

	level := s.freeLevelAt(tick.Price)
	if level == 0 {
		return hold(tick.Price, types.ReasonGridWaiting)
	}

	if !s.ledger.CanOpen() {
		return hold(tick.Price, types.ReasonCapacityExceeded)
	}

	quantity, err := s.cfg.Fees.QuantityFor(s.cfg.AmountUSD, tick.Price)
	if err != nil {
		s.logger.Warn("Cannot size buy", zap.Float64("price", tick.Price), zap.Error(err))

		return hold(tick.Price, types.ReasonInvalidParameter)
	}

	s.pending = level

	return types.Decision{
		Action:   types.DecisionActionBuy,
		Price:    tick.Price,
		Quantity: quantity,
		Notional: s.cfg.AmountUSD,
		Reasons:  []types.ReasonCode{types.ReasonGridLevelCrossed},
	}
}

// freeLevelAt returns the deepest unheld level at or above price, or 0.
func (s *Grid) freeLevelAt(price float64) int {
	for i := s.cfg.Levels; i >= 1; i-- {
		if _, taken := s.held[i]; taken {
			continue
		}

		if price <= s.LevelPrice(i) {
			return i
		}
	}

	return 0
}

func (s *Grid) place(price float64) {
	s.anchor = price
	s.touch()

	s.logger.Info("Grid placed",
		zap.Float64("anchor", price),
		zap.Float64("lowest_level", s.LevelPrice(s.cfg.Levels)),
	)
}

// OnFill implements Strategy.
func (s *Grid) OnFill(fill types.Fill) error {
	switch fill.Side {
	case types.SideBuy:
		if err := s.openFromFill(fill); err != nil {
			return err
		}

		// a buy without a pending level came from outside and holds no level
		if s.pending > 0 {
			s.held[s.pending] = s.ledger.MostRecentOpen().Unwrap().ID
			s.pending = 0
			s.touch()
		}

		return nil
	case types.SideSell:
		if _, err := s.closeFromFill(fill); err != nil {
			return err
		}

		for level, id := range s.held {
			if id == fill.PurchaseID {
				delete(s.held, level)
				s.touch()
			}
		}

		return nil
	default:
		return errors.Newf(errors.ErrCodeInvalidFill, "unknown fill side %q", fill.Side)
	}
}

// Reject implements Strategy.
func (s *Grid) Reject(tick Tick, decision types.Decision, cause error) {
	if decision.Action == types.DecisionActionBuy {
		s.pending = 0
	}

	s.base.Reject(tick, decision, cause)
}

// Snapshot implements Strategy.
func (s *Grid) Snapshot() State {
	state := s.snapshotState()

	held := make(map[int]string, len(s.held))
	for level, id := range s.held {
		held[level] = id
	}

	state.Grid = &GridState{Anchor: s.anchor, Held: held}

	return state
}

// Restore implements Strategy. Levels whose purchase is no longer open are freed.
func (s *Grid) Restore(state State) error {
	if err := s.restoreState(state); err != nil {
		return err
	}

	s.anchor = 0
	s.held = make(map[int]string)
	s.pending = 0

	if state.Grid != nil {
		s.anchor = state.Grid.Anchor

		for level, id := range state.Grid.Held {
			if level < 1 || level > s.cfg.Levels {
				continue
			}

			if _, open := s.ledger.Purchase(id); open {
				s.held[level] = id
			}
		}
	}

	s.touch()

	return nil
}
