package strategy

import (
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/ledger"
	"github.com/rxtech-lab/argo-dca/internal/trailing"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// AdvancedConfig configures AdvancedDCA. Percentages are fractions.
type AdvancedConfig struct {
	Symbol string
	// AmountUSD is the fee-inclusive amount spent per purchase.
	AmountUSD float64
	// MinProfitPct is both the profit target of every purchase and the share
	// of a sale's profit kept before the excess is used for reductions.
	MinProfitPct float64
	// ReductionPoolPct is the share of excess profit applied to the most recent open purchase.
	ReductionPoolPct float64
	// MaxPurchases bounds concurrent purchases, ledger.Unlimited disables the bound.
	MaxPurchases int
	Fees         fee.Schedule
	StepDown     ledger.StepDown
	// IndicatorAgreement is the fraction of enabled indicators that must signal.
	IndicatorAgreement float64
	Indicators         []types.IndicatorType
	// TrailingExitPct enables trailing exits when positive.
	TrailingExitPct float64
	// TrailingEntryPct enables trailing entries when positive.
	TrailingEntryPct float64
}

// Validate checks the configuration.
func (c AdvancedConfig) Validate() error {
	if c.Symbol == "" {
		return errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	}

	if !validPrice(c.AmountUSD) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "amount must be positive, got %v", c.AmountUSD)
	}

	fractions := []struct {
		name  string
		value float64
	}{
		{"min profit", c.MinProfitPct},
		{"trailing exit", c.TrailingExitPct},
		{"trailing entry", c.TrailingEntryPct},
	}

	for _, f := range fractions {
		if f.value < 0 || f.value >= 1 {
			return errors.Newf(errors.ErrCodeInvalidParameter, "%s must be in [0, 1), got %v", f.name, f.value)
		}
	}

	if c.ReductionPoolPct < 0 || c.ReductionPoolPct > 1 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "reduction pool must be in [0, 1], got %v", c.ReductionPoolPct)
	}

	if c.IndicatorAgreement < 0 || c.IndicatorAgreement > 1 {
		return errors.Newf(errors.ErrCodeInvalidThreshold, "indicator agreement must be in [0, 1], got %v", c.IndicatorAgreement)
	}

	for _, ind := range c.Indicators {
		if !ind.Valid() {
			return errors.Newf(errors.ErrCodeIndicatorNotFound, "unknown indicator %q", ind)
		}
	}

	if err := c.Fees.Validate(); err != nil {
		return err
	}

	return c.StepDown.Validate()
}

// AdvancedDCA buys on indicator agreement with progressive spacing and sells
// each purchase at its fee-aware profit target. Excess profit from a sale
// lowers the cost basis of the most recent open purchase.
type AdvancedDCA struct {
	base
	cfg   AdvancedConfig
	entry *trailing.Machine
}

// NewAdvancedDCA creates an AdvancedDCA strategy.
func NewAdvancedDCA(cfg AdvancedConfig, opts ...Option) (*AdvancedDCA, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts)

	l, err := ledger.New(ledger.Config{
		Symbol:          cfg.Symbol,
		MaxPurchases:    cfg.MaxPurchases,
		Fees:            cfg.Fees,
		ProfitTargetPct: cfg.MinProfitPct,
		NewID:           o.newID,
	}, o.logger.Named("ledger"))
	if err != nil {
		return nil, err
	}

	s := &AdvancedDCA{
		base:  newBase(NameAdvancedDCA, cfg.Symbol, l, o),
		cfg:   cfg,
		entry: trailing.New(),
	}

	s.logger.Info("Advanced DCA strategy initialized",
		zap.String("symbol", cfg.Symbol),
		zap.Float64("amount", cfg.AmountUSD),
		zap.Float64("min_profit_pct", cfg.MinProfitPct),
		zap.Float64("reduction_pool_pct", cfg.ReductionPoolPct),
		zap.Int("max_purchases", cfg.MaxPurchases),
		zap.Float64("step_down_base_pct", cfg.StepDown.BasePct),
		zap.Float64("step_down_multiplier", cfg.StepDown.Multiplier),
		zap.Float64("step_down_max_pct", cfg.StepDown.MaxPct),
		zap.Float64("indicator_agreement", cfg.IndicatorAgreement),
		zap.Int("indicators", len(cfg.Indicators)),
	)

	return s, nil
}

// Config returns the strategy configuration.
func (s *AdvancedDCA) Config() AdvancedConfig {
	return s.cfg
}

// Evaluate implements Strategy.
func (s *AdvancedDCA) Evaluate(tick Tick) []types.Decision {
	if !validPrice(tick.Price) {
		return s.publish(tick, []types.Decision{hold(tick.Price, types.ReasonNoPrice)})
	}

	decisions, selling := s.exits(tick)
	if selling {
		return s.publish(tick, decisions)
	}

	decisions = append(decisions, s.entryDecision(tick))

	return s.publish(tick, decisions)
}

// exits evaluates every open purchase independently. Holds are only produced
// for purchases whose trailing state changed or is in progress.
func (s *AdvancedDCA) exits(tick Tick) ([]types.Decision, bool) {
	decisions := make([]types.Decision, 0)
	selling := false

	for _, p := range s.ledger.OpenPurchases() {
		if p.PendingSale {
			continue
		}

		decision := s.exitFor(p, tick)
		if decision.IsNone() {
			continue
		}

		d := decision.Unwrap()
		if d.Action == types.DecisionActionSell {
			selling = true
			// the ledger only knows the purchase, so this cannot fail
			_ = s.ledger.SetPendingSale(p.ID, true)
		}

		decisions = append(decisions, d)
	}

	return decisions, selling
}

func (s *AdvancedDCA) exitFor(p types.Purchase, tick Tick) optional.Option[types.Decision] {
	if s.cfg.TrailingExitPct <= 0 {
		if tick.Price >= p.TargetSalePrice {
			return optional.Some(sell(p, tick.Price, types.ReasonProfitTarget))
		}

		return optional.None[types.Decision]()
	}

	if !p.Trailing.IsInactive() {
		triggered, err := s.ledger.UpdateTrailing(p.ID, tick.Price, tick.Time)
		if err != nil {
			return optional.None[types.Decision]()
		}

		if triggered {
			return optional.Some(sell(p, tick.Price, types.ReasonTrailingTriggered))
		}

		d := hold(tick.Price, types.ReasonTrailingWaiting)
		d.PurchaseID = p.ID

		return optional.Some(d)
	}

	if tick.Price < p.TargetSalePrice {
		return optional.None[types.Decision]()
	}

	if err := s.ledger.StartTrailing(p.ID, s.cfg.TrailingExitPct, tick.Time); err != nil {
		// a fully reduced purchase has no activation price to trail from
		return optional.Some(sell(p, tick.Price, types.ReasonProfitTarget))
	}

	// seeds the watermark, the target has been crossed already
	if _, err := s.ledger.UpdateTrailing(p.ID, tick.Price, tick.Time); err != nil {
		return optional.None[types.Decision]()
	}

	d := hold(tick.Price, types.ReasonTrailingArmed)
	d.PurchaseID = p.ID

	return optional.Some(d)
}

func (s *AdvancedDCA) entryDecision(tick Tick) types.Decision {
	if tick.Warmup {
		return hold(tick.Price, types.ReasonWarmup)
	}

	if !s.entry.State().IsInactive() {
		return s.trailingEntry(tick)
	}

	if !s.ledger.CanOpen() {
		return hold(tick.Price, types.ReasonCapacityExceeded)
	}

	if recent := s.ledger.MostRecentOpen(); recent.IsSome() {
		n := s.ledger.OpenCount() + 1
		if !s.cfg.StepDown.Satisfied(recent.Unwrap().EntryPrice, tick.Price, n) {
			return hold(tick.Price, types.ReasonStepDownNotMet)
		}
	}

	yes, total := tick.Snapshot.Vote(s.cfg.Indicators)
	if !AgreementMet(yes, total, s.cfg.IndicatorAgreement) {
		return hold(tick.Price, types.ReasonIndicatorsDisagree)
	}

	if s.cfg.TrailingEntryPct > 0 {
		if err := s.entry.Start(types.TrailingDirectionDown, tick.Price, s.cfg.TrailingEntryPct, tick.Time); err != nil {
			return hold(tick.Price, types.ReasonInvalidParameter)
		}

		s.entry.Update(tick.Price, tick.Time)
		s.touch()

		return hold(tick.Price, types.ReasonIndicatorsAgree, types.ReasonTrailingArmed)
	}

	return s.buy(tick.Price, types.ReasonIndicatorsAgree)
}

// trailingEntry follows the price down and buys once it rebounds by the trailing percentage.
func (s *AdvancedDCA) trailingEntry(tick Tick) types.Decision {
	triggered := s.entry.Update(tick.Price, tick.Time)
	s.touch()

	if !triggered {
		return hold(tick.Price, types.ReasonTrailingWaiting)
	}

	s.entry.Reset()

	if !s.ledger.CanOpen() {
		return hold(tick.Price, types.ReasonCapacityExceeded)
	}

	// the rebound may have lifted the price back above the step-down gate
	if recent := s.ledger.MostRecentOpen(); recent.IsSome() {
		n := s.ledger.OpenCount() + 1
		if !s.cfg.StepDown.Satisfied(recent.Unwrap().EntryPrice, tick.Price, n) {
			return hold(tick.Price, types.ReasonStepDownNotMet)
		}
	}

	return s.buy(tick.Price, types.ReasonTrailingTriggered)
}

func (s *AdvancedDCA) buy(price float64, reasons ...types.ReasonCode) types.Decision {
	quantity, err := s.cfg.Fees.QuantityFor(s.cfg.AmountUSD, price)
	if err != nil {
		s.logger.Warn("Cannot size buy", zap.Float64("price", price), zap.Error(err))

		return hold(price, types.ReasonInvalidParameter)
	}

	return types.Decision{
		Action:   types.DecisionActionBuy,
		Price:    price,
		Quantity: quantity,
		Notional: s.cfg.AmountUSD,
		Reasons:  reasons,
	}
}

// OnFill implements Strategy.
func (s *AdvancedDCA) OnFill(fill types.Fill) error {
	switch fill.Side {
	case types.SideBuy:
		return s.openFromFill(fill)
	case types.SideSell:
		trade, err := s.closeFromFill(fill)
		if err != nil {
			return err
		}

		s.reduce(trade)

		return nil
	default:
		return errors.Newf(errors.ErrCodeInvalidFill, "unknown fill side %q", fill.Side)
	}
}

// reduce applies the pooled excess profit of trade to the most recent open purchase.
func (s *AdvancedDCA) reduce(trade types.ClosedTrade) {
	minimum := decimal.NewFromFloat(s.cfg.MinProfitPct).Mul(decimal.NewFromFloat(trade.CostBasis))
	excess := decimal.NewFromFloat(trade.RealizedProfit).Sub(minimum)

	s.logger.Info("Sale complete",
		zap.String("purchase_id", trade.Purchase.ID),
		zap.Float64("proceeds", trade.SaleProceeds),
		zap.Float64("cost_basis", trade.CostBasis),
		zap.Float64("profit", trade.RealizedProfit),
		zap.Float64("excess", excess.InexactFloat64()),
	)

	// an excess at or below zero is skipped rather than charged to another purchase
	if !excess.IsPositive() || s.cfg.ReductionPoolPct <= 0 {
		return
	}

	recent := s.ledger.MostRecentOpen()
	if recent.IsNone() {
		return
	}

	target := recent.Unwrap()
	requested := excess.Mul(decimal.NewFromFloat(s.cfg.ReductionPoolPct)).InexactFloat64()

	applied, err := s.ledger.ApplyReduction(target.ID, requested)
	if err != nil {
		s.logger.Error("Failed to apply reduction", zap.String("purchase_id", target.ID), zap.Error(err))

		return
	}

	updated, _ := s.ledger.Purchase(target.ID)
	s.events.reduction(types.ReductionEvent{
		Time:           trade.SaleTime,
		SourceID:       trade.Purchase.ID,
		TargetID:       target.ID,
		Requested:      requested,
		Applied:        applied,
		NewCostBasis:   updated.CostBasis(),
		NewTargetPrice: updated.TargetSalePrice,
	})
}

// Snapshot implements Strategy.
func (s *AdvancedDCA) Snapshot() State {
	state := s.snapshotState()
	state.EntryTrailing = s.entry.State()

	return state
}

// Restore implements Strategy.
func (s *AdvancedDCA) Restore(state State) error {
	if err := s.restoreState(state); err != nil {
		return err
	}

	s.entry = trailing.FromState(state.EntryTrailing)
	s.touch()

	return nil
}

// AgreementMet reports whether yes out of total indicator votes meet the
// threshold. Reaching the threshold exactly passes, except for an even split
// of the votes, which never buys. A unanimous vote always passes, and so does
// an empty vote when no indicator is enabled.
func AgreementMet(yes, total int, threshold float64) bool {
	if total == 0 || yes == total {
		return true
	}

	votes := decimal.NewFromInt(int64(yes))
	required := decimal.NewFromInt(int64(total)).Mul(decimal.NewFromFloat(threshold))

	if votes.Equal(required) {
		return 2*yes != total
	}

	return votes.GreaterThan(required)
}

func sell(p types.Purchase, price float64, reason types.ReasonCode) types.Decision {
	return types.Decision{
		Action:     types.DecisionActionSell,
		PurchaseID: p.ID,
		Price:      price,
		Quantity:   p.Quantity,
		Notional:   p.Quantity * price,
		Reasons:    []types.ReasonCode{reason},
	}
}
