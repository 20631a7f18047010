package strategy

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/ledger"
	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/internal/version"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// Option configures a strategy instance.
type Option func(*options)

type options struct {
	sink   EventSink
	logger *logger.Logger
	newID  func() string
}

// WithEventSink sets the receiver of decision events.
func WithEventSink(sink EventSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithLogger sets the strategy logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithIDGenerator overrides how purchase ids are generated.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

func buildOptions(opts []Option) options {
	o := options{
		sink:   nil,
		logger: logger.NewNopLogger(),
		newID:  nil,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = logger.NewNopLogger()
	}

	return o
}

// base holds what every strategy shares: the ledger, event numbering and counters.
type base struct {
	name        Name
	symbol      string
	ledger      *ledger.Ledger
	events      emitter
	logger      *logger.Logger
	lastBuyTime time.Time
	buys        int
	sells       int
	skipped     int
	// revision counts changes to strategy-owned state outside the ledger
	revision uint64
}

func newBase(name Name, symbol string, l *ledger.Ledger, o options) base {
	return base{
		name:   name,
		symbol: symbol,
		ledger: l,
		events: emitter{
			name:     name,
			symbol:   symbol,
			sink:     o.sink,
			sequence: 0,
		},
		logger: o.logger.Named(string(name)),
	}
}

// Name returns the strategy identifier.
func (b *base) Name() Name {
	return b.name
}

// Symbol returns the traded symbol.
func (b *base) Symbol() string {
	return b.symbol
}

// Ledger exposes the purchase ledger. Callers must not mutate it.
func (b *base) Ledger() *ledger.Ledger {
	return b.ledger
}

// Revision implements Strategy.
func (b *base) Revision() uint64 {
	return b.ledger.Revision() + b.revision
}

func (b *base) touch() {
	b.revision++
}

// Reject reports that a decision could not be executed. A rejected sell is
// released so it is retried next cycle; a rejected buy counts as a skipped entry.
func (b *base) Reject(tick Tick, decision types.Decision, cause error) {
	reason := types.ReasonFillRejected
	if errors.HasCode(cause, errors.ErrCodeInsufficientFunds) {
		reason = types.ReasonInsufficientFunds
	}

	switch decision.Action {
	case types.DecisionActionSell:
		if err := b.ledger.SetPendingSale(decision.PurchaseID, false); err != nil {
			b.logger.Warn("Rejected sell for unknown purchase", zap.String("purchase_id", decision.PurchaseID))
		}
	case types.DecisionActionBuy:
		b.skipped++
	}

	message := ""
	if cause != nil {
		message = cause.Error()
	}

	// capacity, funds and rate limits are routine, anything else is worth a warning
	if errors.IsRecoverable(cause) {
		b.logger.Debug("Decision rejected", zap.String("action", string(decision.Action)), zap.String("cause", message))
	} else {
		b.logger.Warn("Decision rejected", zap.String("action", string(decision.Action)), zap.String("cause", message))
	}

	skip := hold(decision.Price, reason)
	skip.PurchaseID = decision.PurchaseID
	b.events.emit(tick, skip, message)
}

// SkippedEntries is the number of buys rejected by execution.
func (b *base) SkippedEntries() int {
	return b.skipped
}

func (b *base) publish(tick Tick, decisions []types.Decision) []types.Decision {
	for _, d := range decisions {
		b.events.emit(tick, d, "")
	}

	return decisions
}

// openFromFill records a filled buy. The fee-inclusive cost is price x quantity plus the fee.
func (b *base) openFromFill(fill types.Fill) error {
	if !validPrice(fill.Price) || !validPrice(fill.Quantity) || fill.Fee < 0 {
		return errors.Newf(errors.ErrCodeInvalidFill, "invalid buy fill price=%v quantity=%v fee=%v", fill.Price, fill.Quantity, fill.Fee)
	}

	cost := decimal.NewFromFloat(fill.Price).
		Mul(decimal.NewFromFloat(fill.Quantity)).
		Add(decimal.NewFromFloat(fill.Fee))

	id, err := b.ledger.Open(fill.Price, fill.Quantity, cost.InexactFloat64(), fill.Time)
	if err != nil {
		return err
	}

	b.lastBuyTime = fill.Time
	b.buys++

	b.logger.Debug("Buy filled",
		zap.String("purchase_id", id),
		zap.Float64("price", fill.Price),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("cost", cost.InexactFloat64()),
	)

	return nil
}

// closeFromFill records a filled sell of a whole purchase.
func (b *base) closeFromFill(fill types.Fill) (types.ClosedTrade, error) {
	purchase, ok := b.ledger.Purchase(fill.PurchaseID)
	if !ok {
		return types.ClosedTrade{}, errors.Newf(errors.ErrCodePurchaseNotFound, "purchase %s is not open", fill.PurchaseID)
	}

	if math.Abs(purchase.Quantity-fill.Quantity) > 1e-9*math.Max(1, purchase.Quantity) {
		return types.ClosedTrade{}, errors.Newf(errors.ErrCodeInvalidFill, "partial sell of %v out of %v is not supported", fill.Quantity, purchase.Quantity)
	}

	trade, err := b.ledger.Close(fill.PurchaseID, fill.Price, fill.Time)
	if err != nil {
		return types.ClosedTrade{}, err
	}

	b.sells++

	return trade, nil
}

func (b *base) snapshotState() State {
	return State{
		Version:      version.StateVersion,
		Strategy:     b.name,
		Symbol:       b.symbol,
		Ledger:       b.ledger.Snapshot(),
		Sequence:     b.events.sequence,
		LastBuyTime:  b.lastBuyTime,
		BuyCount:     b.buys,
		SellCount:    b.sells,
		SkippedCount: b.skipped,
	}
}

func (b *base) restoreState(state State) error {
	if state.Strategy != b.name {
		return errors.Newf(errors.ErrCodeStateLoadFailed, "state belongs to strategy %q, not %q", state.Strategy, b.name)
	}

	if state.Symbol != b.symbol {
		return errors.Newf(errors.ErrCodeStateLoadFailed, "state belongs to symbol %q, not %q", state.Symbol, b.symbol)
	}

	if err := b.ledger.Restore(state.Ledger); err != nil {
		return err
	}

	b.events.sequence = state.Sequence
	b.lastBuyTime = state.LastBuyTime
	b.buys = state.BuyCount
	b.sells = state.SellCount
	b.skipped = state.SkippedCount

	b.logger.Info("State restored",
		zap.Int("open_purchases", b.ledger.OpenCount()),
		zap.Float64("total_profit", b.ledger.TotalProfit()),
		zap.Float64("total_reduction", b.ledger.TotalReduction()),
	)

	return nil
}

func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
