// Package ledger is the authoritative record of open and closed purchases.
//
// Open purchases are kept in entry order. The most recently opened purchase
// receives cost-basis reductions and anchors the progressive step-down gate,
// so the order is part of the ledger's contract, not an iteration detail.
package ledger

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/trailing"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// Unlimited disables the concurrent purchase bound.
const Unlimited = -1

// Config configures a Ledger.
type Config struct {
	Symbol string
	// MaxPurchases bounds concurrently open purchases. Unlimited (-1) disables the check.
	MaxPurchases int
	Fees         fee.Schedule
	// ProfitTargetPct is the profit fraction every target sale price is computed for.
	ProfitTargetPct float64
	// NewID generates purchase ids. Defaults to random UUIDs.
	NewID func() string
}

// Ledger tracks purchases for a single strategy instance. It is not safe for
// concurrent use; the owning strategy serializes access.
type Ledger struct {
	cfg            Config
	open           []types.Purchase
	closed         []types.ClosedTrade
	totalProfit    decimal.Decimal
	totalReduction decimal.Decimal
	revision       uint64
	logger         *logger.Logger
}

// New creates an empty ledger.
func New(cfg Config, log *logger.Logger) (*Ledger, error) {
	if cfg.MaxPurchases == 0 || cfg.MaxPurchases < Unlimited {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "max purchases must be -1 (unlimited) or positive, got %d", cfg.MaxPurchases)
	}

	if err := cfg.Fees.Validate(); err != nil {
		return nil, err
	}

	if cfg.ProfitTargetPct < 0 || cfg.ProfitTargetPct >= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "profit target must be in [0, 1), got %v", cfg.ProfitTargetPct)
	}

	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Ledger{
		cfg:            cfg,
		open:           make([]types.Purchase, 0),
		closed:         make([]types.ClosedTrade, 0),
		totalProfit:    decimal.Zero,
		totalReduction: decimal.Zero,
		logger:         log,
	}, nil
}

// Config returns the ledger configuration.
func (l *Ledger) Config() Config {
	return l.cfg
}

// Revision increases with every change to the ledger contents, including
// trailing and pending-sale updates.
func (l *Ledger) Revision() uint64 {
	return l.revision
}

// CanOpen reports whether another purchase fits under MaxPurchases.
func (l *Ledger) CanOpen() bool {
	return l.cfg.MaxPurchases == Unlimited || len(l.open) < l.cfg.MaxPurchases
}

// OpenCount returns the number of open purchases.
func (l *Ledger) OpenCount() int {
	return len(l.open)
}

// Open appends a new open purchase and returns its id. cost is the
// fee-inclusive amount paid. It fails with ErrCodeCapacityExceeded when the
// configured bound is reached.
func (l *Ledger) Open(price, quantity, cost float64, at time.Time) (string, error) {
	if !l.CanOpen() {
		return "", errors.Newf(errors.ErrCodeCapacityExceeded, "max purchases reached (%d)", l.cfg.MaxPurchases)
	}

	if !isPositive(price) || !isPositive(quantity) {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "price and quantity must be positive, got price=%v quantity=%v", price, quantity)
	}

	if math.IsNaN(cost) || cost < 0 {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "cost must not be negative, got %v", cost)
	}

	if last, ok := l.last(); ok && at.Before(last.EntryTime) {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "purchase time %s is before the most recent entry %s", at, last.EntryTime)
	}

	purchase := types.Purchase{
		ID:              l.cfg.NewID(),
		Symbol:          l.cfg.Symbol,
		EntryPrice:      price,
		Quantity:        quantity,
		EntryCost:       cost,
		EntryTime:       at,
		Reduction:       0,
		TargetSalePrice: 0,
		PendingSale:     false,
		Trailing:        trailing.New().State(),
	}

	target, err := l.targetFor(purchase)
	if err != nil {
		return "", err
	}

	purchase.TargetSalePrice = target
	l.open = append(l.open, purchase)
	l.revision++

	l.logger.Debug("Purchase opened",
		zap.String("id", purchase.ID),
		zap.Float64("price", price),
		zap.Float64("quantity", quantity),
		zap.Float64("cost", cost),
		zap.Float64("target_sale_price", target),
		zap.Int("open", len(l.open)),
	)

	return purchase.ID, nil
}

// Close moves a purchase to the closed history. Realized profit is the sale
// proceeds after the sell fee minus the current cost basis. The purchase's
// trailing state is reset. It fails with ErrCodePurchaseNotFound when the id
// is not open.
func (l *Ledger) Close(id string, salePrice float64, at time.Time) (types.ClosedTrade, error) {
	idx := l.indexOf(id)
	if idx < 0 {
		return types.ClosedTrade{}, errors.Newf(errors.ErrCodePurchaseNotFound, "purchase %s is not open", id)
	}

	if math.IsNaN(salePrice) || salePrice < 0 {
		return types.ClosedTrade{}, errors.Newf(errors.ErrCodeInvalidParameter, "sale price must not be negative, got %v", salePrice)
	}

	purchase := l.open[idx]
	purchase.PendingSale = false
	purchase.Trailing = trailing.New().State()

	notional := decimal.NewFromFloat(purchase.Quantity).Mul(decimal.NewFromFloat(salePrice))
	saleFee := notional.Mul(decimal.NewFromFloat(l.cfg.Fees.Taker))
	proceeds := notional.Sub(saleFee)
	basis := decimal.NewFromFloat(purchase.CostBasis())
	profit := proceeds.Sub(basis)

	profitPct := decimal.Zero
	if basis.IsPositive() {
		profitPct = profit.Div(basis)
	}

	trade := types.ClosedTrade{
		Purchase:          purchase,
		CostBasis:         basis.InexactFloat64(),
		SalePrice:         salePrice,
		SaleTime:          at,
		SaleProceeds:      proceeds.InexactFloat64(),
		SaleFee:           saleFee.InexactFloat64(),
		RealizedProfit:    profit.InexactFloat64(),
		RealizedProfitPct: profitPct.InexactFloat64(),
	}

	l.open = append(l.open[:idx], l.open[idx+1:]...)
	l.closed = append(l.closed, trade)
	l.totalProfit = l.totalProfit.Add(profit)
	l.revision++

	l.logger.Debug("Purchase closed",
		zap.String("id", id),
		zap.Float64("sale_price", salePrice),
		zap.Float64("cost_basis", trade.CostBasis),
		zap.Float64("realized_profit", trade.RealizedProfit),
		zap.Int("open", len(l.open)),
	)

	return trade, nil
}

// ApplyReduction lowers the cost basis of an open purchase by amount and
// recomputes its target sale price. The basis floors at zero and any excess
// is discarded. It returns the amount actually applied.
func (l *Ledger) ApplyReduction(id string, amount float64) (float64, error) {
	if math.IsNaN(amount) || amount < 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "reduction must not be negative, got %v", amount)
	}

	idx := l.indexOf(id)
	if idx < 0 {
		return 0, errors.Newf(errors.ErrCodePurchaseNotFound, "purchase %s is not open", id)
	}

	purchase := l.open[idx]

	applied := decimal.Min(decimal.NewFromFloat(amount), decimal.NewFromFloat(purchase.CostBasis()))
	if !applied.IsPositive() {
		return 0, nil
	}

	purchase.Reduction = decimal.NewFromFloat(purchase.Reduction).Add(applied).InexactFloat64()
	if purchase.Reduction > purchase.EntryCost {
		purchase.Reduction = purchase.EntryCost
	}

	previousTarget := purchase.TargetSalePrice
	if err := l.retarget(&purchase); err != nil {
		return 0, err
	}

	target := purchase.TargetSalePrice

	l.open[idx] = purchase
	l.totalReduction = l.totalReduction.Add(applied)
	l.revision++

	l.logger.Debug("Cost basis reduced",
		zap.String("id", id),
		zap.Float64("requested", amount),
		zap.Float64("applied", applied.InexactFloat64()),
		zap.Float64("cost_basis", purchase.CostBasis()),
		zap.Float64("previous_target", previousTarget),
		zap.Float64("target_sale_price", target),
	)

	return applied.InexactFloat64(), nil
}

// MostRecentOpen returns the latest opened purchase that is still open.
func (l *Ledger) MostRecentOpen() optional.Option[types.Purchase] {
	if p, ok := l.last(); ok {
		return optional.Some(p)
	}

	return optional.None[types.Purchase]()
}

// Purchase returns an open purchase by id.
func (l *Ledger) Purchase(id string) (types.Purchase, bool) {
	idx := l.indexOf(id)
	if idx < 0 {
		return types.Purchase{}, false
	}

	return l.open[idx], true
}

// OpenPurchases returns a copy of the open purchases in entry order.
func (l *Ledger) OpenPurchases() []types.Purchase {
	out := make([]types.Purchase, len(l.open))
	copy(out, l.open)

	return out
}

// ClosedTrades returns a copy of the closed history in close order.
func (l *Ledger) ClosedTrades() []types.ClosedTrade {
	out := make([]types.ClosedTrade, len(l.closed))
	copy(out, l.closed)

	return out
}

// TotalProfit is the sum of realized profit over all closed purchases.
func (l *Ledger) TotalProfit() float64 {
	return l.totalProfit.InexactFloat64()
}

// TotalReduction is the sum of all applied cost-basis reductions.
func (l *Ledger) TotalReduction() float64 {
	return l.totalReduction.InexactFloat64()
}

// MarketValue marks all open purchases at price.
func (l *Ledger) MarketValue(price float64) float64 {
	total := decimal.Zero
	for _, p := range l.open {
		total = total.Add(decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(price)))
	}

	return total.InexactFloat64()
}

// SetPendingSale flags a purchase as having a sale in flight.
func (l *Ledger) SetPendingSale(id string, pending bool) error {
	idx := l.indexOf(id)
	if idx < 0 {
		return errors.Newf(errors.ErrCodePurchaseNotFound, "purchase %s is not open", id)
	}

	if l.open[idx].PendingSale != pending {
		l.open[idx].PendingSale = pending
		l.revision++
	}

	return nil
}

// StartTrailing arms an exit trail on a purchase, activating at its target sale price.
func (l *Ledger) StartTrailing(id string, trailingPct float64, at time.Time) error {
	idx := l.indexOf(id)
	if idx < 0 {
		return errors.Newf(errors.ErrCodePurchaseNotFound, "purchase %s is not open", id)
	}

	machine := trailing.FromState(l.open[idx].Trailing)
	if err := machine.Start(types.TrailingDirectionUp, l.open[idx].TargetSalePrice, trailingPct, at); err != nil {
		return err
	}

	l.open[idx].Trailing = machine.State()
	l.revision++

	return nil
}

// UpdateTrailing feeds price to a purchase's trail and reports whether it triggered.
func (l *Ledger) UpdateTrailing(id string, price float64, at time.Time) (bool, error) {
	idx := l.indexOf(id)
	if idx < 0 {
		return false, errors.Newf(errors.ErrCodePurchaseNotFound, "purchase %s is not open", id)
	}

	machine := trailing.FromState(l.open[idx].Trailing)
	triggered := machine.Update(price, at)
	l.open[idx].Trailing = machine.State()
	l.revision++

	return triggered, nil
}

// ResetTrailing returns a purchase's trail to inactive.
func (l *Ledger) ResetTrailing(id string) error {
	idx := l.indexOf(id)
	if idx < 0 {
		return errors.Newf(errors.ErrCodePurchaseNotFound, "purchase %s is not open", id)
	}

	l.open[idx].Trailing = trailing.New().State()
	l.revision++

	return nil
}

// retarget recomputes the target sale price of p from its current cost basis.
// A trail that has not activated yet follows the new target.
func (l *Ledger) retarget(p *types.Purchase) error {
	target, err := l.targetFor(*p)
	if err != nil {
		return err
	}

	changed := target != p.TargetSalePrice
	p.TargetSalePrice = target

	if changed && p.Trailing.Status == types.TrailingStatusWaiting && target > 0 {
		machine := trailing.New()
		if err := machine.Start(types.TrailingDirectionUp, target, p.Trailing.TrailingPct, p.Trailing.LastUpdate); err == nil {
			p.Trailing = machine.State()
		}
	}

	return nil
}

func (l *Ledger) targetFor(p types.Purchase) (float64, error) {
	// unit price that, with the buy fee, reproduces the current cost basis
	unitCost := decimal.NewFromFloat(p.CostBasis()).Div(decimal.NewFromFloat(p.Quantity))
	effectivePrice := unitCost.Div(decimal.NewFromInt(1).Add(decimal.NewFromFloat(l.cfg.Fees.Maker)))

	return l.cfg.Fees.TargetSalePrice(effectivePrice.InexactFloat64(), l.cfg.ProfitTargetPct)
}

func (l *Ledger) indexOf(id string) int {
	for i := range l.open {
		if l.open[i].ID == id {
			return i
		}
	}

	return -1
}

func (l *Ledger) last() (types.Purchase, bool) {
	if len(l.open) == 0 {
		return types.Purchase{}, false
	}

	return l.open[len(l.open)-1], true
}

func isPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
