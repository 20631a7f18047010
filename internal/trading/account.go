package trading

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/internal/utils"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// NoRounding leaves fill quantities untouched.
const NoRounding = -1

// cashTolerance absorbs float noise when a buy spends exactly the remaining cash.
var cashTolerance = decimal.New(1, -9)

// AccountConfig configures a simulated cash account.
type AccountConfig struct {
	InitialCash float64
	Fees        fee.Schedule
	// DecimalPrecision rounds buy quantities down, NoRounding disables it.
	DecimalPrecision int
	// NewOrderID generates fill order ids. Defaults to uuid.NewString.
	NewOrderID func() string
}

// Account fills decisions immediately at the decision price and keeps cash.
// It is used by the backtest simulator and by paper trading.
type Account struct {
	mu         sync.Mutex
	cfg        AccountConfig
	cash       decimal.Decimal
	totalFees  decimal.Decimal
	newOrderID func() string
	logger     *logger.Logger
}

// NewAccount creates an account holding cfg.InitialCash.
func NewAccount(cfg AccountConfig, log *logger.Logger) (*Account, error) {
	if cfg.InitialCash < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "initial cash must not be negative, got %v", cfg.InitialCash)
	}

	if err := cfg.Fees.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	newOrderID := cfg.NewOrderID
	if newOrderID == nil {
		newOrderID = uuid.NewString
	}

	return &Account{
		mu:         sync.Mutex{},
		cfg:        cfg,
		cash:       decimal.NewFromFloat(cfg.InitialCash),
		totalFees:  decimal.Zero,
		newOrderID: newOrderID,
		logger:     log,
	}, nil
}

// Cash implements Executor.
func (a *Account) Cash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.cash.InexactFloat64()
}

// TotalFees implements Executor.
func (a *Account) TotalFees() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.totalFees.InexactFloat64()
}

// SetCash overrides the balance, used when restoring a paper session.
func (a *Account) SetCash(cash, totalFees float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cash = decimal.NewFromFloat(cash)
	a.totalFees = decimal.NewFromFloat(totalFees)
}

// Reset restores the initial balance and clears fees.
func (a *Account) Reset() {
	a.SetCash(a.cfg.InitialCash, 0)
}

// MaxBuyQuantity is the largest quantity the current cash buys at price.
func (a *Account) MaxBuyQuantity(price float64) float64 {
	return utils.CalculateMaxQuantity(a.Cash(), price, a.cfg.Fees, a.cfg.DecimalPrecision)
}

// Execute implements Executor.
func (a *Account) Execute(decision types.Decision, at time.Time) (types.Fill, error) {
	if decision.Price <= 0 {
		return types.Fill{}, errors.Newf(errors.ErrCodeInvalidParameter, "fill price must be positive, got %v", decision.Price)
	}

	switch decision.Action {
	case types.DecisionActionBuy:
		return a.buy(decision, at)
	case types.DecisionActionSell:
		return a.sell(decision, at)
	default:
		return types.Fill{}, errors.Newf(errors.ErrCodeOrderFailed, "cannot execute %s decision", decision.Action)
	}
}

func (a *Account) buy(decision types.Decision, at time.Time) (types.Fill, error) {
	quantity := decision.Quantity
	if a.cfg.DecimalPrecision >= 0 {
		quantity = utils.RoundToDecimalPrecision(quantity, a.cfg.DecimalPrecision)
	}

	if quantity <= 0 {
		return types.Fill{}, errors.Newf(errors.ErrCodeInvalidParameter, "buy quantity %v rounds to zero", decision.Quantity)
	}

	notional := decimal.NewFromFloat(decision.Price).Mul(decimal.NewFromFloat(quantity))
	buyFee := notional.Mul(decimal.NewFromFloat(a.cfg.Fees.Maker))
	total := notional.Add(buyFee)

	a.mu.Lock()
	defer a.mu.Unlock()

	if total.GreaterThan(a.cash.Add(cashTolerance)) {
		return types.Fill{}, errors.Newf(errors.ErrCodeInsufficientFunds,
			"buy needs %s but only %s is available", total.StringFixed(2), a.cash.StringFixed(2))
	}

	a.cash = a.cash.Sub(total)
	if a.cash.IsNegative() {
		a.cash = decimal.Zero
	}

	a.totalFees = a.totalFees.Add(buyFee)

	fill := types.Fill{
		OrderID:    a.newOrderID(),
		Side:       types.SideBuy,
		PurchaseID: "",
		Price:      decision.Price,
		Quantity:   quantity,
		Fee:        buyFee.InexactFloat64(),
		Time:       at,
	}

	a.logger.Debug("Buy executed",
		zap.String("order_id", fill.OrderID),
		zap.Float64("price", fill.Price),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("fee", fill.Fee),
		zap.String("cash", a.cash.StringFixed(2)),
	)

	return fill, nil
}

func (a *Account) sell(decision types.Decision, at time.Time) (types.Fill, error) {
	if decision.Quantity <= 0 {
		return types.Fill{}, errors.Newf(errors.ErrCodeInvalidParameter, "sell quantity must be positive, got %v", decision.Quantity)
	}

	notional := decimal.NewFromFloat(decision.Price).Mul(decimal.NewFromFloat(decision.Quantity))
	sellFee := notional.Mul(decimal.NewFromFloat(a.cfg.Fees.Taker))

	a.mu.Lock()
	defer a.mu.Unlock()

	a.cash = a.cash.Add(notional.Sub(sellFee))
	a.totalFees = a.totalFees.Add(sellFee)

	fill := types.Fill{
		OrderID:    a.newOrderID(),
		Side:       types.SideSell,
		PurchaseID: decision.PurchaseID,
		Price:      decision.Price,
		Quantity:   decision.Quantity,
		Fee:        sellFee.InexactFloat64(),
		Time:       at,
	}

	a.logger.Debug("Sell executed",
		zap.String("order_id", fill.OrderID),
		zap.String("purchase_id", fill.PurchaseID),
		zap.Float64("price", fill.Price),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("fee", fill.Fee),
		zap.String("cash", a.cash.StringFixed(2)),
	)

	return fill, nil
}
