package fee

import (
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// Schedule is a maker/taker fee pair. Buys pay Maker, sells pay Taker.
type Schedule struct {
	Maker float64 `yaml:"maker" json:"maker"`
	Taker float64 `yaml:"taker" json:"taker"`
}

// Validate checks both fees are in [0, 1).
func (s Schedule) Validate() error {
	if err := validatePct("maker fee", s.Maker); err != nil {
		return err
	}

	return validatePct("taker fee", s.Taker)
}

// BuyFee is the fee paid on a buy of the given notional.
func (s Schedule) BuyFee(notional float64) float64 {
	return decimal.NewFromFloat(notional).Mul(decimal.NewFromFloat(s.Maker)).InexactFloat64()
}

// SellFee is the fee paid on a sale of the given notional.
func (s Schedule) SellFee(notional float64) float64 {
	return decimal.NewFromFloat(notional).Mul(decimal.NewFromFloat(s.Taker)).InexactFloat64()
}

// QuantityFor returns the units that a fee-inclusive budget buys at price.
func (s Schedule) QuantityFor(budget, price float64) (float64, error) {
	if price <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "price must be positive, got %v", price)
	}

	if budget < 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "budget must not be negative, got %v", budget)
	}

	unitCost := decimal.NewFromFloat(price).Mul(one.Add(decimal.NewFromFloat(s.Maker)))

	return decimal.NewFromFloat(budget).Div(unitCost).InexactFloat64(), nil
}

// TargetSalePrice applies the schedule to the package level calculator.
func (s Schedule) TargetSalePrice(buyPrice, profitTargetPct float64) (float64, error) {
	return TargetSalePrice(buyPrice, s.Maker, s.Taker, profitTargetPct)
}

// Exchange names a venue with a known default fee schedule.
type Exchange string

const (
	ExchangeBinance  Exchange = "binance"
	ExchangeCoinbase Exchange = "coinbase"
	ExchangeKraken   Exchange = "kraken"
	ExchangeZero     Exchange = "zero_fee"
)

var AllExchanges = []any{
	ExchangeBinance,
	ExchangeCoinbase,
	ExchangeKraken,
	ExchangeZero,
}

// GetSchedule returns the default spot schedule of an exchange.
// Unknown exchanges fall back to the zero schedule.
func GetSchedule(exchange Exchange) Schedule {
	switch exchange {
	case ExchangeBinance:
		return Schedule{Maker: 0.001, Taker: 0.001}
	case ExchangeCoinbase:
		return Schedule{Maker: 0.004, Taker: 0.006}
	case ExchangeKraken:
		return Schedule{Maker: 0.0016, Taker: 0.0026}
	case ExchangeZero:
		return Schedule{Maker: 0, Taker: 0}
	default:
		return Schedule{Maker: 0, Taker: 0}
	}
}
