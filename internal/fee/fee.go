// Package fee converts a purchase price and a maker/taker fee schedule into a
// fee-aware target sale price, and verifies the realized profit of a sale.
//
// All percentages are fractions: 0.001 is 0.1%.
package fee

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

var one = decimal.NewFromInt(1)

// TargetSalePrice returns the sale price at which the realized profit equals
// profitTargetPct of the fee-inclusive cost.
//
//	cost       = buyPrice * (1 + maker)
//	withProfit = cost * (1 + profit)
//	sale       = withProfit / (1 - taker)
func TargetSalePrice(buyPrice, makerFeePct, takerFeePct, profitTargetPct float64) (float64, error) {
	if err := validatePrice("buy price", buyPrice); err != nil {
		return 0, err
	}

	if err := validatePct("maker fee", makerFeePct); err != nil {
		return 0, err
	}

	if err := validatePct("taker fee", takerFeePct); err != nil {
		return 0, err
	}

	if err := validatePct("profit target", profitTargetPct); err != nil {
		return 0, err
	}

	cost := decimal.NewFromFloat(buyPrice).Mul(one.Add(decimal.NewFromFloat(makerFeePct)))
	withProfit := cost.Mul(one.Add(decimal.NewFromFloat(profitTargetPct)))
	sale := withProfit.Div(one.Sub(decimal.NewFromFloat(takerFeePct)))

	return sale.InexactFloat64(), nil
}

// RealizedProfitPct is the inverse of TargetSalePrice: the profit fraction
// realized when buying at buyPrice and selling at salePrice after both fees.
func RealizedProfitPct(buyPrice, salePrice, makerFeePct, takerFeePct float64) (float64, error) {
	if err := validatePrice("buy price", buyPrice); err != nil {
		return 0, err
	}

	if err := validatePrice("sale price", salePrice); err != nil {
		return 0, err
	}

	if err := validatePct("maker fee", makerFeePct); err != nil {
		return 0, err
	}

	if err := validatePct("taker fee", takerFeePct); err != nil {
		return 0, err
	}

	cost := decimal.NewFromFloat(buyPrice).Mul(one.Add(decimal.NewFromFloat(makerFeePct)))
	if cost.IsZero() {
		return 0, errors.New(errors.ErrCodeInvalidParameter, "buy price must be positive to compute a profit percentage")
	}

	proceeds := decimal.NewFromFloat(salePrice).Mul(one.Sub(decimal.NewFromFloat(takerFeePct)))

	return proceeds.Sub(cost).Div(cost).InexactFloat64(), nil
}

func validatePct(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "%s must be a finite number", name)
	}

	if v < 0 || v >= 1 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "%s must be in [0, 1), got %v", name, v)
	}

	return nil
}

func validatePrice(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "%s must be a finite number", name)
	}

	if v < 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "%s must not be negative, got %v", name, v)
	}

	return nil
}
