package utils

import (
	"math"

	"github.com/rxtech-lab/argo-dca/internal/fee"
)

// CalculateMaxQuantity returns the largest quantity whose notional plus the
// buy fee fits in balance. A negative decimalPrecision disables rounding.
func CalculateMaxQuantity(balance float64, price float64, fees fee.Schedule, decimalPrecision int) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}

	quantity, err := fees.QuantityFor(balance, price)
	if err != nil {
		return 0
	}

	if decimalPrecision < 0 {
		return quantity
	}

	return RoundToDecimalPrecision(quantity, decimalPrecision)
}

// RoundToDecimalPrecision rounds the quantity down to the specified decimal precision.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	multiplier := math.Pow10(decimalPrecision)

	return math.Floor(quantity*multiplier) / multiplier
}
