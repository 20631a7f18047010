package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is one unit of acquired inventory with its own cost basis and exit target.
type Purchase struct {
	ID     string `json:"id" yaml:"id"`
	Symbol string `json:"symbol" yaml:"symbol"`
	// EntryPrice is the fill price per unit, fees excluded.
	EntryPrice float64 `json:"entry_price" yaml:"entry_price"`
	Quantity   float64 `json:"quantity" yaml:"quantity"`
	// EntryCost is price x quantity plus the buy fee.
	EntryCost float64   `json:"entry_cost" yaml:"entry_cost"`
	EntryTime time.Time `json:"entry_time" yaml:"entry_time"`
	// Reduction is the cumulative cost-basis reduction applied from later sales.
	Reduction       float64       `json:"reduction" yaml:"reduction"`
	TargetSalePrice float64       `json:"target_sale_price" yaml:"target_sale_price"`
	PendingSale     bool          `json:"pending_sale" yaml:"pending_sale"`
	Trailing        TrailingState `json:"trailing" yaml:"trailing"`
}

// CostBasis is the entry cost minus reductions, never negative.
func (p Purchase) CostBasis() float64 {
	basis := decimal.NewFromFloat(p.EntryCost).Sub(decimal.NewFromFloat(p.Reduction))
	if basis.IsNegative() {
		return 0
	}

	return basis.InexactFloat64()
}

// MarketValue marks the purchase at the given price.
func (p Purchase) MarketValue(price float64) float64 {
	return decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(price)).InexactFloat64()
}

// ClosedTrade is a purchase that has been sold.
type ClosedTrade struct {
	Purchase Purchase `json:"purchase" yaml:"purchase"`
	// CostBasis is the basis at the time of sale, after reductions.
	CostBasis float64   `json:"cost_basis" yaml:"cost_basis"`
	SalePrice float64   `json:"sale_price" yaml:"sale_price"`
	SaleTime  time.Time `json:"sale_time" yaml:"sale_time"`
	// SaleProceeds is price x quantity minus the sell fee.
	SaleProceeds float64 `json:"sale_proceeds" yaml:"sale_proceeds"`
	SaleFee      float64 `json:"sale_fee" yaml:"sale_fee"`
	// RealizedProfit is SaleProceeds - CostBasis.
	RealizedProfit    float64 `json:"realized_profit" yaml:"realized_profit"`
	RealizedProfitPct float64 `json:"realized_profit_pct" yaml:"realized_profit_pct"`
}

// HoldingTime returns how long the purchase was held.
func (t ClosedTrade) HoldingTime() time.Duration {
	return t.SaleTime.Sub(t.Purchase.EntryTime)
}

// IsWin reports a strictly positive realized profit.
func (t ClosedTrade) IsWin() bool {
	return t.RealizedProfit > 0
}
