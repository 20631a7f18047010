package types

import "time"

// DecisionAction is what the strategy wants to do in a cycle.
type DecisionAction string

const (
	DecisionActionBuy  DecisionAction = "buy"
	DecisionActionSell DecisionAction = "sell"
	DecisionActionHold DecisionAction = "hold"
)

// ReasonCode explains a decision. The set is closed so logs and metrics stay aggregatable.
type ReasonCode string

const (
	ReasonProfitTarget       ReasonCode = "profit_target"
	ReasonTrailingTriggered  ReasonCode = "trailing_triggered"
	ReasonTrailingArmed      ReasonCode = "trailing_armed"
	ReasonTrailingWaiting    ReasonCode = "trailing_waiting"
	ReasonIndicatorsAgree    ReasonCode = "indicators_agree"
	ReasonIndicatorsDisagree ReasonCode = "indicators_disagree"
	ReasonStepDownNotMet     ReasonCode = "step_down_not_met"
	ReasonCapacityExceeded   ReasonCode = "capacity_exceeded"
	ReasonInsufficientFunds  ReasonCode = "insufficient_funds"
	ReasonWarmup             ReasonCode = "warmup"
	ReasonIntervalElapsed    ReasonCode = "interval_elapsed"
	ReasonIntervalPending    ReasonCode = "interval_pending"
	ReasonPriceOutOfBand     ReasonCode = "price_out_of_band"
	ReasonNoPrice            ReasonCode = "no_price"
	ReasonInvalidParameter   ReasonCode = "invalid_parameter"
	ReasonFillRejected       ReasonCode = "fill_rejected"
	ReasonGridPlaced         ReasonCode = "grid_placed"
	ReasonGridRecentered     ReasonCode = "grid_recentered"
	ReasonGridLevelCrossed   ReasonCode = "grid_level_crossed"
	ReasonGridWaiting        ReasonCode = "grid_waiting"
)

// Side of a fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Decision is produced by a strategy evaluation and, for buy/sell, turned into a fill.
type Decision struct {
	Action     DecisionAction `json:"action" yaml:"action"`
	PurchaseID string         `json:"purchase_id,omitempty" yaml:"purchase_id,omitempty"`
	Price      float64        `json:"price" yaml:"price"`
	// Quantity is the units to trade. Buys size from Notional.
	Quantity float64 `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	// Notional is the fee-inclusive amount a buy will spend.
	Notional float64      `json:"notional,omitempty" yaml:"notional,omitempty"`
	Reasons  []ReasonCode `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// Fill is an executed trade reported back to the strategy.
type Fill struct {
	OrderID    string    `json:"order_id" yaml:"order_id"`
	Side       Side      `json:"side" yaml:"side"`
	PurchaseID string    `json:"purchase_id,omitempty" yaml:"purchase_id,omitempty"`
	Price      float64   `json:"price" yaml:"price"`
	Quantity   float64   `json:"quantity" yaml:"quantity"`
	Fee        float64   `json:"fee" yaml:"fee"`
	Time       time.Time `json:"time" yaml:"time"`
}

// DecisionEvent is the structured record emitted for every decision.
type DecisionEvent struct {
	ID         string         `json:"id" yaml:"id"`
	Time       time.Time      `json:"time" yaml:"time"`
	Symbol     string         `json:"symbol" yaml:"symbol"`
	Strategy   string         `json:"strategy" yaml:"strategy"`
	Action     DecisionAction `json:"action" yaml:"action"`
	PurchaseID string         `json:"purchase_id,omitempty" yaml:"purchase_id,omitempty"`
	Price      float64        `json:"price" yaml:"price"`
	Quantity   float64        `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Reasons    []ReasonCode   `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	// Message carries the cause of a skipped or degraded decision.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// ReductionEvent records excess profit from a closed purchase lowering the
// cost basis of the most recent open purchase.
type ReductionEvent struct {
	Time time.Time `json:"time" yaml:"time"`
	// SourceID is the purchase whose sale produced the excess profit.
	SourceID string `json:"source_id" yaml:"source_id"`
	// TargetID is the purchase whose cost basis was reduced.
	TargetID string `json:"target_id" yaml:"target_id"`
	// Requested is the excess profit times the reduction pool fraction.
	Requested float64 `json:"requested" yaml:"requested"`
	// Applied is the amount actually taken off after the zero floor.
	Applied        float64 `json:"applied" yaml:"applied"`
	NewCostBasis   float64 `json:"new_cost_basis" yaml:"new_cost_basis"`
	NewTargetPrice float64 `json:"new_target_price" yaml:"new_target_price"`
}
