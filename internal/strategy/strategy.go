// Package strategy turns prices and indicator snapshots into buy, sell and
// hold decisions and applies fills to the strategy's ledger.
//
// A strategy instance owns its ledger and trailing state. Evaluation is total:
// any recoverable error degrades to a hold decision carrying a reason code.
package strategy

import (
	"time"

	"github.com/rxtech-lab/argo-dca/internal/ledger"
	"github.com/rxtech-lab/argo-dca/internal/types"
)

// Name identifies a strategy implementation.
type Name string

const (
	NameAdvancedDCA Name = "advanced_dca"
	NameIntervalDCA Name = "dca"
	NameGrid        Name = "grid"
)

// Tick is the input of one evaluation cycle.
type Tick struct {
	Time  time.Time
	Price float64
	// Snapshot holds the indicator readings computed from closed bars only.
	Snapshot types.IndicatorSnapshot
	// Warmup disables entries while history is too short for the indicators.
	// Exits are still evaluated.
	Warmup bool
}

// Strategy is a decision engine for one symbol.
type Strategy interface {
	Name() Name
	Symbol() string
	// Evaluate returns at least one decision. Sell decisions take priority:
	// a cycle that sells never buys.
	Evaluate(tick Tick) []types.Decision
	// OnFill applies an executed trade to the ledger.
	OnFill(fill types.Fill) error
	// Reject reports that a buy or sell decision could not be executed.
	Reject(tick Tick, decision types.Decision, cause error)
	Ledger() *ledger.Ledger
	// Revision changes whenever the state returned by Snapshot changes in a
	// way that must survive a restart, including trailing updates.
	Revision() uint64
	Snapshot() State
	Restore(state State) error
}

// State is the serializable form of a strategy instance.
type State struct {
	Version  string          `json:"version" yaml:"version"`
	Strategy Name            `json:"strategy" yaml:"strategy"`
	Symbol   string          `json:"symbol" yaml:"symbol"`
	Ledger   ledger.Snapshot `json:"ledger" yaml:"ledger"`
	// EntryTrailing is the symbol-level trail used for trailing entries.
	EntryTrailing types.TrailingState `json:"entry_trailing" yaml:"entry_trailing"`
	// Grid is only set by the grid strategy.
	Grid *GridState `json:"grid,omitempty" yaml:"grid,omitempty"`
	// Sequence numbers decision events.
	Sequence     uint64    `json:"sequence" yaml:"sequence"`
	LastBuyTime  time.Time `json:"last_buy_time" yaml:"last_buy_time"`
	BuyCount     int       `json:"buy_count" yaml:"buy_count"`
	SellCount    int       `json:"sell_count" yaml:"sell_count"`
	SkippedCount int       `json:"skipped_count" yaml:"skipped_count"`
}

func hold(price float64, reasons ...types.ReasonCode) types.Decision {
	return types.Decision{
		Action:  types.DecisionActionHold,
		Price:   price,
		Reasons: reasons,
	}
}
