// Package trading executes strategy decisions against a cash account.
package trading

import (
	"time"

	"github.com/rxtech-lab/argo-dca/internal/types"
)

// Executor turns buy and sell decisions into fills.
type Executor interface {
	// Execute fills decision at its price. Hold decisions are rejected.
	Execute(decision types.Decision, at time.Time) (types.Fill, error)
	// Cash returns the spendable balance.
	Cash() float64
	// TotalFees returns the fees paid on both sides so far.
	TotalFees() float64
}
