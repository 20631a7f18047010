package ledger

import (
	"math"

	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// StepDown is the progressive spacing rule between entries. The Nth purchase
// (N >= 2) needs a price drop of min(BasePct * Multiplier^(N-2), MaxPct)
// relative to the most recent open purchase. The first purchase has no requirement.
type StepDown struct {
	BasePct    float64 `yaml:"base_pct" json:"base_pct"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	MaxPct     float64 `yaml:"max_pct" json:"max_pct"`
}

// Validate checks the step-down parameters.
func (s StepDown) Validate() error {
	if s.BasePct < 0 || s.BasePct >= 1 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "step-down base must be in [0, 1), got %v", s.BasePct)
	}

	if s.Multiplier < 1 {
		return errors.Newf(errors.ErrCodeInvalidMultiplier, "step-down multiplier must be >= 1, got %v", s.Multiplier)
	}

	if s.MaxPct < 0 || s.MaxPct >= 1 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "step-down max must be in [0, 1), got %v", s.MaxPct)
	}

	return nil
}

// RequiredPct returns the fractional drop required for purchase number n.
func (s StepDown) RequiredPct(n int) float64 {
	if n < 2 {
		return 0
	}

	return RequiredStepPct(n, s.BasePct, s.Multiplier, s.MaxPct)
}

// Satisfied reports whether buying at price as purchase number n is far
// enough below lastPrice.
func (s StepDown) Satisfied(lastPrice, price float64, n int) bool {
	if n < 2 {
		return true
	}

	return price <= lastPrice*(1-s.RequiredPct(n))
}

// RequiredStepPct is min(base * multiplier^(n-2), max) for n >= 2 and 0 otherwise.
func RequiredStepPct(n int, base, multiplier, maxPct float64) float64 {
	if n < 2 {
		return 0
	}

	return math.Min(base*math.Pow(multiplier, float64(n-2)), maxPct)
}
