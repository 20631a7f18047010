package indicator

import (
	"fmt"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// PriceDrop signals when the close has fallen by at least dropPct over the lookback.
type PriceDrop struct {
	lookback int
	// dropPct is a fraction, 0.01 = 1%
	dropPct float64
}

// NewPriceDrop creates a new price drop indicator with default configuration.
func NewPriceDrop() Indicator {
	return &PriceDrop{
		lookback: 24,
		dropPct:  0.01,
	}
}

// Name returns the name of the indicator.
func (p *PriceDrop) Name() types.IndicatorType {
	return types.IndicatorTypePriceDrop
}

// Lookback returns the number of candles compared.
func (p *PriceDrop) Lookback() int {
	return p.lookback
}

// Config configures the indicator. Expected parameters: lookback (int), drop fraction (float64).
func (p *PriceDrop) Config(params ...any) error {
	if err := intParam(params, 0, "lookback", &p.lookback); err != nil {
		return err
	}

	drop := p.dropPct
	if err := floatParam(params, 1, "drop", &drop); err != nil {
		return err
	}

	if drop <= 0 || drop >= 1 {
		return errors.Newf(errors.ErrCodeInvalidThreshold, "drop must be in (0, 1), got %v", drop)
	}

	p.dropPct = drop

	return nil
}

// Evaluate compares the last close with the close lookback-1 bars earlier.
func (p *PriceDrop) Evaluate(window []types.MarketData) (types.IndicatorReading, error) {
	if err := requireBars(p.Name(), window, p.Lookback()); err != nil {
		return types.IndicatorReading{}, err
	}

	current := window[len(window)-1].Close
	past := window[len(window)-p.lookback].Close

	if past <= 0 {
		return types.IndicatorReading{}, errors.Newf(errors.ErrCodeIndicatorCalculation, "non-positive reference close %v", past)
	}

	change := (current - past) / past
	signal := change <= -p.dropPct

	return types.IndicatorReading{
		Signal: signal,
		Value:  change,
		Reason: fmt.Sprintf("price changed %.2f%% over %d candles", change*100, p.lookback),
	}, nil
}
