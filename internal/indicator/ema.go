package indicator

import (
	"fmt"

	"github.com/rxtech-lab/argo-dca/internal/types"
)

// EMA indicator signals when price trades below its exponential moving average.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator with default configuration.
func NewEMA() Indicator {
	return &EMA{
		period: 25,
	}
}

// Name returns the name of the indicator.
func (e *EMA) Name() types.IndicatorType {
	return types.IndicatorTypeEMA
}

// Lookback returns the EMA period.
func (e *EMA) Lookback() int {
	return e.period
}

// Config configures the EMA indicator. Expected parameters: period (int).
func (e *EMA) Config(params ...any) error {
	return intParam(params, 0, "period", &e.period)
}

// Evaluate signals when the last close is strictly below the EMA.
func (e *EMA) Evaluate(window []types.MarketData) (types.IndicatorReading, error) {
	if err := requireBars(e.Name(), window, e.Lookback()); err != nil {
		return types.IndicatorReading{}, err
	}

	series := emaSeries(closes(window), e.period)
	value := series[len(series)-1]
	last := window[len(window)-1].Close
	signal := last < value

	reason := fmt.Sprintf("price %.4f above EMA%d %.4f", last, e.period, value)
	if signal {
		reason = fmt.Sprintf("price %.4f below EMA%d %.4f", last, e.period, value)
	}

	return types.IndicatorReading{
		Signal: signal,
		Value:  value,
		Reason: reason,
	}, nil
}
