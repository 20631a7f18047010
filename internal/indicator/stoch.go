package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-dca/internal/types"
)

// Stochastic is the stochastic oscillator %K smoothed over a short window.
// It is reported under the stoch_rsi identifier.
type Stochastic struct {
	period   int
	smooth   int
	oversold float64
}

// NewStochastic creates a new stochastic oscillator with default configuration.
func NewStochastic() Indicator {
	return &Stochastic{
		period:   14,
		smooth:   3,
		oversold: 33,
	}
}

// Name returns the name of the indicator.
func (s *Stochastic) Name() types.IndicatorType {
	return types.IndicatorTypeStochRSI
}

// Lookback returns the bars needed for smooth full %K values.
func (s *Stochastic) Lookback() int {
	return s.period + s.smooth - 1
}

// Config configures the oscillator. Expected parameters: period (int), smooth (int), oversold (float64).
func (s *Stochastic) Config(params ...any) error {
	if err := intParam(params, 0, "period", &s.period); err != nil {
		return err
	}

	if err := intParam(params, 1, "smooth", &s.smooth); err != nil {
		return err
	}

	return thresholdParam(params, 2, "oversold", &s.oversold)
}

// Evaluate signals when the smoothed %K is at or below the oversold level.
func (s *Stochastic) Evaluate(window []types.MarketData) (types.IndicatorReading, error) {
	if err := requireBars(s.Name(), window, s.Lookback()); err != nil {
		return types.IndicatorReading{}, err
	}

	sum := 0.0
	for end := len(window) - s.smooth; end < len(window); end++ {
		sum += s.percentK(window[end-s.period+1 : end+1])
	}

	value := sum / float64(s.smooth)
	signal := value <= s.oversold

	return types.IndicatorReading{
		Signal: signal,
		Value:  value,
		Reason: levelReason("Stochastic", value, s.oversold, signal),
	}, nil
}

func (s *Stochastic) percentK(bars []types.MarketData) float64 {
	lowest := math.Inf(1)
	highest := math.Inf(-1)

	for _, bar := range bars {
		lowest = math.Min(lowest, bar.Low)
		highest = math.Max(highest, bar.High)
	}

	if highest == lowest {
		return 50
	}

	return 100 * (bars[len(bars)-1].Close - lowest) / (highest - lowest)
}
