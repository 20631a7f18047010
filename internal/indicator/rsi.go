package indicator

import (
	"github.com/rxtech-lab/argo-dca/internal/types"
)

// RSI represents the Relative Strength Index indicator using Wilder's smoothing.
type RSI struct {
	period   int
	oversold float64
}

// NewRSI creates a new RSI indicator with default configuration.
func NewRSI() Indicator {
	return &RSI{
		period:   14,
		oversold: 35,
	}
}

// Name returns the name of the indicator.
func (r *RSI) Name() types.IndicatorType {
	return types.IndicatorTypeRSI
}

// Lookback needs one extra bar for the first price change.
func (r *RSI) Lookback() int {
	return r.period + 1
}

// Config configures the RSI indicator. Expected parameters: period (int), oversold (float64).
func (r *RSI) Config(params ...any) error {
	if err := intParam(params, 0, "period", &r.period); err != nil {
		return err
	}

	return thresholdParam(params, 1, "oversold", &r.oversold)
}

// Evaluate signals when RSI is at or below the oversold level.
func (r *RSI) Evaluate(window []types.MarketData) (types.IndicatorReading, error) {
	if err := requireBars(r.Name(), window, r.Lookback()); err != nil {
		return types.IndicatorReading{}, err
	}

	value := r.value(closes(window))
	signal := value <= r.oversold

	return types.IndicatorReading{
		Signal: signal,
		Value:  value,
		Reason: levelReason("RSI", value, r.oversold, signal),
	}, nil
}

func (r *RSI) value(prices []float64) float64 {
	avgGain := 0.0
	avgLoss := 0.0

	// First average
	for i := 1; i <= r.period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}

	avgGain /= float64(r.period)
	avgLoss /= float64(r.period)

	// Subsequent averages using Wilder's smoothing method
	for i := r.period + 1; i < len(prices); i++ {
		gain, loss := 0.0, 0.0

		change := prices[i] - prices[i-1]
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		avgGain = (avgGain*float64(r.period-1) + gain) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + loss) / float64(r.period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}

		return 100 // Perfect uptrend
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs))
}
