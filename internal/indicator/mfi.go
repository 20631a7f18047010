package indicator

import (
	"github.com/rxtech-lab/argo-dca/internal/types"
)

// MFI is the Money Flow Index, a volume-weighted RSI over typical prices.
type MFI struct {
	period   int
	oversold float64
}

// NewMFI creates a new MFI indicator with default configuration.
func NewMFI() Indicator {
	return &MFI{
		period:   14,
		oversold: 25,
	}
}

// Name returns the name of the indicator.
func (m *MFI) Name() types.IndicatorType {
	return types.IndicatorTypeMFI
}

// Lookback needs one extra bar to classify the first flow.
func (m *MFI) Lookback() int {
	return m.period + 1
}

// Config configures the MFI indicator. Expected parameters: period (int), oversold (float64).
func (m *MFI) Config(params ...any) error {
	if err := intParam(params, 0, "period", &m.period); err != nil {
		return err
	}

	return thresholdParam(params, 1, "oversold", &m.oversold)
}

// Evaluate signals when MFI is at or below the oversold level.
func (m *MFI) Evaluate(window []types.MarketData) (types.IndicatorReading, error) {
	if err := requireBars(m.Name(), window, m.Lookback()); err != nil {
		return types.IndicatorReading{}, err
	}

	positive, negative := 0.0, 0.0
	bars := window[len(window)-m.period-1:]

	for i := 1; i < len(bars); i++ {
		tp := bars[i].TypicalPrice()
		prev := bars[i-1].TypicalPrice()
		flow := tp * bars[i].Volume

		switch {
		case tp > prev:
			positive += flow
		case tp < prev:
			negative += flow
		}
	}

	value := 50.0

	switch {
	case negative == 0 && positive > 0:
		value = 100
	case negative > 0:
		value = 100 - 100/(1+positive/negative)
	}

	signal := value <= m.oversold

	return types.IndicatorReading{
		Signal: signal,
		Value:  value,
		Reason: levelReason("MFI", value, m.oversold, signal),
	}, nil
}
