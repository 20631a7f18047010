package indicator

import (
	"fmt"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// MACD signals when the MACD histogram is rising.
type MACD struct {
	fast   int
	slow   int
	signal int
}

// NewMACD creates a new MACD indicator with default configuration.
func NewMACD() Indicator {
	return &MACD{
		fast:   12,
		slow:   26,
		signal: 9,
	}
}

// Name returns the name of the indicator.
func (m *MACD) Name() types.IndicatorType {
	return types.IndicatorTypeMACD
}

// Lookback covers the slow EMA seed, the signal EMA seed and one previous histogram value.
func (m *MACD) Lookback() int {
	return m.slow + m.signal
}

// Config configures the MACD indicator. Expected parameters: fast (int), slow (int), signal (int).
func (m *MACD) Config(params ...any) error {
	fast, slow, signal := m.fast, m.slow, m.signal

	if err := intParam(params, 0, "fast", &fast); err != nil {
		return err
	}

	if err := intParam(params, 1, "slow", &slow); err != nil {
		return err
	}

	if err := intParam(params, 2, "signal", &signal); err != nil {
		return err
	}

	if fast >= slow {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "fast period (%d) must be shorter than slow period (%d)", fast, slow)
	}

	m.fast, m.slow, m.signal = fast, slow, signal

	return nil
}

// Evaluate signals when the latest histogram value is above the previous one.
func (m *MACD) Evaluate(window []types.MarketData) (types.IndicatorReading, error) {
	if err := requireBars(m.Name(), window, m.Lookback()); err != nil {
		return types.IndicatorReading{}, err
	}

	prices := closes(window)
	fast := emaSeries(prices, m.fast)
	slow := emaSeries(prices, m.slow)

	// the MACD line exists from the slow seed onwards
	line := make([]float64, 0, len(prices)-m.slow+1)
	for i := m.slow - 1; i < len(prices); i++ {
		line = append(line, fast[i]-slow[i])
	}

	signalLine := emaSeries(line, m.signal)
	n := len(line)
	current := line[n-1] - signalLine[n-1]
	previous := line[n-2] - signalLine[n-2]
	rising := current > previous

	reason := fmt.Sprintf("histogram falling (%.4f <= %.4f)", current, previous)
	if rising {
		reason = fmt.Sprintf("histogram rising (%.4f > %.4f)", current, previous)
	}

	return types.IndicatorReading{
		Signal: rising,
		Value:  current,
		Reason: reason,
	}, nil
}
