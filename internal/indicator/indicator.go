// Package indicator evaluates the technical indicators that vote on DCA entries.
//
// Every indicator is a pure function of a window of closed bars ordered oldest
// first. The bar being decided on is never part of the window.
package indicator

import (
	"fmt"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// Indicator interface defines methods that any entry indicator must implement.
type Indicator interface {
	// Name returns the name of the indicator
	Name() types.IndicatorType
	// Lookback is the minimum number of bars Evaluate needs
	Lookback() int
	// Evaluate computes the reading for the most recent bar of window
	Evaluate(window []types.MarketData) (types.IndicatorReading, error)
	// Config overrides the default parameters, positionally
	Config(params ...any) error
}

func requireBars(name types.IndicatorType, window []types.MarketData, required int) error {
	if len(window) < required {
		symbol := ""
		if len(window) > 0 {
			symbol = window[0].Symbol
		}

		return errors.NewInsufficientDataErrorf(required, len(window), symbol, "%s needs %d bars, got %d", name, required, len(window))
	}

	return nil
}

func closes(window []types.MarketData) []float64 {
	out := make([]float64, len(window))
	for i, bar := range window {
		out[i] = bar.Close
	}

	return out
}

// emaSeries returns the EMA of values seeded with the SMA of the first period
// values. Entries before the seed are zero.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}

	out[period-1] = sum / float64(period)
	k := 2.0 / float64(period+1)

	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}

	return out
}

func intParam(params []any, idx int, name string, target *int) error {
	if len(params) <= idx {
		return nil
	}

	v, ok := params[idx].(int)
	if !ok {
		return errors.Newf(errors.ErrCodeInvalidParameter, "invalid type for %s parameter, expected int", name)
	}

	if v <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "%s must be a positive integer, got %d", name, v)
	}

	*target = v

	return nil
}

func floatParam(params []any, idx int, name string, target *float64) error {
	if len(params) <= idx {
		return nil
	}

	v, ok := params[idx].(float64)
	if !ok {
		return errors.Newf(errors.ErrCodeInvalidParameter, "invalid type for %s parameter, expected float64", name)
	}

	*target = v

	return nil
}

func thresholdParam(params []any, idx int, name string, target *float64) error {
	var v float64
	if len(params) <= idx {
		return nil
	}

	if err := floatParam(params, idx, name, &v); err != nil {
		return err
	}

	if v < 0 || v > 100 {
		return errors.Newf(errors.ErrCodeInvalidThreshold, "%s must be in [0, 100], got %v", name, v)
	}

	*target = v

	return nil
}

func levelReason(label string, value, level float64, signal bool) string {
	if signal {
		return fmt.Sprintf("%s oversold (%.1f <= %.1f)", label, value, level)
	}

	return fmt.Sprintf("%s %.1f above %.1f", label, value, level)
}
