package types

import "time"

// IndicatorType identifies one of the indicators that can vote on an entry.
type IndicatorType string

const (
	IndicatorTypeRSI       IndicatorType = "rsi"
	IndicatorTypeStochRSI  IndicatorType = "stoch_rsi"
	IndicatorTypeEMA       IndicatorType = "ema"
	IndicatorTypeMACD      IndicatorType = "macd"
	IndicatorTypeMFI       IndicatorType = "mfi"
	IndicatorTypePriceDrop IndicatorType = "price_drop"
)

// AllIndicatorTypes lists every known indicator in evaluation order.
var AllIndicatorTypes = []IndicatorType{
	IndicatorTypePriceDrop,
	IndicatorTypeRSI,
	IndicatorTypeStochRSI,
	IndicatorTypeEMA,
	IndicatorTypeMACD,
	IndicatorTypeMFI,
}

// Valid reports whether t is part of the closed indicator set.
func (t IndicatorType) Valid() bool {
	for _, known := range AllIndicatorTypes {
		if t == known {
			return true
		}
	}

	return false
}

// IndicatorReading is the evaluated state of one indicator.
type IndicatorReading struct {
	// Signal is true when the indicator supports buying.
	Signal bool `json:"signal" yaml:"signal"`
	// Value is the raw indicator value (RSI level, EMA price, histogram, ...).
	Value float64 `json:"value" yaml:"value"`
	// Reason is a short human readable explanation.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// IndicatorSnapshot holds the readings available for one evaluation cycle.
type IndicatorSnapshot struct {
	Time     time.Time                          `json:"time" yaml:"time"`
	Readings map[IndicatorType]IndicatorReading `json:"readings" yaml:"readings"`
}

// NewIndicatorSnapshot creates an empty snapshot for the given time.
func NewIndicatorSnapshot(at time.Time) IndicatorSnapshot {
	return IndicatorSnapshot{
		Time:     at,
		Readings: make(map[IndicatorType]IndicatorReading),
	}
}

// Set stores a reading, allocating the map when needed.
func (s *IndicatorSnapshot) Set(t IndicatorType, r IndicatorReading) {
	if s.Readings == nil {
		s.Readings = make(map[IndicatorType]IndicatorReading)
	}

	s.Readings[t] = r
}

// Get returns the reading for t and whether it was present.
func (s IndicatorSnapshot) Get(t IndicatorType) (IndicatorReading, bool) {
	r, ok := s.Readings[t]

	return r, ok
}

// Vote counts the enabled indicators reporting a signal.
// An enabled indicator without a reading votes no.
func (s IndicatorSnapshot) Vote(enabled []IndicatorType) (yes int, total int) {
	for _, t := range enabled {
		total++

		if r, ok := s.Readings[t]; ok && r.Signal {
			yes++
		}
	}

	return yes, total
}
