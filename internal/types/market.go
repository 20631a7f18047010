package types

import "time"

// MarketData is a single OHLCV bar.
type MarketData struct {
	Id     string    `csv:"id" json:"id,omitempty" yaml:"id,omitempty"`
	Symbol string    `csv:"symbol" json:"symbol" yaml:"symbol"`
	Time   time.Time `csv:"time" json:"time" yaml:"time"`
	Open   float64   `csv:"open" json:"open" yaml:"open"`
	High   float64   `csv:"high" json:"high" yaml:"high"`
	Low    float64   `csv:"low" json:"low" yaml:"low"`
	Close  float64   `csv:"close" json:"close" yaml:"close"`
	Volume float64   `csv:"volume" json:"volume" yaml:"volume"`
}

// TypicalPrice returns (high + low + close) / 3.
func (m MarketData) TypicalPrice() float64 {
	return (m.High + m.Low + m.Close) / 3
}
