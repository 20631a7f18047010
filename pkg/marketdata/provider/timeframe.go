package provider

import (
	"time"

	"github.com/polygon-io/client-go/rest/models"

	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// Timeframe is the candle interval of a bar series.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

var timeframes = map[Timeframe]struct {
	duration   time.Duration
	timespan   models.Timespan
	multiplier int
}{
	Timeframe1m:  {time.Minute, models.Minute, 1},
	Timeframe5m:  {5 * time.Minute, models.Minute, 5},
	Timeframe15m: {15 * time.Minute, models.Minute, 15},
	Timeframe1h:  {time.Hour, models.Hour, 1},
	Timeframe4h:  {4 * time.Hour, models.Hour, 4},
	Timeframe1d:  {24 * time.Hour, models.Day, 1},
}

// Timeframes lists the supported timeframes, shortest first.
func Timeframes() []Timeframe {
	return []Timeframe{Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d}
}

// ParseTimeframe validates s as a supported timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframes[tf]; !ok {
		return "", errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported timeframe %q", s)
	}

	return tf, nil
}

// Valid reports whether t is supported.
func (t Timeframe) Valid() bool {
	_, ok := timeframes[t]

	return ok
}

// Duration returns the length of one candle, or zero for an unknown timeframe.
func (t Timeframe) Duration() time.Duration {
	return timeframes[t].duration
}

// BinanceInterval returns the kline interval string. Binance uses the same notation.
func (t Timeframe) BinanceInterval() string {
	return string(t)
}

// PolygonTimespan returns the aggregate timespan and multiplier.
func (t Timeframe) PolygonTimespan() (models.Timespan, int) {
	tf := timeframes[t]

	return tf.timespan, tf.multiplier
}
