package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-dca/internal/types"
)

// DataGenerator generates seeded OHLCV bars for deterministic tests.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a DataGenerator. The same seed yields the same bars.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how market data is generated.
type GeneratorConfig struct {
	Symbol    string
	StartTime time.Time
	// Interval is the duration between bars
	Interval time.Duration
	Count    int
	// InitialPrice is the first open
	InitialPrice float64
	// Volatility is the per-bar standard deviation of returns (0.01 = 1%)
	Volatility float64
	// Trend is the total drift spread over all bars (-0.2 = 20% down)
	Trend      float64
	VolumeBase float64
	// VolumeVariance is the relative spread of volume (0.0 to 1.0)
	VolumeVariance float64
}

// DefaultConfig returns hourly crypto-like bars.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "BTC/USDT",
		StartTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:       time.Hour,
		Count:          1000,
		InitialPrice:   50000.0,
		Volatility:     0.01,
		Trend:          0.0,
		VolumeBase:     100,
		VolumeVariance: 0.3,
	}
}

// Generate creates bars following a geometric Brownian motion.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.MarketData {
	data := make([]types.MarketData, config.Count)
	price := config.InitialPrice
	drift := 0.0

	if config.Count > 0 {
		drift = config.Trend / float64(config.Count)
	}

	for i := range data {
		open := price

		// Box-Muller transform for a standard normal sample
		u1 := 1 - g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		closePrice := open * (1 + config.Volatility*z + drift)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		volume := config.VolumeBase * (1 + (g.rng.Float64()*2-1)*config.VolumeVariance)

		data[i] = g.bar(config.Symbol, config.StartTime.Add(time.Duration(i)*config.Interval), open, closePrice, volume, config.Volatility)
		price = closePrice
	}

	return data
}

// FromCloses builds bars whose closes follow the given path, each opening at
// the previous close. Scenario tests use it to script exact prices.
func (g *DataGenerator) FromCloses(symbol string, start time.Time, interval time.Duration, closes []float64) []types.MarketData {
	data := make([]types.MarketData, len(closes))

	for i, closePrice := range closes {
		open := closePrice
		if i > 0 {
			open = closes[i-1]
		}

		data[i] = g.bar(symbol, start.Add(time.Duration(i)*interval), open, closePrice, 100, 0.002)
	}

	return data
}

func (g *DataGenerator) bar(symbol string, at time.Time, open, closePrice, volume, volatility float64) types.MarketData {
	high := math.Max(open, closePrice) * (1 + g.rng.Float64()*volatility*0.5)
	low := math.Min(open, closePrice) * (1 - g.rng.Float64()*volatility*0.5)

	if volume <= 0 {
		volume = 1
	}

	return types.MarketData{
		Id:     "",
		Symbol: symbol,
		Time:   at,
		Open:   roundToDecimals(open, 4),
		High:   roundToDecimals(high, 4),
		Low:    roundToDecimals(low, 4),
		Close:  roundToDecimals(closePrice, 4),
		Volume: roundToDecimals(volume, 2),
	}
}

func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
