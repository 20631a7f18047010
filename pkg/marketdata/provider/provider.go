// Package provider downloads and polls OHLCV bars from market data vendors.
package provider

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/writer"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

type OnDownloadProgress = func(current float64, total float64, message string)

type Provider interface {
	// ConfigWriter configures the writer that Download sends bars to.
	ConfigWriter(writer writer.MarketDataWriter)
	// Download writes every bar of ticker between startDate and endDate and
	// returns the writer's output path. The context cancels the download.
	Download(ctx context.Context, ticker string, startDate time.Time, endDate time.Time, timeframe Timeframe, onProgress OnDownloadProgress) (path string, err error)
	// RecentBars returns up to limit closed bars, oldest first. The candle
	// still forming is never included.
	RecentBars(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]types.MarketData, error)
}

// Config configures NewMarketDataProvider.
type Config struct {
	PolygonApiKey string
	// RequestsPerSecond paces API calls. Zero uses the provider default.
	RequestsPerSecond float64
	// BinanceBaseURL replaces the Binance REST endpoint when set.
	BinanceBaseURL string
}

// NewMarketDataProvider creates a new market data provider based on the provider type.
func NewMarketDataProvider(providerType ProviderType, config Config) (Provider, error) {
	switch providerType {
	case ProviderBinance:
		return NewBinanceClientWithBaseURL(config.BinanceBaseURL, config.RequestsPerSecond)
	case ProviderPolygon:
		return NewPolygonClient(config.PolygonApiKey, config.RequestsPerSecond)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerType)
	}
}

// BinanceSymbol strips separators, so BTC/USDT and btc-usdt both become BTCUSDT.
func BinanceSymbol(symbol string) string {
	return strings.ToUpper(strings.NewReplacer("/", "", "-", "", "_", "").Replace(symbol))
}

func newLimiter(requestsPerSecond float64, fallback float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = fallback
	}

	return rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}

// waitLimiter blocks until the limiter allows another call.
func waitLimiter(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}

	if err := limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return errors.Wrap(errors.ErrCodeRateLimited, "request rate exceeded", err)
	}

	return nil
}

// closedBars keeps bars whose candle closed at or before now and returns the last limit of them.
func closedBars(bars []types.MarketData, timeframe Timeframe, now time.Time, limit int) []types.MarketData {
	closed := make([]types.MarketData, 0, len(bars))

	for _, bar := range bars {
		if bar.Time.Add(timeframe.Duration()).After(now) {
			continue
		}

		closed = append(closed, bar)
	}

	if limit > 0 && len(closed) > limit {
		closed = closed[len(closed)-limit:]
	}

	return closed
}
