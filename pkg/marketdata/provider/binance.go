package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/writer"
)

const (
	// binancePageSize is the largest page the klines endpoint returns.
	binancePageSize = 1000
	// binanceRequestsPerSecond stays well under the public weight limit.
	binanceRequestsPerSecond = 5
)

// Binance error codes that mean the caller is sending too many requests.
var binanceRateLimitCodes = map[int64]struct{}{
	-1003: {},
	-1015: {},
}

// BinanceKlinesService is the subset of the go-binance klines service the client uses.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPIClient creates klines services.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

type binanceAPIWrapper struct {
	client *binance.Client
}

func (w *binanceAPIWrapper) NewKlinesService() BinanceKlinesService {
	return &binanceKlinesWrapper{service: w.client.NewKlinesService()}
}

type binanceKlinesWrapper struct {
	service *binance.KlinesService
}

func (w *binanceKlinesWrapper) Symbol(symbol string) BinanceKlinesService {
	w.service.Symbol(symbol)

	return w
}

func (w *binanceKlinesWrapper) Interval(interval string) BinanceKlinesService {
	w.service.Interval(interval)

	return w
}

func (w *binanceKlinesWrapper) StartTime(startTime int64) BinanceKlinesService {
	w.service.StartTime(startTime)

	return w
}

func (w *binanceKlinesWrapper) EndTime(endTime int64) BinanceKlinesService {
	w.service.EndTime(endTime)

	return w
}

func (w *binanceKlinesWrapper) Limit(limit int) BinanceKlinesService {
	w.service.Limit(limit)

	return w
}

func (w *binanceKlinesWrapper) Do(ctx context.Context) ([]*binance.Kline, error) {
	return w.service.Do(ctx)
}

type BinanceClient struct {
	apiClient BinanceAPIClient
	writer    writer.MarketDataWriter
	limiter   *rate.Limiter
	now       func() time.Time
}

// NewBinanceClient creates a client for the public Binance market data API.
// No credentials are needed.
func NewBinanceClient(requestsPerSecond float64) (Provider, error) {
	return NewBinanceClientWithBaseURL("", requestsPerSecond)
}

// NewBinanceClientWithBaseURL is NewBinanceClient against another REST
// endpoint. An empty baseURL keeps the public API.
func NewBinanceClientWithBaseURL(baseURL string, requestsPerSecond float64) (Provider, error) {
	api := binance.NewClient("", "")
	if baseURL != "" {
		api.BaseURL = baseURL
	}

	client := NewBinanceClientWithAPI(&binanceAPIWrapper{client: api})
	client.limiter = newLimiter(requestsPerSecond, binanceRequestsPerSecond)

	return client, nil
}

// NewBinanceClientWithAPI creates a client over api without rate limiting.
func NewBinanceClientWithAPI(api BinanceAPIClient) *BinanceClient {
	return &BinanceClient{
		apiClient: api,
		writer:    nil,
		limiter:   nil,
		now:       time.Now,
	}
}

func (c *BinanceClient) ConfigWriter(w writer.MarketDataWriter) {
	c.writer = w
}

// Download pages through the klines of ticker and writes them to the configured writer.
func (c *BinanceClient) Download(ctx context.Context, ticker string, startDate time.Time, endDate time.Time, timeframe Timeframe, onProgress OnDownloadProgress) (path string, err error) {
	if !timeframe.Valid() {
		return "", errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported timeframe %q", timeframe)
	}

	if c.writer == nil {
		return "", errors.New(errors.ErrCodeMarketDataWriteFailed, "writer is not configured")
	}

	if err := c.writer.Initialize(); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to initialize writer", err)
	}

	fail := func(err error) (string, error) {
		if _, finalizeErr := c.writer.Finalize(); finalizeErr != nil {
			return "", fmt.Errorf("%w; also failed to finalize writer: %v", err, finalizeErr)
		}

		return "", err
	}

	symbol := BinanceSymbol(ticker)
	startMillis := startDate.UnixMilli()
	endMillis := endDate.UnixMilli()
	current := startMillis

	for {
		if err := waitLimiter(ctx, c.limiter); err != nil {
			return fail(err)
		}

		klines, err := c.apiClient.NewKlinesService().
			Symbol(symbol).
			Interval(timeframe.BinanceInterval()).
			StartTime(current).
			EndTime(endMillis).
			Limit(binancePageSize).
			Do(ctx)
		if err != nil {
			return fail(classifyBinanceError(ctx, err))
		}

		if onProgress != nil {
			onProgress(float64(current-startMillis), float64(endMillis-startMillis), fmt.Sprintf("Downloading %s klines from Binance", ticker))
		}

		if err := processKlines(c.writer, ticker, klines); err != nil {
			return fail(err)
		}

		// a short page is the last one
		if len(klines) < binancePageSize {
			break
		}

		current = klines[len(klines)-1].CloseTime + 1
		if current >= endMillis {
			break
		}
	}

	if onProgress != nil {
		onProgress(float64(endMillis-startMillis), float64(endMillis-startMillis), fmt.Sprintf("Downloaded %s klines from Binance", ticker))
	}

	outputPath, err := c.writer.Finalize()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to finalize writer", err)
	}

	return outputPath, nil
}

// RecentBars fetches the latest closed klines of symbol.
func (c *BinanceClient) RecentBars(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]types.MarketData, error) {
	if !timeframe.Valid() {
		return nil, errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported timeframe %q", timeframe)
	}

	if limit <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "limit must be positive, got %d", limit)
	}

	if err := waitLimiter(ctx, c.limiter); err != nil {
		return nil, err
	}

	// one extra for the candle still forming
	klines, err := c.apiClient.NewKlinesService().
		Symbol(BinanceSymbol(symbol)).
		Interval(timeframe.BinanceInterval()).
		Limit(min(limit+1, binancePageSize)).
		Do(ctx)
	if err != nil {
		return nil, classifyBinanceError(ctx, err)
	}

	bars := make([]types.MarketData, 0, len(klines))

	for _, k := range klines {
		bar, err := klineToMarketData(symbol, k)
		if err != nil {
			return nil, err
		}

		bars = append(bars, bar)
	}

	return closedBars(bars, timeframe, c.now(), limit), nil
}

// processKlines converts Binance kline data to our internal MarketData format and writes it.
func processKlines(w writer.MarketDataWriter, ticker string, klines []*binance.Kline) error {
	for _, k := range klines {
		bar, err := klineToMarketData(ticker, k)
		if err != nil {
			return err
		}

		if err := w.Write(bar); err != nil {
			return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to write market data", err)
		}
	}

	return nil
}

func klineToMarketData(symbol string, k *binance.Kline) (types.MarketData, error) {
	values := make([]float64, 5)

	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return types.MarketData{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid kline value %q at %d", s, k.OpenTime)
		}

		values[i] = v
	}

	return types.MarketData{
		Id:     "",
		Symbol: symbol,
		// bars are stamped with their open time
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

// classifyBinanceError maps API errors to rate limiting or fetch failures and
// everything else to an unavailable data source.
func classifyBinanceError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "request cancelled", ctx.Err())
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if _, limited := binanceRateLimitCodes[apiErr.Code]; limited {
			return errors.Wrap(errors.ErrCodeRateLimited, "binance rate limit reached", err)
		}

		return errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "binance rejected the request", err)
	}

	return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "binance request failed", err)
}
