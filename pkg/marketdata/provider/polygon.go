package provider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"golang.org/x/time/rate"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/writer"
)

const (
	polygonPageLimit = 50000
	// the free tier allows five calls a minute
	polygonRequestsPerSecond = 5.0 / 60
)

// PolygonAggsIterator iterates aggregates returned by ListAggs.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient is the subset of the polygon REST client the provider uses.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

type polygonAPIWrapper struct {
	client *polygon.Client
}

func (w *polygonAPIWrapper) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return w.client.ListAggs(ctx, params, options...)
}

type PolygonClient struct {
	apiClient PolygonAPIClient
	writer    writer.MarketDataWriter
	limiter   *rate.Limiter
	now       func() time.Time
}

func NewPolygonClient(apiKey string, requestsPerSecond float64) (Provider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
	}

	client := NewPolygonClientWithAPI(&polygonAPIWrapper{client: polygon.New(apiKey)})
	client.limiter = newLimiter(requestsPerSecond, polygonRequestsPerSecond)

	return client, nil
}

// NewPolygonClientWithAPI creates a client over api without rate limiting.
func NewPolygonClientWithAPI(api PolygonAPIClient) *PolygonClient {
	return &PolygonClient{
		apiClient: api,
		writer:    nil,
		limiter:   nil,
		now:       time.Now,
	}
}

func (c *PolygonClient) ConfigWriter(w writer.MarketDataWriter) {
	c.writer = w
}

// Download writes the aggregates of ticker to the configured writer. When the
// download is cancelled or fails before any bar was written, the output file is removed.
func (c *PolygonClient) Download(ctx context.Context, ticker string, startDate time.Time, endDate time.Time, timeframe Timeframe, onProgress OnDownloadProgress) (path string, err error) {
	if !timeframe.Valid() {
		return "", errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported timeframe %q", timeframe)
	}

	if c.writer == nil {
		return "", errors.New(errors.ErrCodeMarketDataWriteFailed, "no writer configured for PolygonClient, call ConfigWriter first")
	}

	if err := c.writer.Initialize(); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to initialize writer", err)
	}

	processed := 0

	defer func() {
		if cerr := c.writer.Close(); cerr != nil && err == nil {
			err = errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to close writer", cerr)
		}

		if err != nil && processed == 0 {
			_ = os.Remove(c.writer.GetOutputPath())
		}
	}()

	if err := waitLimiter(ctx, c.limiter); err != nil {
		return "", err
	}

	timespan, multiplier := timeframe.PolygonTimespan()

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(startDate),
		To:         models.Millis(endDate),
	}.WithOrder(models.Asc).WithLimit(polygonPageLimit)

	iter := c.apiClient.ListAggs(ctx, params)
	total := endDate.Sub(startDate).Seconds()

	for iter.Next() {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		bar := aggToMarketData(ticker, iter.Item())

		if err := c.writer.Write(bar); err != nil {
			return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to write data", err)
		}

		processed++

		if onProgress != nil && processed%1000 == 0 {
			onProgress(bar.Time.Sub(startDate).Seconds(), total, fmt.Sprintf("Downloading %s", ticker))
		}
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if iter.Err() != nil {
		return "", classifyPolygonError(iter.Err())
	}

	if onProgress != nil {
		onProgress(total, total, fmt.Sprintf("Downloaded %d bars of %s", processed, ticker))
	}

	outputPath, err := c.writer.Finalize()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to finalize writer", err)
	}

	return outputPath, nil
}

// RecentBars fetches the aggregates covering the last limit candles.
func (c *PolygonClient) RecentBars(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]types.MarketData, error) {
	if !timeframe.Valid() {
		return nil, errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported timeframe %q", timeframe)
	}

	if limit <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "limit must be positive, got %d", limit)
	}

	if err := waitLimiter(ctx, c.limiter); err != nil {
		return nil, err
	}

	now := c.now()
	timespan, multiplier := timeframe.PolygonTimespan()
	from := now.Add(-time.Duration(limit+1) * timeframe.Duration())

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(from),
		To:         models.Millis(now),
	}.WithOrder(models.Asc).WithLimit(polygonPageLimit)

	iter := c.apiClient.ListAggs(ctx, params)
	bars := make([]types.MarketData, 0, limit+1)

	for iter.Next() {
		bars = append(bars, aggToMarketData(symbol, iter.Item()))
	}

	if iter.Err() != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "request cancelled", ctx.Err())
		}

		return nil, classifyPolygonError(iter.Err())
	}

	return closedBars(bars, timeframe, now, limit), nil
}

func aggToMarketData(symbol string, agg models.Agg) types.MarketData {
	return types.MarketData{
		Id:     "",
		Symbol: symbol,
		Time:   time.Time(agg.Timestamp).UTC(),
		Open:   agg.Open,
		High:   agg.High,
		Low:    agg.Low,
		Close:  agg.Close,
		Volume: agg.Volume,
	}
}

func classifyPolygonError(err error) error {
	var apiErr *models.ErrorResponse
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return errors.Wrap(errors.ErrCodeRateLimited, "polygon rate limit reached", err)
		}

		return errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "polygon rejected the request", err)
	}

	return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "polygon request failed", err)
}
