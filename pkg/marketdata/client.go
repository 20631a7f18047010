// Package marketdata downloads historical bars into local files that the
// backtester loads.
package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/writer"
)

type ProviderType = provider.ProviderType

const (
	ProviderPolygon = provider.ProviderPolygon
	ProviderBinance = provider.ProviderBinance
)

// WriterType defines the type of market data writer.
type WriterType string

const (
	WriterDuckDB WriterType = "duckdb"
	WriterCSV    WriterType = "csv"
)

// Extension returns the file extension the writer produces.
func (w WriterType) Extension() string {
	if w == WriterCSV {
		return ".csv"
	}

	return ".parquet"
}

// ClientConfig holds the configuration for the market data client.
type ClientConfig struct {
	ProviderType      ProviderType `validate:"required,oneof=polygon binance"`
	WriterType        WriterType   `validate:"required,oneof=duckdb csv"`
	DataPath          string       `validate:"required"`
	PolygonApiKey     string       `validate:"required_if=ProviderType polygon"`
	RequestsPerSecond float64      `validate:"gte=0"`
}

// DownloadParams holds the parameters for a market data download request.
type DownloadParams struct {
	Ticker    string             `validate:"required"`
	StartDate time.Time          `validate:"required"`
	EndDate   time.Time          `validate:"required,gtfield=StartDate"`
	Timeframe provider.Timeframe `validate:"required,oneof=1m 5m 15m 1h 4h 1d"`
	// Force downloads again even when the output file exists.
	Force bool
}

// Client is the market data client responsible for downloading data from providers and storing it using writers.
type Client struct {
	provider   provider.Provider
	config     ClientConfig
	validate   *validator.Validate
	onProgress provider.OnDownloadProgress
	logger     *logger.Logger
}

// NewClient creates a new market data client with the given configuration.
func NewClient(config ClientConfig, onProgress provider.OnDownloadProgress, log *logger.Logger) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	marketProvider, err := provider.NewMarketDataProvider(config.ProviderType, provider.Config{
		PolygonApiKey:     config.PolygonApiKey,
		RequestsPerSecond: config.RequestsPerSecond,
	})
	if err != nil {
		return nil, err
	}

	return NewClientWithProvider(config, marketProvider, onProgress, log)
}

// NewClientWithProvider creates a client around an existing provider.
func NewClientWithProvider(config ClientConfig, p provider.Provider, onProgress provider.OnDownloadProgress, log *logger.Logger) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		provider:   p,
		config:     config,
		validate:   validate,
		onProgress: onProgress,
		logger:     log,
	}, nil
}

// OutputPath is where Download stores params:
// {DataPath}/{TICKER}_{START}_{END}_{TIMEFRAME}{ext}.
func (c *Client) OutputPath(params DownloadParams) string {
	ticker := strings.NewReplacer("/", "", ":", "_").Replace(params.Ticker)

	name := fmt.Sprintf("%s_%s_%s_%s%s",
		ticker,
		params.StartDate.Format("2006-01-02"),
		params.EndDate.Format("2006-01-02"),
		params.Timeframe,
		c.config.WriterType.Extension())

	return filepath.Join(c.config.DataPath, name)
}

// Download fetches params into a file and returns its path. An existing file
// for the same parameters is reused unless params.Force is set.
func (c *Client) Download(ctx context.Context, params DownloadParams) (string, error) {
	if err := c.validate.Struct(params); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	outputPath := c.OutputPath(params)

	if !params.Force {
		if _, err := os.Stat(outputPath); err == nil {
			c.logger.Info("Using cached market data", zap.String("path", outputPath))

			return outputPath, nil
		}
	}

	if err := os.MkdirAll(c.config.DataPath, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to create data folder", err)
	}

	marketWriter := c.newWriter(outputPath)

	defer func() {
		if err := marketWriter.Close(); err != nil {
			c.logger.Warn("Failed to close writer", zap.Error(err))
		}
	}()

	c.provider.ConfigWriter(marketWriter)

	path, err := c.provider.Download(ctx, params.Ticker, params.StartDate, params.EndDate, params.Timeframe, c.onProgress)
	if err != nil {
		return "", err
	}

	c.logger.Info("Market data downloaded",
		zap.String("ticker", params.Ticker),
		zap.String("timeframe", string(params.Timeframe)),
		zap.String("path", path),
	)

	return path, nil
}

func (c *Client) newWriter(outputPath string) writer.MarketDataWriter {
	if c.config.WriterType == WriterCSV {
		return writer.NewCSVWriter(outputPath, c.logger)
	}

	return writer.NewDuckDBWriter(outputPath, c.logger)
}
