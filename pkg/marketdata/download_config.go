package marketdata

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-dca/pkg/errors"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/provider"
)

// DownloadConfig is the user-facing form of a download request, as given on
// the command line.
type DownloadConfig struct {
	Provider  string `json:"provider" validate:"required,oneof=polygon binance"`
	Ticker    string `json:"ticker" validate:"required"`
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
	Interval  string `json:"interval" validate:"required,oneof=1m 5m 15m 1h 4h 1d"`
	Writer    string `json:"writer" validate:"required,oneof=duckdb csv"`
	ApiKey    string `json:"apiKey" validate:"required_if=Provider polygon"`
	Force     bool   `json:"force"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseDate(value string) (time.Time, error) {
	var lastErr error

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}

		lastErr = err
	}

	return time.Time{}, errors.Wrapf(errors.ErrCodeInvalidParameter, lastErr, "invalid date %q, expected RFC3339 or YYYY-MM-DD", value)
}

// Validate checks the fields and the date formats.
func (c *DownloadConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download config", err)
	}

	if _, err := parseDate(c.StartDate); err != nil {
		return err
	}

	if _, err := parseDate(c.EndDate); err != nil {
		return err
	}

	return nil
}

// ToDownloadParams converts the config to DownloadParams.
func (c *DownloadConfig) ToDownloadParams() (DownloadParams, error) {
	startDate, err := parseDate(c.StartDate)
	if err != nil {
		return DownloadParams{}, err
	}

	endDate, err := parseDate(c.EndDate)
	if err != nil {
		return DownloadParams{}, err
	}

	timeframe, err := provider.ParseTimeframe(c.Interval)
	if err != nil {
		return DownloadParams{}, err
	}

	return DownloadParams{
		Ticker:    c.Ticker,
		StartDate: startDate,
		EndDate:   endDate,
		Timeframe: timeframe,
		Force:     c.Force,
	}, nil
}

// ToClientConfig converts the config to ClientConfig.
func (c *DownloadConfig) ToClientConfig(dataPath string) ClientConfig {
	return ClientConfig{
		ProviderType:      ProviderType(c.Provider),
		WriterType:        WriterType(c.Writer),
		DataPath:          dataPath,
		PolygonApiKey:     c.ApiKey,
		RequestsPerSecond: 0,
	}
}
