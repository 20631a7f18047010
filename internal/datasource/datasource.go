// Package datasource loads historical bars for backtests and slices the
// look-back windows the indicators are evaluated on.
package datasource

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// Load reads bars from a .csv or .parquet file. Bars come back sorted by
// time with duplicate timestamps collapsed to the last occurrence.
func Load(path string, symbol string, log *logger.Logger) ([]types.MarketData, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	var (
		bars []types.MarketData
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		bars, err = LoadCSV(path, symbol)
	case ".parquet":
		bars, err = LoadParquet(path, symbol)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported market data file %q, expected .csv or .parquet", path)
	}

	if err != nil {
		return nil, err
	}

	log.Debug("Market data loaded",
		zap.String("path", path),
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
	)

	return bars, nil
}

// Previous returns up to n bars strictly before index i. The bar at i is
// still in progress and never part of its own window.
func Previous(bars []types.MarketData, i int, n int) []types.MarketData {
	if i <= 0 || n <= 0 || len(bars) == 0 {
		return nil
	}

	if i > len(bars) {
		i = len(bars)
	}

	start := i - n
	if start < 0 {
		start = 0
	}

	return bars[start:i]
}

// Filter keeps bars inside the optional [start, end] range.
func Filter(bars []types.MarketData, start optional.Option[time.Time], end optional.Option[time.Time]) []types.MarketData {
	filtered := make([]types.MarketData, 0, len(bars))

	for _, bar := range bars {
		if start.IsSome() && bar.Time.Before(start.Unwrap()) {
			continue
		}

		if end.IsSome() && bar.Time.After(end.Unwrap()) {
			continue
		}

		filtered = append(filtered, bar)
	}

	return filtered
}

// normalize sorts bars by time, drops duplicate timestamps keeping the last
// one read and fills in the symbol when the file does not carry it.
func normalize(bars []types.MarketData, symbol string) []types.MarketData {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	result := make([]types.MarketData, 0, len(bars))

	for _, bar := range bars {
		if bar.Symbol == "" {
			bar.Symbol = symbol
		}

		if n := len(result); n > 0 && result[n-1].Time.Equal(bar.Time) {
			result[n-1] = bar

			continue
		}

		result = append(result, bar)
	}

	return result
}
