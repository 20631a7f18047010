package datasource

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// LoadCSV reads an OHLCV csv file. Columns are matched by header name; the
// time column may be called time, timestamp, date or datetime.
func LoadCSV(path string, symbol string) ([]types.MarketData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to open %s", path)
	}
	defer file.Close()

	return ReadCSV(file, symbol)
}

// ReadCSV parses OHLCV rows from r.
func ReadCSV(r io.Reader, symbol string) ([]types.MarketData, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "failed to read csv header", err)
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var bars []types.MarketData

	line := 1

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		line++

		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "failed to read csv line %d", line)
		}

		bar, err := parseRecord(record, columns)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid csv line %d", line)
		}

		bars = append(bars, bar)
	}

	return normalize(bars, symbol), nil
}

type csvColumns struct {
	time, open, high, low, close, volume int
	symbol                              int
}

func mapColumns(header []string) (csvColumns, error) {
	columns := csvColumns{time: -1, open: -1, high: -1, low: -1, close: -1, volume: -1, symbol: -1}

	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "time", "timestamp", "date", "datetime":
			columns.time = i
		case "open":
			columns.open = i
		case "high":
			columns.high = i
		case "low":
			columns.low = i
		case "close":
			columns.close = i
		case "volume":
			columns.volume = i
		case "symbol":
			columns.symbol = i
		}
	}

	required := map[string]int{
		"time":  columns.time,
		"open":  columns.open,
		"high":  columns.high,
		"low":   columns.low,
		"close": columns.close,
	}

	for name, idx := range required {
		if idx < 0 {
			return columns, errors.Newf(errors.ErrCodeMarketDataParseFailed, "csv header is missing the %s column", name)
		}
	}

	return columns, nil
}

func parseRecord(record []string, columns csvColumns) (types.MarketData, error) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[idx])
	}

	at, err := parseTime(field(columns.time))
	if err != nil {
		return types.MarketData{}, err
	}

	values := make([]float64, 5)

	for i, idx := range []int{columns.open, columns.high, columns.low, columns.close, columns.volume} {
		raw := field(idx)
		if raw == "" && idx == columns.volume {
			continue
		}

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.MarketData{}, err
		}

		values[i] = v
	}

	return types.MarketData{
		Id:     "",
		Symbol: field(columns.symbol),
		Time:   at,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

// parseTime accepts the layouts above or unix epochs in seconds or milliseconds.
func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New(errors.ErrCodeMarketDataParseFailed, "empty time value")
	}

	if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if epoch > 1e11 {
			return time.UnixMilli(epoch).UTC(), nil
		}

		return time.Unix(epoch, 0).UTC(), nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, errors.Newf(errors.ErrCodeMarketDataParseFailed, "unrecognised time %q", raw)
}
