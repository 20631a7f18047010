package datasource

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// LoadParquet reads bars from a parquet file written by the market data
// downloader. Rows of other symbols are skipped when symbol is set.
func LoadParquet(path string, symbol string) ([]types.MarketData, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to open %s", path)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}
	defer db.Close()

	// read_parquet takes the path literally, squirrel cannot bind a table function argument
	source := fmt.Sprintf("read_parquet('%s')", strings.ReplaceAll(path, "'", "''"))

	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("time", "symbol", "open", "high", "low", "close", "volume").
		From(source).
		OrderBy("time ASC")

	if symbol != "" {
		query = query.Where(squirrel.Eq{"symbol": symbol})
	}

	sqlText, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	rows, err := db.Query(sqlText, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query %s", path)
	}
	defer rows.Close()

	var bars []types.MarketData

	for rows.Next() {
		var (
			timestamp                      time.Time
			rowSymbol                      sql.NullString
			open, high, low, close, volume float64
		)

		if err := rows.Scan(&timestamp, &rowSymbol, &open, &high, &low, &close, &volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "failed to scan parquet row", err)
		}

		bars = append(bars, types.MarketData{
			Id:     "",
			Symbol: rowSymbol.String,
			Time:   timestamp.UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate parquet rows", err)
	}

	return normalize(bars, symbol), nil
}
