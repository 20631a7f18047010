package results

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/backtest"
	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

const (
	ReportFile = "report.json"
	StatsFile  = "stats.yaml"
	TradesFile = "trades.parquet"
	EquityFile = "equity.parquet"
	EventsFile = "events.parquet"
)

const insertBatchSize = 500

// Writer exports a report into a run folder.
type Writer struct {
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewWriter creates a Writer.
func NewWriter(log *logger.Logger) *Writer {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Writer{
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Write stores report.json, stats.yaml and the trades, equity and events
// parquet files in dir and returns the stats that were written.
func (w *Writer) Write(report *backtest.Report, dir string, dataPath string) (types.BacktestStats, error) {
	if report == nil {
		return types.BacktestStats{}, errors.New(errors.ErrCodeBacktestWriteFailed, "report is nil")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return types.BacktestStats{}, errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to create result folder", err)
	}

	if err := writeJSON(filepath.Join(dir, ReportFile), report); err != nil {
		return types.BacktestStats{}, err
	}

	if err := w.writeParquet(report, dir); err != nil {
		return types.BacktestStats{}, err
	}

	stats := report.Stats()
	stats.TradesFilePath = filepath.Join(dir, TradesFile)
	stats.EquityFilePath = filepath.Join(dir, EquityFile)
	stats.DataPath = dataPath

	if err := types.WriteBacktestStats(filepath.Join(dir, StatsFile), []types.BacktestStats{stats}); err != nil {
		return types.BacktestStats{}, errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to write stats", err)
	}

	w.logger.Info("Backtest results written",
		zap.String("dir", dir),
		zap.Int("trades", len(report.Trades)),
		zap.Int("equity_points", len(report.EquityCurve)),
	)

	return stats, nil
}

func writeJSON(path string, report *backtest.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to marshal report", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to write report", err)
	}

	return nil
}

func (w *Writer) writeParquet(report *backtest.Report, dir string) error {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to open duckdb", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE trades (
			purchase_id TEXT,
			symbol TEXT,
			open_index INTEGER,
			close_index INTEGER,
			entry_time TIMESTAMP,
			entry_price DOUBLE,
			quantity DOUBLE,
			entry_cost DOUBLE,
			reduction DOUBLE,
			cost_basis DOUBLE,
			sale_time TIMESTAMP,
			sale_price DOUBLE,
			sale_proceeds DOUBLE,
			sale_fee DOUBLE,
			realized_profit DOUBLE,
			realized_profit_pct DOUBLE
		);
		CREATE TABLE equity (
			bar_index INTEGER,
			time TIMESTAMP,
			price DOUBLE,
			cash DOUBLE,
			position_value DOUBLE,
			equity DOUBLE
		);
		CREATE TABLE events (
			id TEXT,
			time TIMESTAMP,
			symbol TEXT,
			strategy TEXT,
			action TEXT,
			purchase_id TEXT,
			price DOUBLE,
			quantity DOUBLE,
			reasons TEXT,
			message TEXT
		);
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to create result tables", err)
	}

	tradeRows := make([][]any, 0, len(report.Trades))
	for _, t := range report.Trades {
		p := t.Trade.Purchase
		tradeRows = append(tradeRows, []any{
			p.ID, p.Symbol, t.OpenIndex, t.CloseIndex, p.EntryTime, p.EntryPrice, p.Quantity, p.EntryCost,
			p.Reduction, t.Trade.CostBasis, t.Trade.SaleTime, t.Trade.SalePrice, t.Trade.SaleProceeds,
			t.Trade.SaleFee, t.Trade.RealizedProfit, t.Trade.RealizedProfitPct,
		})
	}

	equityRows := make([][]any, 0, len(report.EquityCurve))
	for _, e := range report.EquityCurve {
		equityRows = append(equityRows, []any{e.Index, e.Time, e.Price, e.Cash, e.PositionValue, e.Equity})
	}

	eventRows := make([][]any, 0, len(report.Events))
	for _, e := range report.Events {
		reasons := make([]string, len(e.Reasons))
		for i, r := range e.Reasons {
			reasons[i] = string(r)
		}

		eventRows = append(eventRows, []any{
			e.ID, e.Time, e.Symbol, e.Strategy, string(e.Action), e.PurchaseID, e.Price, e.Quantity,
			strings.Join(reasons, ","), e.Message,
		})
	}

	exports := []struct {
		table   string
		columns []string
		rows    [][]any
		order   string
		file    string
	}{
		{
			table: "trades",
			columns: []string{"purchase_id", "symbol", "open_index", "close_index", "entry_time", "entry_price",
				"quantity", "entry_cost", "reduction", "cost_basis", "sale_time", "sale_price", "sale_proceeds",
				"sale_fee", "realized_profit", "realized_profit_pct"},
			rows:  tradeRows,
			order: "close_index, open_index",
			file:  TradesFile,
		},
		{
			table:   "equity",
			columns: []string{"bar_index", "time", "price", "cash", "position_value", "equity"},
			rows:    equityRows,
			order:   "bar_index",
			file:    EquityFile,
		},
		{
			table:   "events",
			columns: []string{"id", "time", "symbol", "strategy", "action", "purchase_id", "price", "quantity", "reasons", "message"},
			rows:    eventRows,
			order:   "time",
			file:    EventsFile,
		},
	}

	for _, export := range exports {
		if err := w.insert(db, export.table, export.columns, export.rows); err != nil {
			return err
		}

		path := filepath.Join(dir, export.file)

		// using raw SQL as squirrel doesn't support COPY
		_, err := db.Exec(fmt.Sprintf(`COPY (SELECT * FROM %s ORDER BY %s) TO '%s' (FORMAT PARQUET)`,
			export.table, export.order, strings.ReplaceAll(path, "'", "''")))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeBacktestWriteFailed, err, "failed to export %s", export.file)
		}
	}

	return nil
}

func (w *Writer) insert(db *sql.DB, table string, columns []string, rows [][]any) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))

		query := w.sq.Insert(table).Columns(columns...)
		for _, row := range rows[start:end] {
			query = query.Values(row...)
		}

		sqlText, args, err := query.ToSql()
		if err != nil {
			return errors.Wrapf(errors.ErrCodeBacktestWriteFailed, err, "failed to build %s insert", table)
		}

		if _, err := db.Exec(sqlText, args...); err != nil {
			return errors.Wrapf(errors.ErrCodeBacktestWriteFailed, err, "failed to insert %s", table)
		}
	}

	return nil
}
