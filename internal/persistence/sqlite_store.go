package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/strategy"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// DefaultHistoryLimit is how many snapshots SQLiteStore keeps.
const DefaultHistoryLimit = 100

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS state_snapshots (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    saved_at       DATETIME NOT NULL,
    version        TEXT     NOT NULL,
    strategy       TEXT     NOT NULL,
    symbol         TEXT     NOT NULL,
    open_purchases INTEGER  NOT NULL DEFAULT 0,
    total_profit   REAL     NOT NULL DEFAULT 0,
    state          TEXT     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_state_snapshots_id ON state_snapshots(id DESC);
`

// SQLiteStore appends every saved state to the state_snapshots table and
// loads the newest row. Older rows are pruned beyond the history limit.
type SQLiteStore struct {
	db           *sql.DB
	sq           squirrel.StatementBuilderType
	historyLimit int
	now          func() time.Time
	logger       *logger.Logger
}

func NewSQLiteStore(path string, historyLimit int, log *logger.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "state path is required")
	}

	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to open state database %q", path)
	}

	// sqlite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to apply state schema", err)
	}

	return &SQLiteStore{
		db:           db,
		sq:           squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		historyLimit: historyLimit,
		now:          time.Now,
		logger:       log,
	}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, state strategy.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to encode state", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insert, args, err := s.sq.Insert("state_snapshots").
		Columns("saved_at", "version", "strategy", "symbol", "open_purchases", "total_profit", "state").
		Values(s.now().UTC(), state.Version, string(state.Strategy), state.Symbol,
			len(state.Ledger.Open), state.Ledger.TotalProfit, string(data)).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to build insert", err)
	}

	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to insert state", err)
	}

	keep := s.sq.Select("id").From("state_snapshots").OrderBy("id DESC").Limit(uint64(s.historyLimit))

	prune, args, err := s.sq.Delete("state_snapshots").
		Where(squirrel.Expr("id NOT IN (?)", keep)).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to build prune", err)
	}

	if _, err := tx.ExecContext(ctx, prune, args...); err != nil {
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to prune state history", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to commit state", err)
	}

	s.logger.Debug("State saved",
		zap.String("symbol", state.Symbol),
		zap.Int("open_purchases", len(state.Ledger.Open)),
	)

	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (optional.Option[strategy.State], error) {
	query, args, err := s.sq.Select("state").From("state_snapshots").OrderBy("id DESC").Limit(1).ToSql()
	if err != nil {
		return optional.None[strategy.State](), errors.Wrap(errors.ErrCodeStateLoadFailed, "failed to build query", err)
	}

	var data string

	err = s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return optional.None[strategy.State](), nil
	}

	if err != nil {
		return optional.None[strategy.State](), errors.Wrap(errors.ErrCodeStateLoadFailed, "failed to read state", err)
	}

	var state strategy.State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return optional.None[strategy.State](), errors.Wrap(errors.ErrCodeStateLoadFailed, "failed to decode state", err)
	}

	if err := checkVersion(state); err != nil {
		return optional.None[strategy.State](), err
	}

	return optional.Some(state), nil
}

// History returns how many snapshots are stored.
func (s *SQLiteStore) History(ctx context.Context) (int, error) {
	query, args, err := s.sq.Select("COUNT(*)").From("state_snapshots").ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count snapshots", err)
	}

	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
