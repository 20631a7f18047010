package paper

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/indicator"
	"github.com/rxtech-lab/argo-dca/internal/ledger"
	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/metrics"
	"github.com/rxtech-lab/argo-dca/internal/strategy"
	"github.com/rxtech-lab/argo-dca/internal/trading"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/mocks"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/provider"
)

const symbol = "BTCUSDT"

type RunnerTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	market   *mocks.MockProvider
	store    *mocks.MockStore
	start    time.Time
	strategy strategy.AdvancedConfig
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerTestSuite))
}

func (suite *RunnerTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.market = mocks.NewMockProvider(suite.ctrl)
	suite.store = mocks.NewMockStore(suite.ctrl)
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	suite.strategy = strategy.AdvancedConfig{
		Symbol:             symbol,
		AmountUSD:          100,
		MinProfitPct:       0.005,
		ReductionPoolPct:   1,
		MaxPurchases:       ledger.Unlimited,
		Fees:               fee.GetSchedule(fee.ExchangeBinance),
		StepDown:           ledger.StepDown{BasePct: 0.005, Multiplier: 1.5, MaxPct: 0.05},
		IndicatorAgreement: 0.5,
		Indicators:         nil,
	}
}

func (suite *RunnerTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *RunnerTestSuite) config() Config {
	return Config{
		Timeframe:        provider.Timeframe1h,
		PollInterval:     time.Millisecond,
		InitialCash:      10000,
		SaveEvery:        5,
		WindowSize:       10,
		MinLookback:      0,
		DecimalPrecision: trading.NoRounding,
	}
}

func (suite *RunnerTestSuite) newRunner(cfg Config, opts ...Option) *Runner {
	factory := func(options ...strategy.Option) (strategy.Strategy, error) {
		return strategy.NewAdvancedDCA(suite.strategy, options...)
	}

	indicators := indicator.NewProvider(indicator.NewIndicatorRegistry(), nil)

	runner, err := NewRunner(cfg, factory, indicators, suite.market, suite.store, logger.NewNopLogger(), opts...)
	suite.Require().NoError(err)

	return runner
}

// bars returns closed hourly bars where the last close is at offset hours.
func (suite *RunnerTestSuite) bars(offset int, closes ...float64) []types.MarketData {
	first := suite.start.Add(time.Duration(offset-len(closes)+1) * time.Hour)

	return mocks.NewDataGenerator(1).FromCloses(symbol, first, time.Hour, closes)
}

func (suite *RunnerTestSuite) expectBars(bars []types.MarketData) *gomock.Call {
	return suite.market.EXPECT().
		RecentBars(gomock.Any(), symbol, provider.Timeframe1h, 11).
		Return(bars, nil)
}

func (suite *RunnerTestSuite) TestNewRunnerValidation() {
	factory := func(options ...strategy.Option) (strategy.Strategy, error) {
		return strategy.NewAdvancedDCA(suite.strategy, options...)
	}
	indicators := indicator.NewProvider(indicator.NewIndicatorRegistry(), nil)

	_, err := NewRunner(suite.config(), nil, indicators, suite.market, suite.store, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	cfg := suite.config()
	cfg.Timeframe = "2h"
	_, err = NewRunner(cfg, factory, indicators, suite.market, suite.store, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTimeframe))

	cfg = suite.config()
	cfg.PollInterval = 0
	_, err = NewRunner(cfg, factory, indicators, suite.market, suite.store, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))
}

func (suite *RunnerTestSuite) TestRestoreWithoutSavedState() {
	runner := suite.newRunner(suite.config())
	suite.store.EXPECT().Load(gomock.Any()).Return(optional.None[strategy.State](), nil)

	suite.NoError(runner.Restore(context.Background()))
	suite.False(runner.Status().Restored)
	suite.Equal(10000.0, runner.Account().Cash())
}

func (suite *RunnerTestSuite) TestCycleBuysAndSaves() {
	runner := suite.newRunner(suite.config())

	suite.expectBars(suite.bars(0, 100, 100))
	suite.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	suite.NoError(runner.Cycle(context.Background()))

	suite.Equal(1, runner.Strategy().Ledger().OpenCount())
	suite.InDelta(9900, runner.Account().Cash(), 1e-9)

	status := runner.Status()
	suite.Equal(1, status.Cycles)
	suite.Equal(suite.start, status.LastBarTime)
	suite.Equal(100.0, status.LastPrice)
	suite.Empty(status.LastError)
}

func (suite *RunnerTestSuite) TestSameBarIsEvaluatedOnce() {
	runner := suite.newRunner(suite.config())

	bars := suite.bars(0, 100, 100)
	suite.expectBars(bars).Times(2)
	suite.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	suite.NoError(runner.Cycle(context.Background()))
	suite.NoError(runner.Cycle(context.Background()))

	suite.Equal(1, runner.Status().Cycles)
	suite.Equal(1, runner.Strategy().Ledger().OpenCount())
}

func (suite *RunnerTestSuite) TestFetchFailureLeavesLedgerUntouched() {
	runner := suite.newRunner(suite.config())

	suite.market.EXPECT().
		RecentBars(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New(errors.ErrCodeRateLimited, "too many requests"))

	err := runner.Cycle(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeRateLimited))

	suite.Equal(0, runner.Strategy().Ledger().OpenCount())
	suite.Equal(10000.0, runner.Account().Cash())
	suite.Equal(0, runner.Status().Cycles)
	suite.Contains(runner.Status().LastError, "too many requests")
}

func (suite *RunnerTestSuite) TestEmptyBarsAreInsufficient() {
	runner := suite.newRunner(suite.config())

	suite.expectBars(nil)

	err := runner.Cycle(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeInsufficientData))
}

func (suite *RunnerTestSuite) TestWarmupHoldsWithoutSaving() {
	cfg := suite.config()
	cfg.MinLookback = 5
	runner := suite.newRunner(cfg)

	suite.market.EXPECT().
		RecentBars(gomock.Any(), symbol, provider.Timeframe1h, 11).
		Return(suite.bars(0, 100, 100), nil)

	suite.NoError(runner.Cycle(context.Background()))
	suite.Equal(0, runner.Strategy().Ledger().OpenCount())
	suite.Equal(1, runner.Status().Cycles)
}

func (suite *RunnerTestSuite) TestSaveEvery() {
	cfg := suite.config()
	cfg.SaveEvery = 2
	runner := suite.newRunner(cfg)

	// buy, then two holds because the step-down is not met
	gomock.InOrder(
		suite.expectBars(suite.bars(0, 100, 100)),
		suite.expectBars(suite.bars(1, 100, 100)),
		suite.expectBars(suite.bars(2, 100, 100)),
	)
	suite.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	for range 3 {
		suite.NoError(runner.Cycle(context.Background()))
	}

	suite.Equal(3, runner.Status().Cycles)
	suite.Equal(1, runner.Strategy().Ledger().OpenCount())
}

func (suite *RunnerTestSuite) TestArmedExitTrailIsSavedWithoutFill() {
	suite.strategy.TrailingExitPct = 0.01
	runner := suite.newRunner(suite.config())

	var saved []strategy.State

	gomock.InOrder(
		suite.expectBars(suite.bars(0, 100, 100)),
		suite.expectBars(suite.bars(1, 100, 102)),
	)
	suite.store.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, state strategy.State) error {
			saved = append(saved, state)

			return nil
		}).Times(2)

	suite.NoError(runner.Cycle(context.Background()))
	suite.NoError(runner.Cycle(context.Background()))

	// the second save comes from the armed trail alone
	suite.Require().Len(saved, 2)
	suite.Require().Len(saved[1].Ledger.Open, 1)
	suite.Empty(saved[1].Ledger.Closed)

	trail := saved[1].Ledger.Open[0].Trailing
	suite.Equal(types.TrailingStatusActive, trail.Status)
	suite.Equal(102.0, trail.Watermark)
}

func (suite *RunnerTestSuite) TestArmedEntryTrailIsSaved() {
	suite.strategy.TrailingEntryPct = 0.02
	runner := suite.newRunner(suite.config())

	var saved strategy.State

	suite.expectBars(suite.bars(0, 100, 100))
	suite.store.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, state strategy.State) error {
			saved = state

			return nil
		}).Times(1)

	suite.NoError(runner.Cycle(context.Background()))

	suite.Equal(0, runner.Strategy().Ledger().OpenCount())
	suite.Equal(types.TrailingStatusActive, saved.EntryTrailing.Status)
}

func (suite *RunnerTestSuite) TestRestoreRebuildsCash() {
	runner := suite.newRunner(suite.config())

	var saved strategy.State

	gomock.InOrder(
		suite.expectBars(suite.bars(0, 100, 100)),
		suite.expectBars(suite.bars(1, 100, 102)),
	)
	suite.store.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, state strategy.State) error {
			saved = state

			return nil
		}).Times(2)

	suite.NoError(runner.Cycle(context.Background()))
	suite.NoError(runner.Cycle(context.Background()))
	suite.Require().Len(saved.Ledger.Closed, 1)

	restored := suite.newRunner(suite.config())
	suite.store.EXPECT().Load(gomock.Any()).Return(optional.Some(saved), nil)

	suite.NoError(restored.Restore(context.Background()))
	suite.True(restored.Status().Restored)
	suite.InDelta(runner.Account().Cash(), restored.Account().Cash(), 1e-9)
	suite.InDelta(runner.Account().TotalFees(), restored.Account().TotalFees(), 1e-9)
	suite.InDelta(runner.Strategy().Ledger().TotalProfit(), restored.Strategy().Ledger().TotalProfit(), 1e-9)
}

func (suite *RunnerTestSuite) TestRestoreRejectsOtherSymbol() {
	runner := suite.newRunner(suite.config())

	suite.store.EXPECT().Load(gomock.Any()).Return(optional.Some(strategy.State{
		Version:  "1.0.0",
		Strategy: strategy.NameAdvancedDCA,
		Symbol:   "ETHUSDT",
	}), nil)

	err := runner.Restore(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeStateLoadFailed))
}

func (suite *RunnerTestSuite) TestRestorePropagatesStoreErrors() {
	runner := suite.newRunner(suite.config())

	suite.store.EXPECT().Load(gomock.Any()).
		Return(optional.None[strategy.State](), errors.New(errors.ErrCodeStateVersionMismatch, "state from 2.0.0"))

	err := runner.Run(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeStateVersionMismatch))
}

func (suite *RunnerTestSuite) TestRunSavesOnShutdown() {
	runner := suite.newRunner(suite.config())

	suite.store.EXPECT().Load(gomock.Any()).Return(optional.None[strategy.State](), nil)
	suite.market.EXPECT().RecentBars(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(suite.bars(0, 100, 100), nil).MinTimes(1)
	// one save for the buy and one on shutdown
	suite.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	suite.NoError(runner.Run(ctx))
	suite.Equal(1, runner.Status().Cycles)
}

func (suite *RunnerTestSuite) TestRecorderObservesFills() {
	recorder := metrics.NewRecorder(symbol)
	runner := suite.newRunner(suite.config(), WithRecorder(recorder))

	suite.expectBars(suite.bars(0, 100, 100))
	suite.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	suite.NoError(runner.Cycle(context.Background()))

	families, err := recorder.Registry().Gather()
	suite.Require().NoError(err)

	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}

	suite.Contains(names, "dca_orders_total")
	suite.Contains(names, "dca_equity")
}

func (suite *RunnerTestSuite) TestCashFromLedger() {
	snapshot := ledger.Snapshot{
		Open: []types.Purchase{
			{ID: "a", EntryPrice: 100, Quantity: 1, EntryCost: 100.1},
		},
		Closed: []types.ClosedTrade{
			{
				Purchase:     types.Purchase{ID: "b", EntryPrice: 50, Quantity: 2, EntryCost: 100.1},
				SaleProceeds: 109.89,
				SaleFee:      0.11,
			},
		},
	}

	cash, fees := CashFromLedger(1000, snapshot)
	suite.InDelta(1000-100.1-100.1+109.89, cash, 1e-9)
	suite.InDelta(0.1+0.1+0.11, fees, 1e-9)

	cash, fees = CashFromLedger(500, ledger.Snapshot{})
	suite.Equal(500.0, cash)
	suite.Equal(0.0, fees)
}
