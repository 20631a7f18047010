package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

type LedgerTestSuite struct {
	suite.Suite
	start time.Time
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (suite *LedgerTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *LedgerTestSuite) newLedger(maxPurchases int) *Ledger {
	counter := 0
	l, err := New(Config{
		Symbol:          "BTCUSDT",
		MaxPurchases:    maxPurchases,
		Fees:            fee.Schedule{Maker: 0.001, Taker: 0.001},
		ProfitTargetPct: 0.01,
		NewID: func() string {
			counter++

			return fmt.Sprintf("p-%d", counter)
		},
	}, nil)
	suite.Require().NoError(err)

	return l
}

func (suite *LedgerTestSuite) TestNewValidation() {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero max purchases", Config{MaxPurchases: 0}},
		{"max purchases below unlimited", Config{MaxPurchases: -2}},
		{"negative fee", Config{MaxPurchases: 1, Fees: fee.Schedule{Maker: -0.1}}},
		{"profit target at 100%", Config{MaxPurchases: 1, ProfitTargetPct: 1}},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := New(tc.cfg, nil)
			suite.Error(err)
		})
	}
}

func (suite *LedgerTestSuite) TestOpenComputesTarget() {
	l := suite.newLedger(Unlimited)

	id, err := l.Open(50000, 1, 50050, suite.start)
	suite.Require().NoError(err)
	suite.Equal("p-1", id)

	p, ok := l.Purchase(id)
	suite.Require().True(ok)
	suite.InDelta(50601.10, p.TargetSalePrice, 0.01)
	suite.InDelta(50050.0, p.CostBasis(), 1e-9)
	suite.True(p.Trailing.IsInactive())
	suite.Equal("BTCUSDT", p.Symbol)
}

func (suite *LedgerTestSuite) TestOpenRejectsInvalidInput() {
	l := suite.newLedger(Unlimited)

	_, err := l.Open(0, 1, 0, suite.start)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = l.Open(100, -1, 100, suite.start)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = l.Open(100, 1, -5, suite.start)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = l.Open(100, 1, 100.1, suite.start)
	suite.Require().NoError(err)

	_, err = l.Open(99, 1, 99.1, suite.start.Add(-time.Hour))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
	suite.Equal(1, l.OpenCount())
}

func (suite *LedgerTestSuite) TestCapacity() {
	l := suite.newLedger(2)

	_, err := l.Open(100, 1, 100.1, suite.start)
	suite.Require().NoError(err)
	_, err = l.Open(99, 1, 99.099, suite.start.Add(time.Hour))
	suite.Require().NoError(err)
	suite.False(l.CanOpen())

	_, err = l.Open(98, 1, 98.098, suite.start.Add(2*time.Hour))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeCapacityExceeded))
	suite.Equal(2, l.OpenCount())
}

func (suite *LedgerTestSuite) TestUnlimitedCapacity() {
	l := suite.newLedger(Unlimited)

	for i := 0; i < 50; i++ {
		_, err := l.Open(100-float64(i), 1, 100, suite.start.Add(time.Duration(i)*time.Minute))
		suite.Require().NoError(err)
	}

	suite.True(l.CanOpen())
	suite.Equal(50, l.OpenCount())
}

func (suite *LedgerTestSuite) TestCloseRealizesProfit() {
	l := suite.newLedger(Unlimited)
	id, err := l.Open(50000, 1, 50050, suite.start)
	suite.Require().NoError(err)

	trade, err := l.Close(id, 50601.1011, suite.start.Add(time.Hour))
	suite.Require().NoError(err)

	suite.InDelta(50601.1011*0.999, trade.SaleProceeds, 1e-6)
	suite.InDelta(50.6011011, trade.SaleFee, 1e-6)
	suite.InDelta(trade.SaleProceeds-50050, trade.RealizedProfit, 1e-6)
	suite.InDelta(0.01, trade.RealizedProfitPct, 1e-6)
	suite.Equal(time.Hour, trade.HoldingTime())
	suite.True(trade.IsWin())

	suite.Equal(0, l.OpenCount())
	suite.Len(l.ClosedTrades(), 1)
	suite.InDelta(trade.RealizedProfit, l.TotalProfit(), 1e-9)
	suite.True(l.MostRecentOpen().IsNone())
}

func (suite *LedgerTestSuite) TestCloseUnknownPurchase() {
	l := suite.newLedger(Unlimited)
	id, err := l.Open(100, 1, 100.1, suite.start)
	suite.Require().NoError(err)

	_, err = l.Close("missing", 110, suite.start)
	suite.True(errors.HasCode(err, errors.ErrCodePurchaseNotFound))

	_, err = l.Close(id, 110, suite.start)
	suite.Require().NoError(err)

	// closing twice is rejected
	_, err = l.Close(id, 110, suite.start)
	suite.True(errors.HasCode(err, errors.ErrCodePurchaseNotFound))
}

func (suite *LedgerTestSuite) TestCloseResetsTrailing() {
	l := suite.newLedger(Unlimited)
	id, err := l.Open(100, 1, 100.1, suite.start)
	suite.Require().NoError(err)

	suite.Require().NoError(l.StartTrailing(id, 0.01, suite.start))
	triggered, err := l.UpdateTrailing(id, 200, suite.start)
	suite.Require().NoError(err)
	suite.False(triggered)

	p, _ := l.Purchase(id)
	suite.Equal(types.TrailingStatusActive, p.Trailing.Status)

	trade, err := l.Close(id, 200, suite.start)
	suite.Require().NoError(err)
	suite.True(trade.Purchase.Trailing.IsInactive())
	suite.Equal(types.TrailingStatusInactive, trade.Purchase.Trailing.Status)
}

func (suite *LedgerTestSuite) TestReductionCascadeScenario() {
	l := suite.newLedger(Unlimited)
	first, err := l.Open(50000, 1, 50050, suite.start)
	suite.Require().NoError(err)
	second, err := l.Open(48000, 1, 48048, suite.start.Add(time.Hour))
	suite.Require().NoError(err)

	trade, err := l.Close(second, 49000, suite.start.Add(2*time.Hour))
	suite.Require().NoError(err)
	suite.InDelta(903.0, trade.RealizedProfit, 1e-6)

	minProfit := 0.005 * trade.CostBasis
	excess := trade.RealizedProfit - minProfit
	suite.InDelta(662.76, excess, 1e-6)

	recent := l.MostRecentOpen()
	suite.Require().True(recent.IsSome())
	suite.Equal(first, recent.Unwrap().ID)

	before := recent.Unwrap()
	applied, err := l.ApplyReduction(first, excess)
	suite.Require().NoError(err)
	suite.InDelta(excess, applied, 1e-9)

	after, ok := l.Purchase(first)
	suite.Require().True(ok)
	suite.InDelta(before.CostBasis()-excess, after.CostBasis(), 1e-6)
	suite.Less(after.TargetSalePrice, before.TargetSalePrice)

	expected, err := fee.TargetSalePrice(after.CostBasis()/1.001, 0.001, 0.001, 0.01)
	suite.Require().NoError(err)
	suite.InDelta(expected, after.TargetSalePrice, 1e-6)

	// selling at the new target realizes exactly the profit target on the reduced basis
	pct := (after.TargetSalePrice*0.999 - after.CostBasis()) / after.CostBasis()
	suite.InDelta(0.01, pct, 1e-9)
	suite.InDelta(excess, l.TotalReduction(), 1e-9)
}

func (suite *LedgerTestSuite) TestReductionFloorsAtZero() {
	l := suite.newLedger(Unlimited)
	id, err := l.Open(100, 1, 100.1, suite.start)
	suite.Require().NoError(err)

	applied, err := l.ApplyReduction(id, 60)
	suite.Require().NoError(err)
	suite.InDelta(60.0, applied, 1e-9)

	applied, err = l.ApplyReduction(id, 1000)
	suite.Require().NoError(err)
	suite.InDelta(40.1, applied, 1e-9)

	p, _ := l.Purchase(id)
	suite.Equal(0.0, p.CostBasis())
	suite.Equal(0.0, p.TargetSalePrice)
	suite.LessOrEqual(p.Reduction, p.EntryCost)

	// nothing left to reduce
	applied, err = l.ApplyReduction(id, 5)
	suite.Require().NoError(err)
	suite.Equal(0.0, applied)
	suite.InDelta(100.1, l.TotalReduction(), 1e-9)
}

func (suite *LedgerTestSuite) TestReductionValidation() {
	l := suite.newLedger(Unlimited)
	id, err := l.Open(100, 1, 100.1, suite.start)
	suite.Require().NoError(err)

	_, err = l.ApplyReduction(id, -1)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = l.ApplyReduction("missing", 1)
	suite.True(errors.HasCode(err, errors.ErrCodePurchaseNotFound))

	applied, err := l.ApplyReduction(id, 0)
	suite.NoError(err)
	suite.Equal(0.0, applied)
}

func (suite *LedgerTestSuite) TestReductionMovesWaitingTrail() {
	l := suite.newLedger(Unlimited)
	id, err := l.Open(100, 1, 100.1, suite.start)
	suite.Require().NoError(err)
	suite.Require().NoError(l.StartTrailing(id, 0.01, suite.start))

	_, err = l.ApplyReduction(id, 10)
	suite.Require().NoError(err)

	p, _ := l.Purchase(id)
	suite.Equal(types.TrailingStatusWaiting, p.Trailing.Status)
	suite.InDelta(p.TargetSalePrice, p.Trailing.ActivationPrice, 1e-9)
	suite.InDelta(0.01, p.Trailing.TrailingPct, 1e-12)
}

func (suite *LedgerTestSuite) TestOrderingAndMostRecent() {
	l := suite.newLedger(Unlimited)
	a, _ := l.Open(100, 1, 100.1, suite.start)
	b, _ := l.Open(99, 1, 99.099, suite.start.Add(time.Hour))
	c, _ := l.Open(98, 1, 98.098, suite.start.Add(2*time.Hour))

	suite.Equal(c, l.MostRecentOpen().Unwrap().ID)

	_, err := l.Close(c, 120, suite.start.Add(3*time.Hour))
	suite.Require().NoError(err)
	suite.Equal(b, l.MostRecentOpen().Unwrap().ID)

	_, err = l.Close(a, 120, suite.start.Add(3*time.Hour))
	suite.Require().NoError(err)
	suite.Equal(b, l.MostRecentOpen().Unwrap().ID)

	open := l.OpenPurchases()
	suite.Len(open, 1)
	// returned slices are copies
	open[0].Quantity = 42
	p, _ := l.Purchase(b)
	suite.Equal(1.0, p.Quantity)
}

func (suite *LedgerTestSuite) TestMarketValue() {
	l := suite.newLedger(Unlimited)
	_, _ = l.Open(100, 2, 200.2, suite.start)
	_, _ = l.Open(90, 0.5, 45.045, suite.start)

	suite.InDelta(250.0, l.MarketValue(100), 1e-9)
}

func (suite *LedgerTestSuite) TestSnapshotRestore() {
	l := suite.newLedger(3)
	first, _ := l.Open(50000, 1, 50050, suite.start)
	second, _ := l.Open(48000, 1, 48048, suite.start.Add(time.Hour))
	_, err := l.Close(second, 49000, suite.start.Add(2*time.Hour))
	suite.Require().NoError(err)
	_, err = l.ApplyReduction(first, 100)
	suite.Require().NoError(err)

	snapshot := l.Snapshot()

	restored := suite.newLedger(3)
	suite.Require().NoError(restored.Restore(snapshot))

	suite.Equal(l.OpenPurchases(), restored.OpenPurchases())
	suite.Equal(l.ClosedTrades(), restored.ClosedTrades())
	suite.InDelta(l.TotalProfit(), restored.TotalProfit(), 1e-9)
	suite.InDelta(l.TotalReduction(), restored.TotalReduction(), 1e-9)
	suite.Equal(snapshot, restored.Snapshot())
}

func (suite *LedgerTestSuite) TestRestoreRejectsInvalidSnapshot() {
	l := suite.newLedger(1)

	tests := []struct {
		name     string
		snapshot Snapshot
	}{
		{
			name: "over capacity",
			snapshot: Snapshot{Open: []types.Purchase{
				{ID: "a", Quantity: 1, EntryCost: 1, EntryTime: suite.start},
				{ID: "b", Quantity: 1, EntryCost: 1, EntryTime: suite.start},
			}},
		},
		{
			name: "reduction above cost",
			snapshot: Snapshot{Open: []types.Purchase{
				{ID: "a", Quantity: 1, EntryCost: 1, Reduction: 2, EntryTime: suite.start},
			}},
		},
		{
			name: "missing id",
			snapshot: Snapshot{Open: []types.Purchase{
				{Quantity: 1, EntryCost: 1, EntryTime: suite.start},
			}},
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			err := l.Restore(tc.snapshot)
			suite.Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeStateLoadFailed))
		})
	}
}

func (suite *LedgerTestSuite) TestRestoreRecomputesTargets() {
	l := suite.newLedger(Unlimited)
	_, err := l.Open(50000, 1, 50050, suite.start)
	suite.Require().NoError(err)

	stale := l.Snapshot()

	repriced, err := New(Config{
		Symbol:          "BTCUSDT",
		MaxPurchases:    Unlimited,
		Fees:            fee.Schedule{Maker: 0.002, Taker: 0.002},
		ProfitTargetPct: 0.02,
	}, nil)
	suite.Require().NoError(err)
	suite.Require().NoError(repriced.Restore(stale))

	expected, err := fee.TargetSalePrice(50050/1.002, 0.002, 0.002, 0.02)
	suite.Require().NoError(err)

	p := repriced.MostRecentOpen().Unwrap()
	suite.InDelta(expected, p.TargetSalePrice, 1e-6)
	suite.Greater(p.TargetSalePrice, stale.Open[0].TargetSalePrice)
}

func (suite *LedgerTestSuite) TestRevisionTracksEveryChange() {
	l := suite.newLedger(Unlimited)
	suite.Equal(uint64(0), l.Revision())

	id, err := l.Open(100, 1, 100.1, suite.start)
	suite.Require().NoError(err)
	after := l.Revision()
	suite.Greater(after, uint64(0))

	steps := []struct {
		name   string
		mutate func() error
	}{
		{"start trailing", func() error { return l.StartTrailing(id, 0.01, suite.start) }},
		{"update trailing", func() error {
			_, err := l.UpdateTrailing(id, 101, suite.start.Add(time.Hour))

			return err
		}},
		{"pending sale", func() error { return l.SetPendingSale(id, true) }},
		{"reset trailing", func() error { return l.ResetTrailing(id) }},
		{"reduction", func() error {
			_, err := l.ApplyReduction(id, 1)

			return err
		}},
	}

	for _, step := range steps {
		suite.Require().NoError(step.mutate(), step.name)
		suite.Greater(l.Revision(), after, step.name)
		after = l.Revision()
	}

	l.CanOpen()
	l.OpenPurchases()
	suite.Equal(after, l.Revision())

	// flagging an already pending sale changes nothing
	suite.Require().NoError(l.SetPendingSale(id, true))
	suite.Equal(after, l.Revision())
}
