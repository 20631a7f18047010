package strategy

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

type IntervalDCATestSuite struct {
	suite.Suite
	start time.Time
}

func TestIntervalDCASuite(t *testing.T) {
	suite.Run(t, new(IntervalDCATestSuite))
}

func (suite *IntervalDCATestSuite) SetupTest() {
	suite.start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *IntervalDCATestSuite) newStrategy(mutate func(*IntervalConfig)) *IntervalDCA {
	cfg := IntervalConfig{
		Symbol:    "BTCUSDT",
		AmountUSD: 100,
		Interval:  24 * time.Hour,
		MinPrice:  optional.None[float64](),
		MaxPrice:  optional.None[float64](),
		Fees:      testFees,
	}

	if mutate != nil {
		mutate(&cfg)
	}

	s, err := NewIntervalDCA(cfg)
	suite.Require().NoError(err)

	return s
}

func (suite *IntervalDCATestSuite) evaluate(s *IntervalDCA, hours int, price float64) types.Decision {
	return only(s.Evaluate(Tick{Time: suite.start.Add(time.Duration(hours) * time.Hour), Price: price}))
}

func (suite *IntervalDCATestSuite) fillBuy(s *IntervalDCA, d types.Decision, hours int) {
	suite.Require().Equal(types.DecisionActionBuy, d.Action)
	suite.Require().NoError(s.OnFill(types.Fill{
		Side:     types.SideBuy,
		Price:    d.Price,
		Quantity: d.Quantity,
		Fee:      testFees.BuyFee(d.Price * d.Quantity),
		Time:     suite.start.Add(time.Duration(hours) * time.Hour),
	}))
}

func (suite *IntervalDCATestSuite) TestBuysEveryInterval() {
	s := suite.newStrategy(nil)

	d := suite.evaluate(s, 0, 100)
	suite.Equal([]types.ReasonCode{types.ReasonIntervalElapsed}, d.Reasons)
	suite.fillBuy(s, d, 0)

	d = suite.evaluate(s, 23, 90)
	suite.Equal(types.DecisionActionHold, d.Action)
	suite.Equal([]types.ReasonCode{types.ReasonIntervalPending}, d.Reasons)

	d = suite.evaluate(s, 24, 200)
	suite.fillBuy(s, d, 24)

	suite.Equal(2, s.Ledger().OpenCount())
}

func (suite *IntervalDCATestSuite) TestPriceBand() {
	s := suite.newStrategy(func(c *IntervalConfig) {
		c.MinPrice = optional.Some(90.0)
		c.MaxPrice = optional.Some(110.0)
	})

	for _, price := range []float64{89, 111} {
		d := suite.evaluate(s, 0, price)
		suite.Equal([]types.ReasonCode{types.ReasonPriceOutOfBand}, d.Reasons)
	}

	suite.Equal(types.DecisionActionBuy, suite.evaluate(s, 0, 100).Action)
}

func (suite *IntervalDCATestSuite) TestNeverSells() {
	s := suite.newStrategy(nil)
	suite.fillBuy(s, suite.evaluate(s, 0, 100), 0)

	d := suite.evaluate(s, 1, 1000)
	suite.Equal(types.DecisionActionHold, d.Action)
}

func (suite *IntervalDCATestSuite) TestExternalSellClosesPurchase() {
	s := suite.newStrategy(nil)
	suite.fillBuy(s, suite.evaluate(s, 0, 100), 0)
	p := s.Ledger().MostRecentOpen().Unwrap()

	suite.Require().NoError(s.OnFill(types.Fill{
		Side: types.SideSell, PurchaseID: p.ID, Price: 120, Quantity: p.Quantity, Time: suite.start.Add(time.Hour),
	}))
	suite.Equal(0, s.Ledger().OpenCount())
}

func (suite *IntervalDCATestSuite) TestConfigValidation() {
	_, err := NewIntervalDCA(IntervalConfig{Symbol: "BTCUSDT", AmountUSD: 100, Interval: 0})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))

	_, err = NewIntervalDCA(IntervalConfig{
		Symbol:    "BTCUSDT",
		AmountUSD: 100,
		Interval:  time.Hour,
		MinPrice:  optional.Some(200.0),
		MaxPrice:  optional.Some(100.0),
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *IntervalDCATestSuite) TestSnapshotRestoreKeepsSchedule() {
	s := suite.newStrategy(nil)
	suite.fillBuy(s, suite.evaluate(s, 0, 100), 0)

	restored := suite.newStrategy(nil)
	suite.Require().NoError(restored.Restore(s.Snapshot()))

	d := suite.evaluate(restored, 12, 100)
	suite.Equal([]types.ReasonCode{types.ReasonIntervalPending}, d.Reasons)

	err := suite.newStrategy(nil).Restore(State{Strategy: NameAdvancedDCA, Symbol: "BTCUSDT"})
	suite.True(errors.HasCode(err, errors.ErrCodeStateLoadFailed))
}
