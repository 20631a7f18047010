package strategy

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

type GridTestSuite struct {
	suite.Suite
	start time.Time
}

func TestGridSuite(t *testing.T) {
	suite.Run(t, new(GridTestSuite))
}

func (suite *GridTestSuite) SetupTest() {
	suite.start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
}

func defaultGridConfig() GridConfig {
	return GridConfig{
		Symbol:     "BTCUSDT",
		AmountUSD:  100,
		SpacingPct: 0.02,
		Levels:     3,
		Fees:       testFees,
	}
}

func (suite *GridTestSuite) newGrid(cfg GridConfig) *Grid {
	counter := 0
	s, err := NewGrid(cfg, WithIDGenerator(func() string {
		counter++

		return fmt.Sprintf("p-%d", counter)
	}))
	suite.Require().NoError(err)

	return s
}

func (suite *GridTestSuite) tick(hours int, price float64) Tick {
	return Tick{Time: suite.start.Add(time.Duration(hours) * time.Hour), Price: price}
}

func (suite *GridTestSuite) fill(s *Grid, d types.Decision, hours int) {
	f := types.Fill{
		PurchaseID: d.PurchaseID,
		Price:      d.Price,
		Quantity:   d.Quantity,
		Time:       suite.start.Add(time.Duration(hours) * time.Hour),
	}

	switch d.Action {
	case types.DecisionActionBuy:
		f.Side = types.SideBuy
		f.Fee = testFees.BuyFee(d.Price * d.Quantity)
	case types.DecisionActionSell:
		f.Side = types.SideSell
		f.Fee = testFees.SellFee(d.Price * d.Quantity)
	default:
		suite.FailNow("cannot fill a hold")
	}

	suite.Require().NoError(s.OnFill(f))
}

func (suite *GridTestSuite) TestConfigValidation() {
	tests := []struct {
		name   string
		mutate func(*GridConfig)
	}{
		{"missing symbol", func(c *GridConfig) { c.Symbol = "" }},
		{"zero amount", func(c *GridConfig) { c.AmountUSD = 0 }},
		{"zero spacing", func(c *GridConfig) { c.SpacingPct = 0 }},
		{"no levels", func(c *GridConfig) { c.Levels = 0 }},
		{"levels reach zero", func(c *GridConfig) { c.SpacingPct = 0.25; c.Levels = 4 }},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			cfg := defaultGridConfig()
			tc.mutate(&cfg)

			_, err := NewGrid(cfg)
			suite.Error(err)
		})
	}
}

func (suite *GridTestSuite) TestFirstTickPlacesGrid() {
	s := suite.newGrid(defaultGridConfig())

	d := only(s.Evaluate(suite.tick(0, 100)))
	suite.Equal(types.DecisionActionHold, d.Action)
	suite.Equal([]types.ReasonCode{types.ReasonGridPlaced}, d.Reasons)
	suite.Equal(100.0, s.Anchor())
	suite.InDelta(98.0, s.LevelPrice(1), 1e-9)
	suite.InDelta(94.0, s.LevelPrice(3), 1e-9)

	d = only(s.Evaluate(suite.tick(1, 99)))
	suite.Equal([]types.ReasonCode{types.ReasonGridWaiting}, d.Reasons)
}

func (suite *GridTestSuite) TestBuysOncePerLevelAndSellsOneLevelUp() {
	s := suite.newGrid(defaultGridConfig())
	only(s.Evaluate(suite.tick(0, 100)))

	d := only(s.Evaluate(suite.tick(1, 97.5)))
	suite.Require().Equal(types.DecisionActionBuy, d.Action)
	suite.Equal([]types.ReasonCode{types.ReasonGridLevelCrossed}, d.Reasons)
	suite.fill(s, d, 1)

	// level one is held, level two is not reached
	d = only(s.Evaluate(suite.tick(2, 97.5)))
	suite.Equal([]types.ReasonCode{types.ReasonGridWaiting}, d.Reasons)

	d = only(s.Evaluate(suite.tick(3, 95)))
	suite.Require().Equal(types.DecisionActionBuy, d.Action)
	suite.fill(s, d, 3)
	suite.Equal(map[int]string{1: "p-1", 2: "p-2"}, s.Snapshot().Grid.Held)

	first, _ := s.Ledger().Purchase("p-1")
	expected, err := testFees.TargetSalePrice(97.5, 0.02)
	suite.Require().NoError(err)
	suite.InDelta(expected, first.TargetSalePrice, 1e-6)

	decisions := s.Evaluate(suite.tick(4, 100))
	suite.Require().Len(decisions, 2)
	for _, sell := range decisions {
		suite.Equal(types.DecisionActionSell, sell.Action)
		suite.fill(s, sell, 4)
	}

	suite.Empty(s.Snapshot().Grid.Held)
	suite.Equal(0, s.Ledger().OpenCount())

	// a sold level buys again
	d = only(s.Evaluate(suite.tick(5, 97.9)))
	suite.Equal(types.DecisionActionBuy, d.Action)
}

func (suite *GridTestSuite) TestGapDownFillsDeepestLevelFirst() {
	s := suite.newGrid(defaultGridConfig())
	only(s.Evaluate(suite.tick(0, 100)))

	for h := 1; h <= 3; h++ {
		d := only(s.Evaluate(suite.tick(h, 93)))
		suite.Require().Equal(types.DecisionActionBuy, d.Action)
		suite.fill(s, d, h)
	}

	suite.Equal(map[int]string{3: "p-1", 2: "p-2", 1: "p-3"}, s.Snapshot().Grid.Held)

	d := only(s.Evaluate(suite.tick(4, 93)))
	suite.Equal([]types.ReasonCode{types.ReasonGridWaiting}, d.Reasons)
}

func (suite *GridTestSuite) TestRecentersWhenFlatAboveSpan() {
	s := suite.newGrid(defaultGridConfig())
	only(s.Evaluate(suite.tick(0, 100)))

	d := only(s.Evaluate(suite.tick(1, 106)))
	suite.Equal([]types.ReasonCode{types.ReasonGridWaiting}, d.Reasons)

	d = only(s.Evaluate(suite.tick(2, 107)))
	suite.Equal([]types.ReasonCode{types.ReasonGridRecentered}, d.Reasons)
	suite.Equal(107.0, s.Anchor())
}

func (suite *GridTestSuite) TestRejectedBuyKeepsLevelFree() {
	s := suite.newGrid(defaultGridConfig())
	only(s.Evaluate(suite.tick(0, 100)))

	tick := suite.tick(1, 97)
	d := only(s.Evaluate(tick))
	s.Reject(tick, d, errors.New(errors.ErrCodeInsufficientFunds, "no cash"))
	suite.Empty(s.Snapshot().Grid.Held)
	suite.Equal(1, s.SkippedEntries())

	d = only(s.Evaluate(suite.tick(2, 97)))
	suite.Equal(types.DecisionActionBuy, d.Action)
}

func (suite *GridTestSuite) TestSnapshotRestore() {
	s := suite.newGrid(defaultGridConfig())
	only(s.Evaluate(suite.tick(0, 100)))
	d := only(s.Evaluate(suite.tick(1, 97)))
	suite.fill(s, d, 1)

	state := s.Snapshot()
	suite.Equal(NameGrid, state.Strategy)

	restored := suite.newGrid(defaultGridConfig())
	before := restored.Revision()
	suite.Require().NoError(restored.Restore(state))
	suite.NotEqual(before, restored.Revision())
	suite.Equal(100.0, restored.Anchor())
	suite.Equal(state.Grid.Held, restored.Snapshot().Grid.Held)

	d = only(restored.Evaluate(suite.tick(2, 97)))
	suite.Equal([]types.ReasonCode{types.ReasonGridWaiting}, d.Reasons)
}

func (suite *GridTestSuite) TestRevisionTracksPlacement() {
	s := suite.newGrid(defaultGridConfig())
	before := s.Revision()

	only(s.Evaluate(suite.tick(0, 100)))
	suite.Greater(s.Revision(), before)

	placed := s.Revision()
	only(s.Evaluate(suite.tick(1, 99)))
	suite.Equal(placed, s.Revision())
}
