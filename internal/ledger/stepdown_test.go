package ledger

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type StepDownTestSuite struct {
	suite.Suite
}

func TestStepDownSuite(t *testing.T) {
	suite.Run(t, new(StepDownTestSuite))
}

func (suite *StepDownTestSuite) TestRequiredPctProgression() {
	step := StepDown{BasePct: 0.005, Multiplier: 1.5, MaxPct: 0.05}

	suite.Equal(0.0, step.RequiredPct(1))
	suite.InDelta(0.005, step.RequiredPct(2), 1e-12)
	suite.InDelta(0.0075, step.RequiredPct(3), 1e-12)
	suite.InDelta(0.01125, step.RequiredPct(4), 1e-12)
	suite.InDelta(0.016875, step.RequiredPct(5), 1e-12)
}

func (suite *StepDownTestSuite) TestRequiredPctIsCapped() {
	step := StepDown{BasePct: 0.01, Multiplier: 2, MaxPct: 0.05}

	suite.InDelta(0.04, step.RequiredPct(4), 1e-12)
	suite.InDelta(0.05, step.RequiredPct(5), 1e-12)
	suite.InDelta(0.05, step.RequiredPct(20), 1e-12)
}

func (suite *StepDownTestSuite) TestSatisfied() {
	step := StepDown{BasePct: 0.005, Multiplier: 1.5, MaxPct: 0.05}

	suite.True(step.Satisfied(100, 150, 1))
	suite.True(step.Satisfied(100, 99.4, 2))
	suite.False(step.Satisfied(100, 99.6, 2))
	suite.True(step.Satisfied(100, 99.2, 3))
	suite.False(step.Satisfied(100, 99.3, 3))
}

func (suite *StepDownTestSuite) TestValidate() {
	suite.NoError(StepDown{BasePct: 0.005, Multiplier: 1.5, MaxPct: 0.05}.Validate())
	suite.Error(StepDown{BasePct: -0.1, Multiplier: 1.5, MaxPct: 0.05}.Validate())
	suite.Error(StepDown{BasePct: 0.005, Multiplier: 0.5, MaxPct: 0.05}.Validate())
	suite.Error(StepDown{BasePct: 0.005, Multiplier: 1.5, MaxPct: 1}.Validate())
}
