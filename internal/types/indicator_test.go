package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type IndicatorTestSuite struct {
	suite.Suite
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func (suite *IndicatorTestSuite) TestIndicatorTypeConstants() {
	suite.Equal(IndicatorType("rsi"), IndicatorTypeRSI)
	suite.Equal(IndicatorType("stoch_rsi"), IndicatorTypeStochRSI)
	suite.Equal(IndicatorType("ema"), IndicatorTypeEMA)
	suite.Equal(IndicatorType("macd"), IndicatorTypeMACD)
	suite.Equal(IndicatorType("mfi"), IndicatorTypeMFI)
	suite.Equal(IndicatorType("price_drop"), IndicatorTypePriceDrop)
	suite.Len(AllIndicatorTypes, 6)
}

func (suite *IndicatorTestSuite) TestValid() {
	suite.True(IndicatorTypeMFI.Valid())
	suite.False(IndicatorType("bollinger_bands").Valid())
}

func (suite *IndicatorTestSuite) TestVote() {
	enabled := []IndicatorType{IndicatorTypeRSI, IndicatorTypeEMA, IndicatorTypeMACD, IndicatorTypeMFI}

	tests := []struct {
		name     string
		readings map[IndicatorType]IndicatorReading
		yes      int
	}{
		{
			name:     "empty snapshot votes no everywhere",
			readings: nil,
			yes:      0,
		},
		{
			name: "missing keys count as no",
			readings: map[IndicatorType]IndicatorReading{
				IndicatorTypeRSI: {Signal: true},
			},
			yes: 1,
		},
		{
			name: "disabled indicators are ignored",
			readings: map[IndicatorType]IndicatorReading{
				IndicatorTypeRSI:      {Signal: true},
				IndicatorTypeStochRSI: {Signal: true},
				IndicatorTypeEMA:      {Signal: false},
			},
			yes: 1,
		},
		{
			name: "all agree",
			readings: map[IndicatorType]IndicatorReading{
				IndicatorTypeRSI:  {Signal: true},
				IndicatorTypeEMA:  {Signal: true},
				IndicatorTypeMACD: {Signal: true},
				IndicatorTypeMFI:  {Signal: true},
			},
			yes: 4,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			snapshot := IndicatorSnapshot{Time: time.Now(), Readings: tc.readings}
			yes, total := snapshot.Vote(enabled)
			suite.Equal(tc.yes, yes)
			suite.Equal(4, total)
		})
	}
}

func (suite *IndicatorTestSuite) TestSetOnZeroSnapshot() {
	var snapshot IndicatorSnapshot
	snapshot.Set(IndicatorTypeRSI, IndicatorReading{Signal: true, Value: 28.5})

	reading, ok := snapshot.Get(IndicatorTypeRSI)
	suite.True(ok)
	suite.Equal(28.5, reading.Value)

	_, ok = snapshot.Get(IndicatorTypeMFI)
	suite.False(ok)
}
