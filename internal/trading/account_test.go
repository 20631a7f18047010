package trading

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-dca/internal/fee"
	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

type AccountTestSuite struct {
	suite.Suite
	at time.Time
}

func TestAccountSuite(t *testing.T) {
	suite.Run(t, new(AccountTestSuite))
}

func (suite *AccountTestSuite) SetupTest() {
	suite.at = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *AccountTestSuite) newAccount(cash float64) *Account {
	seq := 0
	account, err := NewAccount(AccountConfig{
		InitialCash:      cash,
		Fees:             fee.GetSchedule(fee.ExchangeBinance),
		DecimalPrecision: NoRounding,
		NewOrderID: func() string {
			seq++

			return fmt.Sprintf("order-%d", seq)
		},
	}, logger.NewNopLogger())
	suite.Require().NoError(err)

	return account
}

func (suite *AccountTestSuite) TestNewAccountValidation() {
	_, err := NewAccount(AccountConfig{InitialCash: -1}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = NewAccount(AccountConfig{InitialCash: 100, Fees: fee.Schedule{Maker: 1, Taker: 0}}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *AccountTestSuite) TestBuyDeductsNotionalAndFee() {
	account := suite.newAccount(1000)

	fill, err := account.Execute(types.Decision{Action: types.DecisionActionBuy, Price: 100, Quantity: 2}, suite.at)
	suite.Require().NoError(err)

	suite.Equal("order-1", fill.OrderID)
	suite.Equal(types.SideBuy, fill.Side)
	suite.InDelta(0.2, fill.Fee, 1e-12)
	suite.InDelta(799.8, account.Cash(), 1e-9)
	suite.InDelta(0.2, account.TotalFees(), 1e-12)
}

func (suite *AccountTestSuite) TestBuyOfExactCashSucceeds() {
	account := suite.newAccount(100)
	quantity, err := fee.GetSchedule(fee.ExchangeBinance).QuantityFor(100, 37.3)
	suite.Require().NoError(err)

	_, err = account.Execute(types.Decision{Action: types.DecisionActionBuy, Price: 37.3, Quantity: quantity}, suite.at)
	suite.Require().NoError(err)
	suite.InDelta(0, account.Cash(), 1e-9)
	suite.GreaterOrEqual(account.Cash(), 0.0)
}

func (suite *AccountTestSuite) TestInsufficientFunds() {
	account := suite.newAccount(50)

	_, err := account.Execute(types.Decision{Action: types.DecisionActionBuy, Price: 100, Quantity: 1}, suite.at)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInsufficientFunds))
	suite.Equal(50.0, account.Cash())
	suite.Equal(0.0, account.TotalFees())
}

func (suite *AccountTestSuite) TestSellCreditsProceeds() {
	account := suite.newAccount(0)

	fill, err := account.Execute(types.Decision{
		Action:     types.DecisionActionSell,
		PurchaseID: "p-1",
		Price:      200,
		Quantity:   1.5,
	}, suite.at)
	suite.Require().NoError(err)

	suite.Equal("p-1", fill.PurchaseID)
	suite.InDelta(0.3, fill.Fee, 1e-12)
	suite.InDelta(299.7, account.Cash(), 1e-9)
}

func (suite *AccountTestSuite) TestRejectsHoldAndBadInput() {
	account := suite.newAccount(1000)

	tests := []struct {
		name     string
		decision types.Decision
		code     errors.ErrorCode
	}{
		{"hold", types.Decision{Action: types.DecisionActionHold, Price: 100}, errors.ErrCodeOrderFailed},
		{"zero price", types.Decision{Action: types.DecisionActionBuy, Price: 0, Quantity: 1}, errors.ErrCodeInvalidParameter},
		{"zero buy quantity", types.Decision{Action: types.DecisionActionBuy, Price: 100}, errors.ErrCodeInvalidParameter},
		{"zero sell quantity", types.Decision{Action: types.DecisionActionSell, Price: 100}, errors.ErrCodeInvalidParameter},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := account.Execute(tc.decision, suite.at)
			suite.Error(err)
			suite.True(errors.HasCode(err, tc.code))
		})
	}

	suite.Equal(1000.0, account.Cash())
}

func (suite *AccountTestSuite) TestDecimalPrecisionRoundsBuys() {
	account, err := NewAccount(AccountConfig{
		InitialCash:      1000,
		Fees:             fee.GetSchedule(fee.ExchangeZero),
		DecimalPrecision: 2,
	}, nil)
	suite.Require().NoError(err)

	fill, err := account.Execute(types.Decision{Action: types.DecisionActionBuy, Price: 10, Quantity: 1.23456}, suite.at)
	suite.Require().NoError(err)
	suite.Equal(1.23, fill.Quantity)
	suite.NotEmpty(fill.OrderID)

	_, err = account.Execute(types.Decision{Action: types.DecisionActionBuy, Price: 10, Quantity: 0.001}, suite.at)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *AccountTestSuite) TestMaxBuyQuantityAndReset() {
	account := suite.newAccount(1001)
	suite.InDelta(10.0, account.MaxBuyQuantity(100), 1e-9)

	_, err := account.Execute(types.Decision{Action: types.DecisionActionBuy, Price: 100, Quantity: 5}, suite.at)
	suite.Require().NoError(err)

	account.Reset()
	suite.Equal(1001.0, account.Cash())
	suite.Equal(0.0, account.TotalFees())
}
