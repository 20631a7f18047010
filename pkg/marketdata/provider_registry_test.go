package marketdata

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

type ProviderRegistryTestSuite struct {
	suite.Suite
}

func TestProviderRegistrySuite(t *testing.T) {
	suite.Run(t, new(ProviderRegistryTestSuite))
}

func (suite *ProviderRegistryTestSuite) TestGetSupportedProviders() {
	suite.Equal([]string{"binance", "polygon"}, GetSupportedProviders())
}

func (suite *ProviderRegistryTestSuite) TestGetProviderInfo() {
	polygon, err := GetProviderInfo("polygon")
	suite.NoError(err)
	suite.Equal("Polygon.io", polygon.DisplayName)
	suite.True(polygon.RequiresAuth)

	binance, err := GetProviderInfo("binance")
	suite.NoError(err)
	suite.Equal("Binance", binance.DisplayName)
	suite.False(binance.RequiresAuth)
	suite.True(binance.SupportsRecentBars)
}

func (suite *ProviderRegistryTestSuite) TestGetProviderInfoUnknown() {
	_, err := GetProviderInfo("kraken")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidProvider))
}
