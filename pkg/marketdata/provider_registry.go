package marketdata

import (
	"sort"

	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
	// SupportsRecentBars reports whether the provider can feed paper trading.
	SupportsRecentBars bool `json:"supportsRecentBars"`
}

// providerRegistry holds metadata about all supported providers.
var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderPolygon: {
		Name:               string(ProviderPolygon),
		DisplayName:        "Polygon.io",
		Description:        "US stock and crypto aggregates, requires an API key",
		RequiresAuth:       true,
		SupportsRecentBars: true,
	},
	ProviderBinance: {
		Name:               string(ProviderBinance),
		DisplayName:        "Binance",
		Description:        "Cryptocurrency exchange klines from the public market data API",
		RequiresAuth:       false,
		SupportsRecentBars: true,
	},
}

// GetSupportedProviders returns the names of all supported providers, sorted.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	sort.Strings(providers)

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}

	return info, nil
}
