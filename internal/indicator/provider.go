package indicator

import (
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/types"
)

// Provider evaluates every registered indicator into a snapshot.
type Provider struct {
	registry IndicatorRegistry
	logger   *logger.Logger
}

// NewProvider creates a provider over registry.
func NewProvider(registry IndicatorRegistry, log *logger.Logger) *Provider {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Provider{
		registry: registry,
		logger:   log,
	}
}

// Enabled returns the indicators taking part in the vote.
func (p *Provider) Enabled() []types.IndicatorType {
	return p.registry.ListIndicators()
}

// RequiredBars is the largest lookback of the registered indicators.
func (p *Provider) RequiredBars() int {
	required := 0

	for _, name := range p.registry.ListIndicators() {
		ind, err := p.registry.GetIndicator(name)
		if err != nil {
			continue
		}

		if ind.Lookback() > required {
			required = ind.Lookback()
		}
	}

	return required
}

// Snapshot evaluates the indicators over window. An indicator that cannot be
// computed is left out of the snapshot and therefore votes no.
func (p *Provider) Snapshot(window []types.MarketData) types.IndicatorSnapshot {
	snapshot := types.NewIndicatorSnapshot(lastTime(window))

	for _, name := range p.registry.ListIndicators() {
		ind, err := p.registry.GetIndicator(name)
		if err != nil {
			continue
		}

		reading, err := ind.Evaluate(window)
		if err != nil {
			p.logger.Debug("Indicator unavailable",
				zap.String("indicator", string(name)),
				zap.Int("bars", len(window)),
				zap.Error(err),
			)

			continue
		}

		snapshot.Set(name, reading)
	}

	return snapshot
}

func lastTime(window []types.MarketData) time.Time {
	if len(window) == 0 {
		return time.Time{}
	}

	return window[len(window)-1].Time
}
