package indicator

import (
	"sync"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// IndicatorRegistry manages the configured indicators.
type IndicatorRegistry interface {
	RegisterIndicator(indicator Indicator) error
	GetIndicator(name types.IndicatorType) (Indicator, error)
	ListIndicators() []types.IndicatorType
	RemoveIndicator(name types.IndicatorType) error
}

// IndicatorRegistryV1 is a mutex guarded map of indicators.
type IndicatorRegistryV1 struct {
	indicators map[types.IndicatorType]Indicator
	mu         sync.RWMutex
}

// NewIndicatorRegistry creates a new indicator registry.
func NewIndicatorRegistry() IndicatorRegistry {
	return &IndicatorRegistryV1{
		indicators: make(map[types.IndicatorType]Indicator),
		mu:         sync.RWMutex{},
	}
}

// NewDefaultRegistry registers every known indicator with its default configuration.
func NewDefaultRegistry() IndicatorRegistry {
	registry := NewIndicatorRegistry()
	for _, ind := range []Indicator{NewPriceDrop(), NewRSI(), NewStochastic(), NewEMA(), NewMACD(), NewMFI()} {
		// names are unique, registration cannot fail
		_ = registry.RegisterIndicator(ind)
	}

	return registry
}

// New returns a fresh indicator with default configuration for name.
func New(name types.IndicatorType) (Indicator, error) {
	switch name {
	case types.IndicatorTypeRSI:
		return NewRSI(), nil
	case types.IndicatorTypeStochRSI:
		return NewStochastic(), nil
	case types.IndicatorTypeEMA:
		return NewEMA(), nil
	case types.IndicatorTypeMACD:
		return NewMACD(), nil
	case types.IndicatorTypeMFI:
		return NewMFI(), nil
	case types.IndicatorTypePriceDrop:
		return NewPriceDrop(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeIndicatorNotFound, "unknown indicator %q", name)
	}
}

// RegisterIndicator adds an indicator to the registry.
func (r *IndicatorRegistryV1) RegisterIndicator(indicator Indicator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := indicator.Name()
	if _, exists := r.indicators[name]; exists {
		return errors.Newf(errors.ErrCodeIndicatorAlreadyExists, "indicator with name %s already registered", name)
	}

	r.indicators[name] = indicator

	return nil
}

// GetIndicator retrieves an indicator by name.
func (r *IndicatorRegistryV1) GetIndicator(name types.IndicatorType) (Indicator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	indicator, exists := r.indicators[name]
	if !exists {
		return nil, errors.Newf(errors.ErrCodeIndicatorNotFound, "indicator with name %s not found", name)
	}

	return indicator, nil
}

// ListIndicators returns the registered indicator names in evaluation order.
func (r *IndicatorRegistryV1) ListIndicators() []types.IndicatorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]types.IndicatorType, 0, len(r.indicators))
	for _, name := range types.AllIndicatorTypes {
		if _, ok := r.indicators[name]; ok {
			names = append(names, name)
		}
	}

	return names
}

// RemoveIndicator removes an indicator from the registry.
func (r *IndicatorRegistryV1) RemoveIndicator(name types.IndicatorType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.indicators[name]; !exists {
		return errors.Newf(errors.ErrCodeIndicatorNotFound, "indicator with name %s not found", name)
	}

	delete(r.indicators, name)

	return nil
}
