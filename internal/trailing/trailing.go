// Package trailing implements the watermark state machine used for trailing
// exits (direction up) and trailing entries (direction down).
//
//	inactive -> waiting -> active -> triggered
//
// Triggered is terminal until Reset. Trailing state has no timeout; callers
// reset it explicitly, for example when the owning purchase closes.
package trailing

import (
	"math"
	"time"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// Machine drives a types.TrailingState through its lifecycle.
type Machine struct {
	state types.TrailingState
}

// New returns an inactive machine.
func New() *Machine {
	return &Machine{
		state: inactiveState(),
	}
}

// FromState resumes a machine from a persisted state.
func FromState(state types.TrailingState) *Machine {
	if state.Status == "" {
		state.Status = types.TrailingStatusInactive
	}

	return &Machine{
		state: state,
	}
}

// State returns a copy of the current state.
func (m *Machine) State() types.TrailingState {
	return m.state
}

// Status returns the current lifecycle status.
func (m *Machine) Status() types.TrailingStatus {
	return m.state.Status
}

// Start arms the machine. It fails with ErrCodeTrailingAlreadyActive unless
// the machine is inactive.
func (m *Machine) Start(direction types.TrailingDirection, activationPrice, trailingPct float64, at time.Time) error {
	if !m.state.IsInactive() {
		return errors.Newf(errors.ErrCodeTrailingAlreadyActive, "trailing is already %s", m.state.Status)
	}

	if direction != types.TrailingDirectionUp && direction != types.TrailingDirectionDown {
		return errors.Newf(errors.ErrCodeInvalidParameter, "unknown trailing direction %q", direction)
	}

	if math.IsNaN(activationPrice) || activationPrice <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "activation price must be positive, got %v", activationPrice)
	}

	if math.IsNaN(trailingPct) || trailingPct <= 0 || trailingPct >= 1 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "trailing percentage must be in (0, 1), got %v", trailingPct)
	}

	m.state = types.TrailingState{
		Status:          types.TrailingStatusWaiting,
		Direction:       direction,
		ActivationPrice: activationPrice,
		Watermark:       0,
		TrailingPct:     trailingPct,
		LastUpdate:      at,
	}

	return nil
}

// Update feeds a new price and reports whether the machine is triggered.
// The tick that activates a waiting machine only seeds the watermark.
func (m *Machine) Update(price float64, at time.Time) bool {
	switch m.state.Status {
	case types.TrailingStatusWaiting:
		if m.crossedActivation(price) {
			m.state.Status = types.TrailingStatusActive
			m.state.Watermark = price
			m.state.LastUpdate = at
		}

		return false
	case types.TrailingStatusActive:
		if m.improves(price) {
			m.state.Watermark = price
			m.state.LastUpdate = at
		}

		if m.retrace(price) >= m.state.TrailingPct {
			m.state.Status = types.TrailingStatusTriggered
			m.state.LastUpdate = at

			return true
		}

		return false
	case types.TrailingStatusTriggered:
		return true
	default:
		return false
	}
}

// Reset returns the machine to inactive and discards all tracking data.
func (m *Machine) Reset() {
	m.state = inactiveState()
}

func (m *Machine) crossedActivation(price float64) bool {
	if m.state.Direction == types.TrailingDirectionUp {
		return price >= m.state.ActivationPrice
	}

	return price <= m.state.ActivationPrice
}

func (m *Machine) improves(price float64) bool {
	if m.state.Direction == types.TrailingDirectionUp {
		return price > m.state.Watermark
	}

	return price < m.state.Watermark
}

// retrace is the adverse move from the watermark as a fraction of it.
func (m *Machine) retrace(price float64) float64 {
	if m.state.Watermark <= 0 {
		return 0
	}

	if m.state.Direction == types.TrailingDirectionUp {
		return (m.state.Watermark - price) / m.state.Watermark
	}

	return (price - m.state.Watermark) / m.state.Watermark
}

func inactiveState() types.TrailingState {
	return types.TrailingState{
		Status:          types.TrailingStatusInactive,
		Direction:       "",
		ActivationPrice: 0,
		Watermark:       0,
		TrailingPct:     0,
		LastUpdate:      time.Time{},
	}
}
