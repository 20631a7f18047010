package types

import "time"

// TrailingStatus is the lifecycle state of a trailing watcher.
type TrailingStatus string

const (
	TrailingStatusInactive  TrailingStatus = "inactive"
	TrailingStatusWaiting   TrailingStatus = "waiting"
	TrailingStatusActive    TrailingStatus = "active"
	TrailingStatusTriggered TrailingStatus = "triggered"
)

// TrailingDirection is up for exits and down for entries.
type TrailingDirection string

const (
	TrailingDirectionUp   TrailingDirection = "up"
	TrailingDirectionDown TrailingDirection = "down"
)

// TrailingState is the serializable state of a trailing watcher.
// The zero value is an inactive watcher.
type TrailingState struct {
	Status          TrailingStatus    `json:"status" yaml:"status"`
	Direction       TrailingDirection `json:"direction,omitempty" yaml:"direction,omitempty"`
	ActivationPrice float64           `json:"activation_price,omitempty" yaml:"activation_price,omitempty"`
	Watermark       float64           `json:"watermark,omitempty" yaml:"watermark,omitempty"`
	// TrailingPct is a fraction, 0.01 means a 1% retrace triggers.
	TrailingPct float64   `json:"trailing_pct,omitempty" yaml:"trailing_pct,omitempty"`
	LastUpdate  time.Time `json:"last_update,omitempty" yaml:"last_update,omitempty"`
}

// IsInactive treats the empty status as inactive.
func (s TrailingState) IsInactive() bool {
	return s.Status == "" || s.Status == TrailingStatusInactive
}
