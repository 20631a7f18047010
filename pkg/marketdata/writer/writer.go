// Package writer stores downloaded bars as files the backtester can load.
package writer

import (
	"github.com/rxtech-lab/argo-dca/internal/types"
)

// MarketDataWriter receives bars in download order and produces one file.
// Nothing is visible at the output path until Finalize succeeds.
type MarketDataWriter interface {
	// Initialize opens the staging area. It must be called before Write.
	Initialize() error
	Write(data types.MarketData) error
	// Finalize moves the result to the output path and returns it.
	Finalize() (outputPath string, err error)
	// Close discards anything not finalized.
	Close() error
	GetOutputPath() string
}
