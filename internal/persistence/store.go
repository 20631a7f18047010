// Package persistence saves and restores strategy state between process runs.
package persistence

import (
	"context"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/strategy"
	"github.com/rxtech-lab/argo-dca/internal/version"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// Store persists the latest state of one strategy instance.
type Store interface {
	// Save replaces the stored state. A failed save leaves the previous state readable.
	Save(ctx context.Context, state strategy.State) error
	// Load returns the latest state, or None when nothing was saved yet.
	Load(ctx context.Context) (optional.Option[strategy.State], error)
	Close() error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// Open creates the store for backend at path.
func Open(backend Backend, path string, historyLimit int, log *logger.Logger) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(path, log)
	case BackendSQLite:
		return NewSQLiteStore(path, historyLimit, log)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown persistence backend %q", backend)
	}
}

// checkVersion refuses states written by an incompatible state version.
func checkVersion(state strategy.State) error {
	if state.Version == "" {
		return errors.New(errors.ErrCodeStateVersionMismatch, "state has no version")
	}

	if err := version.CheckVersionCompatibility(version.StateVersion, state.Version); err != nil {
		if errors.HasCode(err, errors.ErrCodeStateVersionMismatch) {
			return err
		}

		return errors.Wrap(errors.ErrCodeStateVersionMismatch, "state version is invalid", err)
	}

	return nil
}
