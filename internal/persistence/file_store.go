package persistence

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/strategy"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// FileStore keeps the state in a single JSON file. Writes go to a temporary
// file in the same directory which is synced and renamed over the target,
// so a crash never leaves a half-written state behind.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewFileStore creates a store for the JSON file at path. The file and its
// directory are created on the first save.
func NewFileStore(path string, log *logger.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "state path is required")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &FileStore{path: path, logger: log}, nil
}

// Save atomically replaces the state file with state.
func (s *FileStore) Save(ctx context.Context, state strategy.State) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "save cancelled", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to encode state", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to create state directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to create temporary state file", err)
	}

	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to write state", err)
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to sync state", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to close state file", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.ErrCodeStateSaveFailed, "failed to replace state file", err)
	}

	s.logger.Debug("State saved",
		zap.String("path", s.path),
		zap.Int("open_purchases", len(state.Ledger.Open)),
	)

	return nil
}

// Load reads the state file. A missing file is not an error and yields None.
func (s *FileStore) Load(ctx context.Context) (optional.Option[strategy.State], error) {
	if err := ctx.Err(); err != nil {
		return optional.None[strategy.State](), errors.Wrap(errors.ErrCodeStateLoadFailed, "load cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return optional.None[strategy.State](), nil
	}

	if err != nil {
		return optional.None[strategy.State](), errors.Wrap(errors.ErrCodeStateLoadFailed, "failed to read state", err)
	}

	var state strategy.State
	if err := json.Unmarshal(data, &state); err != nil {
		return optional.None[strategy.State](), errors.Wrap(errors.ErrCodeStateLoadFailed, "failed to decode state", err)
	}

	if err := checkVersion(state); err != nil {
		return optional.None[strategy.State](), err
	}

	return optional.Some(state), nil
}

// Close is a no-op, the file is not held open between calls.
func (s *FileStore) Close() error {
	return nil
}
