// Package results stores backtest reports on disk.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/logger"
)

var runPattern = regexp.MustCompile(`^run_(\d+)$`)

// SessionManager allocates result folders laid out as
//
//	{outputPath}/{YYYY-MM-DD}/run_N/
type SessionManager struct {
	outputPath string
	runNumber  int
	runPath    string
	now        func() time.Time
	mu         sync.Mutex
	logger     *logger.Logger
}

// NewSessionManager creates a SessionManager rooted at outputPath.
func NewSessionManager(outputPath string, log *logger.Logger) *SessionManager {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &SessionManager{
		outputPath: outputPath,
		runNumber:  0,
		runPath:    "",
		now:        time.Now,
		mu:         sync.Mutex{},
		logger:     log,
	}
}

// NextRun creates the next run folder for today and returns its path.
func (s *SessionManager) NextRun() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := s.now().Format("2006-01-02")

	runs, err := s.listRuns(date)
	if err != nil {
		return "", err
	}

	next := 1
	if len(runs) > 0 {
		next = runs[len(runs)-1] + 1
	}

	path := filepath.Join(s.outputPath, date, fmt.Sprintf("run_%d", next))
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create run folder: %w", err)
	}

	s.runNumber = next
	s.runPath = path

	s.logger.Info("Result folder created",
		zap.String("date", date),
		zap.Int("run", next),
		zap.String("path", path),
	)

	return path, nil
}

// RunPath returns the folder of the last run created.
func (s *SessionManager) RunPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runPath
}

// RunNumber returns the number of the last run created.
func (s *SessionManager) RunNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runNumber
}

// ListRuns returns the run numbers of date in ascending order.
func (s *SessionManager) ListRuns(date string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listRuns(date)
}

func (s *SessionManager) listRuns(date string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(s.outputPath, date))
	if os.IsNotExist(err) {
		return []int{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read date directory: %w", err)
	}

	runs := make([]int, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		matches := runPattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}

		n, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		runs = append(runs, n)
	}

	sort.Ints(runs)

	return runs, nil
}
