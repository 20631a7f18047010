package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type SessionManagerTestSuite struct {
	suite.Suite
	dir string
	sm  *SessionManager
}

func TestSessionManagerSuite(t *testing.T) {
	suite.Run(t, new(SessionManagerTestSuite))
}

func (suite *SessionManagerTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	suite.sm = NewSessionManager(suite.dir, nil)
	suite.sm.now = func() time.Time {
		return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	}
}

func (suite *SessionManagerTestSuite) TestNextRunIncrements() {
	first, err := suite.sm.NextRun()
	suite.Require().NoError(err)
	suite.Equal(filepath.Join(suite.dir, "2024-03-15", "run_1"), first)
	suite.Equal(1, suite.sm.RunNumber())
	suite.DirExists(first)

	second, err := suite.sm.NextRun()
	suite.Require().NoError(err)
	suite.Equal(filepath.Join(suite.dir, "2024-03-15", "run_2"), second)
	suite.Equal(second, suite.sm.RunPath())
}

func (suite *SessionManagerTestSuite) TestNextRunContinuesAfterExistingRuns() {
	date := filepath.Join(suite.dir, "2024-03-15")
	suite.Require().NoError(os.MkdirAll(filepath.Join(date, "run_2"), 0755))
	suite.Require().NoError(os.MkdirAll(filepath.Join(date, "run_10"), 0755))
	suite.Require().NoError(os.MkdirAll(filepath.Join(date, "notes"), 0755))
	suite.Require().NoError(os.WriteFile(filepath.Join(date, "run_20"), []byte("file"), 0644))

	path, err := suite.sm.NextRun()
	suite.Require().NoError(err)
	suite.Equal(filepath.Join(date, "run_11"), path)
	suite.Equal(11, suite.sm.RunNumber())
}

func (suite *SessionManagerTestSuite) TestListRuns() {
	runs, err := suite.sm.ListRuns("2024-03-15")
	suite.Require().NoError(err)
	suite.Empty(runs)

	for range 3 {
		_, err := suite.sm.NextRun()
		suite.Require().NoError(err)
	}

	runs, err = suite.sm.ListRuns("2024-03-15")
	suite.Require().NoError(err)
	suite.Equal([]int{1, 2, 3}, runs)
}
