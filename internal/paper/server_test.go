package paper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/rxtech-lab/argo-dca/internal/metrics"
)

func (suite *RunnerTestSuite) get(runner *Runner, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	runner.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func (suite *RunnerTestSuite) TestStateEndpoint() {
	runner := suite.newRunner(suite.config())

	suite.expectBars(suite.bars(0, 100, 100))
	suite.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	suite.Require().NoError(runner.Cycle(context.Background()))

	rec := suite.get(runner, "/state")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("application/json", rec.Header().Get("Content-Type"))

	var body StateResponse
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))

	suite.Equal(symbol, body.Symbol)
	suite.Len(body.OpenPurchases, 1)
	suite.InDelta(9900, body.Cash, 1e-9)
	suite.InDelta(body.Cash+body.PositionValue, body.Equity, 1e-9)
	suite.Equal(1, body.Status.Cycles)
}

func (suite *RunnerTestSuite) TestHealthEndpoint() {
	runner := suite.newRunner(suite.config())

	rec := suite.get(runner, "/healthz")
	suite.Equal(http.StatusOK, rec.Code)

	suite.expectBars(suite.bars(0, 100, 100))
	suite.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	suite.Require().NoError(runner.Cycle(context.Background()))

	// poll interval is 1ms, so 10ms without a cycle is stale
	time.Sleep(10 * time.Millisecond)

	rec = suite.get(runner, "/healthz")
	suite.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (suite *RunnerTestSuite) TestMetricsEndpoint() {
	withoutRecorder := suite.newRunner(suite.config())
	suite.Equal(http.StatusNotFound, suite.get(withoutRecorder, "/metrics").Code)

	runner := suite.newRunner(suite.config(), WithRecorder(metrics.NewRecorder(symbol)))

	suite.expectBars(suite.bars(0, 100, 100))
	suite.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	suite.Require().NoError(runner.Cycle(context.Background()))

	rec := suite.get(runner, "/metrics")
	suite.Equal(http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	suite.Require().NoError(err)
	suite.Contains(string(body), `dca_decisions_total{action="buy",symbol="BTCUSDT"} 1`)
}

func (suite *RunnerTestSuite) TestServeStopsWithContext() {
	runner := suite.newRunner(suite.config())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- runner.Serve(ctx, "127.0.0.1:0")
	}()

	cancel()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(5 * time.Second):
		suite.Fail("server did not stop")
	}
}
