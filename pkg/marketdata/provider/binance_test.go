package provider

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

type BinanceClientTestSuite struct {
	suite.Suite
	start time.Time
}

func TestBinanceClientSuite(t *testing.T) {
	suite.Run(t, new(BinanceClientTestSuite))
}

func (suite *BinanceClientTestSuite) SetupTest() {
	suite.start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

// klines builds n hourly klines starting at offset hours after start.
func (suite *BinanceClientTestSuite) klines(offset, n int) []*binance.Kline {
	out := make([]*binance.Kline, n)

	for i := range n {
		open := suite.start.Add(time.Duration(offset+i) * time.Hour)
		price := strconv.Itoa(100 + offset + i)
		out[i] = &binance.Kline{
			OpenTime:  open.UnixMilli(),
			CloseTime: open.Add(time.Hour).UnixMilli() - 1,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    "1.5",
		}
	}

	return out
}

func (suite *BinanceClientTestSuite) TestNewBinanceClient() {
	client, err := NewBinanceClient(0)
	suite.Require().NoError(err)

	binanceClient, ok := client.(*BinanceClient)
	suite.Require().True(ok)
	suite.NotNil(binanceClient.apiClient)
	suite.NotNil(binanceClient.limiter)
	suite.Nil(binanceClient.writer)
}

func (suite *BinanceClientTestSuite) TestNewBinanceClientWithBaseURL() {
	client, err := NewBinanceClientWithBaseURL("http://127.0.0.1:9999", 0)
	suite.Require().NoError(err)

	wrapper, ok := client.(*BinanceClient).apiClient.(*binanceAPIWrapper)
	suite.Require().True(ok)
	suite.Equal("http://127.0.0.1:9999", wrapper.client.BaseURL)
}

func (suite *BinanceClientTestSuite) TestDownloadWithoutWriter() {
	client := NewBinanceClientWithAPI(&mockBinanceAPIClient{})

	_, err := client.Download(context.Background(), "BTCUSDT", suite.start, suite.start.Add(time.Hour), Timeframe1h, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataWriteFailed))
}

func (suite *BinanceClientTestSuite) TestDownloadInvalidTimeframe() {
	client := NewBinanceClientWithAPI(&mockBinanceAPIClient{})
	client.ConfigWriter(&mockWriter{})

	_, err := client.Download(context.Background(), "BTCUSDT", suite.start, suite.start.Add(time.Hour), Timeframe("2h"), nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTimeframe))
}

func (suite *BinanceClientTestSuite) TestDownloadPaginates() {
	api := &mockBinanceAPIClient{
		pages: [][]*binance.Kline{suite.klines(0, binancePageSize), suite.klines(binancePageSize, 5)},
	}
	w := &mockWriter{outputPath: "/tmp/out.parquet"}

	client := NewBinanceClientWithAPI(api)
	client.ConfigWriter(w)

	end := suite.start.Add(2000 * time.Hour)

	var progress []float64

	path, err := client.Download(context.Background(), "BTC/USDT", suite.start, end, Timeframe1h, func(current, total float64, _ string) {
		progress = append(progress, current/total)
	})
	suite.Require().NoError(err)
	suite.Equal("/tmp/out.parquet", path)

	suite.Len(w.writtenData, binancePageSize+5)
	suite.Equal("BTC/USDT", w.writtenData[0].Symbol)
	suite.Equal(100.0, w.writtenData[0].Close)
	suite.True(w.writtenData[binancePageSize].Time.Equal(suite.start.Add(binancePageSize * time.Hour)))

	suite.Require().Len(api.requests, 2)
	suite.Equal("BTCUSDT", api.requests[0].symbol)
	suite.Equal("1h", api.requests[0].interval)
	suite.Equal(suite.start.UnixMilli(), api.requests[0].start)
	suite.Equal(suite.start.Add(binancePageSize*time.Hour).UnixMilli(), api.requests[1].start)
	suite.Equal(1.0, progress[len(progress)-1])
}

func (suite *BinanceClientTestSuite) TestDownloadErrors() {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"rate limited", &common.APIError{Code: -1003, Message: "Too many requests"}, errors.ErrCodeRateLimited},
		{"bad symbol", &common.APIError{Code: -1121, Message: "Invalid symbol"}, errors.ErrCodeMarketDataFetchFailed},
		{"transport", fmt.Errorf("dial tcp: connection refused"), errors.ErrCodeDataSourceUnavailable},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			w := &mockWriter{}
			client := NewBinanceClientWithAPI(&mockBinanceAPIClient{errs: []error{tc.err}})
			client.ConfigWriter(w)

			_, err := client.Download(context.Background(), "BTCUSDT", suite.start, suite.start.Add(time.Hour), Timeframe1h, nil)
			suite.True(errors.HasCode(err, tc.code), "got %v", err)
			suite.Equal(1, w.finalizeCallCount)
		})
	}
}

func (suite *BinanceClientTestSuite) TestDownloadInvalidKline() {
	bad := suite.klines(0, 1)
	bad[0].Close = "not-a-number"

	w := &mockWriter{}
	client := NewBinanceClientWithAPI(&mockBinanceAPIClient{pages: [][]*binance.Kline{bad}})
	client.ConfigWriter(w)

	_, err := client.Download(context.Background(), "BTCUSDT", suite.start, suite.start.Add(time.Hour), Timeframe1h, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataParseFailed))
	suite.Empty(w.writtenData)
}

func (suite *BinanceClientTestSuite) TestRecentBarsDropsFormingCandle() {
	api := &mockBinanceAPIClient{pages: [][]*binance.Kline{suite.klines(0, 4)}}
	client := NewBinanceClientWithAPI(api)
	// inside the fourth candle
	client.now = func() time.Time { return suite.start.Add(3*time.Hour + 30*time.Minute) }

	bars, err := client.RecentBars(context.Background(), "BTC/USDT", Timeframe1h, 2)
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)
	suite.Equal(101.0, bars[0].Close)
	suite.Equal(102.0, bars[1].Close)
	suite.Equal(3, api.requests[0].limit)
}

func (suite *BinanceClientTestSuite) TestRecentBarsValidation() {
	client := NewBinanceClientWithAPI(&mockBinanceAPIClient{})

	_, err := client.RecentBars(context.Background(), "BTCUSDT", Timeframe1h, 0)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = client.RecentBars(context.Background(), "BTCUSDT", Timeframe("7m"), 10)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTimeframe))
}

func (suite *BinanceClientTestSuite) TestRecentBarsCancelled() {
	client := NewBinanceClientWithAPI(&mockBinanceAPIClient{errs: []error{context.Canceled}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.RecentBars(ctx, "BTCUSDT", Timeframe1h, 10)
	suite.ErrorIs(err, context.Canceled)
}

func (suite *BinanceClientTestSuite) TestBinanceSymbol() {
	suite.Equal("BTCUSDT", BinanceSymbol("BTC/USDT"))
	suite.Equal("ETHBTC", BinanceSymbol("eth-btc"))
	suite.Equal("BNBUSDT", BinanceSymbol("BNBUSDT"))
}
