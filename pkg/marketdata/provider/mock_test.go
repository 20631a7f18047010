package provider

import (
	"context"

	binance "github.com/adshao/go-binance/v2"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/rxtech-lab/argo-dca/internal/types"
)

// mockWriter records written bars.
type mockWriter struct {
	initializeErr     error
	writeErr          error
	finalizeErr       error
	closeErr          error
	outputPath        string
	writtenData       []types.MarketData
	finalizeCallCount int
	closeCallCount    int
}

func (m *mockWriter) Initialize() error {
	return m.initializeErr
}

func (m *mockWriter) Write(data types.MarketData) error {
	if m.writeErr != nil {
		return m.writeErr
	}

	m.writtenData = append(m.writtenData, data)

	return nil
}

func (m *mockWriter) Finalize() (string, error) {
	m.finalizeCallCount++

	if m.finalizeErr != nil {
		return "", m.finalizeErr
	}

	return m.outputPath, nil
}

func (m *mockWriter) Close() error {
	m.closeCallCount++

	return m.closeErr
}

func (m *mockWriter) GetOutputPath() string {
	return m.outputPath
}

type klinesRequest struct {
	symbol   string
	interval string
	start    int64
	end      int64
	limit    int
}

// mockBinanceAPIClient returns one page per call.
type mockBinanceAPIClient struct {
	pages    [][]*binance.Kline
	errs     []error
	requests []klinesRequest
}

func (m *mockBinanceAPIClient) NewKlinesService() BinanceKlinesService {
	return &mockBinanceKlinesService{client: m}
}

type mockBinanceKlinesService struct {
	client  *mockBinanceAPIClient
	request klinesRequest
}

func (m *mockBinanceKlinesService) Symbol(symbol string) BinanceKlinesService {
	m.request.symbol = symbol
	return m
}

func (m *mockBinanceKlinesService) Interval(interval string) BinanceKlinesService {
	m.request.interval = interval
	return m
}

func (m *mockBinanceKlinesService) StartTime(startTime int64) BinanceKlinesService {
	m.request.start = startTime
	return m
}

func (m *mockBinanceKlinesService) EndTime(endTime int64) BinanceKlinesService {
	m.request.end = endTime
	return m
}

func (m *mockBinanceKlinesService) Limit(limit int) BinanceKlinesService {
	m.request.limit = limit
	return m
}

func (m *mockBinanceKlinesService) Do(_ context.Context) ([]*binance.Kline, error) {
	idx := len(m.client.requests)
	m.client.requests = append(m.client.requests, m.request)

	var err error
	if idx < len(m.client.errs) {
		err = m.client.errs[idx]
	}

	if idx < len(m.client.pages) {
		return m.client.pages[idx], err
	}

	return nil, err
}

type mockPolygonAPIClient struct {
	iterator *mockPolygonIterator
	params   *models.ListAggsParams
}

func (m *mockPolygonAPIClient) ListAggs(_ context.Context, params *models.ListAggsParams, _ ...models.RequestOption) PolygonAggsIterator {
	m.params = params
	return m.iterator
}

type mockPolygonIterator struct {
	aggs  []models.Agg
	index int
	err   error
}

func (m *mockPolygonIterator) Next() bool {
	if m.index < len(m.aggs) {
		m.index++
		return true
	}

	return false
}

func (m *mockPolygonIterator) Item() models.Agg {
	if m.index > 0 && m.index <= len(m.aggs) {
		return m.aggs[m.index-1]
	}

	return models.Agg{}
}

func (m *mockPolygonIterator) Err() error {
	return m.err
}
