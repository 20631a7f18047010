// Package mockserver serves a scripted Binance klines endpoint for end to end
// tests of the paper trading loop.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/marketdata/provider"
)

// MockBinanceServer replays a fixed bar series. Only the first Visible bars
// are served, Advance reveals more of them.
type MockBinanceServer struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener

	bars     []types.MarketData
	visible  int
	requests int
	failNext int
}

// NewMockBinanceServer creates a server over bars, revealing the first visible.
func NewMockBinanceServer(bars []types.MarketData, visible int) *MockBinanceServer {
	return &MockBinanceServer{
		bars:    bars,
		visible: min(visible, len(bars)),
	}
}

// Start starts the mock server on the given address.
// If address is empty or ":0", a random available port is used.
func (s *MockBinanceServer) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener

	router := mux.NewRouter()
	router.HandleFunc("/api/v3/klines", s.handleKlines).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = s.httpServer.Serve(listener)
	}()

	return nil
}

// Stop stops the mock server.
func (s *MockBinanceServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// BaseURL returns the base URL for the server.
func (s *MockBinanceServer) BaseURL() string {
	return "http://" + s.listener.Addr().String()
}

// Advance reveals n more bars and reports whether any were left.
func (s *MockBinanceServer) Advance(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.visible >= len(s.bars) {
		return false
	}

	s.visible = min(s.visible+n, len(s.bars))

	return true
}

// FailNext makes the next n klines requests answer with a server error.
func (s *MockBinanceServer) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failNext = n
}

// Requests returns the number of klines requests served.
func (s *MockBinanceServer) Requests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.requests
}

// handleKlines handles GET /api/v3/klines
func (s *MockBinanceServer) handleKlines(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	interval := r.URL.Query().Get("interval")

	if symbol == "" || interval == "" {
		writeError(w, http.StatusBadRequest, -1102, "Mandatory parameter was not sent")

		return
	}

	limit := 500
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, -1100, "Illegal characters found in parameter 'limit'")

			return
		}

		limit = parsed
	}

	s.mu.Lock()
	s.requests++

	if s.failNext > 0 {
		s.failNext--
		s.mu.Unlock()
		writeError(w, http.StatusInternalServerError, -1001, "Internal error")

		return
	}

	served := make([]types.MarketData, 0, limit)
	for _, bar := range s.bars[:s.visible] {
		if provider.BinanceSymbol(bar.Symbol) == symbol {
			served = append(served, bar)
		}
	}
	s.mu.Unlock()

	if len(served) > limit {
		served = served[len(served)-limit:]
	}

	step := intervalDuration(interval)

	// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, takerBase, takerQuote, ignore]
	klines := make([][]any, 0, len(served))
	for _, d := range served {
		klines = append(klines, []any{
			d.Time.UnixMilli(),
			strconv.FormatFloat(d.Open, 'f', 8, 64),
			strconv.FormatFloat(d.High, 'f', 8, 64),
			strconv.FormatFloat(d.Low, 'f', 8, 64),
			strconv.FormatFloat(d.Close, 'f', 8, 64),
			strconv.FormatFloat(d.Volume, 'f', 8, 64),
			d.Time.Add(step).UnixMilli() - 1,
			"0",
			0,
			"0",
			"0",
			"0",
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(klines)
}

func intervalDuration(interval string) time.Duration {
	for _, tf := range provider.Timeframes() {
		if tf.BinanceInterval() == interval {
			return tf.Duration()
		}
	}

	return time.Minute
}

func writeError(w http.ResponseWriter, status int, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg})
}
