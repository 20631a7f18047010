package paper

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/strategy"
	"github.com/rxtech-lab/argo-dca/internal/types"
)

// StateResponse is the body of GET /state.
type StateResponse struct {
	Symbol         string           `json:"symbol"`
	Strategy       strategy.Name    `json:"strategy"`
	Cash           float64          `json:"cash"`
	TotalFees      float64          `json:"total_fees"`
	PositionValue  float64          `json:"position_value"`
	Equity         float64          `json:"equity"`
	TotalProfit    float64          `json:"total_profit"`
	TotalReduction float64          `json:"total_reduction"`
	OpenPurchases  []types.Purchase `json:"open_purchases"`
	ClosedTrades   int              `json:"closed_trades"`
	Status         Status           `json:"status"`
}

// Router serves /state, /healthz and, with a recorder, /metrics.
func (r *Runner) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/state", r.handleState).Methods(http.MethodGet)
	router.HandleFunc("/healthz", r.handleHealth).Methods(http.MethodGet)

	if r.recorder != nil {
		router.Handle("/metrics", r.recorder.Handler()).Methods(http.MethodGet)
	}

	return router
}

// Serve listens on addr until ctx is cancelled.
func (r *Runner) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           r.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("HTTP server shutdown failed", zap.Error(err))
		}
	}()

	r.logger.Info("HTTP server listening", zap.String("addr", listener.Addr().String()))

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// State builds the /state response.
func (r *Runner) State() StateResponse {
	l := r.strategy.Ledger()
	status := r.Status()

	cash := r.account.Cash()
	positions := l.MarketValue(status.LastPrice)

	return StateResponse{
		Symbol:         r.strategy.Symbol(),
		Strategy:       r.strategy.Name(),
		Cash:           cash,
		TotalFees:      r.account.TotalFees(),
		PositionValue:  positions,
		Equity:         cash + positions,
		TotalProfit:    l.TotalProfit(),
		TotalReduction: l.TotalReduction(),
		OpenPurchases:  l.OpenPurchases(),
		ClosedTrades:   len(l.ClosedTrades()),
		Status:         status,
	}
}

func (r *Runner) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.State())
}

func (r *Runner) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := r.Status()

	// unhealthy once three poll intervals pass without a successful cycle
	stale := status.Cycles > 0 && time.Since(status.LastCycle) > 3*r.cfg.PollInterval
	if stale {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "stale", "last_error": status.LastError})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cycles": status.Cycles})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(body)
}
