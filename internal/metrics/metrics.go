// Package metrics exposes strategy activity as Prometheus metrics.
//
// Metrics:
//   - dca_decisions_total{action}         decisions emitted (buy|sell|hold)
//   - dca_decision_reasons_total{action,reason}  reason codes attached to decisions
//   - dca_orders_total{side}              fills applied
//   - dca_fees_total                      fees paid on fills
//   - dca_reductions_total                cost-basis reductions applied
//   - dca_reduction_amount_total          quote amount taken off cost bases
//   - dca_equity                          cash plus marked position value
//   - dca_cash                            available cash
//   - dca_open_purchases                  open purchases in the ledger
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rxtech-lab/argo-dca/internal/types"
)

const namespace = "dca"

// Recorder owns its registry, so several recorders can live in one process.
// It implements strategy.EventSink and strategy.ReductionSink.
type Recorder struct {
	registry *prometheus.Registry

	decisions       *prometheus.CounterVec
	reasons         *prometheus.CounterVec
	orders          *prometheus.CounterVec
	fees            prometheus.Counter
	reductions      prometheus.Counter
	reductionAmount prometheus.Counter
	equity          prometheus.Gauge
	cash            prometheus.Gauge
	openPurchases   prometheus.Gauge
}

// NewRecorder creates a Recorder whose series carry a symbol label.
func NewRecorder(symbol string) *Recorder {
	labels := prometheus.Labels{"symbol": symbol}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "decisions_total",
			Help:        "Decisions emitted by the strategy",
			ConstLabels: labels,
		}, []string{"action"}),
		reasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "decision_reasons_total",
			Help:        "Reason codes attached to decisions",
			ConstLabels: labels,
		}, []string{"action", "reason"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "orders_total",
			Help:        "Fills applied to the ledger",
			ConstLabels: labels,
		}, []string{"side"}),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "fees_total",
			Help:        "Fees paid on fills in quote currency",
			ConstLabels: labels,
		}),
		reductions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "reductions_total",
			Help:        "Cost-basis reductions applied",
			ConstLabels: labels,
		}),
		reductionAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "reduction_amount_total",
			Help:        "Quote amount taken off cost bases",
			ConstLabels: labels,
		}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "equity",
			Help:        "Cash plus marked value of open purchases",
			ConstLabels: labels,
		}),
		cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "cash",
			Help:        "Available cash",
			ConstLabels: labels,
		}),
		openPurchases: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "open_purchases",
			Help:        "Open purchases in the ledger",
			ConstLabels: labels,
		}),
	}

	r.registry.MustRegister(
		r.decisions, r.reasons, r.orders, r.fees,
		r.reductions, r.reductionAmount,
		r.equity, r.cash, r.openPurchases,
	)

	return r
}

// OnDecision implements strategy.EventSink.
func (r *Recorder) OnDecision(event types.DecisionEvent) {
	action := string(event.Action)
	r.decisions.WithLabelValues(action).Inc()

	for _, reason := range event.Reasons {
		r.reasons.WithLabelValues(action, string(reason)).Inc()
	}
}

// OnReduction implements strategy.ReductionSink.
func (r *Recorder) OnReduction(event types.ReductionEvent) {
	r.reductions.Inc()

	if event.Applied > 0 {
		r.reductionAmount.Add(event.Applied)
	}
}

// ObserveFill counts an executed order and its fee.
func (r *Recorder) ObserveFill(fill types.Fill) {
	r.orders.WithLabelValues(string(fill.Side)).Inc()

	if fill.Fee > 0 {
		r.fees.Add(fill.Fee)
	}
}

// ObserveEquity records the account after a cycle.
func (r *Recorder) ObserveEquity(cash, positionValue float64, openPurchases int) {
	r.cash.Set(cash)
	r.equity.Set(cash + positionValue)
	r.openPurchases.Set(float64(openPurchases))
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
