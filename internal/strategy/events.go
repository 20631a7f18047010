package strategy

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-dca/internal/logger"
	"github.com/rxtech-lab/argo-dca/internal/types"
)

// EventSink receives one event per decision.
type EventSink interface {
	OnDecision(event types.DecisionEvent)
}

// ReductionSink is implemented by sinks that also want cost-basis reductions.
type ReductionSink interface {
	OnReduction(event types.ReductionEvent)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

// OnDecision implements EventSink.
func (m MultiSink) OnDecision(event types.DecisionEvent) {
	for _, sink := range m {
		if sink != nil {
			sink.OnDecision(event)
		}
	}
}

// OnReduction implements ReductionSink.
func (m MultiSink) OnReduction(event types.ReductionEvent) {
	for _, sink := range m {
		if rs, ok := sink.(ReductionSink); ok {
			rs.OnReduction(event)
		}
	}
}

// LogSink writes decision events to a logger. Holds go to Debug.
type LogSink struct {
	logger *logger.Logger
	// quiet lowers buy and sell events to Debug, used by backtests.
	quiet bool
}

// NewLogSink creates a LogSink.
func NewLogSink(log *logger.Logger, quiet bool) *LogSink {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &LogSink{
		logger: log,
		quiet:  quiet,
	}
}

// OnDecision implements EventSink.
func (l *LogSink) OnDecision(event types.DecisionEvent) {
	fields := []zap.Field{
		zap.String("id", event.ID),
		zap.String("symbol", event.Symbol),
		zap.String("strategy", event.Strategy),
		zap.String("action", string(event.Action)),
		zap.Float64("price", event.Price),
		zap.String("reasons", joinReasons(event.Reasons)),
	}

	if event.PurchaseID != "" {
		fields = append(fields, zap.String("purchase_id", event.PurchaseID))
	}

	if event.Quantity > 0 {
		fields = append(fields, zap.Float64("quantity", event.Quantity))
	}

	if event.Message != "" {
		fields = append(fields, zap.String("message", event.Message))
	}

	if event.Action == types.DecisionActionHold || l.quiet {
		l.logger.Debug("Decision", fields...)

		return
	}

	l.logger.Info("Decision", fields...)
}

// OnReduction implements ReductionSink.
func (l *LogSink) OnReduction(event types.ReductionEvent) {
	log := l.logger.Info
	if l.quiet {
		log = l.logger.Debug
	}

	log("Cost basis reduced",
		zap.String("source_id", event.SourceID),
		zap.String("target_id", event.TargetID),
		zap.Float64("requested", event.Requested),
		zap.Float64("applied", event.Applied),
		zap.Float64("new_cost_basis", event.NewCostBasis),
		zap.Float64("new_target_price", event.NewTargetPrice),
	)
}

// RecordingSink keeps every event in memory. Backtests attach it to the report.
type RecordingSink struct {
	Decisions  []types.DecisionEvent
	Reductions []types.ReductionEvent
}

// OnDecision implements EventSink.
func (r *RecordingSink) OnDecision(event types.DecisionEvent) {
	r.Decisions = append(r.Decisions, event)
}

// OnReduction implements ReductionSink.
func (r *RecordingSink) OnReduction(event types.ReductionEvent) {
	r.Reductions = append(r.Reductions, event)
}

// emitter numbers and publishes events. IDs are name-based UUIDs of the
// symbol and sequence so replays produce identical event logs.
type emitter struct {
	name     Name
	symbol   string
	sink     EventSink
	sequence uint64
}

func (e *emitter) emit(tick Tick, decision types.Decision, message string) {
	e.sequence++

	if e.sink == nil {
		return
	}

	e.sink.OnDecision(types.DecisionEvent{
		ID:         eventID(e.symbol, e.sequence),
		Time:       tick.Time,
		Symbol:     e.symbol,
		Strategy:   string(e.name),
		Action:     decision.Action,
		PurchaseID: decision.PurchaseID,
		Price:      decision.Price,
		Quantity:   decision.Quantity,
		Reasons:    decision.Reasons,
		Message:    message,
	})
}

func (e *emitter) reduction(event types.ReductionEvent) {
	if rs, ok := e.sink.(ReductionSink); ok {
		rs.OnReduction(event)
	}
}

func eventID(symbol string, sequence uint64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/event/%d", symbol, sequence))).String()
}

func joinReasons(reasons []types.ReasonCode) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}

	return strings.Join(parts, ",")
}
