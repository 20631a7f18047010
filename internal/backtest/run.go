package backtest

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-dca/internal/strategy"
	"github.com/rxtech-lab/argo-dca/internal/trading"
	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/internal/utils"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// run is the mutable state of one Simulator.Run call.
type run struct {
	strategy   strategy.Strategy
	account    *trading.Account
	recorder   *strategy.RecordingSink
	bars       []types.MarketData
	params     RunParams
	equity     []EquityPoint
	openIndex  map[string]int
	closeIndex map[string]int
}

func newRun(strat strategy.Strategy, account *trading.Account, recorder *strategy.RecordingSink, bars []types.MarketData, params RunParams) *run {
	return &run{
		strategy:   strat,
		account:    account,
		recorder:   recorder,
		bars:       bars,
		params:     params,
		equity:     make([]EquityPoint, 0, len(bars)),
		openIndex:  make(map[string]int),
		closeIndex: make(map[string]int),
	}
}

// step evaluates bar i, fills its decisions at the close and samples equity.
func (r *run) step(i int, tick strategy.Tick) error {
	for _, decision := range r.strategy.Evaluate(tick) {
		if decision.Action == types.DecisionActionHold {
			continue
		}

		fill, err := r.account.Execute(decision, tick.Time)
		if err != nil {
			// insufficient funds is a skipped entry, the run keeps holding
			r.strategy.Reject(tick, decision, err)

			continue
		}

		if err := r.strategy.OnFill(fill); err != nil {
			return errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to apply %s fill at bar %d", fill.Side, i)
		}

		switch fill.Side {
		case types.SideBuy:
			if recent := r.strategy.Ledger().MostRecentOpen(); recent.IsSome() {
				r.openIndex[recent.Unwrap().ID] = i
			}
		case types.SideSell:
			r.closeIndex[fill.PurchaseID] = i
		}
	}

	cash := r.account.Cash()
	positions := r.strategy.Ledger().MarketValue(tick.Price)

	r.equity = append(r.equity, EquityPoint{
		Index:         i,
		Time:          tick.Time,
		Price:         tick.Price,
		Cash:          cash,
		PositionValue: positions,
		Equity:        decimal.NewFromFloat(cash).Add(decimal.NewFromFloat(positions)).InexactFloat64(),
	})

	return nil
}

// finalize builds the report from whatever has been processed so far.
func (r *run) finalize(cause error) *Report {
	l := r.strategy.Ledger()
	state := r.strategy.Snapshot()

	report := &Report{
		ID:             "",
		Symbol:         r.strategy.Symbol(),
		Strategy:       string(r.strategy.Name()),
		Bars:           len(r.equity),
		InitialCash:    r.params.InitialCash,
		FinalEquity:    r.params.InitialCash,
		BuyCount:       state.BuyCount,
		SellCount:      state.SellCount,
		SkippedEntries: state.SkippedCount,
		TotalFees:      r.account.TotalFees(),
		TotalReduction: l.TotalReduction(),
		RealizedProfit: l.TotalProfit(),
		OpenPurchases:  l.OpenPurchases(),
		EquityCurve:    r.equity,
		Trades:         make([]TradeRecord, 0, len(l.ClosedTrades())),
		Events:         r.recorder.Decisions,
		Reductions:     r.recorder.Reductions,
	}

	for _, trade := range l.ClosedTrades() {
		report.Trades = append(report.Trades, TradeRecord{
			Trade:      trade,
			OpenIndex:  r.openIndex[trade.Purchase.ID],
			CloseIndex: r.closeIndex[trade.Purchase.ID],
		})
	}

	if n := len(r.equity); n > 0 {
		first, last := r.equity[0], r.equity[n-1]
		report.StartTime = first.Time
		report.EndTime = last.Time
		report.LastPrice = last.Price
		report.FinalEquity = last.Equity

		quantity := utils.CalculateMaxQuantity(r.params.InitialCash, first.Price, l.Config().Fees, trading.NoRounding)
		report.BuyAndHoldPnl = decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(last.Price)).
			Sub(decimal.NewFromFloat(r.params.InitialCash)).InexactFloat64()
	}

	report.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%s/%d/%d/%d",
		report.Symbol, report.Strategy, report.StartTime.Unix(), report.EndTime.Unix(), len(r.bars)))).String()

	report.summarize()

	if cause != nil {
		report.Error = cause.Error()
	}

	return report
}
