package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-dca/internal/types"
	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// Snapshot is the serializable form of a ledger.
type Snapshot struct {
	Open           []types.Purchase    `json:"open" yaml:"open"`
	Closed         []types.ClosedTrade `json:"closed" yaml:"closed"`
	TotalProfit    float64             `json:"total_profit" yaml:"total_profit"`
	TotalReduction float64             `json:"total_reduction" yaml:"total_reduction"`
}

// Snapshot captures the ledger contents.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Open:           l.OpenPurchases(),
		Closed:         l.ClosedTrades(),
		TotalProfit:    l.TotalProfit(),
		TotalReduction: l.TotalReduction(),
	}
}

// Restore replaces the ledger contents with a snapshot after checking the
// ledger invariants. Target sale prices are recomputed with the current fees
// and profit target. On error the ledger is left unchanged.
func (l *Ledger) Restore(s Snapshot) error {
	if l.cfg.MaxPurchases != Unlimited && len(s.Open) > l.cfg.MaxPurchases {
		return errors.Newf(errors.ErrCodeStateLoadFailed, "snapshot has %d open purchases, max is %d", len(s.Open), l.cfg.MaxPurchases)
	}

	seen := make(map[string]struct{}, len(s.Open))
	for i, p := range s.Open {
		if p.ID == "" {
			return errors.Newf(errors.ErrCodeStateLoadFailed, "open purchase %d has no id", i)
		}

		if _, dup := seen[p.ID]; dup {
			return errors.Newf(errors.ErrCodeStateLoadFailed, "duplicate purchase id %s", p.ID)
		}

		seen[p.ID] = struct{}{}

		if p.Quantity <= 0 || p.EntryCost < 0 {
			return errors.Newf(errors.ErrCodeStateLoadFailed, "purchase %s has invalid quantity or cost", p.ID)
		}

		if p.Reduction < 0 || p.Reduction > p.EntryCost {
			return errors.Newf(errors.ErrCodeStateLoadFailed, "purchase %s has reduction %v outside [0, %v]", p.ID, p.Reduction, p.EntryCost)
		}

		if i > 0 && p.EntryTime.Before(s.Open[i-1].EntryTime) {
			return errors.Newf(errors.ErrCodeStateLoadFailed, "open purchases are not in entry order at %s", p.ID)
		}
	}

	open := make([]types.Purchase, len(s.Open))
	copy(open, s.Open)

	for i := range open {
		if err := l.retarget(&open[i]); err != nil {
			return errors.Wrapf(errors.ErrCodeStateLoadFailed, err, "cannot price purchase %s", open[i].ID)
		}
	}

	closed := make([]types.ClosedTrade, len(s.Closed))
	copy(closed, s.Closed)

	l.open = open
	l.closed = closed
	l.totalProfit = decimal.NewFromFloat(s.TotalProfit)
	l.totalReduction = decimal.NewFromFloat(s.TotalReduction)
	l.revision++

	return nil
}
