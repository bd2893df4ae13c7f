package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/cache"
	"ledgersync/internal/core"
	"ledgersync/internal/storage"
)

// BalanceService derives point-in-time balances and period-over-period
// deltas from the ledger. It reads committed ledger state only and may
// run concurrently with a sync.
type BalanceService struct {
	storage *storage.SQLiteRepository
	cache   *cache.LRUCache[core.AssetHistory]
	now     func() time.Time
}

// NewBalanceService creates the calculator. The cache is optional; pass
// nil to compute every request.
func NewBalanceService(repo *storage.SQLiteRepository, c *cache.LRUCache[core.AssetHistory]) *BalanceService {
	return &BalanceService{storage: repo, cache: c, now: time.Now}
}

// History computes the balance at the end of every period between start
// and end, inclusive. Nil start/end fall back to the granularity's
// default window ending today. Balances negate the stored amount per the
// sign convention; all outputs are rounded to 2 decimal places.
func (s *BalanceService) History(ctx context.Context, accountID string, start, end *time.Time, g core.Granularity) (core.AssetHistory, error) {
	if _, err := s.storage.GetAccount(ctx, accountID); err != nil {
		return core.AssetHistory{}, fmt.Errorf("balance history: %w", err)
	}

	endDay := core.Day(s.now())
	if end != nil {
		endDay = core.Day(*end)
	}
	startDay := g.DefaultStart(endDay)
	if start != nil {
		startDay = core.Day(*start)
	}

	cacheKey := fmt.Sprintf("history:%s:%s:%s:%s",
		accountID, startDay.Format(core.DateFormat), endDay.Format(core.DateFormat), g)
	if s.cache != nil {
		if hit, ok := s.cache.Get(cacheKey); ok {
			return hit, nil
		}
	}

	txs, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{
		AccountID: accountID,
		End:       &endDay,
	})
	if err != nil {
		return core.AssetHistory{}, fmt.Errorf("balance history: %w", err)
	}

	history := core.AssetHistory{
		CurrentBalance: balanceAt(txs, endDay).Round(2),
	}

	for p := g.PeriodOf(startDay); !p.Start.After(endDay); p = g.Next(p) {
		balance := balanceAt(txs, p.End)
		prev := balanceAt(txs, p.Start.AddDate(0, 0, -1))
		change := balance.Sub(prev)

		changePct := decimal.Zero
		if !prev.IsZero() {
			changePct = change.Div(prev).Mul(decimal.NewFromInt(100))
		}

		history.History = append(history.History, core.PeriodBalance{
			Period:      g.Label(p),
			PeriodStart: p.Start,
			PeriodEnd:   p.End,
			Balance:     balance.Round(2),
			Change:      change.Round(2),
			ChangePct:   changePct.Round(2),
		})
	}

	if s.cache != nil {
		s.cache.Set(cacheKey, history)
	}
	return history, nil
}

// balanceAt is the prefix sum of -amount over rows dated on or before
// cutoff. Recomputed per boundary; correctness needs no carried state.
func balanceAt(txs []core.Transaction, cutoff time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Date.After(cutoff) {
			continue
		}
		total = total.Sub(t.Amount)
	}
	return total
}
