package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/cache"
	"ledgersync/internal/core"
	"ledgersync/internal/storage"
)

// SummaryService groups ledger entries by period and category for
// reporting. Like BalanceService it is a pure downstream reader.
type SummaryService struct {
	storage *storage.SQLiteRepository
	cache   *cache.LRUCache[core.SummaryResult]
	now     func() time.Time
}

func NewSummaryService(repo *storage.SQLiteRepository, c *cache.LRUCache[core.SummaryResult]) *SummaryService {
	return &SummaryService{storage: repo, cache: c, now: time.Now}
}

// Summary partitions the filtered transaction set into period buckets and
// category buckets. Expense sums positive amounts, income sums the
// magnitude of negative ones, net = income - expense; category buckets
// carry the signed sum. Buckets are emitted in ascending key order and
// all money is rounded to 2 decimal places.
func (s *SummaryService) Summary(ctx context.Context, accountID string, q core.SummaryQuery) (core.SummaryResult, error) {
	if _, err := s.storage.GetAccount(ctx, accountID); err != nil {
		return core.SummaryResult{}, fmt.Errorf("summary: %w", err)
	}
	if q.GroupBy == "" {
		q.GroupBy = core.GroupMonth
	}
	if q.CategoryType == "" {
		q.CategoryType = core.PrimaryCategory
	}

	endDay := core.Day(s.now())
	if q.End != nil {
		endDay = core.Day(*q.End)
	}

	filter := storage.TransactionFilter{
		AccountID:      accountID,
		End:            &endDay,
		IncludeRemoved: q.IncludeRemoved,
		ExcludePending: !q.IncludePending,
	}
	if q.Start != nil {
		startDay := core.Day(*q.Start)
		filter.Start = &startDay
	}

	cacheKey := summaryCacheKey(accountID, filter, q)
	if s.cache != nil {
		if hit, ok := s.cache.Get(cacheKey); ok {
			return hit, nil
		}
	}

	txs, err := s.storage.ListTransactions(ctx, filter)
	if err != nil {
		return core.SummaryResult{}, fmt.Errorf("summary: %w", err)
	}

	periods := make(map[string]*core.PeriodSummary)
	categories := make(map[string]*core.CategorySummary)
	result := core.SummaryResult{
		TotalExpense: decimal.Zero,
		TotalIncome:  decimal.Zero,
		TotalNet:     decimal.Zero,
	}

	for _, t := range txs {
		key := q.GroupBy.BucketKey(t.Date)
		bucket, ok := periods[key]
		if !ok {
			bucket = &core.PeriodSummary{
				Period:  key,
				Expense: decimal.Zero,
				Income:  decimal.Zero,
			}
			periods[key] = bucket
		}
		accumulate(bucket, t.Amount)

		label := t.CategoryPrimary
		if q.CategoryType == core.DetailedCategory {
			label = t.CategoryDetailed
		}
		if label == "" {
			label = core.UncategorizedLabel
		}
		cat, ok := categories[label]
		if !ok {
			cat = &core.CategorySummary{
				Category:     label,
				CategoryType: q.CategoryType,
				Total:        decimal.Zero,
			}
			categories[label] = cat
		}
		cat.Total = cat.Total.Add(t.Amount)
		cat.Count++

		if t.Amount.IsPositive() {
			result.TotalExpense = result.TotalExpense.Add(t.Amount)
		} else if t.Amount.IsNegative() {
			result.TotalIncome = result.TotalIncome.Add(t.Amount.Abs())
		}
		result.TotalCount++
	}
	result.TotalNet = result.TotalIncome.Sub(result.TotalExpense)

	periodKeys := make([]string, 0, len(periods))
	for k := range periods {
		periodKeys = append(periodKeys, k)
	}
	sort.Strings(periodKeys)
	for _, k := range periodKeys {
		b := periods[k]
		b.Net = b.Income.Sub(b.Expense)
		b.Expense = b.Expense.Round(2)
		b.Income = b.Income.Round(2)
		b.Net = b.Net.Round(2)
		result.Periods = append(result.Periods, *b)
	}

	categoryKeys := make([]string, 0, len(categories))
	for k := range categories {
		categoryKeys = append(categoryKeys, k)
	}
	sort.Strings(categoryKeys)
	for _, k := range categoryKeys {
		c := categories[k]
		c.Total = c.Total.Round(2)
		result.Categories = append(result.Categories, *c)
	}

	result.TotalExpense = result.TotalExpense.Round(2)
	result.TotalIncome = result.TotalIncome.Round(2)
	result.TotalNet = result.TotalNet.Round(2)

	if s.cache != nil {
		s.cache.Set(cacheKey, result)
	}
	return result, nil
}

func accumulate(bucket *core.PeriodSummary, amount decimal.Decimal) {
	// Raw income/expense totals keep the stored sign convention; only
	// balances negate.
	if amount.IsPositive() {
		bucket.Expense = bucket.Expense.Add(amount)
	} else if amount.IsNegative() {
		bucket.Income = bucket.Income.Add(amount.Abs())
	}
	bucket.Count++
}

func summaryCacheKey(accountID string, f storage.TransactionFilter, q core.SummaryQuery) string {
	start := "-"
	if f.Start != nil {
		start = f.Start.Format(core.DateFormat)
	}
	end := "-"
	if f.End != nil {
		end = f.End.Format(core.DateFormat)
	}
	return fmt.Sprintf("summary:%s:%s:%s:%s:%s:%t:%t",
		accountID, start, end, q.GroupBy, q.CategoryType, q.IncludeRemoved, q.IncludePending)
}
