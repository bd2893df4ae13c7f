package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	// PeriodBalance is the point-in-time balance at the end of one period
	// plus its delta against the previous period.
	PeriodBalance struct {
		Period      string
		PeriodStart time.Time
		PeriodEnd   time.Time
		Balance     decimal.Decimal
		Change      decimal.Decimal
		ChangePct   decimal.Decimal
	}

	// AssetHistory is the balance history for one account.
	AssetHistory struct {
		CurrentBalance decimal.Decimal
		History        []PeriodBalance
	}

	// PeriodSummary is the income/expense rollup for one period bucket.
	// Expense sums positive amounts as-is, income sums the magnitude of
	// negative amounts; neither negates per the sign convention.
	PeriodSummary struct {
		Period  string
		Expense decimal.Decimal
		Income  decimal.Decimal
		Net     decimal.Decimal
		Count   int
	}

	// CategorySummary is the signed total for one category bucket.
	CategorySummary struct {
		Category     string
		CategoryType CategoryType
		Total        decimal.Decimal
		Count        int
	}

	// SummaryResult groups ledger entries by period and by category, with
	// overall totals mirroring the all-bucket computation.
	SummaryResult struct {
		Periods      []PeriodSummary
		Categories   []CategorySummary
		TotalExpense decimal.Decimal
		TotalIncome  decimal.Decimal
		TotalNet     decimal.Decimal
		TotalCount   int
	}

	// SummaryQuery configures a summary computation. Nil Start/End fall
	// back to the service defaults.
	SummaryQuery struct {
		Start          *time.Time
		End            *time.Time
		GroupBy        GroupBy
		CategoryType   CategoryType
		IncludeRemoved bool
		IncludePending bool
	}
)

// UncategorizedLabel is the category bucket for transactions without the
// chosen category column.
const UncategorizedLabel = "Uncategorized"
