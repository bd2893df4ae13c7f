package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the canonical day-granularity format used for transaction dates.
const DateFormat = "2006-01-02"

type (
	// Account is a linked financial account. The sync core treats it as
	// read-only except for LastSyncedAt.
	Account struct {
		ID           string
		Name         string
		OfficialName string
		Type         string
		CreatedAt    time.Time
		LastSyncedAt time.Time
	}

	// Transaction is one ledger entry. Amount follows the upstream sign
	// convention: positive for an outflow (expense), negative for an
	// inflow (income). Removal upstream is recorded as IsRemoved, never
	// as a row delete.
	Transaction struct {
		ID                   string
		AccountID            string
		Amount               decimal.Decimal
		Date                 time.Time
		MerchantName         string
		Name                 string
		Pending              bool
		PendingTransactionID string
		CategoryPrimary      string
		CategoryDetailed     string
		CustomCategoryID     *int64
		IsRemoved            bool
		CreatedAt            time.Time
		UpdatedAt            time.Time
	}

	// CustomCategory is a user-defined category a transaction may reference.
	CustomCategory struct {
		ID          int64
		Name        string
		Description string
		CreatedAt   time.Time
	}

	// TxRecord is one added or modified transaction as delivered by the
	// upstream aggregator, already validated and typed.
	TxRecord struct {
		ID                   string
		AccountID            string
		Amount               decimal.Decimal
		Date                 time.Time
		MerchantName         string
		Name                 string
		Pending              bool
		PendingTransactionID string
		CategoryPrimary      string
		CategoryDetailed     string
	}

	// TxRef identifies a transaction removed upstream.
	TxRef struct {
		ID string
	}

	// ChangeSet is one page of upstream changes. It is constructed per
	// page, applied once, and discarded.
	ChangeSet struct {
		Added      []TxRecord
		Modified   []TxRecord
		Removed    []TxRef
		NextCursor string
		HasMore    bool
	}

	// ApplyResult reports how many rows one page actually touched.
	ApplyResult struct {
		Added    int
		Modified int
		Removed  int
	}

	// SyncResult summarizes a completed sync run.
	SyncResult struct {
		Added      int
		Modified   int
		Removed    int
		Pages      int
		NextCursor string
	}

	// AccountContext scopes a sync run to one account and carries the
	// upstream access credential for it.
	AccountContext struct {
		AccessToken string
		AccountID   string
	}
)

var (
	ErrEmptyTransactionID = errors.New("empty transaction id")
	ErrEmptyAccountID     = errors.New("empty account id")
	ErrZeroDate           = errors.New("transaction date cannot be zero")
)

// Validate checks the fields the applier relies on.
func (r TxRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyTransactionID
	}
	if strings.TrimSpace(r.AccountID) == "" {
		return ErrEmptyAccountID
	}
	if r.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Day normalizes a timestamp to day granularity at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date string.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}
