package upstream

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
)

// Wire shapes for the aggregator API. These never leave this package;
// toChangeSet converts and validates into core types immediately.

type itemGetRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	AccessToken string `json:"access_token"`
}

type itemGetResponse struct {
	Item struct {
		ItemID string `json:"item_id"`
		Error  *struct {
			ErrorCode    string `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"error"`
	} `json:"item"`
}

type transactionsSyncRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	AccessToken string `json:"access_token"`
	Cursor      string `json:"cursor"`
	Count       int    `json:"count"`
}

type txRecordWire struct {
	TransactionID        string          `json:"transaction_id"`
	AccountID            string          `json:"account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Date                 string          `json:"date"`
	MerchantName         string          `json:"merchant_name"`
	Name                 string          `json:"name"`
	Pending              bool            `json:"pending"`
	PendingTransactionID string          `json:"pending_transaction_id"`
	Category             *struct {
		Primary  string `json:"primary"`
		Detailed string `json:"detailed"`
	} `json:"personal_finance_category"`
}

type txRefWire struct {
	TransactionID string `json:"transaction_id"`
}

type transactionsSyncResponse struct {
	Added      []txRecordWire `json:"added"`
	Modified   []txRecordWire `json:"modified"`
	Removed    []txRefWire    `json:"removed"`
	NextCursor string         `json:"next_cursor"`
	HasMore    bool           `json:"has_more"`
}

type accountsGetResponse struct {
	Accounts []struct {
		AccountID    string `json:"account_id"`
		Name         string `json:"name"`
		OfficialName string `json:"official_name"`
		Type         string `json:"type"`
	} `json:"accounts"`
}

type apiErrorResponse struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (w txRecordWire) toRecord() (core.TxRecord, error) {
	date, err := core.ParseDay(w.Date)
	if err != nil {
		return core.TxRecord{}, fmt.Errorf("transaction %s: parse date %q: %w", w.TransactionID, w.Date, err)
	}
	rec := core.TxRecord{
		ID:                   w.TransactionID,
		AccountID:            w.AccountID,
		Amount:               w.Amount,
		Date:                 date,
		MerchantName:         w.MerchantName,
		Name:                 w.Name,
		Pending:              w.Pending,
		PendingTransactionID: w.PendingTransactionID,
	}
	if w.Category != nil {
		rec.CategoryPrimary = w.Category.Primary
		rec.CategoryDetailed = w.Category.Detailed
	}
	if err := rec.Validate(); err != nil {
		return core.TxRecord{}, fmt.Errorf("transaction %q: %w", w.TransactionID, err)
	}
	return rec, nil
}

func (r transactionsSyncResponse) toChangeSet() (core.ChangeSet, error) {
	cs := core.ChangeSet{
		NextCursor: r.NextCursor,
		HasMore:    r.HasMore,
	}
	for _, w := range r.Added {
		rec, err := w.toRecord()
		if err != nil {
			return core.ChangeSet{}, fmt.Errorf("added: %w", err)
		}
		cs.Added = append(cs.Added, rec)
	}
	for _, w := range r.Modified {
		rec, err := w.toRecord()
		if err != nil {
			return core.ChangeSet{}, fmt.Errorf("modified: %w", err)
		}
		cs.Modified = append(cs.Modified, rec)
	}
	for _, w := range r.Removed {
		cs.Removed = append(cs.Removed, core.TxRef{ID: w.TransactionID})
	}
	return cs, nil
}
