package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
)

func newTestClient(handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewHTTPClient(server.URL, "client-id", "secret", 5*time.Second)
	return client, server
}

func TestSyncTransactionsParsesPage(t *testing.T) {
	var gotReq transactionsSyncRequest
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/sync" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"added": [{
				"transaction_id": "tx-1",
				"account_id": "acc-1",
				"amount": 12.5,
				"date": "2025-03-01",
				"merchant_name": "Cafe",
				"name": "CAFE PURCHASE",
				"pending": false,
				"personal_finance_category": {"primary": "FOOD_AND_DRINK", "detailed": "FOOD_AND_DRINK_COFFEE"}
			}],
			"modified": [],
			"removed": [{"transaction_id": "tx-0"}],
			"next_cursor": "cursor-xyz",
			"has_more": true
		}`))
	})
	defer server.Close()

	cs, err := client.SyncTransactions(context.Background(), "token", "cursor-abc", 100)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if gotReq.AccessToken != "token" || gotReq.Cursor != "cursor-abc" || gotReq.Count != 100 {
		t.Errorf("unexpected request %+v", gotReq)
	}
	if len(cs.Added) != 1 || len(cs.Removed) != 1 {
		t.Fatalf("unexpected change-set %+v", cs)
	}
	rec := cs.Added[0]
	if rec.ID != "tx-1" || rec.AccountID != "acc-1" {
		t.Errorf("unexpected record %+v", rec)
	}
	if !rec.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("expected amount 12.5, got %s", rec.Amount)
	}
	if rec.CategoryPrimary != "FOOD_AND_DRINK" || rec.CategoryDetailed != "FOOD_AND_DRINK_COFFEE" {
		t.Errorf("unexpected categories %+v", rec)
	}
	if cs.NextCursor != "cursor-xyz" || !cs.HasMore {
		t.Errorf("unexpected cursor fields %+v", cs)
	}
}

func TestSyncTransactionsClampsPageSize(t *testing.T) {
	var gotReq transactionsSyncRequest
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"added": [], "modified": [], "removed": [], "next_cursor": "c", "has_more": false}`))
	})
	defer server.Close()

	if _, err := client.SyncTransactions(context.Background(), "token", "", 9999); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if gotReq.Count != MaxPageSize {
		t.Errorf("expected count clamped to %d, got %d", MaxPageSize, gotReq.Count)
	}
}

func TestSyncTransactionsRejectsInvalidRecord(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"added": [{"transaction_id": "", "account_id": "acc-1", "amount": 1, "date": "2025-03-01"}]}`))
	})
	defer server.Close()

	_, err := client.SyncTransactions(context.Background(), "token", "", 100)
	if !errors.Is(err, core.ErrEmptyTransactionID) {
		t.Fatalf("expected ErrEmptyTransactionID, got %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "rate limit by status",
			status:  http.StatusTooManyRequests,
			body:    `{}`,
			wantErr: core.ErrRateLimited,
		},
		{
			name:    "rate limit by code",
			status:  http.StatusBadRequest,
			body:    `{"error_code": "RATE_LIMIT_EXCEEDED"}`,
			wantErr: core.ErrRateLimited,
		},
		{
			name:    "login required",
			status:  http.StatusBadRequest,
			body:    `{"error_code": "ITEM_LOGIN_REQUIRED", "error_message": "relink"}`,
			wantErr: core.ErrReauthRequired,
		},
		{
			name:    "pagination conflict",
			status:  http.StatusBadRequest,
			body:    `{"error_code": "TRANSACTIONS_SYNC_MUTATION_DURING_PAGINATION"}`,
			wantErr: core.ErrPaginationConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			defer server.Close()

			_, err := client.SyncTransactions(context.Background(), "token", "", 100)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestErrorMappingUnknownCode(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error_code": "INTERNAL_SERVER_ERROR", "error_message": "upstream exploded"}`))
	})
	defer server.Close()

	_, err := client.SyncTransactions(context.Background(), "token", "", 100)
	var upErr *core.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upErr.Code != "INTERNAL_SERVER_ERROR" || upErr.Message != "upstream exploded" {
		t.Errorf("unexpected error %+v", upErr)
	}
}

func TestCheckItemReauth(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"item": {"item_id": "item-1", "error": {"error_code": "ITEM_LOGIN_REQUIRED"}}}`))
	})
	defer server.Close()

	err := client.CheckItem(context.Background(), "token")
	if !errors.Is(err, core.ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired, got %v", err)
	}
}

func TestCheckItemHealthy(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"item": {"item_id": "item-1", "error": null}}`))
	})
	defer server.Close()

	if err := client.CheckItem(context.Background(), "token"); err != nil {
		t.Fatalf("expected healthy item, got %v", err)
	}
}

func TestGetAccounts(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts": [
			{"account_id": "acc-1", "name": "Checking", "official_name": "Everyday Checking", "type": "depository"},
			{"account_id": "acc-2", "name": "Savings", "official_name": "", "type": "depository"}
		]}`))
	})
	defer server.Close()

	accounts, err := client.GetAccounts(context.Background(), "token")
	if err != nil {
		t.Fatalf("get accounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].ID != "acc-1" || accounts[0].OfficialName != "Everyday Checking" {
		t.Errorf("unexpected account %+v", accounts[0])
	}
}
