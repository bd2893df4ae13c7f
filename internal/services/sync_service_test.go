package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
	"ledgersync/internal/storage"
	"ledgersync/internal/upstream/memory"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedAccount(t *testing.T, repo *storage.SQLiteRepository, id string) {
	t.Helper()
	err := repo.UpsertAccount(context.Background(), core.Account{ID: id, Name: "Checking"})
	if err != nil {
		t.Fatalf("failed to seed account %s: %v", id, err)
	}
}

func record(id, accountID, amount, date string) core.TxRecord {
	d, err := core.ParseDay(date)
	if err != nil {
		panic(err)
	}
	return core.TxRecord{
		ID:        id,
		AccountID: accountID,
		Amount:    decimal.RequireFromString(amount),
		Date:      d,
		Name:      "Test Merchant",
	}
}

func testSyncConfig() SyncConfig {
	cfg := DefaultSyncConfig()
	cfg.PageDelay = 0
	return cfg
}

func acct(id string) core.AccountContext {
	return core.AccountContext{AccessToken: "token", AccountID: id}
}

func TestSyncMultiPage(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo, "acc-1")

	up := memory.New()
	up.AddPage([]core.TxRecord{
		record("tx-1", "acc-1", "10", "2025-03-01"),
		record("tx-2", "acc-1", "20", "2025-03-02"),
	}, nil, nil)
	up.AddPage([]core.TxRecord{
		record("tx-3", "acc-1", "-300", "2025-03-05"),
	}, nil, []core.TxRef{{ID: "tx-1"}})

	svc := NewSyncService(repo, up, testSyncConfig())
	result, err := svc.Sync(context.Background(), acct("acc-1"))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if result.Added != 3 || result.Removed != 1 || result.Pages != 2 {
		t.Errorf("unexpected result %+v", result)
	}
	if result.NextCursor != "cursor-2" {
		t.Errorf("expected cursor-2, got %q", result.NextCursor)
	}

	cursor, ok, err := repo.GetCursor(context.Background(), "acc-1")
	if err != nil || !ok || cursor != "cursor-2" {
		t.Errorf("expected committed cursor-2, got %q (ok=%v, err=%v)", cursor, ok, err)
	}

	account, err := repo.GetAccount(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.LastSyncedAt.IsZero() {
		t.Error("expected last_synced_at recorded after sync")
	}
}

func TestSyncResumesFromCommittedCursor(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo, "acc-1")

	up := memory.New()
	up.AddPage([]core.TxRecord{record("tx-1", "acc-1", "10", "2025-03-01")}, nil, nil)
	svc := NewSyncService(repo, up, testSyncConfig())

	if _, err := svc.Sync(context.Background(), acct("acc-1")); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// New upstream data after the committed cursor.
	up.AddPage([]core.TxRecord{record("tx-2", "acc-1", "20", "2025-03-02")}, nil, nil)

	result, err := svc.Sync(context.Background(), acct("acc-1"))
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.Added != 1 || result.Pages != 1 {
		t.Errorf("expected only the new page, got %+v", result)
	}
	if result.NextCursor != "cursor-2" {
		t.Errorf("expected cursor-2, got %q", result.NextCursor)
	}
}

func TestSyncCrashSafety(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo, "acc-1")

	up := memory.New()
	up.AddPage([]core.TxRecord{record("tx-1", "acc-1", "10", "2025-03-01")}, nil, nil)
	up.AddPage([]core.TxRecord{record("tx-2", "acc-1", "20", "2025-03-02")}, nil, nil)
	up.FailPageOnce(1, &core.UpstreamError{Code: "INTERNAL_SERVER_ERROR", Message: "boom"})

	svc := NewSyncService(repo, up, testSyncConfig())
	ctx := context.Background()

	if _, err := svc.Sync(ctx, acct("acc-1")); err == nil {
		t.Fatal("expected first sync to fail")
	}

	// The first page was applied durably, but no cursor was committed.
	if _, err := repo.GetTransaction(ctx, "tx-1"); err != nil {
		t.Fatalf("expected tx-1 applied before the failure: %v", err)
	}
	if _, ok, _ := repo.GetCursor(ctx, "acc-1"); ok {
		t.Fatal("expected no cursor committed after a failed run")
	}

	// The retry replays page one idempotently and finishes the run.
	result, err := svc.Sync(ctx, acct("acc-1"))
	if err != nil {
		t.Fatalf("retry sync: %v", err)
	}
	if result.Pages != 2 {
		t.Errorf("expected full replay over 2 pages, got %+v", result)
	}

	txs, err := repo.ListTransactions(ctx, storage.TransactionFilter{AccountID: "acc-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 {
		t.Errorf("expected 2 transactions after replay, got %d", len(txs))
	}
	cursor, ok, _ := repo.GetCursor(ctx, "acc-1")
	if !ok || cursor != "cursor-2" {
		t.Errorf("expected cursor-2 committed, got %q (ok=%v)", cursor, ok)
	}
}

func TestSyncReauthRequired(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo, "acc-1")

	up := memory.New()
	up.SetReauthRequired(true)
	up.AddPage([]core.TxRecord{record("tx-1", "acc-1", "10", "2025-03-01")}, nil, nil)

	svc := NewSyncService(repo, up, testSyncConfig())
	_, err := svc.Sync(context.Background(), acct("acc-1"))
	if !errors.Is(err, core.ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired, got %v", err)
	}
	if up.Calls() != 0 {
		t.Errorf("expected no sync requests after failed health check, got %d", up.Calls())
	}
}

func TestSyncTooManyPages(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo, "acc-1")

	up := memory.New()
	for i := 0; i < 5; i++ {
		up.AddPage([]core.TxRecord{
			record("tx-"+string(rune('a'+i)), "acc-1", "10", "2025-03-01"),
		}, nil, nil)
	}

	cfg := testSyncConfig()
	cfg.MaxPages = 3
	svc := NewSyncService(repo, up, cfg)

	_, err := svc.Sync(context.Background(), acct("acc-1"))
	if !errors.Is(err, core.ErrTooManyPages) {
		t.Fatalf("expected ErrTooManyPages, got %v", err)
	}
	if _, ok, _ := repo.GetCursor(context.Background(), "acc-1"); ok {
		t.Error("expected no cursor committed after aborted run")
	}
}

func TestSyncConflictRetry(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo, "acc-1")

	up := memory.New()
	up.AddPage([]core.TxRecord{record("tx-1", "acc-1", "10", "2025-03-01")}, nil, nil)
	up.AddPage([]core.TxRecord{record("tx-2", "acc-1", "20", "2025-03-02")}, nil, nil)
	up.FailPageOnce(1, core.ErrPaginationConflict)

	svc := NewSyncService(repo, up, testSyncConfig())
	result, err := svc.Sync(context.Background(), acct("acc-1"))
	if err != nil {
		t.Fatalf("expected conflict retry to succeed, got %v", err)
	}
	if result.Pages != 2 {
		t.Errorf("expected 2 pages in the retried run, got %+v", result)
	}

	// Page zero fetched twice: once before the conflict, once on restart.
	if up.Calls() != 4 {
		t.Errorf("expected 4 sync requests, got %d", up.Calls())
	}
}

func TestSyncConflictRetriesExhausted(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo, "acc-1")

	up := memory.New()
	up.AddPage([]core.TxRecord{record("tx-1", "acc-1", "10", "2025-03-01")}, nil, nil)

	cfg := testSyncConfig()
	cfg.ConflictRetries = 0
	svc := NewSyncService(repo, up, cfg)

	up.FailPageOnce(0, core.ErrPaginationConflict)
	_, err := svc.Sync(context.Background(), acct("acc-1"))
	if !errors.Is(err, core.ErrPaginationConflict) {
		t.Fatalf("expected ErrPaginationConflict with retries exhausted, got %v", err)
	}
}

func TestSyncRateLimited(t *testing.T) {
	repo := newTestRepo(t)
	seedAccount(t, repo, "acc-1")

	up := memory.New()
	up.AddPage([]core.TxRecord{record("tx-1", "acc-1", "10", "2025-03-01")}, nil, nil)
	up.FailPageOnce(0, core.ErrRateLimited)

	svc := NewSyncService(repo, up, testSyncConfig())
	_, err := svc.Sync(context.Background(), acct("acc-1"))
	if !errors.Is(err, core.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestRegisterAccounts(t *testing.T) {
	repo := newTestRepo(t)

	up := memory.New()
	up.SetAccounts([]core.Account{
		{ID: "acc-1", Name: "Checking", Type: "depository"},
		{ID: "acc-2", Name: "Savings", Type: "depository"},
	})

	svc := NewSyncService(repo, up, testSyncConfig())
	accounts, err := svc.RegisterAccounts(context.Background(), "token")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}

	stored, err := repo.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(stored) != 2 || stored[0].ID != "acc-1" || stored[1].ID != "acc-2" {
		t.Errorf("unexpected stored accounts %+v", stored)
	}
}
