package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledgersync/internal/core"
)

// UpsertAccount inserts or refreshes a linked account. Used by the account
// registration flow; the sync core never calls this.
func (r *SQLiteRepository) UpsertAccount(ctx context.Context, a core.Account) error {
	if a.ID == "" {
		return core.ErrEmptyAccountID
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (account_id, name, official_name, account_type, created_at, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			name = excluded.name,
			official_name = excluded.official_name,
			account_type = excluded.account_type`,
		a.ID, a.Name, a.OfficialName, a.Type, formatTime(createdAt), formatTime(a.LastSyncedAt))
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, accountID string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT account_id, name, official_name, account_type, created_at, last_synced_at
		FROM accounts WHERE account_id = ?`, accountID)

	var a core.Account
	var createdAt, lastSyncedAt string
	err := row.Scan(&a.ID, &a.Name, &a.OfficialName, &a.Type, &createdAt, &lastSyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %s: %w", accountID, core.ErrAccountNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %s: %w", accountID, err)
	}
	a.CreatedAt = parseTime(createdAt)
	a.LastSyncedAt = parseTime(lastSyncedAt)
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, name, official_name, account_type, created_at, last_synced_at
		FROM accounts ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		var createdAt, lastSyncedAt string
		if err := rows.Scan(&a.ID, &a.Name, &a.OfficialName, &a.Type, &createdAt, &lastSyncedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.CreatedAt = parseTime(createdAt)
		a.LastSyncedAt = parseTime(lastSyncedAt)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// TouchAccountSynced records the completion time of a successful sync run.
// This is the only account column the sync core writes.
func (r *SQLiteRepository) TouchAccountSynced(ctx context.Context, accountID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET last_synced_at = ? WHERE account_id = ?`,
		formatTime(at), accountID)
	if err != nil {
		return fmt.Errorf("touch account %s: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch account %s: %w", accountID, err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", accountID, core.ErrAccountNotFound)
	}
	return nil
}
