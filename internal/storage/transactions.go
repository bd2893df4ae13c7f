package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/core"
)

// TransactionFilter selects ledger rows for reads. Removed rows are
// excluded unless IncludeRemoved; pending rows are included unless
// ExcludePending.
type TransactionFilter struct {
	AccountID      string
	Start          *time.Time
	End            *time.Time
	IncludeRemoved bool
	ExcludePending bool
}

const txColumns = `transaction_id, account_id, amount, transaction_date, merchant_name, name,
	pending, pending_transaction_id, category_primary, category_detailed,
	custom_category_id, is_removed, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var t core.Transaction
	var amount, date, createdAt, updatedAt string
	var customCategoryID sql.NullInt64
	err := row.Scan(&t.ID, &t.AccountID, &amount, &date, &t.MerchantName, &t.Name,
		&t.Pending, &t.PendingTransactionID, &t.CategoryPrimary, &t.CategoryDetailed,
		&customCategoryID, &t.IsRemoved, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	t.Date, err = core.ParseDay(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if customCategoryID.Valid {
		id := customCategoryID.Int64
		t.CustomCategoryID = &id
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, transactionID string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE transaction_id = ?`, transactionID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", transactionID, core.ErrTransactionNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", transactionID, err)
	}
	return t, nil
}

// ListTransactions returns ledger rows matching the filter in ascending
// date order.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE account_id = ?`
	args := []any{f.AccountID}

	if !f.IncludeRemoved {
		query += ` AND is_removed = 0`
	}
	if f.ExcludePending {
		query += ` AND pending = 0`
	}
	if f.Start != nil {
		query += ` AND transaction_date >= ?`
		args = append(args, core.Day(*f.Start).Format(core.DateFormat))
	}
	if f.End != nil {
		query += ` AND transaction_date <= ?`
		args = append(args, core.Day(*f.End).Format(core.DateFormat))
	}
	query += ` ORDER BY transaction_date ASC, transaction_id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ApplyChangeSet merges one upstream page into the ledger in a single
// transaction, in the order added, modified, removed. An added record
// whose account is unknown rolls back the whole page; a modified or
// removed record with no matching row is a no-op.
func (r *SQLiteRepository) ApplyChangeSet(ctx context.Context, cs core.ChangeSet) (core.ApplyResult, error) {
	var result core.ApplyResult

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())

	for _, rec := range cs.Added {
		if err := rec.Validate(); err != nil {
			return core.ApplyResult{}, fmt.Errorf("added record %q: %w", rec.ID, err)
		}
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM accounts WHERE account_id = ?`, rec.AccountID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ApplyResult{}, fmt.Errorf("added transaction %s references account %s: %w",
				rec.ID, rec.AccountID, core.ErrUnknownAccount)
		}
		if err != nil {
			return core.ApplyResult{}, fmt.Errorf("check account %s: %w", rec.AccountID, err)
		}

		// Upstream may redeliver an added record; overwriting by id keeps
		// the apply idempotent.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (transaction_id, account_id, amount, transaction_date,
				merchant_name, name, pending, pending_transaction_id,
				category_primary, category_detailed, is_removed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
			ON CONFLICT(transaction_id) DO UPDATE SET
				account_id = excluded.account_id,
				amount = excluded.amount,
				transaction_date = excluded.transaction_date,
				merchant_name = excluded.merchant_name,
				name = excluded.name,
				pending = excluded.pending,
				pending_transaction_id = excluded.pending_transaction_id,
				category_primary = excluded.category_primary,
				category_detailed = excluded.category_detailed,
				updated_at = excluded.updated_at`,
			rec.ID, rec.AccountID, rec.Amount.String(), core.Day(rec.Date).Format(core.DateFormat),
			rec.MerchantName, rec.Name, rec.Pending, rec.PendingTransactionID,
			rec.CategoryPrimary, rec.CategoryDetailed, now, now)
		if err != nil {
			return core.ApplyResult{}, fmt.Errorf("insert transaction %s: %w", rec.ID, err)
		}
		result.Added++
	}

	for _, rec := range cs.Modified {
		if err := rec.Validate(); err != nil {
			return core.ApplyResult{}, fmt.Errorf("modified record %q: %w", rec.ID, err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE transactions SET
				account_id = ?, amount = ?, transaction_date = ?,
				merchant_name = ?, name = ?, pending = ?, pending_transaction_id = ?,
				category_primary = ?, category_detailed = ?, updated_at = ?
			WHERE transaction_id = ?`,
			rec.AccountID, rec.Amount.String(), core.Day(rec.Date).Format(core.DateFormat),
			rec.MerchantName, rec.Name, rec.Pending, rec.PendingTransactionID,
			rec.CategoryPrimary, rec.CategoryDetailed, now, rec.ID)
		if err != nil {
			return core.ApplyResult{}, fmt.Errorf("update transaction %s: %w", rec.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return core.ApplyResult{}, fmt.Errorf("update transaction %s: %w", rec.ID, err)
		}
		if n == 0 {
			// Tolerated: the record may have arrived out of order.
			slog.DebugContext(ctx, "Modified record has no matching row, skipping",
				"transaction_id", rec.ID)
			continue
		}
		result.Modified++
	}

	for _, ref := range cs.Removed {
		res, err := tx.ExecContext(ctx,
			`UPDATE transactions SET is_removed = 1, updated_at = ? WHERE transaction_id = ?`,
			now, ref.ID)
		if err != nil {
			return core.ApplyResult{}, fmt.Errorf("remove transaction %s: %w", ref.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return core.ApplyResult{}, fmt.Errorf("remove transaction %s: %w", ref.ID, err)
		}
		if n == 0 {
			slog.DebugContext(ctx, "Removed record has no matching row, skipping",
				"transaction_id", ref.ID)
			continue
		}
		result.Removed++
	}

	if err := tx.Commit(); err != nil {
		return core.ApplyResult{}, fmt.Errorf("commit apply: %w", err)
	}
	return result, nil
}
