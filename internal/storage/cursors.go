package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCursor returns the last committed pagination cursor for an account.
// A missing row means sync has never completed; ok is false and the
// caller starts from an empty cursor.
func (r *SQLiteRepository) GetCursor(ctx context.Context, accountID string) (cursor string, ok bool, err error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT cursor FROM sync_cursors WHERE account_id = ?`, accountID)
	err = row.Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cursor for %s: %w", accountID, err)
	}
	return cursor, true, nil
}

// CommitCursor durably records the resume position for an account. The
// orchestrator calls this only after every page of the run has been
// applied.
func (r *SQLiteRepository) CommitCursor(ctx context.Context, accountID, cursor string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (account_id, cursor, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			cursor = excluded.cursor,
			updated_at = excluded.updated_at`,
		accountID, cursor, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("commit cursor for %s: %w", accountID, err)
	}
	return nil
}
