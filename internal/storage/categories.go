package storage

import (
	"context"
	"fmt"
	"time"

	"ledgersync/internal/core"
)

// CreateCustomCategory adds a user-defined category. Names are unique.
func (r *SQLiteRepository) CreateCustomCategory(ctx context.Context, name, description string) (core.CustomCategory, error) {
	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO custom_categories (name, description, created_at) VALUES (?, ?, ?)`,
		name, description, formatTime(now))
	if err != nil {
		return core.CustomCategory{}, fmt.Errorf("create custom category %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.CustomCategory{}, fmt.Errorf("create custom category %q: %w", name, err)
	}
	return core.CustomCategory{ID: id, Name: name, Description: description, CreatedAt: now}, nil
}

func (r *SQLiteRepository) ListCustomCategories(ctx context.Context) ([]core.CustomCategory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, name, description, created_at FROM custom_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list custom categories: %w", err)
	}
	defer rows.Close()

	var categories []core.CustomCategory
	for rows.Next() {
		var c core.CustomCategory
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan custom category: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// AssignCustomCategory attaches a custom category to a ledger row.
func (r *SQLiteRepository) AssignCustomCategory(ctx context.Context, transactionID string, categoryID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET custom_category_id = ?, updated_at = ? WHERE transaction_id = ?`,
		categoryID, formatTime(time.Now()), transactionID)
	if err != nil {
		return fmt.Errorf("assign custom category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign custom category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", transactionID, core.ErrTransactionNotFound)
	}
	return nil
}
