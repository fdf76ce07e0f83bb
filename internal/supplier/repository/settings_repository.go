package repository

import (
	"context"
	"database/sql"
	"fmt"

	"orderbot/internal/domain"
)

type SQLiteSettingsRepository struct {
	db *sql.DB
}

func NewSQLiteSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

func (r *SQLiteSettingsRepository) SelectedIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT supplier_id FROM supplier_settings WHERE is_selected = 1`)
	if err != nil {
		return nil, fmt.Errorf("querying selected suppliers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning supplier id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating suppliers: %w", err)
	}

	return ids, nil
}

// AllSelected reports whether the bot should fetch orders for every
// supplier. An empty selection means "all".
func (r *SQLiteSettingsRepository) AllSelected(ctx context.Context) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM supplier_settings WHERE is_selected = 1`).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting selected suppliers: %w", err)
	}
	return count == 0, nil
}

// Update replaces the selection state with the given list inside one
// transaction: everything is deselected first so suppliers missing from the
// list drop out of the selection.
func (r *SQLiteSettingsRepository) Update(ctx context.Context, suppliers []domain.Supplier) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning settings transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE supplier_settings SET is_selected = 0`); err != nil {
		return fmt.Errorf("clearing supplier selection: %w", err)
	}

	upsert := `
		INSERT INTO supplier_settings (supplier_id, supplier_name, is_selected, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(supplier_id) DO UPDATE SET
			supplier_name = excluded.supplier_name,
			is_selected = excluded.is_selected,
			updated_at = CURRENT_TIMESTAMP
	`

	for _, s := range suppliers {
		selected := 0
		if s.Selected {
			selected = 1
		}
		if _, err := tx.ExecContext(ctx, upsert, s.ID, s.Name, selected); err != nil {
			return fmt.Errorf("upserting supplier %d: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings transaction: %w", err)
	}

	return nil
}
