package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"orderbot/internal/domain"
	"orderbot/internal/errors"
)

type SQLiteSyncTaskRepository struct {
	db *sql.DB
}

func NewSQLiteSyncTaskRepository(db *sql.DB) *SQLiteSyncTaskRepository {
	return &SQLiteSyncTaskRepository{db: db}
}

// Upsert creates the task or resets an existing one for the same order:
// re-triggering from chat restarts the attempt counters and rebinds the task
// to the new message.
func (r *SQLiteSyncTaskRepository) Upsert(ctx context.Context, task domain.SyncTask) error {
	lastSyncedAt := task.LastSyncedAt
	if lastSyncedAt == 0 && task.Attempts > 0 {
		lastSyncedAt = time.Now().Unix()
	}

	query := `
		INSERT INTO order_sync_tasks (
			order_id, chat_id, message_id, attempts, max_attempts,
			last_synced_at, share_link, supplier_id, order_sn, status_text, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, CURRENT_TIMESTAMP)
		ON CONFLICT(order_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			message_id = excluded.message_id,
			attempts = excluded.attempts,
			max_attempts = excluded.max_attempts,
			last_synced_at = excluded.last_synced_at,
			share_link = excluded.share_link,
			supplier_id = excluded.supplier_id,
			order_sn = excluded.order_sn,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx, query,
		task.OrderID, task.ChatID, task.MessageID, task.Attempts, task.MaxAttempts,
		lastSyncedAt, task.ShareLink, task.SupplierID, task.OrderSN,
	)
	if err != nil {
		return fmt.Errorf("upserting sync task for order %d: %w", task.OrderID, err)
	}

	return nil
}

func (r *SQLiteSyncTaskRepository) Find(ctx context.Context, orderID int64) (*domain.SyncTask, error) {
	query := `
		SELECT order_id, chat_id, message_id, attempts, max_attempts,
		       last_synced_at, share_link, supplier_id, order_sn, status_text
		FROM order_sync_tasks
		WHERE order_id = ?
	`

	task, err := scanSyncTask(r.db.QueryRowContext(ctx, query, orderID))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("sync task for order %d not found", orderID))
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync task: %w", err)
	}

	return task, nil
}

// Due returns the tasks whose last attempt is older than the sync interval,
// plus tasks that were never attempted.
func (r *SQLiteSyncTaskRepository) Due(ctx context.Context, interval time.Duration) ([]domain.SyncTask, error) {
	threshold := time.Now().Add(-interval).Unix()

	query := `
		SELECT order_id, chat_id, message_id, attempts, max_attempts,
		       last_synced_at, share_link, supplier_id, order_sn, status_text
		FROM order_sync_tasks
		WHERE last_synced_at IS NULL OR last_synced_at = 0 OR last_synced_at <= ?
	`

	rows, err := r.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("querying due sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.SyncTask
	for rows.Next() {
		task, err := scanSyncTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync tasks: %w", err)
	}

	return tasks, nil
}

func (r *SQLiteSyncTaskRepository) MarkAttempt(ctx context.Context, orderID int64, attempts int, lastSyncedAt int64, statusText string) error {
	query := `
		UPDATE order_sync_tasks
		SET attempts = ?, last_synced_at = ?, status_text = ?, updated_at = CURRENT_TIMESTAMP
		WHERE order_id = ?
	`

	_, err := r.db.ExecContext(ctx, query, attempts, lastSyncedAt, statusText, orderID)
	if err != nil {
		return fmt.Errorf("updating sync task for order %d: %w", orderID, err)
	}

	return nil
}

func (r *SQLiteSyncTaskRepository) Delete(ctx context.Context, orderID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM order_sync_tasks WHERE order_id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("deleting sync task for order %d: %w", orderID, err)
	}
	return nil
}

func scanSyncTask(row rowScanner) (*domain.SyncTask, error) {
	var task domain.SyncTask
	var messageID, lastSyncedAt, supplierID sql.NullInt64
	var shareLink, orderSN, statusText sql.NullString

	err := row.Scan(
		&task.OrderID, &task.ChatID, &messageID, &task.Attempts, &task.MaxAttempts,
		&lastSyncedAt, &shareLink, &supplierID, &orderSN, &statusText,
	)
	if err != nil {
		return nil, err
	}

	task.MessageID = int(messageID.Int64)
	task.LastSyncedAt = lastSyncedAt.Int64
	task.ShareLink = shareLink.String
	task.SupplierID = supplierID.Int64
	task.OrderSN = orderSN.String
	task.StatusText = statusText.String

	return &task, nil
}
