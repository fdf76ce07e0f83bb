package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"orderbot/internal/domain"
	"orderbot/internal/errors"
)

type SQLiteOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteOrderRepository(db *sql.DB, logger *zap.Logger) *SQLiteOrderRepository {
	return &SQLiteOrderRepository{db: db, logger: logger}
}

const orderColumns = `order_id, create_at, user_name, user_id, goods_id, goods_name,
	       order_sn, other_order_sn, order_status, order_amount, price,
	       params, share_link, logs, created_date, supplier_id`

// Upsert inserts the order or replaces the stored row when the order id is
// already present.
func (r *SQLiteOrderRepository) Upsert(ctx context.Context, order domain.Order) error {
	query := `
		INSERT OR REPLACE INTO orders (
			order_id, create_at, user_name, user_id, goods_id, goods_name,
			order_sn, other_order_sn, order_status, order_amount, price,
			params, share_link, logs, created_date, supplier_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

	createdDate := order.CreatedDate
	if createdDate == "" {
		createdDate = domain.OrderDate(order.CreateAt)
	}

	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.CreateAt, order.UserName, order.UserID,
		order.GoodsID, order.GoodsName, order.OrderSN, order.OtherOrderSN,
		order.Status, order.Amount, order.Price, order.Params,
		order.ShareLink, order.Logs, createdDate, order.SupplierID,
	)
	if err != nil {
		return fmt.Errorf("upserting order %d: %w", order.ID, err)
	}

	return nil
}

// UpsertBatch stores the given orders, skipping ids that are already
// present, and returns the number of rows inserted. A row that fails is
// logged and skipped so one bad order does not drop the rest of the batch.
func (r *SQLiteOrderRepository) UpsertBatch(ctx context.Context, orders []domain.Order) (int, error) {
	inserted := 0
	for _, order := range orders {
		exists, err := r.Exists(ctx, order.ID)
		if err != nil {
			r.logger.Error("checking stored order failed", zap.Int64("orderId", order.ID), zap.Error(err))
			continue
		}
		if exists {
			continue
		}
		if err := r.Upsert(ctx, order); err != nil {
			r.logger.Error("storing order failed", zap.Int64("orderId", order.ID), zap.Error(err))
			continue
		}
		inserted++
	}
	return inserted, nil
}

func (r *SQLiteOrderRepository) Exists(ctx context.Context, orderID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE order_id = ? LIMIT 1`, orderID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking order %d: %w", orderID, err)
	}
	return true, nil
}

// FindByShareLink returns the newest order matching the link. Scheme and
// trailing-slash variants of the same link are treated as equal.
func (r *SQLiteOrderRepository) FindByShareLink(ctx context.Context, link string) (*domain.Order, error) {
	normalized := domain.NormalizeShareLink(link)
	if normalized == "" || !strings.HasPrefix(normalized, "http") {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no order for link %q", link))
	}

	core := domain.ShareLinkCore(normalized)

	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		WHERE share_link = ?
		   OR share_link = ?
		   OR share_link LIKE ?
		   OR share_link LIKE ?
		ORDER BY create_at DESC
		LIMIT 1
	`, orderColumns)

	row := r.db.QueryRowContext(ctx, query,
		normalized,
		strings.TrimRight(normalized, "/"),
		"%"+core+"%",
		"%"+core+"/%",
	)

	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no order for link %q", link))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by link: %w", err)
	}

	return order, nil
}

func (r *SQLiteOrderRepository) FindByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE order_id = ?`, orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, orderID))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order %d not found", orderID))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by id: %w", err)
	}

	return order, nil
}

// DeleteExpired removes orders whose creation date is older than the
// retention window and returns the number of rows deleted.
func (r *SQLiteOrderRepository) DeleteExpired(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Format("2006-01-02")

	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE created_date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting expired orders: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	return deleted, nil
}

// DeleteOutsideSuppliers removes orders that do not belong to any of the
// given supplier ids. An empty set deletes nothing.
func (r *SQLiteOrderRepository) DeleteOutsideSuppliers(ctx context.Context, supplierIDs []int64) (int64, error) {
	if len(supplierIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(supplierIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(supplierIDs))
	for i, id := range supplierIDs {
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM orders WHERE supplier_id NOT IN (%s)`, placeholders)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting orders outside suppliers: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	return deleted, nil
}

func (r *SQLiteOrderRepository) CountByDate(ctx context.Context, date string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE created_date = ?`, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting orders for %s: %w", date, err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var userName, goodsName, orderSN, otherOrderSN sql.NullString
	var amount, price, params, shareLink, logs, createdDate sql.NullString
	var createAt, userID, goodsID, supplierID sql.NullInt64
	var status sql.NullInt64

	err := row.Scan(
		&order.ID, &createAt, &userName, &userID, &goodsID, &goodsName,
		&orderSN, &otherOrderSN, &status, &amount, &price,
		&params, &shareLink, &logs, &createdDate, &supplierID,
	)
	if err != nil {
		return nil, err
	}

	order.CreateAt = createAt.Int64
	order.UserName = userName.String
	order.UserID = userID.Int64
	order.GoodsID = goodsID.Int64
	order.GoodsName = goodsName.String
	order.OrderSN = orderSN.String
	order.OtherOrderSN = otherOrderSN.String
	order.Status = int(status.Int64)
	order.Amount = amount.String
	order.Price = price.String
	order.Params = params.String
	order.ShareLink = shareLink.String
	order.Logs = logs.String
	order.CreatedDate = createdDate.String
	order.SupplierID = supplierID.Int64

	return &order, nil
}
