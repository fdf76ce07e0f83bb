package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"orderbot/internal/domain"
	"orderbot/internal/errors"
	"orderbot/internal/testutil"
)

func testOrder(id int64) domain.Order {
	return domain.Order{
		ID:          id,
		CreateAt:    time.Now().Unix(),
		UserName:    "user",
		GoodsName:   "goods",
		OrderSN:     "SN-1",
		Status:      2,
		Amount:      "9.90",
		Price:       "9.90",
		Params:      `[{"name":"链接","value":"https://v.douyin.com/abc123/"}]`,
		ShareLink:   "https://v.douyin.com/abc123/",
		Logs:        `[{"content":"订单已创建"}]`,
		CreatedDate: time.Now().Format("2006-01-02"),
		SupplierID:  7,
	}
}

func TestOrderRepository_UpsertAndFindByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	require.NoError(t, repo.Upsert(context.Background(), testOrder(101)))

	order, err := repo.FindByID(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, int64(101), order.ID)
	assert.Equal(t, "https://v.douyin.com/abc123/", order.ShareLink)
	assert.Equal(t, int64(7), order.SupplierID)
}

func TestOrderRepository_Upsert_ReplacesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	first := testOrder(101)
	require.NoError(t, repo.Upsert(context.Background(), first))

	first.Status = 3
	first.Logs = `[{"content":"已退款"}]`
	require.NoError(t, repo.Upsert(context.Background(), first))

	order, err := repo.FindByID(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, 3, order.Status)
	assert.Contains(t, order.Logs, "已退款")
}

func TestOrderRepository_UpsertBatch_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	batch := []domain.Order{testOrder(1), testOrder(2), testOrder(3)}

	inserted, err := repo.UpsertBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	// Re-running the same batch stores nothing new.
	inserted, err = repo.UpsertBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}

func TestOrderRepository_UpsertBatch_SkipsFailedRows(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	// Reject one specific order at the database level.
	_, err := db.Exec(`
		CREATE TRIGGER reject_order BEFORE INSERT ON orders
		WHEN NEW.order_id = 2
		BEGIN
			SELECT RAISE(ABORT, 'rejected');
		END
	`)
	require.NoError(t, err)

	inserted, err := repo.UpsertBatch(context.Background(), []domain.Order{
		testOrder(1), testOrder(2), testOrder(3),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	exists, err := repo.Exists(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, exists, "rows after the failed one are still stored")
}

func TestOrderRepository_FindByShareLink_Variants(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	require.NoError(t, repo.Upsert(context.Background(), testOrder(101)))

	for _, link := range []string{
		"https://v.douyin.com/abc123/",
		"https://v.douyin.com/abc123",
		"http://v.douyin.com/abc123/",
	} {
		order, err := repo.FindByShareLink(context.Background(), link)
		require.NoError(t, err, "link %q", link)
		assert.Equal(t, int64(101), order.ID)
	}
}

func TestOrderRepository_FindByShareLink_NewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	older := testOrder(101)
	older.CreateAt = time.Now().Add(-time.Hour).Unix()
	newer := testOrder(102)

	require.NoError(t, repo.Upsert(context.Background(), older))
	require.NoError(t, repo.Upsert(context.Background(), newer))

	order, err := repo.FindByShareLink(context.Background(), "https://v.douyin.com/abc123/")
	require.NoError(t, err)
	assert.Equal(t, int64(102), order.ID)
}

func TestOrderRepository_FindByShareLink_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	_, err := repo.FindByShareLink(context.Background(), "https://v.douyin.com/unknown/")
	require.Error(t, err)

	_, ok := errors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestOrderRepository_FindByShareLink_RejectsGarbage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	_, err := repo.FindByShareLink(context.Background(), "not a link")
	require.Error(t, err)

	_, ok := errors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestOrderRepository_DeleteExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	old := testOrder(101)
	old.CreatedDate = time.Now().AddDate(0, 0, -5).Format("2006-01-02")
	fresh := testOrder(102)

	require.NoError(t, repo.Upsert(context.Background(), old))
	require.NoError(t, repo.Upsert(context.Background(), fresh))

	deleted, err := repo.DeleteExpired(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	exists, err := repo.Exists(context.Background(), 102)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOrderRepository_DeleteOutsideSuppliers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	kept := testOrder(101)
	kept.SupplierID = 7
	dropped := testOrder(102)
	dropped.SupplierID = 9

	require.NoError(t, repo.Upsert(context.Background(), kept))
	require.NoError(t, repo.Upsert(context.Background(), dropped))

	deleted, err := repo.DeleteOutsideSuppliers(context.Background(), []int64{7})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	exists, err := repo.Exists(context.Background(), 101)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOrderRepository_DeleteOutsideSuppliers_EmptySetIsNoop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	require.NoError(t, repo.Upsert(context.Background(), testOrder(101)))

	deleted, err := repo.DeleteOutsideSuppliers(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestOrderRepository_CountByDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteOrderRepository(db, zap.NewNop())

	today := time.Now().Format("2006-01-02")
	require.NoError(t, repo.Upsert(context.Background(), testOrder(101)))
	require.NoError(t, repo.Upsert(context.Background(), testOrder(102)))

	count, err := repo.CountByDate(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
