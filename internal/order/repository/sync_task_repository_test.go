package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbot/internal/domain"
	"orderbot/internal/errors"
	"orderbot/internal/testutil"
)

func testTask(orderID int64) domain.SyncTask {
	return domain.SyncTask{
		OrderID:    orderID,
		ChatID:     1000,
		MessageID:  42,
		ShareLink:  "https://v.douyin.com/abc123/",
		SupplierID: 7,
		OrderSN:    "SN-1",
	}
}

func TestSyncTaskRepository_UpsertAndFind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteSyncTaskRepository(db)

	require.NoError(t, repo.Upsert(context.Background(), testTask(101)))

	task, err := repo.Find(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), task.ChatID)
	assert.Equal(t, 42, task.MessageID)
	assert.Equal(t, 0, task.Attempts)
}

func TestSyncTaskRepository_Upsert_ResetsExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteSyncTaskRepository(db)

	require.NoError(t, repo.Upsert(context.Background(), testTask(101)))
	require.NoError(t, repo.MarkAttempt(context.Background(), 101, 3, time.Now().Unix(), "同步失败"))

	// Re-triggering from a new message resets the counters.
	reset := testTask(101)
	reset.ChatID = 2000
	reset.MessageID = 99
	require.NoError(t, repo.Upsert(context.Background(), reset))

	task, err := repo.Find(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), task.ChatID)
	assert.Equal(t, 99, task.MessageID)
	assert.Equal(t, 0, task.Attempts)
	assert.Equal(t, int64(0), task.LastSyncedAt)
}

func TestSyncTaskRepository_Find_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteSyncTaskRepository(db)

	_, err := repo.Find(context.Background(), 999)
	require.Error(t, err)

	_, ok := errors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestSyncTaskRepository_Due(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteSyncTaskRepository(db)

	// Never attempted: due immediately.
	require.NoError(t, repo.Upsert(context.Background(), testTask(101)))

	// Attempted just now: not due.
	recent := testTask(102)
	require.NoError(t, repo.Upsert(context.Background(), recent))
	require.NoError(t, repo.MarkAttempt(context.Background(), 102, 1, time.Now().Unix(), ""))

	// Attempted long ago: due again.
	stale := testTask(103)
	require.NoError(t, repo.Upsert(context.Background(), stale))
	require.NoError(t, repo.MarkAttempt(context.Background(), 103, 1, time.Now().Add(-10*time.Minute).Unix(), ""))

	due, err := repo.Due(context.Background(), 3*time.Minute)
	require.NoError(t, err)

	ids := make([]int64, 0, len(due))
	for _, task := range due {
		ids = append(ids, task.OrderID)
	}
	assert.ElementsMatch(t, []int64{101, 103}, ids)
}

func TestSyncTaskRepository_MarkAttempt(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteSyncTaskRepository(db)

	require.NoError(t, repo.Upsert(context.Background(), testTask(101)))

	now := time.Now().Unix()
	require.NoError(t, repo.MarkAttempt(context.Background(), 101, 2, now, "退单中"))

	task, err := repo.Find(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, 2, task.Attempts)
	assert.Equal(t, now, task.LastSyncedAt)
	assert.Equal(t, "退单中", task.StatusText)
}

func TestSyncTaskRepository_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteSyncTaskRepository(db)

	require.NoError(t, repo.Upsert(context.Background(), testTask(101)))
	require.NoError(t, repo.Delete(context.Background(), 101))

	_, err := repo.Find(context.Background(), 101)
	require.Error(t, err)
}
