package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbot/internal/domain"
	"orderbot/internal/testutil"
)

func TestSettingsRepository_EmptySelectionMeansAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteSettingsRepository(db)

	all, err := repo.AllSelected(context.Background())
	require.NoError(t, err)
	assert.True(t, all)

	ids, err := repo.SelectedIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSettingsRepository_UpdateAndSelect(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteSettingsRepository(db)

	suppliers := []domain.Supplier{
		{ID: 1, Name: "一号渠道", Selected: true},
		{ID: 2, Name: "二号渠道", Selected: false},
		{ID: 3, Name: "三号渠道", Selected: true},
	}
	require.NoError(t, repo.Update(context.Background(), suppliers))

	ids, err := repo.SelectedIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 3}, ids)

	all, err := repo.AllSelected(context.Background())
	require.NoError(t, err)
	assert.False(t, all)
}

func TestSettingsRepository_Update_ClearsPreviousSelection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewSQLiteSettingsRepository(db)

	require.NoError(t, repo.Update(context.Background(), []domain.Supplier{
		{ID: 1, Name: "一号渠道", Selected: true},
		{ID: 2, Name: "二号渠道", Selected: true},
	}))

	// Deselect everything: back to "all" mode.
	require.NoError(t, repo.Update(context.Background(), []domain.Supplier{
		{ID: 1, Name: "一号渠道", Selected: false},
		{ID: 2, Name: "二号渠道", Selected: false},
	}))

	all, err := repo.AllSelected(context.Background())
	require.NoError(t, err)
	assert.True(t, all)
}
