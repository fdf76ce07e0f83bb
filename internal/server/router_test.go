package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"orderbot/internal/domain"
	orderrepo "orderbot/internal/order/repository"
	supplierrepo "orderbot/internal/supplier/repository"
	"orderbot/internal/testutil"
)

func TestRouter_Healthz(t *testing.T) {
	db := testutil.SetupTestDB(t)
	orders := orderrepo.NewSQLiteOrderRepository(db, zap.NewNop())
	settings := supplierrepo.NewSQLiteSettingsRepository(db)

	router := NewRouter(db, orders, settings, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRouter_Stats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	orders := orderrepo.NewSQLiteOrderRepository(db, zap.NewNop())
	settings := supplierrepo.NewSQLiteSettingsRepository(db)

	require.NoError(t, orders.Upsert(context.Background(), domain.Order{
		ID:          101,
		CreateAt:    time.Now().Unix(),
		CreatedDate: time.Now().Format("2006-01-02"),
		SupplierID:  7,
	}))
	require.NoError(t, settings.Update(context.Background(), []domain.Supplier{
		{ID: 7, Name: "一号渠道", Selected: true},
	}))

	router := NewRouter(db, orders, settings, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Orders)
	assert.Equal(t, []int64{7}, resp.SelectedSupplierIDs)
	assert.Equal(t, time.Now().Format("2006-01-02"), resp.Date)
}
