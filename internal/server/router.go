package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type OrderStats interface {
	CountByDate(ctx context.Context, date string) (int, error)
}

type SupplierSelection interface {
	SelectedIDs(ctx context.Context) ([]int64, error)
}

type statsResponse struct {
	Date                string  `json:"date"`
	Orders              int     `json:"orders"`
	SelectedSupplierIDs []int64 `json:"selectedSupplierIds"`
}

// NewRouter exposes the bot's operational endpoints: a DB-backed health
// check and a stored-order stats snapshot.
func NewRouter(db Pinger, orders OrderStats, suppliers SupplierSelection, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			logger.Error("health check failed", zap.Error(err))
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/api/stats", func(w http.ResponseWriter, req *http.Request) {
		today := time.Now().Format("2006-01-02")

		count, err := orders.CountByDate(req.Context(), today)
		if err != nil {
			logger.Error("counting orders failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		selected, err := suppliers.SelectedIDs(req.Context())
		if err != nil {
			logger.Error("reading supplier selection failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if selected == nil {
			selected = []int64{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statsResponse{
			Date:                today,
			Orders:              count,
			SelectedSupplierIDs: selected,
		})
	})

	return r
}
