package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orderbot/internal/domain"
	"orderbot/internal/orderapi"
)

// How often expired rows are pruned, independent of the poll interval.
const cleanupEvery = time.Hour

type OrderAPI interface {
	RecentOrders(ctx context.Context, days int, supplierIDs []int64) ([]orderapi.Order, error)
	NewOrders(ctx context.Context, lastID int64, days int, supplierIDs []int64) ([]orderapi.Order, error)
}

type OrderStore interface {
	UpsertBatch(ctx context.Context, orders []domain.Order) (int, error)
	DeleteExpired(ctx context.Context, days int) (int64, error)
}

type SettingsStore interface {
	SelectedIDs(ctx context.Context) ([]int64, error)
	AllSelected(ctx context.Context) (bool, error)
}

// OrderPoller periodically pulls orders from the upstream API into the local
// store: a full backfill of the retention window on start, then
// newer-than-last-seen checks on every tick.
type OrderPoller struct {
	api           OrderAPI
	orders        OrderStore
	settings      SettingsStore
	logger        *zap.Logger
	interval      time.Duration
	retentionDays int

	// Highest order id seen so far; only touched from the poller goroutine.
	lastOrderID int64
}

func NewOrderPoller(
	api OrderAPI,
	orders OrderStore,
	settings SettingsStore,
	logger *zap.Logger,
	interval time.Duration,
	retentionDays int,
) *OrderPoller {
	return &OrderPoller{
		api:           api,
		orders:        orders,
		settings:      settings,
		logger:        logger,
		interval:      interval,
		retentionDays: retentionDays,
	}
}

func (p *OrderPoller) Start(ctx context.Context) {
	p.logger.Info("starting order poller",
		zap.Duration("interval", p.interval),
		zap.Int("retentionDays", p.retentionDays),
	)

	if err := p.Backfill(ctx); err != nil {
		p.logger.Error("initial backfill failed", zap.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var sinceCleanup time.Duration
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("order poller stopped")
			return
		case <-ticker.C:
			if err := p.checkNew(ctx); err != nil {
				p.logger.Error("poll cycle failed", zap.Error(err))
			}

			sinceCleanup += p.interval
			if sinceCleanup >= cleanupEvery {
				p.cleanup(ctx)
				sinceCleanup = 0
			}
		}
	}
}

// Backfill loads the whole retention window for the selected suppliers and
// prunes rows that have already aged out.
func (p *OrderPoller) Backfill(ctx context.Context) error {
	log := p.logger.With(zap.String("cycle", uuid.NewString()))

	supplierIDs, err := p.selection(ctx)
	if err != nil {
		return err
	}

	orders, err := p.api.RecentOrders(ctx, p.retentionDays, supplierIDs)
	if err != nil {
		return fmt.Errorf("fetching recent orders: %w", err)
	}
	orders = filterBySupplier(orders, supplierIDs)

	stored, err := p.orders.UpsertBatch(ctx, toDomain(orders))
	if err != nil {
		return fmt.Errorf("storing orders: %w", err)
	}

	p.advance(orders)
	p.cleanup(ctx)

	log.Info("backfill finished",
		zap.Int("fetched", len(orders)),
		zap.Int("stored", stored),
		zap.Int64("lastOrderId", p.lastOrderID),
	)
	return nil
}

// checkNew fetches orders newer than the last seen id and stores them.
func (p *OrderPoller) checkNew(ctx context.Context) error {
	log := p.logger.With(zap.String("cycle", uuid.NewString()))

	supplierIDs, err := p.selection(ctx)
	if err != nil {
		return err
	}

	orders, err := p.api.NewOrders(ctx, p.lastOrderID, p.retentionDays, supplierIDs)
	if err != nil {
		return fmt.Errorf("fetching new orders: %w", err)
	}
	orders = filterBySupplier(orders, supplierIDs)

	if len(orders) == 0 {
		log.Debug("no new orders")
		return nil
	}

	stored, err := p.orders.UpsertBatch(ctx, toDomain(orders))
	if err != nil {
		return fmt.Errorf("storing new orders: %w", err)
	}

	p.advance(orders)

	log.Info("new orders stored",
		zap.Int("fetched", len(orders)),
		zap.Int("stored", stored),
		zap.Int64("lastOrderId", p.lastOrderID),
	)
	return nil
}

func (p *OrderPoller) cleanup(ctx context.Context) {
	deleted, err := p.orders.DeleteExpired(ctx, p.retentionDays)
	if err != nil {
		p.logger.Error("deleting expired orders failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("expired orders deleted", zap.Int64("count", deleted))
	}
}

// selection returns the supplier ids to poll; nil means all suppliers.
func (p *OrderPoller) selection(ctx context.Context) ([]int64, error) {
	all, err := p.settings.AllSelected(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading supplier selection: %w", err)
	}
	if all {
		return nil, nil
	}

	ids, err := p.settings.SelectedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading selected suppliers: %w", err)
	}
	return ids, nil
}

func (p *OrderPoller) advance(orders []orderapi.Order) {
	for _, order := range orders {
		if order.ID > p.lastOrderID {
			p.lastOrderID = order.ID
		}
	}
}

// filterBySupplier drops orders outside the selection. The "all" selection
// (empty ids) keeps everything.
func filterBySupplier(orders []orderapi.Order, supplierIDs []int64) []orderapi.Order {
	if len(supplierIDs) == 0 {
		return orders
	}

	allowed := make(map[int64]bool, len(supplierIDs))
	for _, id := range supplierIDs {
		allowed[id] = true
	}

	filtered := orders[:0]
	for _, order := range orders {
		if allowed[order.SupplierID] {
			filtered = append(filtered, order)
		}
	}
	return filtered
}

func toDomain(orders []orderapi.Order) []domain.Order {
	converted := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		converted = append(converted, order.Domain())
	}
	return converted
}
