package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"orderbot/internal/domain"
	"orderbot/internal/orderapi"
)

// processDueTasks re-runs every sync task whose last attempt is older than
// the sync interval.
func (b *Bot) processDueTasks(ctx context.Context) {
	tasks, err := b.tasks.Due(ctx, b.syncInterval)
	if err != nil {
		b.logger.Error("loading due sync tasks failed", zap.Error(err))
		return
	}

	for _, task := range tasks {
		b.processTask(ctx, task)
	}
}

// processTask runs one sync attempt: submit the sync request, refresh the
// stored order from upstream, and finish the task once a terminal refund
// status appears.
func (b *Bot) processTask(ctx context.Context, task domain.SyncTask) {
	log := b.logger.With(
		zap.Int64("orderId", task.OrderID),
		zap.Int("attempts", task.Attempts),
	)
	log.Info("processing sync task")

	result, err := b.client.SyncOrder(ctx, task.OrderID)
	if err != nil {
		log.Warn("sync submission failed", zap.Error(err))
		result = &orderapi.SyncResult{Message: err.Error()}
	}

	refundStatus := result.RefundStatus
	if detail, err := b.client.OrderByID(ctx, task.OrderID); err == nil {
		if err := b.orders.Upsert(ctx, detail.Domain()); err != nil {
			log.Error("refreshing stored order failed", zap.Error(err))
		}
		if refundStatus == "" {
			refundStatus = domain.RefundStatusFromLogs(detail.LogsText(), detail.StatusText)
		}
	}

	attempts := task.Attempts + 1
	statusText := refundStatus
	if statusText == "" {
		statusText = result.Message
	}
	if err := b.tasks.MarkAttempt(ctx, task.OrderID, attempts, time.Now().Unix(), statusText); err != nil {
		log.Error("updating sync task failed", zap.Error(err))
	}

	switch {
	case refundStatus != "":
		log.Info("order reached refund status", zap.String("status", refundStatus))
		b.notify(task.ChatID, task.MessageID, "订单"+refundStatus)
		if err := b.tasks.Delete(ctx, task.OrderID); err != nil {
			log.Error("deleting finished sync task failed", zap.Error(err))
		}
	case result.Success:
		log.Info("order synced, no refund status yet")
	default:
		log.Warn("sync attempt failed", zap.String("message", result.Message))
	}
}
