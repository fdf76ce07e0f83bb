package bot

import (
	"context"
	"regexp"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"orderbot/internal/domain"
	"orderbot/internal/errors"
	"orderbot/internal/orderapi"
)

// Fixed replies sent back into the chat.
const (
	ackText  = "已收到链接，正在同步订单。"
	skipText = "订单不属于当前选中的第三方分类，已跳过处理。"
)

var shareLinkPattern = regexp.MustCompile(`(?i)https?://v\.douyin\.com/[A-Za-z0-9_-]+/?`)

// Sender is the part of the Telegram client the bot needs to talk back.
// *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type OrderStore interface {
	Upsert(ctx context.Context, order domain.Order) error
	UpsertBatch(ctx context.Context, orders []domain.Order) (int, error)
	FindByShareLink(ctx context.Context, link string) (*domain.Order, error)
	DeleteExpired(ctx context.Context, days int) (int64, error)
	DeleteOutsideSuppliers(ctx context.Context, supplierIDs []int64) (int64, error)
}

type TaskStore interface {
	Upsert(ctx context.Context, task domain.SyncTask) error
	Find(ctx context.Context, orderID int64) (*domain.SyncTask, error)
	Due(ctx context.Context, interval time.Duration) ([]domain.SyncTask, error)
	MarkAttempt(ctx context.Context, orderID int64, attempts int, lastSyncedAt int64, statusText string) error
	Delete(ctx context.Context, orderID int64) error
}

type SettingsStore interface {
	SelectedIDs(ctx context.Context) ([]int64, error)
	AllSelected(ctx context.Context) (bool, error)
	Update(ctx context.Context, suppliers []domain.Supplier) error
}

type OrderAPI interface {
	Suppliers(ctx context.Context) ([]orderapi.Supplier, error)
	SyncOrder(ctx context.Context, orderID int64) (*orderapi.SyncResult, error)
	OrderByID(ctx context.Context, orderID int64) (*orderapi.Order, error)
	RecentOrders(ctx context.Context, days int, supplierIDs []int64) ([]orderapi.Order, error)
}

// Bot handles incoming chat messages: it extracts order share links,
// enqueues sync tasks for matching orders, serves the /suppliers selection
// keyboard and periodically re-processes due sync tasks.
type Bot struct {
	sender        Sender
	orders        OrderStore
	tasks         TaskStore
	settings      SettingsStore
	client        OrderAPI
	logger        *zap.Logger
	syncInterval  time.Duration
	retentionDays int
}

func New(
	sender Sender,
	orders OrderStore,
	tasks TaskStore,
	settings SettingsStore,
	client OrderAPI,
	logger *zap.Logger,
	syncInterval time.Duration,
	retentionDays int,
) *Bot {
	return &Bot{
		sender:        sender,
		orders:        orders,
		tasks:         tasks,
		settings:      settings,
		client:        client,
		logger:        logger,
		syncInterval:  syncInterval,
		retentionDays: retentionDays,
	}
}

// Run consumes the update channel until it closes or the context is
// cancelled. Due sync tasks are re-processed on the sync interval.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	b.logger.Info("bot started", zap.Duration("syncInterval", b.syncInterval))

	ticker := time.NewTicker(b.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("update channel closed")
				return
			}
			b.handleUpdate(ctx, update)
		case <-ticker.C:
			b.processDueTasks(ctx)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "suppliers":
		b.handleSuppliersCommand(ctx, msg)
	}
}

// handleMessage looks every share link in the message up in the store and
// enqueues a sync task for each matching order. Unknown links stay silent.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	links := extractShareLinks(msg.Text)
	if len(links) == 0 {
		return
	}

	selectedIDs, err := b.settings.SelectedIDs(ctx)
	if err != nil {
		b.logger.Error("reading supplier selection failed", zap.Error(err))
		return
	}
	allSelected, err := b.settings.AllSelected(ctx)
	if err != nil {
		b.logger.Error("reading supplier selection failed", zap.Error(err))
		return
	}

	selected := make(map[int64]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = true
	}

	for _, link := range links {
		order, err := b.orders.FindByShareLink(ctx, link)
		if err != nil {
			if _, ok := errors.IsNotFoundError(err); ok {
				b.logger.Info("no order for link", zap.String("link", link))
			} else {
				b.logger.Error("order lookup failed", zap.String("link", link), zap.Error(err))
			}
			continue
		}

		if !allSelected && len(selected) > 0 && !selected[order.SupplierID] {
			b.logger.Info("order outside supplier selection",
				zap.Int64("orderId", order.ID),
				zap.Int64("supplierId", order.SupplierID),
			)
			b.reply(msg.Chat.ID, msg.MessageID, skipText)
			continue
		}

		if order.IsRefund() {
			b.logger.Info("order already refunding, skipping sync", zap.Int64("orderId", order.ID))
			continue
		}

		task := domain.SyncTask{
			OrderID:    order.ID,
			ChatID:     msg.Chat.ID,
			MessageID:  msg.MessageID,
			ShareLink:  order.ShareLink,
			SupplierID: order.SupplierID,
			OrderSN:    order.OrderSN,
		}
		if err := b.tasks.Upsert(ctx, task); err != nil {
			b.logger.Error("enqueueing sync task failed", zap.Int64("orderId", order.ID), zap.Error(err))
			continue
		}

		b.reply(msg.Chat.ID, msg.MessageID, ackText)

		// First attempt right away; the queue takes over afterwards.
		if stored, err := b.tasks.Find(ctx, order.ID); err == nil {
			b.processTask(ctx, *stored)
		} else {
			b.logger.Error("loading sync task failed", zap.Int64("orderId", order.ID), zap.Error(err))
		}
	}
}

// extractShareLinks returns the normalized share links found in the text.
func extractShareLinks(text string) []string {
	var links []string
	for _, raw := range shareLinkPattern.FindAllString(text, -1) {
		if normalized := domain.NormalizeShareLink(raw); normalized != "" {
			links = append(links, normalized)
		}
	}
	return links
}

func (b *Bot) reply(chatID int64, messageID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = messageID
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("sending reply failed", zap.Int64("chatId", chatID), zap.Error(err))
	}
}

// notify replies to the triggering message, falling back to a plain message
// when the original was deleted.
func (b *Bot) notify(chatID int64, messageID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = messageID
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Warn("reply notification failed, sending plain message",
			zap.Int64("chatId", chatID),
			zap.Error(err),
		)
		if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			b.logger.Error("sending notification failed", zap.Int64("chatId", chatID), zap.Error(err))
		}
	}
}
