package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"orderbot/internal/domain"
	"orderbot/internal/orderapi"
)

// Callback data for the supplier selection keyboard.
const (
	callbackTogglePrefix = "supplier_toggle_"
	callbackToggleAll    = "supplier_toggle_all"
	callbackDone         = "supplier_done"
)

// handleSuppliersCommand shows the selection keyboard for /suppliers.
func (b *Bot) handleSuppliersCommand(ctx context.Context, msg *tgbotapi.Message) {
	suppliers, err := b.client.Suppliers(ctx)
	if err != nil || len(suppliers) == 0 {
		b.logger.Error("fetching supplier list failed", zap.Error(err))
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "获取第三方列表失败，请稍后重试。"))
		return
	}

	selected, err := b.selectedSet(ctx)
	if err != nil {
		b.logger.Error("reading supplier selection failed", zap.Error(err))
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, selectionText(len(selected)))
	out.ReplyMarkup = supplierKeyboard(suppliers, selected)
	b.send(out)
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}

	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	switch {
	case query.Data == callbackDone:
		b.answerCallback(query.ID, "")
		b.finishSelection(ctx, chatID, messageID)

	case query.Data == callbackToggleAll:
		selected, err := b.selectedSet(ctx)
		if err != nil {
			b.logger.Error("reading supplier selection failed", zap.Error(err))
			return
		}
		if len(selected) == 0 {
			b.answerCallback(query.ID, "当前已是'全部'模式")
			return
		}
		// Deselect everything: empty selection means "all suppliers".
		if err := b.storeSelection(ctx, nil); err != nil {
			b.logger.Error("clearing supplier selection failed", zap.Error(err))
			return
		}
		b.answerCallback(query.ID, "已切换到'全部'模式")
		b.refreshKeyboard(ctx, chatID, messageID)

	case strings.HasPrefix(query.Data, callbackTogglePrefix):
		supplierID, err := strconv.ParseInt(strings.TrimPrefix(query.Data, callbackTogglePrefix), 10, 64)
		if err != nil {
			b.logger.Warn("bad supplier callback data", zap.String("data", query.Data))
			return
		}
		b.answerCallback(query.ID, "")
		b.toggleSupplier(ctx, supplierID)
		b.refreshKeyboard(ctx, chatID, messageID)
	}
}

func (b *Bot) toggleSupplier(ctx context.Context, supplierID int64) {
	selected, err := b.selectedSet(ctx)
	if err != nil {
		b.logger.Error("reading supplier selection failed", zap.Error(err))
		return
	}

	if selected[supplierID] {
		delete(selected, supplierID)
	} else {
		selected[supplierID] = true
	}

	ids := make([]int64, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}

	if err := b.storeSelection(ctx, ids); err != nil {
		b.logger.Error("updating supplier selection failed", zap.Error(err))
		return
	}

	// Narrowing the selection drops stored orders that no longer belong.
	if len(ids) > 0 {
		if deleted, err := b.orders.DeleteOutsideSuppliers(ctx, ids); err != nil {
			b.logger.Error("pruning orders outside selection failed", zap.Error(err))
		} else if deleted > 0 {
			b.logger.Info("orders outside selection pruned", zap.Int64("count", deleted))
		}
	}
}

// finishSelection saves the current selection and immediately backfills the
// retention window for it, reporting the stored count back into the chat.
func (b *Bot) finishSelection(ctx context.Context, chatID int64, messageID int) {
	b.editText(chatID, messageID, "✅ 设置已保存。\n正在获取对应第三方订单...")

	selectedIDs, err := b.settings.SelectedIDs(ctx)
	if err != nil {
		b.logger.Error("reading supplier selection failed", zap.Error(err))
		return
	}

	orders, err := b.client.RecentOrders(ctx, b.retentionDays, selectedIDs)
	if err != nil {
		b.logger.Error("backfill after selection failed", zap.Error(err))
		b.editText(chatID, messageID, fmt.Sprintf("✅ 设置已保存。\n获取对应第三方订单失败：%v", err))
		return
	}

	if len(selectedIDs) > 0 {
		allowed := make(map[int64]bool, len(selectedIDs))
		for _, id := range selectedIDs {
			allowed[id] = true
		}
		filtered := orders[:0]
		for _, order := range orders {
			if allowed[order.SupplierID] {
				filtered = append(filtered, order)
			}
		}
		orders = filtered
	}

	converted := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		converted = append(converted, order.Domain())
	}

	stored, err := b.orders.UpsertBatch(ctx, converted)
	if err != nil {
		b.logger.Error("storing backfilled orders failed", zap.Error(err))
		b.editText(chatID, messageID, fmt.Sprintf("✅ 设置已保存。\n获取对应第三方订单失败：%v", err))
		return
	}

	if _, err := b.orders.DeleteExpired(ctx, b.retentionDays); err != nil {
		b.logger.Error("deleting expired orders failed", zap.Error(err))
	}
	if len(selectedIDs) > 0 {
		if _, err := b.orders.DeleteOutsideSuppliers(ctx, selectedIDs); err != nil {
			b.logger.Error("pruning orders outside selection failed", zap.Error(err))
		}
	}

	b.editText(chatID, messageID, fmt.Sprintf("✅ 设置已保存。\n已获取对应第三方订单（共%d条）", stored))
}

// storeSelection persists the given ids as the selected set, keeping names
// for suppliers we know about.
func (b *Bot) storeSelection(ctx context.Context, ids []int64) error {
	suppliers, err := b.client.Suppliers(ctx)
	if err != nil {
		return err
	}

	selected := make(map[int64]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	settings := make([]domain.Supplier, 0, len(suppliers))
	for _, s := range suppliers {
		settings = append(settings, domain.Supplier{
			ID:       s.ID,
			Name:     s.Name,
			Selected: selected[s.ID],
		})
	}

	return b.settings.Update(ctx, settings)
}

func (b *Bot) refreshKeyboard(ctx context.Context, chatID int64, messageID int) {
	suppliers, err := b.client.Suppliers(ctx)
	if err != nil {
		b.logger.Error("fetching supplier list failed", zap.Error(err))
		return
	}

	selected, err := b.selectedSet(ctx)
	if err != nil {
		b.logger.Error("reading supplier selection failed", zap.Error(err))
		return
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID, messageID,
		selectionText(len(selected)),
		supplierKeyboard(suppliers, selected),
	)
	b.send(edit)
}

func (b *Bot) selectedSet(ctx context.Context) (map[int64]bool, error) {
	ids, err := b.settings.SelectedIDs(ctx)
	if err != nil {
		return nil, err
	}
	selected := make(map[int64]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}
	return selected, nil
}

// supplierKeyboard lays the suppliers out two per row, with toggle marks,
// followed by the "all" and "done" rows.
func supplierKeyboard(suppliers []orderapi.Supplier, selected map[int64]bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for i, s := range suppliers {
		prefix := "❌ "
		if selected[s.ID] {
			prefix = "✅ "
		}
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("第三方 %d", s.ID)
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			prefix+name,
			fmt.Sprintf("%s%d", callbackTogglePrefix, s.ID),
		))
		if len(row) == 2 || i == len(suppliers)-1 {
			rows = append(rows, row)
			row = nil
		}
	}

	allPrefix := "❌ "
	if len(selected) == 0 {
		allPrefix = "✅ "
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(allPrefix+"全部（获取所有第三方）", callbackToggleAll),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ 完成设置", callbackDone),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func selectionText(selectedCount int) string {
	text := "请选择要获取订单的第三方：\n\n"
	if selectedCount > 0 {
		text += fmt.Sprintf("当前已选择 %d 个第三方\n", selectedCount)
	} else {
		text += "当前设置为：获取全部第三方\n"
	}
	text += "\n点击第三方名称可以切换选中状态\n点击'完成设置'保存配置"
	return text
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.sender.Send(c); err != nil {
		b.logger.Error("sending message failed", zap.Error(err))
	}
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	b.send(tgbotapi.NewEditMessageText(chatID, messageID, text))
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Error("answering callback failed", zap.Error(err))
	}
}
