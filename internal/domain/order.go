package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Order is the locally stored copy of an order fetched from the upstream
// admin API. Params and Logs keep the raw JSON the API returned.
type Order struct {
	ID           int64
	CreateAt     int64
	UserName     string
	UserID       int64
	GoodsID      int64
	GoodsName    string
	OrderSN      string
	OtherOrderSN string
	Status       int
	Amount       string
	Price        string
	Params       string
	ShareLink    string
	Logs         string
	CreatedDate  string
	SupplierID   int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terminal refund states reported by the upstream order log trail.
const (
	RefundStatusInProgress = "退单中"
	RefundStatusRefunded   = "已退款"
	RefundStatusReversed   = "已退单"
)

var refundStatuses = []string{
	RefundStatusInProgress,
	RefundStatusRefunded,
	RefundStatusReversed,
}

// refundHints additionally matches transient wordings that show up in log
// trails before a terminal status is written.
var refundHints = []string{
	RefundStatusInProgress,
	RefundStatusRefunded,
	RefundStatusReversed,
	"退款中",
	"退单",
}

// IsRefund reports whether the order is in any refund-related state and
// should be skipped by the sync flow.
func (o Order) IsRefund() bool {
	for _, hint := range refundHints {
		if strings.Contains(o.Logs, hint) {
			return true
		}
	}
	// Upstream marks some refund states with a negative status code.
	return o.Status < 0
}

type logEntry struct {
	Content string `json:"content"`
}

// RefundStatusFromLogs extracts the terminal refund status from an order's
// log trail. The Logs field is usually a JSON array of {content} entries but
// older records carry a plain string; statusText is the fallback when the
// trail has no match. Returns "" when no refund status is present.
func RefundStatusFromLogs(logs, statusText string) string {
	if logs != "" {
		var entries []logEntry
		if err := json.Unmarshal([]byte(logs), &entries); err == nil {
			// Newest entries are appended last; scan backwards.
			for i := len(entries) - 1; i >= 0; i-- {
				if status := firstRefundStatus(entries[i].Content); status != "" {
					return status
				}
			}
		} else if status := firstRefundStatus(logs); status != "" {
			return status
		}
	}
	return firstRefundStatus(statusText)
}

func firstRefundStatus(text string) string {
	for _, status := range refundStatuses {
		if strings.Contains(text, status) {
			return status
		}
	}
	return ""
}

// OrderDate formats an order creation timestamp as the YYYY-MM-DD bucket the
// retention queries key on. A zero timestamp falls back to today.
func OrderDate(createAt int64) string {
	if createAt == 0 {
		return time.Now().Format("2006-01-02")
	}
	return time.Unix(createAt, 0).Format("2006-01-02")
}
