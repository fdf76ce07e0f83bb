package orderapi

import (
	"encoding/json"
	"strings"

	"orderbot/internal/domain"
)

// Order is the wire representation returned by the admin order list
// endpoint. Logs is kept raw because upstream sends either a JSON array of
// log entries or a plain string.
type Order struct {
	ID           int64           `json:"Id"`
	CreateAt     int64           `json:"CreateAt"`
	UserName     string          `json:"UserName"`
	UserID       int64           `json:"UserId"`
	GoodsID      int64           `json:"GoodsId"`
	GoodsName    string          `json:"GoodsName"`
	OrderSN      string          `json:"OrderSN"`
	OtherOrderSN string          `json:"OtherOrderSN"`
	OrderStatus  int             `json:"OrderStatus"`
	OrderAmount  string          `json:"OrderAmount"`
	Price        string          `json:"Price"`
	Params       string          `json:"Params"`
	Logs         json.RawMessage `json:"Logs"`
	StatusText   string          `json:"OrderStatusText"`
	SupplierID   int64           `json:"ShequId"`
}

// LogsText returns the raw log trail as text, unquoting it when upstream
// sent a JSON string.
func (o Order) LogsText() string {
	raw := strings.TrimSpace(string(o.Logs))
	if raw == "" || raw == "null" {
		return ""
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(o.Logs, &s); err == nil {
			return s
		}
	}
	return raw
}

// Domain converts the wire order into the stored record, extracting the
// share link from the raw Params payload.
func (o Order) Domain() domain.Order {
	return domain.Order{
		ID:           o.ID,
		CreateAt:     o.CreateAt,
		UserName:     o.UserName,
		UserID:       o.UserID,
		GoodsID:      o.GoodsID,
		GoodsName:    o.GoodsName,
		OrderSN:      o.OrderSN,
		OtherOrderSN: o.OtherOrderSN,
		Status:       o.OrderStatus,
		Amount:       o.OrderAmount,
		Price:        o.Price,
		Params:       o.Params,
		ShareLink:    domain.ExtractShareLink(o.Params),
		Logs:         o.LogsText(),
		CreatedDate:  domain.OrderDate(o.CreateAt),
		SupplierID:   o.SupplierID,
	}
}

type Supplier struct {
	ID   int64  `json:"Id"`
	Name string `json:"SName"`
}

// SyncResult describes the outcome of one sync submission. RefundStatus is
// set when the order turned out to be refunding/refunded, which ends the
// task instead of retrying.
type SyncResult struct {
	Success      bool
	RefundStatus string
	Message      string
}

type listResponse struct {
	Error int     `json:"error"`
	Info  []Order `json:"info"`
}

type supplierListResponse struct {
	Error int        `json:"error"`
	Info  []Supplier `json:"info"`
}

type syncResponse struct {
	Error   int    `json:"error"`
	Message string `json:"msg"`
}
