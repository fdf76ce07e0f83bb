package domain

// SyncTask tracks a pending order synchronization triggered from chat. One
// task exists per order; re-triggering resets the attempt counters.
type SyncTask struct {
	OrderID      int64
	ChatID       int64
	MessageID    int
	Attempts     int
	MaxAttempts  int
	LastSyncedAt int64
	ShareLink    string
	SupplierID   int64
	OrderSN      string
	StatusText   string
}
