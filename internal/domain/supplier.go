package domain

// Supplier is a third-party source of orders. An empty selection in the
// settings table means orders are fetched for all suppliers.
type Supplier struct {
	ID       int64
	Name     string
	Selected bool
}
