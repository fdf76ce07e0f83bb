package sqlite

import "database/sql"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY,
		order_id INTEGER UNIQUE NOT NULL,
		create_at INTEGER,
		user_name TEXT,
		user_id INTEGER,
		goods_id INTEGER,
		goods_name TEXT,
		order_sn TEXT,
		other_order_sn TEXT,
		order_status INTEGER,
		order_amount TEXT,
		price TEXT,
		params TEXT,
		share_link TEXT,
		logs TEXT,
		created_date TEXT,
		supplier_id INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_share_link ON orders(share_link)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_order_id ON orders(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_date ON orders(created_date)`,

	`CREATE TABLE IF NOT EXISTS order_sync_tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER UNIQUE NOT NULL,
		chat_id INTEGER NOT NULL,
		message_id INTEGER,
		attempts INTEGER DEFAULT 0,
		max_attempts INTEGER DEFAULT 0,
		last_synced_at INTEGER DEFAULT 0,
		share_link TEXT,
		supplier_id INTEGER,
		order_sn TEXT,
		status_text TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_tasks_last_synced_at ON order_sync_tasks(last_synced_at)`,

	`CREATE TABLE IF NOT EXISTS supplier_settings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		supplier_id INTEGER UNIQUE NOT NULL,
		supplier_name TEXT,
		is_selected INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_supplier_selected ON supplier_settings(is_selected)`,
}

func InitSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
