package store

// Stores is the top-level container for all storage backends.
// Both the SQLite (standalone) and Postgres (managed) factories fill
// every field; there are no mode-specific nil stores.
type Stores struct {
	Messages  MessageStore
	Customers CustomerStore
	Tickets   TicketStore
}

// StoreConfig carries backend selection for the store factories.
type StoreConfig struct {
	Mode        string // "standalone" or "managed"
	SQLitePath  string
	PostgresDSN string
}
