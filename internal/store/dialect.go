package store

import (
	"fmt"
	"strings"
)

// Dialect holds the statements that differ between supported backends.
type Dialect struct {
	Name       string
	DriverName string

	// SleepSQL blocks the backend for :seconds (fractional). Bind it with
	// SleepArgs.
	SleepSQL string

	Schema []string

	// UpsertBenchItemSQL binds :id, :payload and :cnt.
	UpsertBenchItemSQL string

	// InsertChatMessageSQL binds :roomId, :sender and :message. When
	// InsertReturnsID is set the statement yields the new id as a row,
	// otherwise the driver's LastInsertId is used.
	InsertChatMessageSQL string
	InsertReturnsID      bool
}

const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

var mysqlDialect = Dialect{
	Name:       DialectMySQL,
	DriverName: "mysql",
	SleepSQL:   "SELECT SLEEP(:seconds)",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS bench_items (
    id BIGINT PRIMARY KEY,
    payload VARCHAR(255) NOT NULL,
    cnt BIGINT NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS ws_chat_messages (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    room_id VARCHAR(64) NOT NULL,
    sender VARCHAR(64) NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_ws_chat_room_id_id (room_id, id DESC)
)`,
	},
	UpsertBenchItemSQL: `INSERT INTO bench_items (id, payload, cnt) VALUES (:id, :payload, :cnt)
ON DUPLICATE KEY UPDATE payload = VALUES(payload), cnt = VALUES(cnt)`,
	InsertChatMessageSQL: `INSERT INTO ws_chat_messages (room_id, sender, message) VALUES (:roomId, :sender, :message)`,
}

var postgresDialect = Dialect{
	Name:       DialectPostgres,
	DriverName: "postgres",
	SleepSQL:   "SELECT pg_sleep(:seconds)",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS bench_items (
    id BIGINT PRIMARY KEY,
    payload VARCHAR(255) NOT NULL,
    cnt BIGINT NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS ws_chat_messages (
    id BIGSERIAL PRIMARY KEY,
    room_id VARCHAR(64) NOT NULL,
    sender VARCHAR(64) NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS idx_ws_chat_room_id_id ON ws_chat_messages (room_id, id DESC)`,
	},
	UpsertBenchItemSQL: `INSERT INTO bench_items (id, payload, cnt) VALUES (:id, :payload, :cnt)
ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, cnt = excluded.cnt`,
	InsertChatMessageSQL: `INSERT INTO ws_chat_messages (room_id, sender, message) VALUES (:roomId, :sender, :message) RETURNING id`,
	InsertReturnsID:      true,
}

var sqliteDialect = Dialect{
	Name:       DialectSQLite,
	DriverName: "sqlite",
	SleepSQL:   "SELECT sleep(:seconds, :wait)",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS bench_items (
    id INTEGER PRIMARY KEY,
    payload TEXT NOT NULL,
    cnt INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS ws_chat_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    room_id TEXT NOT NULL,
    sender TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS idx_ws_chat_room_id_id ON ws_chat_messages (room_id, id DESC)`,
	},
	UpsertBenchItemSQL: `INSERT INTO bench_items (id, payload, cnt) VALUES (:id, :payload, :cnt)
ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, cnt = excluded.cnt`,
	InsertChatMessageSQL: `INSERT INTO ws_chat_messages (room_id, sender, message) VALUES (:roomId, :sender, :message)`,
}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case DialectMySQL, "":
		return mysqlDialect, nil
	case DialectPostgres, "pg", "postgresql":
		return postgresDialect, nil
	case DialectSQLite, "sqlite3":
		return sqliteDialect, nil
	default:
		return Dialect{}, fmt.Errorf("unknown database driver %q, must be one of: mysql, postgres, sqlite", name)
	}
}
