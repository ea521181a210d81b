// Package sqldb stores session snapshots through database/sql, with
// dialects for SQLite and MySQL.
package sqldb

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect holds the statements that differ between engines
type Dialect struct {
	Name   string
	driver string
	schema []string
	upsert string
}

// SQLite stores snapshots in a local database file
var SQLite = Dialect{
	Name:   "sqlite",
	driver: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS session_snapshots (
			session_id      TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL DEFAULT '',
			persona         TEXT NOT NULL,
			snapshot        TEXT NOT NULL,
			last_query_unix INTEGER NOT NULL,
			archived_unix   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_snapshots_user
			ON session_snapshots (user_id, last_query_unix)`,
	},
	upsert: `INSERT INTO session_snapshots (session_id, user_id, persona, snapshot, last_query_unix, archived_unix)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			user_id = excluded.user_id,
			persona = excluded.persona,
			snapshot = excluded.snapshot,
			last_query_unix = excluded.last_query_unix,
			archived_unix = excluded.archived_unix`,
}

// MySQL stores snapshots in a shared MySQL database
var MySQL = Dialect{
	Name:   "mysql",
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS session_snapshots (
			session_id      VARCHAR(191) NOT NULL PRIMARY KEY,
			user_id         VARCHAR(191) NOT NULL DEFAULT '',
			persona         VARCHAR(64) NOT NULL,
			snapshot        LONGTEXT NOT NULL,
			last_query_unix BIGINT NOT NULL,
			archived_unix   BIGINT NOT NULL,
			INDEX idx_session_snapshots_user (user_id, last_query_unix)
		)`,
	},
	upsert: `INSERT INTO session_snapshots (session_id, user_id, persona, snapshot, last_query_unix, archived_unix)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			user_id = VALUES(user_id),
			persona = VALUES(persona),
			snapshot = VALUES(snapshot),
			last_query_unix = VALUES(last_query_unix),
			archived_unix = VALUES(archived_unix)`,
}

// SQLiteDSN builds a DSN for a database file with WAL and a busy timeout
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
}

// MySQLDSN builds a DSN for the MySQL driver
func MySQLDSN(host string, port int, user, password, database string, useTLS bool) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second
	if useTLS {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}
