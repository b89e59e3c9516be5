package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCache is a durable key-value and hash cache with TTL support. Values
// survive process restarts, which is what keeps the daily risk state alive
// across a crash within the trading day.
type SQLiteCache struct {
	db      *sql.DB
	timeNow func() time.Time
}

func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	c := &SQLiteCache{db: db, timeNow: time.Now}
	if err := c.initSchema(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCache) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS hashes (
			name TEXT NOT NULL,
			field TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (name, field)
		);`,
	}
	for _, q := range queries {
		if _, err := c.db.Exec(q); err != nil {
			return fmt.Errorf("init cache schema: %w", err)
		}
	}
	return nil
}

// Set stores a value. ttl <= 0 means no expiry.
func (c *SQLiteCache) Set(key, value string, ttl time.Duration) error {
	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = c.timeNow().Add(ttl).Unix()
	}
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO kv (key, value, expires_at) VALUES (?, ?, ?)`,
		key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Get returns the value and whether it exists. Expired entries are deleted
// lazily on read.
func (c *SQLiteCache) Get(key string) (string, bool, error) {
	var value string
	var expiresAt sql.NullInt64
	err := c.db.QueryRow(
		`SELECT value, expires_at FROM kv WHERE key = ?`, key).
		Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if expiresAt.Valid && c.timeNow().Unix() >= expiresAt.Int64 {
		_, _ = c.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
		return "", false, nil
	}
	return value, true, nil
}

func (c *SQLiteCache) HashSet(name string, fields map[string]string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("cache hash set %s: %w", name, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO hashes (name, field, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cache hash set %s: %w", name, err)
	}
	defer stmt.Close()

	for field, value := range fields {
		if _, err := stmt.Exec(name, field, value); err != nil {
			return fmt.Errorf("cache hash set %s.%s: %w", name, field, err)
		}
	}
	return tx.Commit()
}

func (c *SQLiteCache) HashGetAll(name string) (map[string]string, error) {
	rows, err := c.db.Query(
		`SELECT field, value FROM hashes WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("cache hash get %s: %w", name, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("cache hash scan %s: %w", name, err)
		}
		out[field] = value
	}
	return out, rows.Err()
}

// Delete removes a key and any hash stored under the same name.
func (c *SQLiteCache) Delete(key string) error {
	if _, err := c.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	if _, err := c.db.Exec(`DELETE FROM hashes WHERE name = ?`, key); err != nil {
		return fmt.Errorf("cache delete hash %s: %w", key, err)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
