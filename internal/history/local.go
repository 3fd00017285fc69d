// Package history keeps the durable, append-only log of completed sessions:
// a local SQLite cache for instant offline reads and a remote store mirrored
// asynchronously for durability across devices and reinstalls.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Durable string-keyed entries held by the local cache.
const (
	keySessionLog  = "session_log"
	keyDailySeries = "daily_series"
	keySampleLog   = "frequency_samples"
)

// Cache is the local key-value store backing offline reads.
type Cache struct {
	db  *sql.DB
	log *logrus.Logger
}

// OpenCache opens (creating if needed) the local cache at path and runs
// schema migrations.
func OpenCache(path string, log *logrus.Logger) (*Cache, error) {
	if log == nil {
		log = logrus.New()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	c := &Cache{db: db, log: log}
	if err := c.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.WithField("path", path).Debug("Local history cache opened")
	return c, nil
}

// Get returns the value stored under key, with found=false when absent.
func (c *Cache) Get(key string) (value string, found bool, err error) {
	row := c.db.QueryRow("SELECT value FROM kv WHERE key = ?", key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (c *Cache) Put(key, value string) error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, datetime('now'))",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// migration is a single database schema migration.
type migration struct {
	version int
	name    string
	up      func() error
}

func (c *Cache) runMigrations() error {
	if _, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var version int
	row := c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "initial_schema", up: c.migration001InitialSchema},
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		c.log.WithFields(logrus.Fields{
			"version": m.version,
			"name":    m.name,
		}).Debug("Running cache migration")
		if err := m.up(); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := c.db.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			m.version, m.name,
		); err != nil {
			return err
		}
	}

	return nil
}

func (c *Cache) migration001InitialSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}
