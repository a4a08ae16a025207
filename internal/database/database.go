// Package database provides SQLite storage for generated pages.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bryan-buckman/spacetraveling/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; deferred generation saves pages concurrently.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

// SupportsHighConcurrency returns false for SQLite.
func (db *DB) SupportsHighConcurrency() bool {
	return false
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		path TEXT PRIMARY KEY,
		status INTEGER NOT NULL,
		content_type TEXT NOT NULL,
		body BLOB NOT NULL,
		generated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// --- Page Methods ---

// GetPage returns the page stored under path, or ErrNotFound.
func (db *DB) GetPage(path string) (*model.Page, error) {
	var p model.Page
	err := db.conn.QueryRow(
		"SELECT path, status, content_type, body, generated_at FROM pages WHERE path = ?", path,
	).Scan(&p.Path, &p.Status, &p.ContentType, &p.Body, &p.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePage inserts or replaces the page under its path. A zero GeneratedAt is
// set to the current time.
func (db *DB) SavePage(page *model.Page) error {
	if page.GeneratedAt.IsZero() {
		page.GeneratedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO pages (path, status, content_type, body, generated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			status = excluded.status,
			content_type = excluded.content_type,
			body = excluded.body,
			generated_at = excluded.generated_at`,
		page.Path, page.Status, page.ContentType, page.Body, page.GeneratedAt)
	return err
}

// ListPages returns every stored page ordered by path.
func (db *DB) ListPages() ([]model.Page, error) {
	rows, err := db.conn.Query("SELECT path, status, content_type, body, generated_at FROM pages ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPages(rows)
}

// ReplacePages removes every stored page and saves pages in their place. On
// error the previous pages are kept.
func (db *DB) ReplacePages(pages []*model.Page) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM pages"); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO pages (path, status, content_type, body, generated_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, page := range pages {
		if page.GeneratedAt.IsZero() {
			page.GeneratedAt = now
		}
		if _, err := stmt.Exec(page.Path, page.Status, page.ContentType, page.Body, page.GeneratedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("save %s: %w", page.Path, err)
		}
	}
	return tx.Commit()
}

// --- Settings Methods ---

// GetSetting retrieves a setting value.
func (db *DB) GetSetting(key string) (string, error) {
	var val string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return val, err
}

// SetSetting saves a setting.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec("INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?", key, value, value)
	return err
}

func scanPages(rows *sql.Rows) ([]model.Page, error) {
	var pages []model.Page
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.Path, &p.Status, &p.ContentType, &p.Body, &p.GeneratedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
