// Package database provides storage backends for generated pages.
package database

import (
	"errors"

	"github.com/bryan-buckman/spacetraveling/internal/model"
)

// ErrNotFound is returned when no page is stored under a path.
var ErrNotFound = errors.New("page not found")

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// SupportsHighConcurrency returns true if the database can handle
	// many concurrent write operations (e.g., PostgreSQL).
	// SQLite returns false due to write locking limitations.
	SupportsHighConcurrency() bool

	// Page operations
	GetPage(path string) (*model.Page, error)
	SavePage(page *model.Page) error
	ListPages() ([]model.Page, error)
	// ReplacePages swaps every stored page for pages in one transaction.
	ReplacePages(pages []*model.Page) error

	// Settings operations
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}
