package db

import (
	"strings"

	"github.com/teranos/lineage/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed database.
var ErrDatabaseClosed = errors.New("database is closed")

// ErrNoSnapshot marks a mirror with nothing stored for the requested
// database. It matches errors.ErrNotFound.
var ErrNoSnapshot = errors.Mark(errors.New("no mirrored snapshot"), errors.ErrNotFound)

// IsDatabaseClosed checks if an error indicates the database connection is closed.
// The driver returns its own error values, so raw messages are matched too.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
