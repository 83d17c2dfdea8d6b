package storage

import (
	"errors"
	"fmt"

	"github.com/halo-intel/halo/internal/herr"
)

// wrapNotFound wraps pgx.ErrNoRows-derived lookups with herr.ErrNotFound so
// callers outside this package can use errors.Is regardless of which query
// failed.
func wrapNotFound(context string, id fmt.Stringer) error {
	return fmt.Errorf("storage: %s %s: %w", context, id, herr.ErrNotFound)
}

var errNoRows = errors.New("storage: no rows")
