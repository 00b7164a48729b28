package storage

import (
	"context"
	"errors"
	"strconv"
)

// ErrInvalidID is returned by ParseID for ids that are not integers.
var ErrInvalidID = errors.New("storage: invalid id")

// SavedSearch is one related term a user chose to keep.
type SavedSearch struct {
	ID          int64
	Keyword     string
	ResultCount *int64
	NicheScore  *int64
}

// Backend persists saved searches. Saving the same search twice stores two
// rows. Deleting a missing id affects zero rows and is not an error.
type Backend interface {
	// Save inserts s, sets s.ID, and returns the new id.
	Save(ctx context.Context, s *SavedSearch) (int64, error)
	// List returns every saved search by ascending niche score, rows without
	// a score last, ties broken by id.
	List(ctx context.Context) ([]SavedSearch, error)
	// Delete removes the row with id and reports how many rows went away.
	Delete(ctx context.Context, id int64) (int64, error)
	Close() error
}

// ParseID parses a path id. Ids that match no row are still valid; deleting
// them affects zero rows.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidID
	}
	return id, nil
}
