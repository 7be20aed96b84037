package repositories

import (
	"context"
	"time"

	"skydrive/internal/domain/models"
)

// BinRepository persists soft-delete markers. An entry is "in bin" iff a
// marker with the same id exists; the entry row itself stays in the tree
// until purge.
type BinRepository interface {
	// Add inserts the marker. Re-binning an entry already in the bin
	// surfaces as domain.ErrConflict.
	Add(ctx context.Context, bin *models.BinEntry) error

	// Get returns the marker or domain.ErrNotFound.
	Get(ctx context.Context, id int64) (*models.BinEntry, error)

	// Contains reports whether a marker exists for the id.
	Contains(ctx context.Context, id int64) (bool, error)

	// Remove deletes the markers for the given ids, if present.
	Remove(ctx context.Context, ids []int64) error

	// ListExpired returns the entries whose marker was put before cutoff,
	// joined to their entry rows.
	ListExpired(ctx context.Context, cutoff time.Time) ([]models.Entry, error)
}
