package repositories

import (
	"context"

	"skydrive/internal/domain/models"
)

// ShareRepository persists share policies and their assignment to entries.
type ShareRepository interface {
	// GetByID returns the policy or domain.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.SharePolicy, error)

	// GetByEntry resolves the entry's share_id to its policy, or
	// domain.ErrNotFound when the entry has none.
	GetByEntry(ctx context.Context, entryID int64) (*models.SharePolicy, error)

	// Create inserts the policy and fills its ID.
	Create(ctx context.Context, policy *models.SharePolicy) error

	// Update replaces the read and edit sets of an existing policy. This
	// changes access for every entry referencing the policy.
	Update(ctx context.Context, policy *models.SharePolicy) error

	// SetShareID points a single entry at a policy (nil clears it).
	SetShareID(ctx context.Context, entryID int64, shareID *int64) error

	// Propagate assigns newShareID to the entry and to every descendant
	// whose current share_id equals prevShareID, in one recursive update.
	// Descendants carrying their own independent share - and their
	// subtrees - are left untouched.
	Propagate(ctx context.Context, entryID int64, prevShareID *int64, newShareID int64) error

	// DeleteOrphaned removes every policy with zero referencing entries in
	// a single aggregate pass and returns the number removed.
	DeleteOrphaned(ctx context.Context) (int64, error)
}
