package services

import (
	"context"

	"skydrive/internal/domain/models"
)

// ShareService is the share policy engine and access resolver.
type ShareService interface {
	// ShareEntries attaches the policy to the subtree rooted at entryID.
	//
	// When the entry already carries its own independent share (one that
	// differs from its parent's), the existing policy is mutated in place,
	// changing access for the whole subtree referencing it. Otherwise a
	// new policy is created and propagated to the entry and every
	// descendant still carrying the entry's prior share_id; descendants
	// with their own independent share keep their policies.
	ShareEntries(ctx context.Context, entryID int64, policy models.SharePolicyInput) error

	// GetSharePolicy resolves the entry's policy, or domain.ErrNotFound.
	GetSharePolicy(ctx context.Context, entryID int64) (*models.SharePolicy, error)

	// HasAccess computes the effective permission of (user, entry).
	// Not-found entries resolve to AccessNone rather than an error so
	// existence never leaks to unauthorized callers. Ownership always
	// implies edit, independent of any share policy; otherwise the
	// entry's own stored share_id decides, with no ancestor walk.
	HasAccess(ctx context.Context, userID, entryID int64) (models.AccessLevel, error)
}
