package services

import (
	"context"

	"skydrive/internal/domain/models"
)

// SweepResult summarizes one expiry sweep run.
type SweepResult struct {
	EntriesDeleted  int
	PoliciesDeleted int64
	BytesReclaimed  map[int64]int64 // per owner id
}

// BinService is the trash lifecycle manager. Entries in the bin are retained
// for a fixed grace period, then purged by the expiry sweep, which also
// reclaims quota and garbage-collects orphaned share policies.
type BinService interface {
	// AddEntryToBin marks the entry soft-deleted, capturing its current
	// parent and share so a restore can put it back. The entry row is
	// left untouched.
	AddEntryToBin(ctx context.Context, entryID, parentID int64, shareID *int64) error

	// RemoveEntriesFromBin clears bin membership. Restoring the captured
	// prev_parent_id/prev_share_id onto the entries is the caller's
	// responsibility.
	RemoveEntriesFromBin(ctx context.Context, ids []int64) error

	// GetBinEntry returns the marker for an entry, or domain.ErrNotFound.
	GetBinEntry(ctx context.Context, id int64) (*models.BinEntry, error)

	// DeleteExpiredEntries purges every bin entry older than the retention
	// period: markers and entry rows are deleted in one transaction, quota
	// is decreased once per owner, and orphaned share policies are
	// reclaimed. This is the sole garbage-collection point for policies.
	DeleteExpiredEntries(ctx context.Context) (*SweepResult, error)

	// FullyDeleteEntries permanently purges exactly the given ids,
	// bypassing the grace period. No recursive descendant purge and no
	// quota adjustment - both are the caller's responsibility.
	FullyDeleteEntries(ctx context.Context, ids []int64) error
}
