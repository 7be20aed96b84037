package services

import (
	"context"

	"skydrive/internal/domain/models"
)

// EntryService is the entry store: tree reads, folder creation, rename,
// batched moves and recursive ownership transfer.
//
// Listing operations assume the caller already confirmed access to the
// parent via AccessResolver.HasAccess; they never check access themselves.
type EntryService interface {
	// GetEntry returns the entry annotated for the viewer (CanEdit, bin
	// membership), or domain.ErrNotFound. viewerID 0 means anonymous.
	GetEntry(ctx context.Context, id, viewerID int64) (*models.Entry, error)

	// GetEntries, GetFiles and GetFolders return the direct children of a
	// parent, annotated for the viewer.
	GetEntries(ctx context.Context, parentID, viewerID int64) ([]models.Entry, error)
	GetFiles(ctx context.Context, parentID, viewerID int64) ([]models.Entry, error)
	GetFolders(ctx context.Context, parentID, viewerID int64) ([]models.Entry, error)

	// GetEntriesRecursively returns every entry beneath a directory.
	GetEntriesRecursively(ctx context.Context, parentID, viewerID int64) ([]models.Entry, error)

	// GetFoldersRecursively returns the full directory subtree.
	GetFoldersRecursively(ctx context.Context, parentID int64) ([]models.Entry, error)

	// Shared-with-me listings.
	GetSharedFolders(ctx context.Context, userID int64) ([]models.Entry, error)
	GetSharedFoldersWithOwners(ctx context.Context, userID int64) ([]models.Entry, error)
	GetSharerUsernames(ctx context.Context, userID int64) ([]string, error)
	GetUserSharedRoots(ctx context.Context, userID int64, ownerUsername string) ([]models.Entry, error)

	// CreateFolder creates a directory under parentID, inheriting the
	// parent's share policy. Fails with a NameCollisionError when a
	// sibling directory already has that name.
	CreateFolder(ctx context.Context, parentID, ownerID int64, name string) (int64, error)

	// RenameEntry renames a single entry.
	RenameEntry(ctx context.Context, id int64, newName string) error

	// MoveEntries atomically moves a batch of entries to a new parent.
	// resetShare clears share_id, used when moving out of a shared subtree.
	MoveEntries(ctx context.Context, batch []models.MoveEntry, newParentID int64, resetShare bool) error

	// ChangeOwnerRecursively reassigns every root and its descendants to
	// newOwnerID, then settles quota: decrease prevOwnerID and increase
	// newOwnerID by the total transferred size. The two adjustments are
	// one logical unit; a half-applied pair is logged as a detected
	// inconsistency.
	ChangeOwnerRecursively(ctx context.Context, roots []models.Entry, newOwnerID, prevOwnerID int64) error

	// IsInBin reports whether the entry carries a bin marker.
	IsInBin(ctx context.Context, id int64) (bool, error)

	// NamesCollide reports whether any of names is already taken by a
	// sibling of the given type under parentID.
	NamesCollide(ctx context.Context, parentID int64, isDirectory bool, names []string) (bool, error)
}
