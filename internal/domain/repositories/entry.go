package repositories

import (
	"context"

	"skydrive/internal/domain/models"
)

// EntryRepository persists file and folder rows of the drive tree.
//
// Read operations annotate returned entries with the edit set of the nearest
// share policy and with bin membership where noted; access checks are never
// performed here - they are a distinct precondition enforced by the service
// layer.
type EntryRepository interface {
	// GetByID returns the entry with share edit-set and bin annotations,
	// or domain.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.Entry, error)

	// ListChildren returns the direct children of parentID, optionally
	// restricted to files or folders only.
	ListChildren(ctx context.Context, parentID int64, filter models.TypeFilter) ([]models.Entry, error)

	// ListDescendants returns every entry beneath the directory rootID,
	// unbounded depth. Termination is guaranteed by the tree invariant.
	ListDescendants(ctx context.Context, rootID int64) ([]models.Entry, error)

	// ListFoldersRecursively returns the full directory subtree beneath parentID.
	ListFoldersRecursively(ctx context.Context, parentID int64) ([]models.Entry, error)

	// ListSharedFolders returns every directory whose share policy grants
	// the user read access.
	ListSharedFolders(ctx context.Context, userID int64) ([]models.Entry, error)

	// ListSharedFoldersWithOwners is ListSharedFolders with the owner's
	// username joined onto each row.
	ListSharedFoldersWithOwners(ctx context.Context, userID int64) ([]models.Entry, error)

	// ListSharerUsernames returns the usernames of owners who share at
	// least one directory with the user.
	ListSharerUsernames(ctx context.Context, userID int64) ([]string, error)

	// ListUserSharedRoots returns the entries shared with userID and owned
	// by ownerUsername whose parent lies outside the shared subtree, i.e.
	// the roots of what that owner shares.
	ListUserSharedRoots(ctx context.Context, userID int64, ownerUsername string) ([]models.Entry, error)

	// Create inserts the entry and fills its ID. A duplicate sibling name
	// of the same type surfaces as a NameCollisionError.
	Create(ctx context.Context, entry *models.Entry) error

	// Rename updates the entry's name.
	Rename(ctx context.Context, id int64, newName string) error

	// Move atomically re-parents and renames the batch. Rows are matched
	// by (current parent_id, id); resetShare additionally clears share_id,
	// used when moving out of a shared subtree.
	Move(ctx context.Context, batch []models.MoveEntry, newParentID int64, resetShare bool) error

	// ChangeOwnerRecursively reassigns owner_id for each root and all of
	// its descendants in one recursive update and returns the total size
	// in bytes of the rows it touched.
	ChangeOwnerRecursively(ctx context.Context, rootIDs []int64, newOwnerID int64) (int64, error)

	// CountByNames counts siblings under parentID of the given type whose
	// name is in names.
	CountByNames(ctx context.Context, parentID int64, isDirectory bool, names []string) (int64, error)

	// Delete removes exactly the given rows. No recursive descent.
	Delete(ctx context.Context, ids []int64) error

	// LockSubtree takes a transaction-scoped advisory lock on the subtree
	// root, serializing re-shares and moves that overlap it. Must be
	// called inside ExecTx.
	LockSubtree(ctx context.Context, rootID int64) error
}
