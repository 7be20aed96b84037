package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"skydrive/internal/config"
	"skydrive/internal/domain"
	"skydrive/internal/domain/models"
	"skydrive/internal/domain/repositories"
	"skydrive/internal/domain/services"
	"skydrive/internal/quota"
)

var entryNameFormat = regexp.MustCompile(`^[^/]+$`)

// entryService implements the EntryService interface
type entryService struct {
	entryRepo repositories.EntryRepository
	binRepo   repositories.BinRepository
	txManager repositories.TransactionManager
	quota     quota.Service
	logger    *slog.Logger
}

// NewEntryService creates a new entry service
func NewEntryService(
	entryRepo repositories.EntryRepository,
	binRepo repositories.BinRepository,
	txManager repositories.TransactionManager,
	quotaService quota.Service,
	logger *slog.Logger,
) services.EntryService {
	return &entryService{
		entryRepo: entryRepo,
		binRepo:   binRepo,
		txManager: txManager,
		quota:     quotaService,
		logger:    logger,
	}
}

// GetEntry returns the entry annotated for the viewer
func (s *entryService) GetEntry(ctx context.Context, id, viewerID int64) (*models.Entry, error) {
	entry, err := s.entryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	entry.Annotate(viewerID)
	return entry, nil
}

// GetEntries returns the direct children of a parent. Access to the parent
// is the caller's precondition.
func (s *entryService) GetEntries(ctx context.Context, parentID, viewerID int64) ([]models.Entry, error) {
	return s.listChildren(ctx, parentID, viewerID, models.FilterAll)
}

// GetFiles returns the direct file children of a parent
func (s *entryService) GetFiles(ctx context.Context, parentID, viewerID int64) ([]models.Entry, error) {
	return s.listChildren(ctx, parentID, viewerID, models.FilterFiles)
}

// GetFolders returns the direct directory children of a parent
func (s *entryService) GetFolders(ctx context.Context, parentID, viewerID int64) ([]models.Entry, error) {
	return s.listChildren(ctx, parentID, viewerID, models.FilterFolders)
}

func (s *entryService) listChildren(ctx context.Context, parentID, viewerID int64, filter models.TypeFilter) ([]models.Entry, error) {
	entries, err := s.entryRepo.ListChildren(ctx, parentID, filter)
	if err != nil {
		return nil, err
	}
	annotateAll(entries, viewerID)
	return entries, nil
}

// GetEntriesRecursively returns every entry beneath a directory
func (s *entryService) GetEntriesRecursively(ctx context.Context, parentID, viewerID int64) ([]models.Entry, error) {
	entries, err := s.entryRepo.ListDescendants(ctx, parentID)
	if err != nil {
		return nil, err
	}
	annotateAll(entries, viewerID)
	return entries, nil
}

// GetFoldersRecursively returns the full directory subtree beneath a parent
func (s *entryService) GetFoldersRecursively(ctx context.Context, parentID int64) ([]models.Entry, error) {
	return s.entryRepo.ListFoldersRecursively(ctx, parentID)
}

// GetSharedFolders returns every directory shared with the user
func (s *entryService) GetSharedFolders(ctx context.Context, userID int64) ([]models.Entry, error) {
	entries, err := s.entryRepo.ListSharedFolders(ctx, userID)
	if err != nil {
		return nil, err
	}
	annotateAll(entries, userID)
	return entries, nil
}

// GetSharedFoldersWithOwners returns shared directories with owner usernames
func (s *entryService) GetSharedFoldersWithOwners(ctx context.Context, userID int64) ([]models.Entry, error) {
	entries, err := s.entryRepo.ListSharedFoldersWithOwners(ctx, userID)
	if err != nil {
		return nil, err
	}
	annotateAll(entries, userID)
	return entries, nil
}

// GetSharerUsernames returns the usernames of owners sharing with the user
func (s *entryService) GetSharerUsernames(ctx context.Context, userID int64) ([]string, error) {
	return s.entryRepo.ListSharerUsernames(ctx, userID)
}

// GetUserSharedRoots returns the roots of what ownerUsername shares with the user
func (s *entryService) GetUserSharedRoots(ctx context.Context, userID int64, ownerUsername string) ([]models.Entry, error) {
	entries, err := s.entryRepo.ListUserSharedRoots(ctx, userID, ownerUsername)
	if err != nil {
		return nil, err
	}
	annotateAll(entries, userID)
	return entries, nil
}

// CreateFolder creates a directory under parentID, inheriting the parent's
// share policy
func (s *entryService) CreateFolder(ctx context.Context, parentID, ownerID int64, name string) (int64, error) {
	if err := validateEntryName(name); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	parent, err := s.entryRepo.GetByID(ctx, parentID)
	if err != nil {
		return 0, fmt.Errorf("load parent folder: %w", err)
	}

	collides, err := s.NamesCollide(ctx, parentID, true, []string{name})
	if err != nil {
		return 0, err
	}
	if collides {
		return 0, &domain.NameCollisionError{Name: name, ParentID: parentID, IsDirectory: true}
	}

	folder := &models.Entry{
		OwnerID:     ownerID,
		ParentID:    &parentID,
		ShareID:     parent.ShareID,
		IsDirectory: true,
		Size:        0,
		Name:        name,
	}

	if err := s.entryRepo.Create(ctx, folder); err != nil {
		return 0, err
	}

	s.logger.Info("folder created",
		"id", folder.ID,
		"name", folder.Name,
		"parent_id", parentID,
		"owner_id", ownerID,
	)

	return folder.ID, nil
}

// RenameEntry renames a single entry
func (s *entryService) RenameEntry(ctx context.Context, id int64, newName string) error {
	if err := validateEntryName(newName); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return s.entryRepo.Rename(ctx, id, newName)
}

// MoveEntries atomically moves a batch of entries to a new parent
func (s *entryService) MoveEntries(ctx context.Context, batch []models.MoveEntry, newParentID int64, resetShare bool) error {
	if len(batch) == 0 {
		return nil
	}

	return s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		// Serialize against concurrent re-shares of every subtree the move
		// touches: the destination and each source parent. Ascending order
		// so overlapping moves cannot deadlock on each other.
		for _, id := range moveLockOrder(batch, newParentID) {
			if err := s.entryRepo.LockSubtree(ctx, id); err != nil {
				return err
			}
		}
		return s.entryRepo.Move(ctx, batch, newParentID, resetShare)
	})
}

// moveLockOrder returns the distinct subtree roots a move must lock, sorted
// ascending.
func moveLockOrder(batch []models.MoveEntry, newParentID int64) []int64 {
	seen := map[int64]bool{newParentID: true}
	ids := []int64{newParentID}
	for _, m := range batch {
		if !seen[m.ParentID] {
			seen[m.ParentID] = true
			ids = append(ids, m.ParentID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ChangeOwnerRecursively reassigns every root and its descendants to the new
// owner, then settles quota for both sides. The ownership update commits as
// one transaction; the two quota adjustments follow as one logical unit and
// a half-applied pair is logged as a detected inconsistency rather than
// unwinding the committed transfer.
func (s *entryService) ChangeOwnerRecursively(ctx context.Context, roots []models.Entry, newOwnerID, prevOwnerID int64) error {
	if len(roots) == 0 {
		return nil
	}

	rootIDs := make([]int64, len(roots))
	for i, e := range roots {
		rootIDs[i] = e.ID
	}

	var total int64
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		total, err = s.entryRepo.ChangeOwnerRecursively(ctx, rootIDs, newOwnerID)
		return err
	})
	if err != nil {
		return err
	}

	decErr := s.quota.DecreaseUsedSpace(ctx, prevOwnerID, total)
	incErr := s.quota.IncreaseUsedSpace(ctx, newOwnerID, total)
	if (decErr == nil) != (incErr == nil) {
		s.logger.Error("quota inconsistency detected after owner change",
			"prev_owner_id", prevOwnerID,
			"new_owner_id", newOwnerID,
			"bytes", total,
			"decrease_error", decErr,
			"increase_error", incErr,
		)
	}

	s.logger.Info("ownership transferred",
		"roots", len(rootIDs),
		"prev_owner_id", prevOwnerID,
		"new_owner_id", newOwnerID,
		"bytes", total,
	)

	return nil
}

// IsInBin reports whether the entry carries a bin marker
func (s *entryService) IsInBin(ctx context.Context, id int64) (bool, error) {
	return s.binRepo.Contains(ctx, id)
}

// NamesCollide reports whether any of names is taken by a sibling of the
// given type
func (s *entryService) NamesCollide(ctx context.Context, parentID int64, isDirectory bool, names []string) (bool, error) {
	if len(names) == 0 {
		return false, nil
	}
	count, err := s.entryRepo.CountByNames(ctx, parentID, isDirectory, names)
	if err != nil {
		return false, err
	}
	return count != 0, nil
}

func annotateAll(entries []models.Entry, viewerID int64) {
	for i := range entries {
		entries[i].Annotate(viewerID)
	}
}

func validateEntryName(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.Length(1, config.MaxEntryNameLength),
		validation.Match(entryNameFormat).Error("name cannot contain slashes"),
	)
}
