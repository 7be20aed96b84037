package service

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"skydrive/internal/config"
	"skydrive/internal/domain"
	"skydrive/internal/domain/models"
	"skydrive/internal/domain/repositories"
	"skydrive/internal/domain/services"
	"skydrive/internal/quota"
)

// uploadService implements the UploadService interface
type uploadService struct {
	entryRepo repositories.EntryRepository
	access    services.ShareService
	quota     quota.Service
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewUploadService creates a new upload service
func NewUploadService(
	entryRepo repositories.EntryRepository,
	access services.ShareService,
	quotaService quota.Service,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) services.UploadService {
	return &uploadService{
		entryRepo: entryRepo,
		access:    access,
		quota:     quotaService,
		txManager: txManager,
		logger:    logger,
	}
}

// CanUpload checks every batch precondition before any mutation: edit access
// on the destination, available quota, and top-level name collisions
// (files and directories checked separately).
func (s *uploadService) CanUpload(ctx context.Context, ownerID, parentID int64, topLevel []services.UploadEntry, totalSize int64, allowFolders bool) error {
	level, err := s.access.HasAccess(ctx, ownerID, parentID)
	if err != nil {
		return err
	}
	if level != models.AccessEdit {
		return fmt.Errorf("destination %d: %w", parentID, domain.ErrAccessDenied)
	}

	free, err := s.quota.GetFreeSpace(ctx, ownerID)
	if err != nil {
		return err
	}
	if totalSize > free {
		return fmt.Errorf("need %d bytes, %d free: %w", totalSize, free, domain.ErrQuotaExceeded)
	}

	var fileNames, folderNames []string
	for _, e := range topLevel {
		if allowFolders && e.IsDirectory {
			folderNames = append(folderNames, e.FinalName())
		} else {
			fileNames = append(fileNames, e.FinalName())
		}
	}

	if collides, err := s.namesCollide(ctx, parentID, false, fileNames); err != nil {
		return err
	} else if collides {
		return fmt.Errorf("top-level files: %w", domain.ErrNameCollision)
	}

	if allowFolders {
		if collides, err := s.namesCollide(ctx, parentID, true, folderNames); err != nil {
			return err
		} else if collides {
			return fmt.Errorf("top-level folders: %w", domain.ErrNameCollision)
		}
	}

	return nil
}

// UploadFiles ingests a flat list of files directly under parentID as one
// atomic transaction. The returned map is keyed by final name.
func (s *uploadService) UploadFiles(ctx context.Context, entries []services.UploadEntry, ownerID, parentID int64) (map[string]services.EntryLocation, error) {
	if err := validateBatch(entries, false); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	parent, err := s.entryRepo.GetByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("load destination: %w", err)
	}

	batchID := uuid.NewString()
	totalSize := batchSize(entries)
	s.reserveQuota(ctx, batchID, ownerID, totalSize)

	result := make(map[string]services.EntryLocation, len(entries))
	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		for _, in := range entries {
			entry := &models.Entry{
				OwnerID:     ownerID,
				ParentID:    &parentID,
				ShareID:     parent.ShareID,
				IsDirectory: false,
				Size:        in.Size,
				Name:        in.FinalName(),
			}
			if err := s.entryRepo.Create(ctx, entry); err != nil {
				return fmt.Errorf("insert %q: %w", in.FinalName(), err)
			}
			result[in.FinalName()] = services.EntryLocation{ID: entry.ID, ParentID: parentID}
		}
		return nil
	})
	if err != nil {
		s.compensateQuota(ctx, batchID, ownerID, totalSize)
		s.logger.Error("file upload rolled back",
			"batch_id", batchID,
			"parent_id", parentID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("files uploaded",
		"batch_id", batchID,
		"count", len(entries),
		"bytes", totalSize,
		"parent_id", parentID,
	)

	return result, nil
}

// UploadFilesAndFolders ingests files and folders carrying relative paths.
// Entries are processed strictly in input order: each entry's parent is
// resolved through the path map, seeded with "" mapped to the destination
// and extended as folders are inserted. The whole batch is one atomic
// transaction; the returned map is keyed by "path/name" using original
// names ("name" alone at top level).
func (s *uploadService) UploadFilesAndFolders(ctx context.Context, entries []services.UploadEntry, ownerID, parentID int64) (map[string]services.EntryLocation, error) {
	if err := validateBatch(entries, true); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := validatePathOrder(entries); err != nil {
		return nil, err
	}

	parent, err := s.entryRepo.GetByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("load destination: %w", err)
	}

	batchID := uuid.NewString()
	totalSize := batchSize(entries)
	s.reserveQuota(ctx, batchID, ownerID, totalSize)

	pathToID := make(map[string]services.EntryLocation, len(entries)+1)
	pathToID[""] = services.EntryLocation{ID: parentID, ParentID: parentID}

	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		for _, in := range entries {
			loc := pathToID[in.Path]
			entry := &models.Entry{
				OwnerID:     ownerID,
				ParentID:    &loc.ID,
				ShareID:     parent.ShareID,
				IsDirectory: in.IsDirectory,
				Size:        in.Size,
				Name:        in.FinalName(),
			}
			if err := s.entryRepo.Create(ctx, entry); err != nil {
				return fmt.Errorf("insert %q under %q: %w", in.FinalName(), in.Path, err)
			}
			pathToID[joinPath(in.Path, in.Name)] = services.EntryLocation{ID: entry.ID, ParentID: loc.ID}
		}
		return nil
	})
	if err != nil {
		s.compensateQuota(ctx, batchID, ownerID, totalSize)
		s.logger.Error("batch upload rolled back",
			"batch_id", batchID,
			"parent_id", parentID,
			"error", err,
		)
		return nil, err
	}

	delete(pathToID, "")

	s.logger.Info("files and folders uploaded",
		"batch_id", batchID,
		"count", len(entries),
		"bytes", totalSize,
		"parent_id", parentID,
	)

	return pathToID, nil
}

// reserveQuota optimistically increases used space before the batch
// transaction is attempted.
func (s *uploadService) reserveQuota(ctx context.Context, batchID string, ownerID, bytes int64) {
	if bytes == 0 {
		return
	}
	if err := s.quota.IncreaseUsedSpace(ctx, ownerID, bytes); err != nil {
		s.logger.Warn("quota reservation failed",
			"batch_id", batchID,
			"owner_id", ownerID,
			"bytes", bytes,
			"error", err,
		)
	}
}

// compensateQuota undoes the optimistic reservation after a rolled-back
// batch. A failure here is a detected inconsistency.
func (s *uploadService) compensateQuota(ctx context.Context, batchID string, ownerID, bytes int64) {
	if bytes == 0 {
		return
	}
	if err := s.quota.DecreaseUsedSpace(ctx, ownerID, bytes); err != nil {
		s.logger.Error("quota inconsistency detected after rollback",
			"batch_id", batchID,
			"owner_id", ownerID,
			"bytes", bytes,
			"error", err,
		)
	}
}

func (s *uploadService) namesCollide(ctx context.Context, parentID int64, isDirectory bool, names []string) (bool, error) {
	if len(names) == 0 {
		return false, nil
	}
	count, err := s.entryRepo.CountByNames(ctx, parentID, isDirectory, names)
	if err != nil {
		return false, err
	}
	return count != 0, nil
}

// validateBatch checks the shape of every entry of a batch
func validateBatch(entries []services.UploadEntry, allowFolders bool) error {
	if len(entries) == 0 {
		return fmt.Errorf("batch is empty")
	}
	if len(entries) > config.MaxUploadBatchEntries {
		return fmt.Errorf("batch exceeds %d entries", config.MaxUploadBatchEntries)
	}

	for i := range entries {
		e := &entries[i]
		err := validation.Errors{
			"name":     validateEntryName(e.Name),
			"new_name": validateOptionalName(e.NewName),
			"size":     validation.Validate(e.Size, validation.Min(int64(0))),
		}.Filter()
		if err != nil {
			return fmt.Errorf("entry %d: %v", i, err)
		}
		if e.IsDirectory {
			if !allowFolders {
				return fmt.Errorf("entry %d: directories are not allowed in a files-only batch", i)
			}
			if e.Size != 0 {
				return fmt.Errorf("entry %d: directory size must be 0", i)
			}
		}
	}

	return nil
}

// validatePathOrder enforces the parent-before-child contract: every
// referenced path must have been produced by an earlier directory entry of
// the same batch. Rejecting up front avoids the silent corruption a trusted
// ordering would allow.
func validatePathOrder(entries []services.UploadEntry) error {
	known := map[string]struct{}{"": {}}
	for i, e := range entries {
		if _, ok := known[e.Path]; !ok {
			return fmt.Errorf("entry %d (%q) references path %q before any folder creates it: %w",
				i, e.Name, e.Path, domain.ErrValidation)
		}
		if e.IsDirectory {
			known[joinPath(e.Path, e.Name)] = struct{}{}
		}
	}
	return nil
}

func validateOptionalName(name string) error {
	if name == "" {
		return nil
	}
	return validateEntryName(name)
}

func batchSize(entries []services.UploadEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "/" + name
}
