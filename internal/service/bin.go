package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"skydrive/internal/domain/models"
	"skydrive/internal/domain/repositories"
	"skydrive/internal/domain/services"
	"skydrive/internal/quota"
)

// binService implements the BinService interface
type binService struct {
	entryRepo repositories.EntryRepository
	binRepo   repositories.BinRepository
	shareRepo repositories.ShareRepository
	txManager repositories.TransactionManager
	quota     quota.Service
	retention time.Duration
	logger    *slog.Logger

	now func() time.Time
}

// NewBinService creates a new bin service. Entries added to the bin are
// retained for the given duration before the expiry sweep purges them.
func NewBinService(
	entryRepo repositories.EntryRepository,
	binRepo repositories.BinRepository,
	shareRepo repositories.ShareRepository,
	txManager repositories.TransactionManager,
	quotaService quota.Service,
	retention time.Duration,
	logger *slog.Logger,
) services.BinService {
	return &binService{
		entryRepo: entryRepo,
		binRepo:   binRepo,
		shareRepo: shareRepo,
		txManager: txManager,
		quota:     quotaService,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// AddEntryToBin marks the entry soft-deleted, capturing its pre-deletion
// location for a later restore
func (s *binService) AddEntryToBin(ctx context.Context, entryID, parentID int64, shareID *int64) error {
	marker := &models.BinEntry{
		ID:           entryID,
		PrevParentID: parentID,
		PrevShareID:  shareID,
		PutAt:        s.now(),
	}
	if err := s.binRepo.Add(ctx, marker); err != nil {
		return err
	}

	s.logger.Info("entry moved to bin",
		"entry_id", entryID,
		"prev_parent_id", parentID,
	)
	return nil
}

// RemoveEntriesFromBin clears the markers for the given ids
func (s *binService) RemoveEntriesFromBin(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.binRepo.Remove(ctx, ids)
}

// GetBinEntry returns the marker for an entry
func (s *binService) GetBinEntry(ctx context.Context, id int64) (*models.BinEntry, error) {
	return s.binRepo.Get(ctx, id)
}

// DeleteExpiredEntries purges every bin entry whose grace period has lapsed.
// Markers, entry rows and orphaned share policies go in one transaction; the
// per-owner quota decreases follow after commit, so a crash in between leaves
// quota over-counted rather than the tree inconsistent.
func (s *binService) DeleteExpiredEntries(ctx context.Context) (*services.SweepResult, error) {
	runID := uuid.NewString()
	cutoff := s.now().Add(-s.retention)

	expired, err := s.binRepo.ListExpired(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &services.SweepResult{BytesReclaimed: make(map[int64]int64)}
	if len(expired) == 0 {
		return result, nil
	}

	ids := make([]int64, len(expired))
	for i, e := range expired {
		ids[i] = e.ID
		result.BytesReclaimed[e.OwnerID] += e.Size
	}
	result.EntriesDeleted = len(ids)

	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.binRepo.Remove(ctx, ids); err != nil {
			return err
		}
		if err := s.entryRepo.Delete(ctx, ids); err != nil {
			return err
		}
		policies, err := s.shareRepo.DeleteOrphaned(ctx)
		if err != nil {
			return err
		}
		result.PoliciesDeleted = policies
		return nil
	})
	if err != nil {
		s.logger.Error("expiry sweep rolled back",
			"run_id", runID,
			"cutoff", cutoff,
			"error", err,
		)
		return nil, err
	}

	for ownerID, bytes := range result.BytesReclaimed {
		if err := s.quota.DecreaseUsedSpace(ctx, ownerID, bytes); err != nil {
			s.logger.Error("quota reclaim failed after sweep",
				"run_id", runID,
				"owner_id", ownerID,
				"bytes", bytes,
				"error", err,
			)
		}
	}

	s.logger.Info("expiry sweep completed",
		"run_id", runID,
		"entries_deleted", result.EntriesDeleted,
		"policies_deleted", result.PoliciesDeleted,
		"owners", len(result.BytesReclaimed),
	)

	return result, nil
}

// FullyDeleteEntries permanently purges exactly the given ids, bypassing the
// grace period. Descendants and quota are the caller's responsibility.
func (s *binService) FullyDeleteEntries(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	return s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.binRepo.Remove(ctx, ids); err != nil {
			return err
		}
		return s.entryRepo.Delete(ctx, ids)
	})
}
