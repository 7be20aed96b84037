package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"skydrive/internal/domain"
	"skydrive/internal/domain/models"
	"skydrive/internal/domain/repositories"
	"skydrive/internal/domain/services"
)

// shareService implements the ShareService interface
type shareService struct {
	entryRepo repositories.EntryRepository
	shareRepo repositories.ShareRepository
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewShareService creates a new share service
func NewShareService(
	entryRepo repositories.EntryRepository,
	shareRepo repositories.ShareRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) services.ShareService {
	return &shareService{
		entryRepo: entryRepo,
		shareRepo: shareRepo,
		txManager: txManager,
		logger:    logger,
	}
}

// HasAccess computes the effective permission of (user, entry).
// Ownership always implies edit. Otherwise the entry's own stored share_id
// decides - share ids are propagated eagerly at share time, so no ancestor
// walk happens here.
func (s *shareService) HasAccess(ctx context.Context, userID, entryID int64) (models.AccessLevel, error) {
	entry, err := s.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Not-found resolves to no-access so existence never leaks.
			return models.AccessNone, nil
		}
		return models.AccessNone, err
	}

	if entry.OwnerID == userID {
		return models.AccessEdit, nil
	}

	if entry.ShareID == nil {
		return models.AccessNone, nil
	}

	policy, err := s.shareRepo.GetByID(ctx, *entry.ShareID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return models.AccessNone, nil
		}
		return models.AccessNone, err
	}

	switch {
	case policy.CanEdit(userID):
		return models.AccessEdit, nil
	case policy.CanRead(userID):
		return models.AccessRead, nil
	default:
		return models.AccessNone, nil
	}
}

// GetSharePolicy resolves the entry's share policy
func (s *shareService) GetSharePolicy(ctx context.Context, entryID int64) (*models.SharePolicy, error) {
	return s.shareRepo.GetByEntry(ctx, entryID)
}

// ShareEntries attaches a policy to the subtree rooted at entryID.
//
// An entry whose share_id differs from its parent's carries an independent
// share: its existing policy is updated in place, which changes access for
// every entry referencing that policy. Otherwise a new policy is created and
// propagated down the subtree, stopping at descendants that already carry
// their own independent share.
func (s *shareService) ShareEntries(ctx context.Context, entryID int64, policy models.SharePolicyInput) error {
	if err := validatePolicyInput(&policy); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	// Edit access always implies read access.
	normalized := policy.Normalized()

	entry, err := s.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		return err
	}

	var parentShareID *int64
	if entry.ParentID != nil {
		parent, err := s.entryRepo.GetByID(ctx, *entry.ParentID)
		if err != nil {
			return fmt.Errorf("load parent of entry %d: %w", entryID, err)
		}
		parentShareID = parent.ShareID
	}

	return s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		// Serialize against concurrent moves and re-shares of this subtree.
		if err := s.entryRepo.LockSubtree(ctx, entryID); err != nil {
			return err
		}

		if entry.ShareID != nil && !shareIDsEqual(parentShareID, entry.ShareID) {
			updated := &models.SharePolicy{
				ID:           *entry.ShareID,
				CanReadUsers: normalized.CanReadUsers,
				CanEditUsers: normalized.CanEditUsers,
			}
			if err := s.shareRepo.Update(ctx, updated); err != nil {
				return err
			}

			s.logger.Info("share policy updated in place",
				"entry_id", entryID,
				"share_id", updated.ID,
				"read_users", len(updated.CanReadUsers),
				"edit_users", len(updated.CanEditUsers),
			)
			return nil
		}

		created := &models.SharePolicy{
			CanReadUsers: normalized.CanReadUsers,
			CanEditUsers: normalized.CanEditUsers,
		}
		if err := s.shareRepo.Create(ctx, created); err != nil {
			return err
		}

		if err := s.shareRepo.Propagate(ctx, entryID, entry.ShareID, created.ID); err != nil {
			return err
		}

		s.logger.Info("share policy created and propagated",
			"entry_id", entryID,
			"share_id", created.ID,
			"read_users", len(created.CanReadUsers),
			"edit_users", len(created.CanEditUsers),
		)
		return nil
	})
}

// validatePolicyInput rejects non-positive user ids. Required is needed
// alongside Min because threshold rules skip zero values.
func validatePolicyInput(in *models.SharePolicyInput) error {
	return validation.ValidateStruct(in,
		validation.Field(&in.CanReadUsers, validation.Each(validation.Required, validation.Min(int64(1)))),
		validation.Field(&in.CanEditUsers, validation.Each(validation.Required, validation.Min(int64(1)))),
	)
}

func shareIDsEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
