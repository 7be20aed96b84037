package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"skydrive/internal/domain"
	"skydrive/internal/domain/models"
	"skydrive/internal/domain/repositories"
)

// PostgresShareRepository implements the ShareRepository interface
type PostgresShareRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewShareRepository creates a new share repository
func NewShareRepository(config *RepositoryConfig) repositories.ShareRepository {
	return &PostgresShareRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// GetByID retrieves a share policy by ID
func (r *PostgresShareRepository) GetByID(ctx context.Context, id int64) (*models.SharePolicy, error) {
	query := fmt.Sprintf(`
		SELECT id, can_read_users, can_edit_users FROM %s WHERE id = $1
	`, r.tables.Shares)

	var policy models.SharePolicy
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&policy.ID,
		&policy.CanReadUsers,
		&policy.CanEditUsers,
	)

	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("share policy %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get share policy: %w", err)
	}

	return &policy, nil
}

// GetByEntry resolves an entry's share_id to its policy
func (r *PostgresShareRepository) GetByEntry(ctx context.Context, entryID int64) (*models.SharePolicy, error) {
	query := fmt.Sprintf(`
		SELECT s.id, s.can_read_users, s.can_edit_users
		FROM %s f
		INNER JOIN %s s ON f.share_id = s.id
		WHERE f.id = $1
	`, r.tables.Entries, r.tables.Shares)

	var policy models.SharePolicy
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, entryID).Scan(
		&policy.ID,
		&policy.CanReadUsers,
		&policy.CanEditUsers,
	)

	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("share policy for entry %d: %w", entryID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get share policy by entry: %w", err)
	}

	return &policy, nil
}

// Create inserts a share policy and fills its ID
func (r *PostgresShareRepository) Create(ctx context.Context, policy *models.SharePolicy) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (can_read_users, can_edit_users)
		VALUES ($1, $2)
		RETURNING id
	`, r.tables.Shares)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		policy.CanReadUsers,
		policy.CanEditUsers,
	).Scan(&policy.ID)

	if err != nil {
		return fmt.Errorf("create share policy: %w", err)
	}

	return nil
}

// Update replaces the read and edit sets of an existing policy
func (r *PostgresShareRepository) Update(ctx context.Context, policy *models.SharePolicy) error {
	query := fmt.Sprintf(`
		UPDATE %s SET can_read_users = $1, can_edit_users = $2 WHERE id = $3
	`, r.tables.Shares)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		policy.CanReadUsers,
		policy.CanEditUsers,
		policy.ID,
	)

	if err != nil {
		return fmt.Errorf("update share policy: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("share policy %d: %w", policy.ID, domain.ErrNotFound)
	}

	return nil
}

// SetShareID points a single entry at a policy (nil clears it)
func (r *PostgresShareRepository) SetShareID(ctx context.Context, entryID int64, shareID *int64) error {
	query := fmt.Sprintf(`UPDATE %s SET share_id = $1 WHERE id = $2`, r.tables.Entries)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, shareID, entryID)
	if err != nil {
		return fmt.Errorf("set share id: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("entry %d: %w", entryID, domain.ErrNotFound)
	}

	return nil
}

// Propagate assigns newShareID to the entry and to every descendant whose
// current share_id equals prevShareID. The recursion stops at descendants
// carrying their own independent share, so nested overrides are preserved.
func (r *PostgresShareRepository) Propagate(ctx context.Context, entryID int64, prevShareID *int64, newShareID int64) error {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT f.id FROM %s f WHERE f.id = $1
			UNION
			SELECT f.id FROM %s f
			INNER JOIN subtree d ON f.parent_id = d.id
			WHERE f.share_id IS NOT DISTINCT FROM $2
		)
		UPDATE %s e SET share_id = $3
		FROM subtree d WHERE e.id = d.id
	`, r.tables.Entries, r.tables.Entries, r.tables.Entries)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query, entryID, prevShareID, newShareID)
	if err != nil {
		return fmt.Errorf("propagate share: %w", err)
	}

	return nil
}

// DeleteOrphaned removes every policy with zero referencing entries.
// Single aggregate anti-join pass; called from the bin expiry sweep.
func (r *PostgresShareRepository) DeleteOrphaned(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s s
		WHERE NOT EXISTS (
			SELECT 1 FROM %s f WHERE f.share_id = s.id
		)
	`, r.tables.Shares, r.tables.Entries)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete orphaned share policies: %w", err)
	}

	return result.RowsAffected(), nil
}
