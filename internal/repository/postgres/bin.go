package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"skydrive/internal/domain"
	"skydrive/internal/domain/models"
	"skydrive/internal/domain/repositories"
)

// PostgresBinRepository implements the BinRepository interface
type PostgresBinRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewBinRepository creates a new bin repository
func NewBinRepository(config *RepositoryConfig) repositories.BinRepository {
	return &PostgresBinRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Add inserts a soft-delete marker
func (r *PostgresBinRepository) Add(ctx context.Context, bin *models.BinEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, prev_parent_id, prev_share_id, put_at)
		VALUES ($1, $2, $3, $4)
	`, r.tables.Bin)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		bin.ID,
		bin.PrevParentID,
		bin.PrevShareID,
		bin.PutAt,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("entry %d is already in the bin: %w", bin.ID, domain.ErrConflict)
		}
		if isPgForeignKeyError(err) {
			return fmt.Errorf("entry %d: %w", bin.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("add bin entry: %w", err)
	}

	return nil
}

// Get retrieves a bin marker by entry id
func (r *PostgresBinRepository) Get(ctx context.Context, id int64) (*models.BinEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, prev_parent_id, prev_share_id, put_at FROM %s WHERE id = $1
	`, r.tables.Bin)

	var bin models.BinEntry
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&bin.ID,
		&bin.PrevParentID,
		&bin.PrevShareID,
		&bin.PutAt,
	)

	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("bin entry %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get bin entry: %w", err)
	}

	return &bin, nil
}

// Contains reports whether a marker exists for the id
func (r *PostgresBinRepository) Contains(ctx context.Context, id int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, r.tables.Bin)

	var exists bool
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check bin membership: %w", err)
	}

	return exists, nil
}

// Remove deletes the markers for the given ids
func (r *PostgresBinRepository) Remove(ctx context.Context, ids []int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, r.tables.Bin)

	_, err := GetExecutor(ctx, r.pool).Exec(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("remove bin entries: %w", err)
	}

	return nil
}

// ListExpired returns the entries whose marker was put before cutoff,
// joined to their entry rows. The cutoff is computed by the caller so any
// sweep time can be exercised.
func (r *PostgresBinRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]models.Entry, error) {
	query := fmt.Sprintf(`
		SELECT f.id, f.owner_id, f.parent_id, f.share_id, f.is_directory, f.size, f.name
		FROM %s b
		INNER JOIN %s f ON b.id = f.id
		WHERE b.put_at < $1
	`, r.tables.Bin, r.tables.Entries)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired bin entries: %w", err)
	}
	defer rows.Close()

	return scanPlainEntries(rows)
}
