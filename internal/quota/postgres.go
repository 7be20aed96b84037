package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"skydrive/internal/domain"
)

// PostgresService implements Service against a users table carrying
// used_space and total_space columns.
type PostgresService struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresService creates a quota service backed by the given users table.
func NewPostgresService(pool *pgxpool.Pool, table string) *PostgresService {
	return &PostgresService{pool: pool, table: table}
}

// IncreaseUsedSpace adds bytes to the user's used space
func (s *PostgresService) IncreaseUsedSpace(ctx context.Context, userID, bytes int64) error {
	query := fmt.Sprintf(`UPDATE %s SET used_space = used_space + $1 WHERE id = $2`, s.table)

	result, err := s.pool.Exec(ctx, query, bytes, userID)
	if err != nil {
		return fmt.Errorf("increase used space: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}

	return nil
}

// DecreaseUsedSpace subtracts bytes from the user's used space. Clamped at
// zero so a delayed or repeated reclaim cannot drive the balance negative.
func (s *PostgresService) DecreaseUsedSpace(ctx context.Context, userID, bytes int64) error {
	query := fmt.Sprintf(`UPDATE %s SET used_space = GREATEST(used_space - $1, 0) WHERE id = $2`, s.table)

	result, err := s.pool.Exec(ctx, query, bytes, userID)
	if err != nil {
		return fmt.Errorf("decrease used space: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}

	return nil
}

// GetFreeSpace returns the user's remaining bytes
func (s *PostgresService) GetFreeSpace(ctx context.Context, userID int64) (int64, error) {
	query := fmt.Sprintf(`SELECT total_space - used_space FROM %s WHERE id = $1`, s.table)

	var free int64
	err := s.pool.QueryRow(ctx, query, userID).Scan(&free)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("get free space: %w", err)
	}

	return free, nil
}
